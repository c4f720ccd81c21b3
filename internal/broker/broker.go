package broker

import (
	"context"

	"github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/retry"
)

// ImageMessage asks for every task of a preset to run over an image that is
// already on local disk. ImageID is a pointer so that a missing id is told
// apart from id 0.
type ImageMessage struct {
	Preset    string  `json:"preset" validate:"required"`
	ImageID   *uint64 `json:"image_id" validate:"required"`
	ImagePath string  `json:"image_path" validate:"required"`
	Client    string  `json:"client"`
}

type Producer interface {
	Send(ctx context.Context, strategy retry.Strategy, key, value []byte) error
	Close() error
}

type Consumer interface {
	StartConsuming(ctx context.Context, out chan<- kafka.Message, strategy retry.Strategy)
	Commit(ctx context.Context, msg kafka.Message) error
	Close() error
}
