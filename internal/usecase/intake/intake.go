package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/avito-tech/gravure/internal/broker"
	"github.com/avito-tech/gravure/internal/domain"
	"github.com/avito-tech/gravure/internal/usecase/processor"
	"github.com/avito-tech/gravure/internal/worker"

	"github.com/go-playground/validator/v10"
	"github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

var ErrInvalidMessage = errors.New("invalid image message")

type messageSource interface {
	StartConsuming(ctx context.Context, out chan<- kafka.Message, strategy retry.Strategy)
	Commit(ctx context.Context, msg kafka.Message) error
}

type presetRegistry interface {
	Preset(name string) (*processor.Preset, error)
}

type jobSubmitter interface {
	Submit(ctx context.Context, job *worker.Job) error
}

// Intake turns broker messages into dispatcher jobs, one per preset task.
type Intake struct {
	source   messageSource
	presets  presetRegistry
	jobs     jobSubmitter
	validate *validator.Validate
	retries  retry.Strategy
	buffer   int
	logger   *zlog.Zerolog
}

func New(source messageSource, presets presetRegistry, jobs jobSubmitter, retries retry.Strategy, buffer int, logger *zlog.Zerolog) *Intake {
	if buffer <= 0 {
		buffer = 1
	}
	return &Intake{
		source:   source,
		presets:  presets,
		jobs:     jobs,
		validate: validator.New(),
		retries:  retries,
		buffer:   buffer,
		logger:   logger,
	}
}

// Run consumes until ctx is done or the dispatcher stops accepting jobs.
func (i *Intake) Run(ctx context.Context) error {
	messages := make(chan kafka.Message, i.buffer)

	go i.source.StartConsuming(ctx, messages, i.retries)

	i.logger.Info().Msg("Intake started")

	for {
		select {
		case <-ctx.Done():
			i.logger.Info().Msg("Intake stopped")
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if err := i.Handle(ctx, msg); err != nil {
				if errors.Is(err, domain.ErrQueueClosed) || ctx.Err() != nil {
					return nil
				}
				i.logger.Error().Err(err).Int64("offset", msg.Offset).Msg("Failed to handle message")
			}
		}
	}
}

// Handle submits the jobs for one message and commits it. Malformed messages
// are logged and committed so they are not redelivered.
func (i *Intake) Handle(ctx context.Context, msg kafka.Message) error {
	req, err := i.decode(msg)
	if err != nil {
		i.logger.Warn().Err(err).Int64("offset", msg.Offset).Msg("Skipping message")
		return i.commit(ctx, msg)
	}

	imageID := *req.ImageID

	preset, err := i.presets.Preset(req.Preset)
	if err != nil {
		i.logger.Warn().Err(err).Uint64("image_id", imageID).Int64("offset", msg.Offset).Msg("Skipping message")
		return i.commit(ctx, msg)
	}

	for _, task := range preset.Tasks {
		job := worker.NewJob(imageID, req.ImagePath, preset.Name, task)
		job.Client = req.Client

		if err := i.jobs.Submit(ctx, job); err != nil {
			if errors.Is(err, domain.ErrQueueClosed) {
				i.logger.Info().Uint64("image_id", imageID).Msg("Dispatcher closed, message left uncommitted")
			}
			return fmt.Errorf("submit job for image %d: %w", imageID, err)
		}
	}

	i.logger.Info().
		Uint64("image_id", imageID).
		Str("preset", preset.Name).
		Int("jobs", len(preset.Tasks)).
		Int64("offset", msg.Offset).
		Msg("Image message accepted")

	return i.commit(ctx, msg)
}

func (i *Intake) decode(msg kafka.Message) (*broker.ImageMessage, error) {
	var req broker.ImageMessage
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if err := i.validate.Struct(&req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	return &req, nil
}

func (i *Intake) commit(ctx context.Context, msg kafka.Message) error {
	err := retry.Do(func() error {
		return i.source.Commit(ctx, msg)
	}, i.retries)
	if err != nil {
		i.logger.Error().Err(err).Int64("offset", msg.Offset).Msg("Failed to commit message after retries")
		return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
	}
	return nil
}
