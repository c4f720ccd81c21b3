package image

import (
	"context"

	"github.com/avito-tech/gravure/internal/domain"
	"github.com/avito-tech/gravure/internal/usecase/processor"
	"github.com/avito-tech/gravure/internal/worker"
)

type presetRegistry interface {
	Preset(name string) (*processor.Preset, error)
}

type jobSubmitter interface {
	Submit(ctx context.Context, job *worker.Job) error
}

type jobHistory interface {
	GetByID(ctx context.Context, jobID string) (*domain.JobRecord, error)
	ListByImage(ctx context.Context, imageID uint64) ([]domain.JobRecord, error)
}
