package image

import (
	"context"

	"github.com/avito-tech/gravure/internal/domain"
	image_uc "github.com/avito-tech/gravure/internal/usecase/image"
)

type imageUsecase interface {
	Upload(ctx context.Context, req image_uc.UploadRequest) (*image_uc.Upload, error)
	History(ctx context.Context, imageID uint64) ([]domain.JobRecord, error)
	Job(ctx context.Context, jobID string) (*domain.JobRecord, error)
}
