package minio

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/avito-tech/gravure/internal/config"
	"github.com/avito-tech/gravure/internal/repository/image"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wb-go/wbf/zlog"
)

// FileRepository stores uploaded results in S3-compatible object storage.
// Buckets are created on first use.
type FileRepository struct {
	client *minio.Client
	logger *zlog.Zerolog

	buckets sync.Map
}

func NewMinIORepository(cfg config.MinIO, logger *zlog.Zerolog) (*FileRepository, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}

	return &FileRepository{
		client: client,
		logger: logger,
	}, nil
}

func (r *FileRepository) PutObject(ctx context.Context, bucket, key string, data io.Reader, size int64, contentType string) error {
	if err := r.ensureBucket(ctx, bucket); err != nil {
		return err
	}

	info, err := r.client.PutObject(ctx, bucket, key, data, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("%w: put %s/%s: %w", image.ErrStorageError, bucket, key, err)
	}

	r.logger.Debug().
		Str("bucket", bucket).
		Str("key", key).
		Int64("size", info.Size).
		Str("etag", info.ETag).
		Msg("Object stored")

	return nil
}

func (r *FileRepository) ensureBucket(ctx context.Context, bucket string) error {
	if _, ok := r.buckets.Load(bucket); ok {
		return nil
	}

	exists, err := r.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("%w: check bucket %s: %w", image.ErrStorageError, bucket, err)
	}

	if !exists {
		err := r.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
		switch {
		case err == nil:
			r.logger.Info().Str("bucket", bucket).Msg("Bucket created")
		case minio.ToErrorResponse(err).Code == "BucketAlreadyOwnedByYou":
			// created concurrently by another upload
		default:
			return fmt.Errorf("%w: create bucket %s: %w", image.ErrStorageError, bucket, err)
		}
	}

	r.buckets.Store(bucket, struct{}{})
	return nil
}
