package image

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/avito-tech/gravure/internal/domain"
	repoJob "github.com/avito-tech/gravure/internal/repository/job"
	"github.com/avito-tech/gravure/internal/worker"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/zlog"
)

type UploadRequest struct {
	Preset  string
	ImageID uint64
	Body    []byte
	Client  string
	// Wait makes Upload return only after every task of the preset finished.
	Wait bool
}

type JobSummary struct {
	ID       string
	Task     string
	URL      string
	State    domain.JobState
	Error    string
	Duration time.Duration
}

type Upload struct {
	ImageID uint64
	Preset  string
	Path    string
	Jobs    []JobSummary
}

// Done reports whether every job of the upload reached a terminal state.
func (u *Upload) Done() bool {
	for _, j := range u.Jobs {
		if !j.State.Terminal() {
			return false
		}
	}
	return true
}

type ImageUsecase struct {
	presets presetRegistry
	jobs    jobSubmitter
	history jobHistory
	dir     string
	logger  *zlog.Zerolog
}

// NewImageUsecase stores uploads under dir. history may be nil.
func NewImageUsecase(presets presetRegistry, jobs jobSubmitter, history jobHistory, dir string, logger *zlog.Zerolog) *ImageUsecase {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &ImageUsecase{
		presets: presets,
		jobs:    jobs,
		history: history,
		dir:     dir,
		logger:  logger,
	}
}

func (i *ImageUsecase) Upload(ctx context.Context, req UploadRequest) (*Upload, error) {
	preset, err := i.presets.Preset(req.Preset)
	if err != nil {
		return nil, err
	}

	if len(req.Body) == 0 {
		return nil, ErrEmptyBody
	}

	path, err := i.store(preset.Name, req.ImageID, req.Body)
	if err != nil {
		i.logger.Error().Err(err).Uint64("image_id", req.ImageID).Msg("Failed to store upload")
		return nil, err
	}

	upload := &Upload{
		ImageID: req.ImageID,
		Preset:  preset.Name,
		Path:    path,
		Jobs:    make([]JobSummary, 0, len(preset.Tasks)),
	}

	jobs := make([]*worker.Job, 0, len(preset.Tasks))
	for _, task := range preset.Tasks {
		job := worker.NewJob(req.ImageID, path, preset.Name, task)
		job.Client = req.Client
		if req.Wait {
			job.Done = domain.NewCompletion()
		}

		if err := i.jobs.Submit(ctx, job); err != nil {
			i.logger.Warn().
				Err(err).
				Uint64("image_id", req.ImageID).
				Str("preset", preset.Name).
				Str("task", task.Name).
				Int("accepted", len(jobs)).
				Msg("Job submission failed")
			if len(jobs) > 0 {
				return upload, fmt.Errorf("%w: %w", ErrPartiallyAccepted, err)
			}
			return nil, err
		}

		summary := JobSummary{ID: job.ID, Task: task.Name, State: domain.JobQueued}
		if task.URL != nil {
			if url, err := task.URL.Render(req.ImageID, domain.ExtJPG); err == nil {
				summary.URL = url
			}
		}

		jobs = append(jobs, job)
		upload.Jobs = append(upload.Jobs, summary)
	}

	i.logger.Info().
		Uint64("image_id", req.ImageID).
		Str("preset", preset.Name).
		Int("jobs", len(jobs)).
		Bool("wait", req.Wait).
		Msg("Image accepted")

	if !req.Wait {
		return upload, nil
	}

	return upload, i.wait(ctx, upload, jobs)
}

func (i *ImageUsecase) wait(ctx context.Context, upload *Upload, jobs []*worker.Job) error {
	var failed []error

	for n, job := range jobs {
		res, err := job.Done.Wait(ctx)
		if err != nil {
			return err
		}

		summary := &upload.Jobs[n]
		summary.State = res.State
		summary.Duration = res.Duration()
		if res.Err != nil {
			summary.Error = res.Err.Error()
			failed = append(failed, res.Err)
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("%w: %w", ErrProcessingFailed, errors.Join(failed...))
	}
	return nil
}

// store writes body to a fresh file named after the preset, the image id and
// the upload time.
func (i *ImageUsecase) store(preset string, imageID uint64, body []byte) (string, error) {
	if err := os.MkdirAll(i.dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %w", ErrStorageError, err)
	}

	h := xxhash.New()
	fmt.Fprintf(h, "%s/%d/%d", preset, imageID, time.Now().UnixNano())
	path := filepath.Join(i.dir, fmt.Sprintf("%016x.img", h.Sum64()))

	tmp, err := os.CreateTemp(i.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStorageError, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: %w", ErrStorageError, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrStorageError, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("%w: %w", ErrStorageError, err)
	}

	return path, nil
}

func (i *ImageUsecase) History(ctx context.Context, imageID uint64) ([]domain.JobRecord, error) {
	if i.history == nil {
		return nil, ErrHistoryDisabled
	}

	records, err := i.history.ListByImage(ctx, imageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return records, nil
}

func (i *ImageUsecase) Job(ctx context.Context, jobID string) (*domain.JobRecord, error) {
	if i.history == nil {
		return nil, ErrHistoryDisabled
	}

	rec, err := i.history.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repoJob.ErrJobNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return rec, nil
}
