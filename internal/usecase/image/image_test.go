package image

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/avito-tech/gravure/internal/codec"
	"github.com/avito-tech/gravure/internal/config"
	"github.com/avito-tech/gravure/internal/domain"
	repoJob "github.com/avito-tech/gravure/internal/repository/job"
	"github.com/avito-tech/gravure/internal/uploader"
	"github.com/avito-tech/gravure/internal/usecase/processor"
	"github.com/avito-tech/gravure/internal/usecase/processor/operations"
	"github.com/avito-tech/gravure/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopQueue struct{}

func (nopQueue) Enqueue(uploader.Request) error { return nil }

type stubHistory struct {
	records []domain.JobRecord
	err     error
}

func (s stubHistory) GetByID(_ context.Context, jobID string) (*domain.JobRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	for n := range s.records {
		if s.records[n].JobID == jobID {
			return &s.records[n], nil
		}
	}
	return nil, repoJob.ErrJobNotFound
}

func (s stubHistory) ListByImage(context.Context, uint64) ([]domain.JobRecord, error) {
	return s.records, s.err
}

type closedSubmitter struct{}

func (closedSubmitter) Submit(context.Context, *worker.Job) error { return domain.ErrQueueClosed }

func pngBody(t *testing.T) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 120, 80))
	for y := 0; y < 80; y++ {
		for x := 0; x < 120; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 40, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func setup(t *testing.T, tasks []config.Task) *ImageUsecase {
	t.Helper()

	c := codec.New(0)

	reg, err := processor.CompilePresets(config.Presets{
		"avatar": {Tasks: tasks},
	}, operations.Deps{Codec: c, Uploader: nopQueue{}})
	require.NoError(t, err)

	d := worker.NewDispatcher(worker.Options{Workers: 2, Codec: c})
	require.NoError(t, d.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.Shutdown(ctx)
	})

	return NewImageUsecase(reg, d, nil, filepath.Join(t.TempDir(), "uploads"), nil)
}

func TestUploadWaitsForAllTasks(t *testing.T) {
	out := t.TempDir()
	uc := setup(t, []config.Task{
		{
			Name:        "small",
			Actions:     [][]string{{"resize", "30", "20"}, {"save", filepath.Join(out, "{{image_id}}_small.{{ext}}")}},
			URLTemplate: "http://cdn.local/{{node_id}}/{{image_id}}.{{ext}}",
		},
		{
			Name:    "big",
			Actions: [][]string{{"resize", "240", "160"}, {"save", filepath.Join(out, "{{image_id}}_big.{{ext}}")}},
		},
	})

	up, err := uc.Upload(context.Background(), UploadRequest{
		Preset:  "avatar",
		ImageID: 98765,
		Body:    pngBody(t),
		Client:  "test",
		Wait:    true,
	})
	require.NoError(t, err)
	require.Len(t, up.Jobs, 2)
	assert.True(t, up.Done())

	for _, j := range up.Jobs {
		assert.Equal(t, domain.JobCompleted, j.State)
		assert.NotEmpty(t, j.ID)
		assert.Empty(t, j.Error)
	}
	assert.Equal(t, "http://cdn.local/98/98765.jpg", up.Jobs[0].URL)
	assert.Empty(t, up.Jobs[1].URL)

	assert.FileExists(t, filepath.Join(out, "98765_small.png"))
	assert.FileExists(t, filepath.Join(out, "98765_big.png"))
	assert.FileExists(t, up.Path)
}

func TestUploadReportsFailedTask(t *testing.T) {
	out := t.TempDir()
	uc := setup(t, []config.Task{
		{Name: "ok", Actions: [][]string{{"save", filepath.Join(out, "{{image_id}}.{{ext}}")}}},
		{Name: "broken", Actions: [][]string{{"save", filepath.Join(out, "missing", "{{image_id}}.{{ext}}")}}},
	})

	up, err := uc.Upload(context.Background(), UploadRequest{Preset: "avatar", ImageID: 1, Body: pngBody(t), Wait: true})
	require.ErrorIs(t, err, ErrProcessingFailed)
	require.ErrorIs(t, err, domain.ErrIO)

	require.NotNil(t, up)
	assert.Equal(t, domain.JobCompleted, up.Jobs[0].State)
	assert.Equal(t, domain.JobFailed, up.Jobs[1].State)
	assert.NotEmpty(t, up.Jobs[1].Error)
}

func TestUploadAsyncReturnsQueuedJobs(t *testing.T) {
	out := t.TempDir()
	uc := setup(t, []config.Task{
		{Name: "only", Actions: [][]string{{"save", filepath.Join(out, "{{image_id}}.{{ext}}")}}},
	})

	up, err := uc.Upload(context.Background(), UploadRequest{Preset: "avatar", ImageID: 5, Body: pngBody(t)})
	require.NoError(t, err)
	require.Len(t, up.Jobs, 1)
	assert.Equal(t, domain.JobQueued, up.Jobs[0].State)

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(out, "5.png"))
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
}

func TestUploadRejects(t *testing.T) {
	uc := setup(t, []config.Task{{Name: "only", Actions: [][]string{{"resize", "10", "10"}}}})

	_, err := uc.Upload(context.Background(), UploadRequest{Preset: "banner", ImageID: 1, Body: pngBody(t)})
	assert.ErrorIs(t, err, processor.ErrUnknownPreset)

	_, err = uc.Upload(context.Background(), UploadRequest{Preset: "avatar", ImageID: 1})
	assert.ErrorIs(t, err, ErrEmptyBody)
}

func TestUploadWhenDispatcherClosed(t *testing.T) {
	reg, err := processor.CompilePresets(config.Presets{
		"avatar": {Tasks: []config.Task{{Name: "only", Actions: [][]string{{"resize", "10", "10"}}}}},
	}, operations.Deps{Codec: codec.New(0), Uploader: nopQueue{}})
	require.NoError(t, err)

	uc := NewImageUsecase(reg, closedSubmitter{}, nil, t.TempDir(), nil)

	up, err := uc.Upload(context.Background(), UploadRequest{Preset: "avatar", ImageID: 1, Body: pngBody(t)})
	assert.Nil(t, up)
	assert.ErrorIs(t, err, domain.ErrQueueClosed)
}

func TestStoreWritesFreshFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "uploads")
	uc := NewImageUsecase(nil, nil, nil, dir, nil)
	body := pngBody(t)

	first, err := uc.store("avatar", 1, body)
	require.NoError(t, err)
	second, err := uc.store("avatar", 1, body)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, dir, filepath.Dir(first))

	stored, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, body, stored)
}

func TestHistory(t *testing.T) {
	uc := NewImageUsecase(nil, nil, nil, t.TempDir(), nil)
	_, err := uc.History(context.Background(), 1)
	assert.ErrorIs(t, err, ErrHistoryDisabled)

	records := []domain.JobRecord{{JobID: "a", ImageID: 1, State: domain.JobCompleted}}
	uc = NewImageUsecase(nil, nil, stubHistory{records: records}, t.TempDir(), nil)
	got, err := uc.History(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, records, got)

	boom := errors.New("db down")
	uc = NewImageUsecase(nil, nil, stubHistory{err: boom}, t.TempDir(), nil)
	_, err = uc.History(context.Background(), 1)
	assert.ErrorIs(t, err, boom)
}

func TestJobLookup(t *testing.T) {
	records := []domain.JobRecord{{JobID: "a", ImageID: 1, Task: "small", State: domain.JobCompleted}}
	boom := errors.New("db down")

	tests := []struct {
		name    string
		history jobHistory
		id      string
		wantErr error
	}{
		{"disabled", nil, "a", ErrHistoryDisabled},
		{"found", stubHistory{records: records}, "a", nil},
		{"missing", stubHistory{records: records}, "b", ErrJobNotFound},
		{"store down", stubHistory{err: boom}, "a", boom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := NewImageUsecase(nil, nil, tt.history, t.TempDir(), nil)

			rec, err := uc.Job(context.Background(), tt.id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, rec)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "small", rec.Task)
		})
	}
}
