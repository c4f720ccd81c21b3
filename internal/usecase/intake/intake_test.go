package intake

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/avito-tech/gravure/internal/codec"
	"github.com/avito-tech/gravure/internal/config"
	"github.com/avito-tech/gravure/internal/domain"
	"github.com/avito-tech/gravure/internal/uploader"
	"github.com/avito-tech/gravure/internal/usecase/processor"
	"github.com/avito-tech/gravure/internal/usecase/processor/operations"
	"github.com/avito-tech/gravure/internal/worker"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"
)

type nopQueue struct{}

func (nopQueue) Enqueue(uploader.Request) error { return nil }

type fakeSource struct {
	messages []kafka.Message

	mu        sync.Mutex
	committed []int64
}

func (s *fakeSource) StartConsuming(ctx context.Context, out chan<- kafka.Message, _ retry.Strategy) {
	for _, m := range s.messages {
		select {
		case out <- m:
		case <-ctx.Done():
			return
		}
	}
	<-ctx.Done()
}

func (s *fakeSource) Commit(_ context.Context, msg kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = append(s.committed, msg.Offset)
	return nil
}

func (s *fakeSource) commits() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.committed...)
}

type fakeSubmitter struct {
	err error

	mu   sync.Mutex
	jobs []*worker.Job
}

func (f *fakeSubmitter) Submit(_ context.Context, job *worker.Job) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	return nil
}

func registry(t *testing.T) *processor.Registry {
	t.Helper()
	reg, err := processor.CompilePresets(config.Presets{
		"avatar": {Tasks: []config.Task{
			{Name: "small", Actions: [][]string{{"resize", "60", "60"}}},
			{Name: "big", Actions: [][]string{{"resize", "600", "600"}}},
		}},
	}, operations.Deps{Codec: codec.New(0), Uploader: nopQueue{}})
	require.NoError(t, err)
	return reg
}

func newIntake(t *testing.T, src *fakeSource, sub *fakeSubmitter) *Intake {
	logger := zerolog.Nop()
	return New(src, registry(t), sub, retry.Strategy{Attempts: 1}, 4, &logger)
}

func TestHandleSubmitsJobPerTask(t *testing.T) {
	src := &fakeSource{}
	sub := &fakeSubmitter{}
	in := newIntake(t, src, sub)

	msg := kafka.Message{Offset: 7, Value: []byte(`{"preset":"avatar","image_id":12345,"image_path":"/tmp/a.png","client":"svc"}`)}
	require.NoError(t, in.Handle(context.Background(), msg))

	require.Len(t, sub.jobs, 2)
	assert.Equal(t, "small", sub.jobs[0].Task)
	assert.Equal(t, "big", sub.jobs[1].Task)
	for _, job := range sub.jobs {
		assert.Equal(t, uint64(12345), job.ImageID)
		assert.Equal(t, "/tmp/a.png", job.ImagePath)
		assert.Equal(t, "svc", job.Client)
		assert.Equal(t, "avatar", job.Preset)
		assert.NotEmpty(t, job.ID)
	}
	assert.Equal(t, []int64{7}, src.commits())
}

func TestHandleAcceptsZeroImageID(t *testing.T) {
	src := &fakeSource{}
	sub := &fakeSubmitter{}
	in := newIntake(t, src, sub)

	msg := kafka.Message{Offset: 9, Value: []byte(`{"preset":"avatar","image_id":0,"image_path":"/tmp/z.png"}`)}
	require.NoError(t, in.Handle(context.Background(), msg))

	require.Len(t, sub.jobs, 2)
	assert.Equal(t, uint64(0), sub.jobs[0].ImageID)
	assert.Equal(t, []int64{9}, src.commits())
}

func TestHandleSkipsBadMessages(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"not json", `{{{`},
		{"missing path", `{"preset":"avatar","image_id":1}`},
		{"missing id", `{"preset":"avatar","image_path":"/x"}`},
		{"unknown preset", `{"preset":"banner","image_id":1,"image_path":"/x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{}
			sub := &fakeSubmitter{}
			in := newIntake(t, src, sub)

			require.NoError(t, in.Handle(context.Background(), kafka.Message{Offset: 3, Value: []byte(tt.value)}))
			assert.Empty(t, sub.jobs)
			assert.Equal(t, []int64{3}, src.commits())
		})
	}
}

func TestHandleLeavesMessageWhenDispatcherClosed(t *testing.T) {
	src := &fakeSource{}
	sub := &fakeSubmitter{err: domain.ErrQueueClosed}
	in := newIntake(t, src, sub)

	err := in.Handle(context.Background(), kafka.Message{Offset: 1, Value: []byte(`{"preset":"avatar","image_id":1,"image_path":"/x"}`)})
	require.ErrorIs(t, err, domain.ErrQueueClosed)
	assert.Empty(t, src.commits())
}

func TestRunConsumesUntilCancelled(t *testing.T) {
	src := &fakeSource{messages: []kafka.Message{
		{Offset: 1, Value: []byte(`{"preset":"avatar","image_id":1,"image_path":"/a"}`)},
		{Offset: 2, Value: []byte(`{"preset":"avatar","image_id":2,"image_path":"/b"}`)},
	}}
	sub := &fakeSubmitter{}
	in := newIntake(t, src, sub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- in.Run(ctx) }()

	require.Eventually(t, func() bool { return len(src.commits()) == 2 }, 5*time.Second, 10*time.Millisecond)
	cancel()

	require.NoError(t, <-done)
	assert.Len(t, sub.jobs, 4)
}
