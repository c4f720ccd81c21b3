package report

import (
	"context"
	"sync"
	"time"

	"github.com/avito-tech/gravure/internal/domain"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/zlog"
)

const (
	defaultBufferSize = 1024
	defaultTimeout    = 5 * time.Second
)

// Sink receives every reported result.
type Sink interface {
	Name() string
	Record(ctx context.Context, rec domain.JobRecord) error
}

// Reporter fans job results out to external sinks without blocking the
// workers that produce them.
type Reporter struct {
	sinks   []Sink
	timeout time.Duration
	logger  *zlog.Zerolog

	mu     sync.RWMutex
	closed bool
	queue  chan domain.Result
	done   chan struct{}
}

func New(bufferSize int, timeout time.Duration, logger *zlog.Zerolog, sinks ...Sink) *Reporter {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	r := &Reporter{
		sinks:   sinks,
		timeout: timeout,
		logger:  logger,
		queue:   make(chan domain.Result, bufferSize),
		done:    make(chan struct{}),
	}

	go r.run()

	return r
}

// Report queues res for delivery. When the buffer is full the result is
// dropped.
func (r *Reporter) Report(res domain.Result) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed || len(r.sinks) == 0 {
		return
	}

	select {
	case r.queue <- res:
	default:
		r.logger.Warn().
			Str("job_id", res.JobID).
			Uint64("image_id", res.ImageID).
			Msg("Report buffer full, result dropped")
	}
}

// Close delivers buffered results and stops the reporter.
func (r *Reporter) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reporter) run() {
	defer close(r.done)

	for res := range r.queue {
		rec := domain.NewJobRecord(res)

		for _, s := range r.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			err := s.Record(ctx, rec)
			cancel()

			if err != nil {
				r.logger.Error().
					Err(err).
					Str("sink", s.Name()).
					Str("job_id", rec.JobID).
					Uint64("image_id", rec.ImageID).
					Msg("Failed to report job result")
			}
		}
	}
}
