package worker

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avito-tech/gravure/internal/domain"
	"github.com/avito-tech/gravure/internal/usecase/processor/operations"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/zlog"
)

type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

const queueSizePerWorker = 4

var (
	ErrInvalidJob    = errors.New("invalid job")
	ErrAlreadyQueued = errors.New("job already submitted")
	ErrNotIdle       = errors.New("dispatcher already started")
)

type decoder interface {
	Decode(path string) (image.Image, domain.Format, error)
}

type reporter interface {
	Report(res domain.Result)
}

type recorder interface {
	JobSubmitted(queueDepth int)
	JobStarted(queueDepth int)
	JobFinished(res domain.Result)
}

type Options struct {
	// Workers is the number of jobs executed concurrently. Zero is not
	// allowed here; callers resolve it from the CPU count.
	Workers   int
	QueueSize int

	Codec    decoder
	Reporter reporter
	Metrics  recorder
	Logger   *zlog.Zerolog
}

// Dispatcher runs jobs on a fixed pool of workers fed by one bounded queue.
// Each queued job is received by exactly one worker.
type Dispatcher struct {
	workers  int
	codec    decoder
	reporter reporter
	metrics  recorder
	logger   *zlog.Zerolog

	mu        sync.RWMutex
	state     atomic.Int32
	jobs      chan *Job
	closing   chan struct{}
	closeOnce sync.Once
	stopped   chan struct{}
	abandon   atomic.Bool
	wg        sync.WaitGroup
}

func NewDispatcher(opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = queueSizePerWorker * opts.Workers
	}
	if opts.Reporter == nil {
		opts.Reporter = nopReporter{}
	}
	if opts.Metrics == nil {
		opts.Metrics = nopRecorder{}
	}
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}

	return &Dispatcher{
		workers:  opts.Workers,
		codec:    opts.Codec,
		reporter: opts.Reporter,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		jobs:     make(chan *Job, opts.QueueSize),
		closing:  make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

// Pending returns the number of jobs waiting in the queue.
func (d *Dispatcher) Pending() int {
	return len(d.jobs)
}

func (d *Dispatcher) Workers() int {
	return d.workers
}

func (d *Dispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.State() != StateIdle {
		return ErrNotIdle
	}
	d.state.Store(int32(StateRunning))

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.processWorker(i)
	}

	d.logger.Info().
		Int("workers", d.workers).
		Int("queue_size", cap(d.jobs)).
		Msg("Dispatcher started")

	return nil
}

// Submit enqueues job. It blocks while the queue is full until space frees
// up, ctx is done or the dispatcher starts draining.
func (d *Dispatcher) Submit(ctx context.Context, job *Job) error {
	if job == nil || job.Pipeline == nil {
		return ErrInvalidJob
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if s := d.State(); s == StateDraining || s == StateStopped {
		return domain.ErrQueueClosed
	}

	if !job.claim() {
		return ErrAlreadyQueued
	}

	select {
	case d.jobs <- job:
		d.metrics.JobSubmitted(len(d.jobs))
		d.logger.Debug().
			Str("job_id", job.ID).
			Uint64("image_id", job.ImageID).
			Str("preset", job.Preset).
			Str("task", job.Task).
			Msg("Job queued")
		return nil
	case <-d.closing:
		job.release()
		return domain.ErrQueueClosed
	case <-ctx.Done():
		job.release()
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and drains the queue. Jobs still queued when
// ctx expires are finished as cancelled; running jobs always complete.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.closeOnce.Do(func() { close(d.closing) })

	d.mu.Lock()
	prev := d.State()
	if prev == StateDraining || prev == StateStopped {
		d.mu.Unlock()
		select {
		case <-d.stopped:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	d.state.Store(int32(StateDraining))
	close(d.jobs)
	d.mu.Unlock()

	d.logger.Info().Int("pending", len(d.jobs)).Msg("Dispatcher draining")

	if prev == StateIdle {
		for job := range d.jobs {
			d.cancel(job)
		}
		d.stop()
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		d.abandon.Store(true)
		d.logger.Warn().Int("pending", len(d.jobs)).Msg("Drain deadline exceeded, cancelling queued jobs")
		<-done
		err = ctx.Err()
	}

	d.stop()
	return err
}

func (d *Dispatcher) stop() {
	d.state.Store(int32(StateStopped))
	close(d.stopped)
	d.logger.Info().Msg("Dispatcher stopped")
}

func (d *Dispatcher) processWorker(id int) {
	defer d.wg.Done()

	d.logger.Debug().Int("worker_id", id).Msg("Worker started")

	for job := range d.jobs {
		if d.abandon.Load() {
			d.cancel(job)
			continue
		}
		d.process(id, job)
	}

	d.logger.Debug().Int("worker_id", id).Msg("Worker stopped")
}

func (d *Dispatcher) process(workerID int, job *Job) {
	job.setState(domain.JobRunning)
	d.metrics.JobStarted(len(d.jobs))

	logger := d.logger.With().
		Int("worker_id", workerID).
		Str("job_id", job.ID).
		Uint64("image_id", job.ImageID).
		Str("client", job.Client).
		Str("preset", job.Preset).
		Str("task", job.Task).
		Logger()

	res := job.result()
	res.StartedAt = time.Now()

	step, err := d.safeRun(job, logger)
	res.FinishedAt = time.Now()

	if err != nil {
		res.State = domain.JobFailed
		res.Step = step
		res.Err = &domain.JobError{
			JobID:   job.ID,
			ImageID: job.ImageID,
			Client:  job.Client,
			Step:    step,
			Err:     err,
		}
		logger.Error().Err(err).Int("step", step).Dur("duration", res.Duration()).Msg("Job failed")
	} else {
		res.State = domain.JobCompleted
		logger.Info().Dur("duration", res.Duration()).Msg("Job completed")
	}

	d.finish(job, res)
}

func (d *Dispatcher) safeRun(job *Job, logger zerolog.Logger) (step int, err error) {
	step = -1

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Panic recovered while running job")
			err = fmt.Errorf("%w: %v", domain.ErrPanic, r)
		}
	}()

	img, format, err := d.codec.Decode(job.ImagePath)
	if err != nil {
		return -1, &domain.DecodeError{Path: job.ImagePath, Err: err}
	}

	scope := operations.Scope{
		JobID:   job.ID,
		ImageID: job.ImageID,
		Client:  job.Client,
		Logger:  logger,
	}

	data := domain.ImageData{Image: img, Format: format, ID: job.ImageID}

	_, step, err = job.Pipeline.Run(context.Background(), scope, data)
	return step, err
}

func (d *Dispatcher) cancel(job *Job) {
	res := job.result()
	res.State = domain.JobCancelled
	res.FinishedAt = time.Now()
	res.Err = &domain.JobError{
		JobID:   job.ID,
		ImageID: job.ImageID,
		Client:  job.Client,
		Step:    -1,
		Err:     domain.ErrJobCancelled,
	}

	d.logger.Warn().
		Str("job_id", job.ID).
		Uint64("image_id", job.ImageID).
		Str("client", job.Client).
		Msg("Job cancelled")

	d.finish(job, res)
}

// finish publishes the terminal result. The completion fires last.
func (d *Dispatcher) finish(job *Job, res domain.Result) {
	job.setState(res.State)
	d.metrics.JobFinished(res)
	d.reporter.Report(res)
	job.Done.Fire(res)
}

type nopReporter struct{}

func (nopReporter) Report(domain.Result) {}

type nopRecorder struct{}

func (nopRecorder) JobSubmitted(int)          {}
func (nopRecorder) JobStarted(int)            {}
func (nopRecorder) JobFinished(domain.Result) {}
