// Package uploader runs network uploads of processed images outside of the
// job workers. Requests are queued without blocking and sent by a separate
// pool of goroutines; outcomes are only logged and counted.
package uploader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/zlog"
)

var (
	ErrQueueFull         = errors.New("upload queue is full")
	ErrClosed            = errors.New("uploader is closed")
	ErrUnsupportedScheme = errors.New("unsupported upload scheme")
	ErrUnexpectedStatus  = errors.New("unexpected upload response status")
	ErrNoObjectStore     = errors.New("object storage is not configured")
)

const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
	SchemeS3    = "s3"

	defaultWorkers   = 4
	defaultQueueSize = 256
	defaultTimeout   = 30 * time.Second
)

type Request struct {
	URL         string
	Body        []byte
	ContentType string

	JobID   string
	ImageID uint64
	Client  string
}

type objectStore interface {
	PutObject(ctx context.Context, bucket, key string, data io.Reader, size int64, contentType string) error
}

type recorder interface {
	UploadFinished(scheme string, err error)
}

type Options struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration

	HTTPClient *http.Client
	Objects    objectStore
	Metrics    recorder
	Logger     *zlog.Zerolog
}

type Uploader struct {
	client  *http.Client
	objects objectStore
	metrics recorder
	logger  *zlog.Zerolog
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
	queue  chan Request
	wg     sync.WaitGroup
}

func New(opts Options) *Uploader {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Metrics == nil {
		opts.Metrics = nopRecorder{}
	}
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}

	ctx, cancel := context.WithCancel(context.Background())

	u := &Uploader{
		client:  opts.HTTPClient,
		objects: opts.Objects,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		timeout: opts.Timeout,
		ctx:     ctx,
		cancel:  cancel,
		queue:   make(chan Request, opts.QueueSize),
	}

	for i := 0; i < opts.Workers; i++ {
		u.wg.Add(1)
		go u.worker(i)
	}

	return u
}

// Enqueue hands req to the upload pool. It never blocks: a full queue
// returns ErrQueueFull.
func (u *Uploader) Enqueue(req Request) error {
	u.mu.RLock()
	defer u.mu.RUnlock()

	if u.closed {
		return ErrClosed
	}

	select {
	case u.queue <- req:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting requests and waits for queued uploads. When ctx
// expires first, in-flight requests are aborted.
func (u *Uploader) Close(ctx context.Context) error {
	u.mu.Lock()
	if !u.closed {
		u.closed = true
		close(u.queue)
	}
	u.mu.Unlock()

	done := make(chan struct{})
	go func() {
		u.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		u.cancel()
		return nil
	case <-ctx.Done():
		u.cancel()
		<-done
		return ctx.Err()
	}
}

func (u *Uploader) Pending() int {
	return len(u.queue)
}

func (u *Uploader) worker(id int) {
	defer u.wg.Done()

	for req := range u.queue {
		start := time.Now()
		scheme, err := u.send(req)
		u.metrics.UploadFinished(scheme, err)

		if err != nil {
			u.logger.Error().
				Err(err).
				Int("uploader_id", id).
				Str("job_id", req.JobID).
				Uint64("image_id", req.ImageID).
				Str("client", req.Client).
				Str("url", req.URL).
				Msg("Upload failed")
			continue
		}

		u.logger.Info().
			Int("uploader_id", id).
			Str("job_id", req.JobID).
			Uint64("image_id", req.ImageID).
			Str("url", req.URL).
			Int("size", len(req.Body)).
			Dur("duration", time.Since(start)).
			Msg("Upload finished")
	}
}

func (u *Uploader) send(req Request) (string, error) {
	target, err := url.Parse(req.URL)
	if err != nil {
		return "", fmt.Errorf("parse upload url: %w", err)
	}

	ctx, cancel := context.WithTimeout(u.ctx, u.timeout)
	defer cancel()

	scheme := strings.ToLower(target.Scheme)
	switch scheme {
	case SchemeHTTP, SchemeHTTPS:
		return scheme, u.post(ctx, req)
	case SchemeS3:
		return scheme, u.put(ctx, target, req)
	default:
		return scheme, fmt.Errorf("%w: %q", ErrUnsupportedScheme, target.Scheme)
	}
}

func (u *Uploader) post(ctx context.Context, req Request) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	httpReq.Header.Set("Content-Type", req.ContentType)

	resp, err := u.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send upload request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	return nil
}

// put stores the body in object storage. The URL host is the bucket and the
// path is the object key.
func (u *Uploader) put(ctx context.Context, target *url.URL, req Request) error {
	if u.objects == nil {
		return ErrNoObjectStore
	}

	bucket := target.Host
	key := strings.TrimPrefix(target.Path, "/")
	if bucket == "" || key == "" {
		return fmt.Errorf("invalid object url %q", req.URL)
	}

	return u.objects.PutObject(ctx, bucket, key, bytes.NewReader(req.Body), int64(len(req.Body)), req.ContentType)
}

type nopRecorder struct{}

func (nopRecorder) UploadFinished(string, error) {}
