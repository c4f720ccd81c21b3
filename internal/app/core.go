package app

import (
	"context"
	"errors"
	"fmt"

	kafka_impl "github.com/avito-tech/gravure/internal/broker/kafka"
	"github.com/avito-tech/gravure/internal/codec"
	"github.com/avito-tech/gravure/internal/config"
	"github.com/avito-tech/gravure/internal/metrics"
	minio_repo "github.com/avito-tech/gravure/internal/repository/image/cloud/minio"
	postgres_repo "github.com/avito-tech/gravure/internal/repository/job/db/postgres"
	"github.com/avito-tech/gravure/internal/uploader"
	"github.com/avito-tech/gravure/internal/usecase/processor"
	"github.com/avito-tech/gravure/internal/usecase/processor/operations"
	"github.com/avito-tech/gravure/internal/usecase/report"
	"github.com/avito-tech/gravure/internal/worker"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"
)

// Core is the processing engine shared by the HTTP server and the Kafka
// worker: presets, the dispatcher and everything the actions talk to.
type Core struct {
	Cfg        *config.Config
	Logger     *zlog.Zerolog
	Registry   *prometheus.Registry
	Presets    *processor.Registry
	Dispatcher *worker.Dispatcher
	// Jobs is nil unless the job history store is enabled.
	Jobs *postgres_repo.JobsRepository

	uploader *uploader.Uploader
	reporter *report.Reporter
	db       *dbpg.DB
	producer *kafka_impl.ProducerClient
}

func NewCore(cfg *config.Config, logger *zlog.Zerolog) (*Core, error) {
	c := &Core{
		Cfg:      cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}

	c.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(c.Registry)

	var objects *minio_repo.FileRepository
	if cfg.MinIO.Enabled {
		repo, err := minio_repo.NewMinIORepository(cfg.MinIO, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create object storage: %w", err)
		}
		objects = repo
	}

	upOpts := uploader.Options{
		Workers:   cfg.Uploader.Workers,
		QueueSize: cfg.Uploader.QueueSize,
		Timeout:   cfg.Uploader.Timeout,
		Metrics:   m,
		Logger:    logger,
	}
	if objects != nil {
		upOpts.Objects = objects
	}
	c.uploader = uploader.New(upOpts)

	imgCodec := codec.New(cfg.Codec.JPEGQuality)

	presets, err := processor.CompilePresets(cfg.Presets, operations.Deps{
		Codec:    imgCodec,
		Uploader: c.uploader,
	})
	if err != nil {
		c.uploader.Close(context.Background())
		return nil, fmt.Errorf("failed to compile presets: %w", err)
	}
	c.Presets = presets

	var sinks []report.Sink

	if cfg.DB.Enabled {
		db, err := dbpg.New(cfg.DBDSN(), []string{}, &dbpg.Options{
			MaxOpenConns:    cfg.DB.MaxOpenConns,
			MaxIdleConns:    cfg.DB.MaxIdleConns,
			ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
		})
		if err != nil {
			c.uploader.Close(context.Background())
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		c.db = db
		c.Jobs = postgres_repo.NewJobsRepository(db, cfg.DefaultRetryStrategy())
		sinks = append(sinks, c.Jobs)
	}

	if cfg.Kafka.Enabled {
		c.producer = kafka_impl.NewProducerClient(cfg)
		sinks = append(sinks, c.producer)
	}

	c.reporter = report.New(cfg.Reporter.BufferSize, cfg.Reporter.Timeout, logger, sinks...)

	c.Dispatcher = worker.NewDispatcher(worker.Options{
		Workers:   cfg.WorkerCount(),
		QueueSize: cfg.QueueSize(),
		Codec:     imgCodec,
		Reporter:  c.reporter,
		Metrics:   m,
		Logger:    logger,
	})

	logger.Info().
		Strs("presets", presets.Names()).
		Int("workers", cfg.WorkerCount()).
		Int("queue_size", cfg.QueueSize()).
		Bool("minio", cfg.MinIO.Enabled).
		Bool("db", cfg.DB.Enabled).
		Bool("kafka", cfg.Kafka.Enabled).
		Msg("Core initialized")

	return c, nil
}

// Start runs the dispatcher. When it cannot start, everything NewCore opened
// is released before the error is returned.
func (c *Core) Start() error {
	if err := c.Dispatcher.Start(); err != nil {
		ctx, cancel := context.WithTimeout(context.Background(), c.Cfg.Server.ShutdownTimeout)
		defer cancel()
		if sErr := c.Shutdown(ctx); sErr != nil {
			c.Logger.Warn().Err(sErr).Msg("Cleanup after failed start incomplete")
		}
		return fmt.Errorf("failed to start dispatcher: %w", err)
	}
	return nil
}

// Shutdown drains the dispatcher within the configured drain timeout, then
// flushes uploads and reports and closes external connections.
func (c *Core) Shutdown(ctx context.Context) error {
	var errs []error

	drainCtx, cancel := context.WithTimeout(ctx, c.Cfg.Dispatcher.DrainTimeout)
	defer cancel()

	if err := c.Dispatcher.Shutdown(drainCtx); err != nil {
		c.Logger.Warn().Err(err).Int("pending", c.Dispatcher.Pending()).Msg("Dispatcher drain deadline reached")
		errs = append(errs, fmt.Errorf("drain dispatcher: %w", err))
	}

	if err := c.uploader.Close(ctx); err != nil {
		c.Logger.Warn().Err(err).Int("pending", c.uploader.Pending()).Msg("Uploads abandoned")
		errs = append(errs, fmt.Errorf("close uploader: %w", err))
	}

	if err := c.reporter.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close reporter: %w", err))
	}

	if c.producer != nil {
		if err := c.producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close producer: %w", err))
		}
	}

	if c.db != nil && c.db.Master != nil {
		if err := c.db.Master.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	return errors.Join(errs...)
}
