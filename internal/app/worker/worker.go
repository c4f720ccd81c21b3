package worker

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/avito-tech/gravure/internal/app"
	kafka_impl "github.com/avito-tech/gravure/internal/broker/kafka"
	"github.com/avito-tech/gravure/internal/config"
	"github.com/avito-tech/gravure/internal/usecase/intake"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wb-go/wbf/zlog"
)

var ErrKafkaDisabled = errors.New("kafka is disabled in config")

// Worker feeds the dispatcher from the Kafka intake topic.
type Worker struct {
	cfg      *config.Config
	logger   *zlog.Zerolog
	core     *app.Core
	consumer *kafka_impl.ConsumerClient
	intake   *intake.Intake
	metrics  *http.Server
}

func NewWorker(cfg *config.Config, logger *zlog.Zerolog) (*Worker, error) {
	if !cfg.Kafka.Enabled {
		return nil, ErrKafkaDisabled
	}

	core, err := app.NewCore(cfg, logger)
	if err != nil {
		return nil, err
	}

	consumer := kafka_impl.NewConsumerClient(cfg)
	in := intake.New(consumer, core.Presets, core.Dispatcher, cfg.DefaultRetryStrategy(), core.Dispatcher.Workers(), logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(core.Registry, promhttp.HandlerOpts{}))

	return &Worker{
		cfg:      cfg,
		logger:   logger,
		core:     core,
		consumer: consumer,
		intake:   in,
		metrics:  &http.Server{Addr: cfg.Server.Addr, Handler: mux},
	}, nil
}

func (w *Worker) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.core.Start(); err != nil {
		return err
	}

	go func() {
		if err := w.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	w.logger.Info().
		Strs("brokers", w.cfg.Kafka.Brokers).
		Str("topic", w.cfg.Kafka.IntakeTopic).
		Str("group", w.cfg.Kafka.GroupID).
		Int("workers", w.core.Dispatcher.Workers()).
		Msg("Worker started")

	runErr := w.intake.Run(ctx)
	if runErr != nil {
		w.logger.Error().Err(runErr).Msg("Intake failed")
	}
	stop()

	w.logger.Info().Msg("Shutting down worker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), w.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := w.consumer.Close(); err != nil {
		w.logger.Error().Err(err).Msg("Failed to close consumer")
	}

	if err := w.core.Shutdown(shutdownCtx); err != nil {
		w.logger.Error().Err(err).Msg("Core shutdown incomplete")
	}

	if err := w.metrics.Shutdown(shutdownCtx); err != nil {
		w.logger.Error().Err(err).Msg("Metrics server shutdown failed")
	}

	w.logger.Info().Msg("Worker stopped gracefully")
	return runErr
}
