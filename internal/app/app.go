package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/avito-tech/gravure/internal/config"
	image_h "github.com/avito-tech/gravure/internal/http-server/handler/image"
	"github.com/avito-tech/gravure/internal/http-server/router"
	image_uc "github.com/avito-tech/gravure/internal/usecase/image"

	"github.com/wb-go/wbf/zlog"
)

// App serves the upload API on top of a Core.
type App struct {
	cfg    *config.Config
	core   *Core
	server *http.Server
	logger *zlog.Zerolog
}

func NewApp(cfg *config.Config, logger *zlog.Zerolog) (*App, error) {
	core, err := NewCore(cfg, logger)
	if err != nil {
		return nil, err
	}

	var imageUsecase *image_uc.ImageUsecase
	if core.Jobs != nil {
		imageUsecase = image_uc.NewImageUsecase(core.Presets, core.Dispatcher, core.Jobs, cfg.Upload.Dir, logger)
	} else {
		imageUsecase = image_uc.NewImageUsecase(core.Presets, core.Dispatcher, nil, cfg.Upload.Dir, logger)
	}

	imageHandler := image_h.NewImageHandler(imageUsecase, cfg.Server.MaxUploadSize, logger)

	mux := router.SetupRouter(&router.Handler{
		ImageHandler: imageHandler,
		Metrics:      core.Registry,
		Logger:       logger,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &App{
		cfg:    cfg,
		core:   core,
		server: server,
		logger: logger,
	}, nil
}

func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.core.Start(); err != nil {
		return err
	}

	a.logger.Info().Str("addr", a.cfg.Server.Addr).Msg("Starting server")

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case runErr = <-serverErr:
		a.logger.Error().Err(runErr).Msg("Server error")
	case <-ctx.Done():
		a.logger.Info().Msg("Shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("Server shutdown failed")
	}

	if err := a.core.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("Core shutdown incomplete")
	}

	a.logger.Info().Msg("Server stopped gracefully")
	return runErr
}
