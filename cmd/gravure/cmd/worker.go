package cmd

import (
	"github.com/avito-tech/gravure/internal/app/worker"

	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume image messages from Kafka and process them",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger, err := initLogger(cfg)
		if err != nil {
			return err
		}

		w, err := worker.NewWorker(cfg, logger)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create worker")
			return err
		}

		if err := w.Run(); err != nil {
			return err
		}

		logger.Info().Msg("Worker exited successfully")
		return nil
	},
}
