package cmd

import (
	"github.com/avito-tech/gravure/internal/app"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP upload server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger, err := initLogger(cfg)
		if err != nil {
			return err
		}

		server, err := app.NewApp(cfg, logger)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create app")
			return err
		}

		return server.Run()
	},
}

func init() {
	serveCmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address, overrides server.addr")
}
