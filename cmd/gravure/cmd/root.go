package cmd

import (
	"fmt"

	"github.com/avito-tech/gravure/internal/config"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/wb-go/wbf/zlog"
)

var (
	cfgFile  string
	listen   string
	threads  int
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "gravure",
	Short: "Preset-driven image processing service",
	Long: `gravure accepts uploaded images and runs the tasks of a named preset
over them: resizing, saving to disk and uploading results.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is $CONFIG_PATH or config/config.yaml)")
	rootCmd.PersistentFlags().IntVarP(&threads, "threads", "n", -1, "number of processing workers, 0 means one per CPU")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn, error")

	rootCmd.AddCommand(serveCmd, workerCmd, checkCmd)
}

// loadConfig reads the config and applies command line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.MustLoad(cfgFile)
	if err != nil {
		return nil, err
	}

	if listen != "" {
		cfg.Server.Addr = listen
	}
	if threads >= 0 {
		cfg.Dispatcher.Workers = threads
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func initLogger(cfg *config.Config) (*zlog.Zerolog, error) {
	zlog.Init()

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}
	zerolog.SetGlobalLevel(level)

	return &zlog.Logger, nil
}
