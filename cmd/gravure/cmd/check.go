package cmd

import (
	"context"
	"fmt"

	"github.com/avito-tech/gravure/internal/codec"
	"github.com/avito-tech/gravure/internal/uploader"
	"github.com/avito-tech/gravure/internal/usecase/processor"
	"github.com/avito-tech/gravure/internal/usecase/processor/operations"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the config and compile every preset",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		up := uploader.New(uploader.Options{Workers: 1, QueueSize: 1})
		defer up.Close(context.Background())

		presets, err := processor.CompilePresets(cfg.Presets, operations.Deps{
			Codec:    codec.New(cfg.Codec.JPEGQuality),
			Uploader: up,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, name := range presets.Names() {
			p, _ := presets.Preset(name)
			fmt.Fprintf(out, "%s\n", name)
			for _, t := range p.Tasks {
				fmt.Fprintf(out, "  %s: %s\n", t.Name, t.Pipeline)
				if t.URL != nil {
					fmt.Fprintf(out, "    url: %s\n", t.URL)
				}
			}
		}
		fmt.Fprintf(out, "%d presets ok\n", len(presets.Names()))

		return nil
	},
}
