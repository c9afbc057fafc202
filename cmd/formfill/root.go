package main

import (
	"formfill/internal/application/port/output"
	"formfill/internal/di"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	db   string
	seed string
}

func newRootCmd(config output.ConfigPort) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "formfill",
		Short:         "Fill web forms from a saved instruction using an LLM",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&opts.db, "db", "", "settings database path (default $SETTINGS_DB)")
	cmd.PersistentFlags().StringVar(&opts.seed, "seed", "", "settings seed YAML file (default $SETTINGS_SEED)")

	load := func() di.Config {
		cfg := di.ConfigFromEnv(config)
		if opts.db != "" {
			cfg.SettingsDB = opts.db
		}
		if opts.seed != "" {
			cfg.SettingsSeed = opts.seed
		}
		return cfg
	}

	cmd.AddCommand(
		newRunCmd(load),
		newServeCmd(load),
		newKeysCmd(load),
		newPromptsCmd(load),
		newModelCmd(load),
	)
	return cmd
}
