package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"reelbot/config"
	"reelbot/logging"
)

// commandContext loads settings once per invocation.
type commandContext struct {
	settings *config.Settings
	logger   *slog.Logger
	verbose  bool
}

func (c *commandContext) ensureSettings() (config.Settings, error) {
	if c.settings != nil {
		return *c.settings, nil
	}
	s, err := config.Load()
	if err != nil {
		return config.Settings{}, err
	}
	c.settings = &s
	return s, nil
}

func (c *commandContext) log() *slog.Logger {
	if c.logger == nil {
		if c.verbose {
			c.logger = logging.NewLogger("debug")
		} else {
			c.logger = logging.Discard()
		}
	}
	return c.logger
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "reelplan",
		Short:         "Inspect reel timelines and render plans",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureSettings()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&ctx.verbose, "verbose", "v", false, "Log pipeline progress to stdout")

	rootCmd.AddCommand(newCompileCommand(ctx))
	rootCmd.AddCommand(newEncodersCommand(ctx))
	rootCmd.AddCommand(newEnqueueCommand(ctx))
	return rootCmd
}
