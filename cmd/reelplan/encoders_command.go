package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reelbot/compositor"
)

func newEncodersCommand(ctx *commandContext) *cobra.Command {
	var requested string

	cmd := &cobra.Command{
		Use:   "encoders",
		Short: "Show which video encoder renders would use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := ctx.ensureSettings()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("requested") {
				requested = settings.HWEncoder
			}
			encoder := compositor.DetectEncoder(cmd.Context(), ctx.log(), nil, settings.FFmpegPath, requested)
			fmt.Fprintf(cmd.OutOrStdout(), "requested: %s\nencoder:   %s\n", requested, encoder)
			return nil
		},
	}
	cmd.Flags().StringVar(&requested, "requested", "", "Encoder preference to resolve (default HW_ENCODER)")
	return cmd
}
