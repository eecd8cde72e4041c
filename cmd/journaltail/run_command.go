package main

import (
	"github.com/spf13/cobra"

	"journaltail/internal/daemonrun"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts daemonrun.Options

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Tail the journal in the foreground until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	cmd.Flags().StringVar(&opts.LogFormat, "log-format", "", "Override logging.format (console, json)")
	cmd.Flags().StringVar(&opts.PIDFile, "pid-file", "", "Write the process ID to this file while running")
	cmd.Flags().BoolVar(&opts.SkipPreflight, "skip-preflight", false, "Start without running preflight checks")
	return cmd
}
