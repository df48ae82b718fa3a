package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"captioner/internal/daemonrun"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var development bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the captioner API daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    ctx.logLevel(),
				Development: development,
				Started: func(addr string) {
					fmt.Fprintf(cmd.ErrOrStderr(), "captioner listening on http://%s\n", addr)
				},
			})
		},
	}

	cmd.Flags().BoolVar(&development, "development", false, "Include source locations in logs")
	return cmd
}
