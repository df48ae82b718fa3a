package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"captioner/internal/notifications"
	"captioner/internal/preflight"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			targets := preflight.NotificationTargets(cfg)
			if len(targets) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Notification not sent: no notification transport configured")
				return nil
			}

			service, closeService, err := notifications.NewService(cfg)
			if err != nil {
				return fmt.Errorf("notifications: %w", err)
			}
			defer closeService()

			payload := notifications.Payload{"message": "captioner test notification"}
			if err := service.Publish(cmd.Context(), notifications.EventTest, payload); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Test notification sent to %s\n", strings.Join(targets, ", "))
			return nil
		},
	}
}
