package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dealdesk/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
				fmt.Fprintln(out, "Notifications not configured (set notifications.ntfy_topic or DEALDESK_NTFY_TOPIC)")
				return nil
			}
			reqCtx, cancel := context.WithTimeout(cmd.Context(), cfg.NotifyTimeout())
			defer cancel()
			if err := notifications.NewService(cfg).Publish(reqCtx, notifications.EventTest, nil); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintln(out, "Test notification sent")
			return nil
		},
	}
}
