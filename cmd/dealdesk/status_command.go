package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"dealdesk/internal/config"
	"dealdesk/internal/document"
	"dealdesk/internal/services"
	"dealdesk/internal/services/entrytool"
)

const statusProbeTimeout = 10 * time.Second

type serviceStatus struct {
	health     *document.ServiceHealth
	healthErr  error
	formats    *document.SupportedFormats
	formatsErr error
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the extraction service and local configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			client := entrytool.NewFromConfig(cfg, entrytool.WithLogger(logger))

			status := probeService(cmd.Context(), client)
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range statusLines(cfg, client.BaseURL(), status, colorize) {
				fmt.Fprintln(out, line)
			}
			if status.healthErr != nil {
				return errors.New("extraction service unavailable")
			}
			return nil
		},
	}
}

// probeService queries health and supported formats concurrently. Each probe
// records its own error so one failure does not hide the other result.
func probeService(ctx context.Context, client *entrytool.Client) serviceStatus {
	ctx, cancel := context.WithTimeout(ctx, statusProbeTimeout)
	defer cancel()

	var status serviceStatus
	var g errgroup.Group
	g.Go(func() error {
		status.health, status.healthErr = client.Health(ctx)
		return nil
	})
	g.Go(func() error {
		status.formats, status.formatsErr = client.SupportedFormats(ctx)
		return nil
	})
	_ = g.Wait()
	return status
}

func statusLines(cfg *config.Config, baseURL string, status serviceStatus, colorize bool) []string {
	lines := renderSectionHeader("Service", colorize)
	lines = append(lines, renderStatusLine("Endpoint", statusInfo, baseURL, colorize))

	switch {
	case status.healthErr != nil:
		lines = append(lines, renderStatusLine("Health", statusError, services.Reason(status.healthErr), colorize))
	case !strings.EqualFold(status.health.Status, "healthy"):
		lines = append(lines, renderStatusLine("Health", statusWarn, displayOrNA(status.health.Status), colorize))
	default:
		msg := "healthy"
		if status.health.Timestamp != "" {
			msg += " (" + status.health.Timestamp + ")"
		}
		lines = append(lines, renderStatusLine("Health", statusOK, msg, colorize))
	}

	if status.formatsErr != nil {
		lines = append(lines, renderStatusLine("Formats", statusWarn, services.Reason(status.formatsErr), colorize))
	} else {
		lines = append(lines,
			renderStatusLine("Formats", statusInfo, joinOrNA(status.formats.FileFormats, nil), colorize),
			renderStatusLine("Document types", statusInfo, joinOrNA(status.formats.DocumentTypes, document.DocTypeLabel), colorize),
		)
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Local", colorize)...)
	lines = append(lines, renderStatusLine("Request timeout", statusInfo, cfg.RequestTimeout().String(), colorize))
	if path := cfg.HistoryPath(); path != "" {
		lines = append(lines, renderStatusLine("History", statusOK, path, colorize))
	} else {
		lines = append(lines, renderStatusLine("History", statusWarn, "disabled", colorize))
	}
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
		lines = append(lines, renderStatusLine("Notifications", statusOK, "configured", colorize))
	} else {
		lines = append(lines, renderStatusLine("Notifications", statusInfo, "not configured", colorize))
	}
	lines = append(lines, renderStatusLine("Snapshots", statusInfo, cfg.Paths.SnapshotDir, colorize))
	return lines
}

func joinOrNA(values []string, label func(string) string) string {
	if len(values) == 0 {
		return document.NotAvailable
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if label != nil {
			v = label(v)
		}
		out = append(out, v)
	}
	return strings.Join(out, ", ")
}

