package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"dealdesk/internal/config"
	"dealdesk/internal/document"
	"dealdesk/internal/spreadsheet"
	"dealdesk/internal/workflow"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var (
		export   bool
		xlsxPath string
		snapshot bool
		asJSON   bool
		drop     bool
	)

	cmd := &cobra.Command{
		Use:   "process <file.pdf>",
		Short: "Extract deal data from a PDF and optionally export it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.newRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			path, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			file, err := document.Probe(path)
			if err != nil {
				return err
			}

			channel := workflow.ChannelPicker
			if drop {
				channel = workflow.ChannelDrop
			}
			c := rt.controller
			if err := c.SelectFile(file, channel); err != nil {
				return errors.New(c.State().LastError)
			}

			task, err := c.SubmitForExtraction(cmd.Context())
			if err != nil {
				return err
			}
			if err := task.Wait(cmd.Context()); err != nil {
				return failure(c.State(), err)
			}
			result := c.State().UploadResult

			out := cmd.OutOrStdout()
			colorize := !asJSON && shouldColorize(out)
			output := processOutput{File: newFileView(file), Extraction: result.Raw()}

			target := strings.TrimSpace(xlsxPath)
			if target == "" && snapshot {
				target = rt.cfg.Paths.SnapshotDir
			}
			if target != "" {
				written, err := writeSnapshot(target, result)
				if err != nil {
					return err
				}
				output.Snapshot = written
			}

			if !asJSON {
				fmt.Fprintln(out, renderStatusLine("File", statusInfo, describeFile(&file), colorize))
				renderExtraction(out, result, colorize)
				if output.Snapshot != "" {
					fmt.Fprintln(out, renderStatusLine("Snapshot", statusOK, output.Snapshot, colorize))
				}
			}

			if export {
				task, err := c.SubmitForExport(cmd.Context())
				if err != nil {
					return err
				}
				if err := task.Wait(cmd.Context()); err != nil {
					return failure(c.State(), err)
				}
				output.Export = c.State().ExportResult
				if !asJSON {
					renderExport(out, output.Export, colorize)
				}
			}

			if asJSON {
				return writeJSON(cmd, output)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&export, "export", false, "Forward the extraction result to the export service")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Write a local XLSX snapshot to this file or directory")
	cmd.Flags().BoolVar(&snapshot, "snapshot", false, "Write a local XLSX snapshot into paths.snapshot_dir")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw service responses as JSON")
	cmd.Flags().BoolVar(&drop, "drop", false, "Treat the file as dropped rather than picked (affects the rejection message)")
	return cmd
}

// failure prefers the controller's user-facing message over the raw task error.
func failure(state workflow.State, err error) error {
	if state.LastError != "" {
		return errors.New(state.LastError)
	}
	return err
}

// writeSnapshot writes result to target. A directory target, or one ending in
// a path separator, receives a file named after the source document.
func writeSnapshot(target string, result *document.ExtractionResult) (string, error) {
	path, err := config.ExpandPath(target)
	if err != nil {
		return "", fmt.Errorf("resolve snapshot path: %w", err)
	}
	isDir := strings.HasSuffix(target, string(os.PathSeparator)) || filepath.Ext(path) == ""
	if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
		isDir = true
	}
	if isDir {
		path = filepath.Join(path, spreadsheet.FileName(result))
	}
	if err := spreadsheet.Write(path, result); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}
