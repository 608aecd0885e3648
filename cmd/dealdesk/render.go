package main

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"dealdesk/internal/document"
	"dealdesk/internal/workflow"
)

func describeFile(file *document.File) string {
	if file == nil {
		return "none"
	}
	desc := fmt.Sprintf("%s (%s", file.Name, document.FormatSize(file.SizeBytes))
	if file.Pages > 0 {
		desc += fmt.Sprintf(", %d pages", file.Pages)
	}
	return desc + ")"
}

func renderExtraction(out io.Writer, result *document.ExtractionResult, colorize bool) {
	if result == nil {
		return
	}
	for _, line := range renderSectionHeader("Extraction Result", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Document type", statusOK, document.DocTypeLabel(result.DocType), colorize))
	fmt.Fprintln(out, renderStatusLine("Processing ID", statusInfo, displayOrNA(result.ProcessingID), colorize))
	if sections := sectionNames(result); len(sections) > 0 {
		fmt.Fprintln(out, renderStatusLine("Sections", statusInfo, strings.Join(sections, ", "), colorize))
	}
	if fields := document.SummaryFields(result); len(fields) > 0 {
		fmt.Fprintln(out, renderFieldTable(fields))
	}
}

func renderExport(out io.Writer, result *document.ExportResult, colorize bool) {
	if result == nil {
		return
	}
	for _, line := range renderSectionHeader("Export Result", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Message", statusOK, displayOrNA(result.Message), colorize))
	fmt.Fprintln(out, renderStatusLine("Sheet", statusInfo, renderLink(result.SheetURL, colorize), colorize))
}

func renderState(out io.Writer, state workflow.State, colorize bool) {
	for _, line := range renderSectionHeader("Session", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("File", statusInfo, describeFile(state.SelectedFile), colorize))
	phaseKind := statusInfo
	if state.Busy() {
		phaseKind = statusWarn
	}
	fmt.Fprintln(out, renderStatusLine("Phase", phaseKind, string(state.Phase), colorize))
	if state.LastError != "" {
		fmt.Fprintln(out, renderStatusLine("Error", statusError, state.LastError, colorize))
	}
	renderExtraction(out, state.UploadResult, colorize)
	renderExport(out, state.ExportResult, colorize)
}

func sectionNames(result *document.ExtractionResult) []string {
	names := make([]string, 0, len(result.ExtractedData))
	for name := range result.ExtractedData {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func displayOrNA(value string) string {
	if strings.TrimSpace(value) == "" {
		return document.NotAvailable
	}
	return value
}
