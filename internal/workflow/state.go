package workflow

import "dealdesk/internal/document"

// Phase is the exclusive request phase of the controller.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseUploading Phase = "uploading"
	PhaseExporting Phase = "exporting"
)

// Slot names the request slot a task belongs to.
type Slot string

const (
	SlotUpload Slot = "upload"
	SlotExport Slot = "export"
)

// Channel identifies how a candidate file reached the controller.
type Channel int

const (
	ChannelPicker Channel = iota
	ChannelDrop
)

func (c Channel) String() string {
	if c == ChannelDrop {
		return "drop"
	}
	return "picker"
}

// rejection is the user-facing message for a refused candidate.
func (c Channel) rejection() string {
	if c == ChannelDrop {
		return "Please drop a PDF file"
	}
	return "Please select a PDF file"
}

// State is an immutable snapshot of the controller. The pointed-to values
// are shared with the controller and must be treated as read-only.
type State struct {
	SelectedFile *document.File
	Phase        Phase
	UploadResult *document.ExtractionResult
	ExportResult *document.ExportResult
	// LastError is empty when no error is pending.
	LastError string
}

// Uploading reports whether an extraction request is outstanding.
func (s State) Uploading() bool { return s.Phase == PhaseUploading }

// Exporting reports whether an export request is outstanding.
func (s State) Exporting() bool { return s.Phase == PhaseExporting }

// Busy reports whether any request is outstanding.
func (s State) Busy() bool { return s.Phase != PhaseIdle && s.Phase != "" }

// Empty reports whether the state equals a freshly reset controller.
func (s State) Empty() bool {
	return s.SelectedFile == nil && !s.Busy() && s.UploadResult == nil && s.ExportResult == nil && s.LastError == ""
}
