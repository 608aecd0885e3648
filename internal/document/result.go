package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// OptionalString is a summary field the extraction service may send as a
// string, a number, or null.
type OptionalString struct {
	Value string
	Valid bool
}

// UnmarshalJSON accepts any JSON scalar. Numbers keep their literal text and
// null marks the value absent.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*o = OptionalString{}
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*o = OptionalString{Value: s, Valid: true}
		return nil
	}
	*o = OptionalString{Value: string(trimmed), Valid: true}
	return nil
}

// MarshalJSON writes the value as a string or null.
func (o OptionalString) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// Present reports whether the field holds a non-blank value.
func (o OptionalString) Present() bool {
	return o.Valid && strings.TrimSpace(o.Value) != ""
}

// DealSummary holds the extracted_data.deal_summary fields the CLI renders.
type DealSummary struct {
	DealName      OptionalString `json:"deal_name"`
	DealType      OptionalString `json:"deal_type"`
	TargetCompany OptionalString `json:"target_company"`
	Buyer         OptionalString `json:"buyer"`
	Seller        OptionalString `json:"seller"`
	DealSizeUSD   OptionalString `json:"deal_size_usd"`
	Currency      OptionalString `json:"currency"`
	Status        OptionalString `json:"status"`
}

// ExtractionResult is a successful extraction response.
type ExtractionResult struct {
	DocType      string
	ProcessingID string
	Filename     string
	Status       string
	// ExtractedData is the decoded extracted_data object; numbers are json.Number.
	ExtractedData map[string]any
	// Summary is populated when HasSummary is true.
	Summary    DealSummary
	HasSummary bool

	raw []byte
}

type extractionEnvelope struct {
	DocType       string          `json:"doc_type"`
	ProcessingID  string          `json:"processing_id"`
	Filename      string          `json:"filename"`
	Status        string          `json:"status"`
	ExtractedData json.RawMessage `json:"extracted_data"`
}

// ErrEmptyBody is returned when a response carries no content.
var ErrEmptyBody = errors.New("empty response body")

// ParseExtractionResult decodes an extraction response and retains the body
// verbatim.
func ParseExtractionResult(body []byte) (*ExtractionResult, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyBody
	}
	var env extractionEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode extraction result: %w", err)
	}

	result := &ExtractionResult{
		DocType:      env.DocType,
		ProcessingID: env.ProcessingID,
		Filename:     env.Filename,
		Status:       env.Status,
		raw:          append([]byte(nil), body...),
	}

	if len(env.ExtractedData) > 0 && !bytes.Equal(bytes.TrimSpace(env.ExtractedData), []byte("null")) {
		decoder := json.NewDecoder(bytes.NewReader(env.ExtractedData))
		decoder.UseNumber()
		if err := decoder.Decode(&result.ExtractedData); err != nil {
			return nil, fmt.Errorf("decode extracted_data: %w", err)
		}

		var nested struct {
			DealSummary json.RawMessage `json:"deal_summary"`
		}
		if err := json.Unmarshal(env.ExtractedData, &nested); err != nil {
			return nil, fmt.Errorf("decode extracted_data: %w", err)
		}
		if len(nested.DealSummary) > 0 && !bytes.Equal(bytes.TrimSpace(nested.DealSummary), []byte("null")) {
			if err := json.Unmarshal(nested.DealSummary, &result.Summary); err != nil {
				return nil, fmt.Errorf("decode deal_summary: %w", err)
			}
			result.HasSummary = true
		}
	}
	return result, nil
}

// Raw returns a copy of the response body exactly as received.
func (r *ExtractionResult) Raw() []byte {
	if r == nil {
		return nil
	}
	return append([]byte(nil), r.raw...)
}

// MarshalJSON returns the original body so the result round-trips unchanged.
func (r *ExtractionResult) MarshalJSON() ([]byte, error) {
	if r == nil || len(r.raw) == 0 {
		return []byte("null"), nil
	}
	return r.Raw(), nil
}

// Section returns a top-level extracted_data object such as "financials".
func (r *ExtractionResult) Section(name string) map[string]any {
	if r == nil || r.ExtractedData == nil {
		return nil
	}
	section, _ := r.ExtractedData[name].(map[string]any)
	return section
}

// ExportResult is a successful export response.
type ExportResult struct {
	Status   string `json:"status,omitempty"`
	Message  string `json:"message"`
	SheetURL string `json:"sheet_url"`
}

// ParseExportResult decodes an export response. A missing sheet_url is an error.
func ParseExportResult(body []byte) (*ExportResult, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyBody
	}
	var result ExportResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode export result: %w", err)
	}
	if strings.TrimSpace(result.SheetURL) == "" {
		return nil, errors.New("export result missing sheet_url")
	}
	return &result, nil
}

// ServiceHealth is the health endpoint response.
type ServiceHealth struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// SupportedFormats lists what the extraction service accepts.
type SupportedFormats struct {
	FileFormats   []string `json:"file_formats"`
	DocumentTypes []string `json:"document_types"`
}
