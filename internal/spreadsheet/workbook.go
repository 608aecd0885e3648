package spreadsheet

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"

	"dealdesk/internal/document"
	"dealdesk/internal/fileutil"
)

const defaultSheet = "Sheet1"

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Build renders result into a new in-memory workbook. The caller closes it.
func Build(result *document.ExtractionResult) (*excelize.File, error) {
	if result == nil {
		return nil, errors.New("extraction result is nil")
	}

	f := excelize.NewFile()
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DCE6F1"}},
	})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}

	dealID := DealID(result)
	for i, sheet := range Layout {
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, sheet.Name); err != nil {
				_ = f.Close()
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("create sheet %q: %w", sheet.Name, err)
		}
		if err := writeSheet(f, sheet, sectionValues(result, sheet, dealID), headerStyle); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

// Write renders result and stores the workbook at path atomically.
func Write(path string, result *document.ExtractionResult) error {
	f, err := Build(result)
	if err != nil {
		return err
	}
	defer f.Close()

	return fileutil.WriteFileAtomic(path, 0o644, func(w io.Writer) error {
		if err := f.Write(w); err != nil {
			return fmt.Errorf("xlsx write: %w", err)
		}
		return nil
	})
}

// DealID picks the deal identifier shared by every sheet: metadata.deal_id,
// then deal_summary.deal_id, then the service's processing id.
func DealID(result *document.ExtractionResult) string {
	for _, section := range []string{"metadata", "deal_summary"} {
		if v, ok := result.Section(section)["deal_id"].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return result.ProcessingID
}

// FileName derives a snapshot file name from the result's source file name,
// falling back to the processing id.
func FileName(result *document.ExtractionResult) string {
	base := strings.TrimSuffix(filepath.Base(result.Filename), filepath.Ext(result.Filename))
	if result.Filename == "" || base == "." {
		base = result.ProcessingID
	}
	base = strings.Trim(unsafeNameChars.ReplaceAllString(base, "_"), "_")
	if base == "" {
		base = "extraction"
	}
	return base + ".xlsx"
}

func sectionValues(result *document.ExtractionResult, sheet Sheet, dealID string) []any {
	section := result.Section(sheet.Section)
	values := make([]any, len(sheet.Columns))
	for i, col := range sheet.Columns {
		values[i] = cellValue(section[col.Key])
	}
	if values[0] == nil {
		values[0] = dealID
	}
	if sheet.Section == "metadata" && values[1] == nil && result.Filename != "" {
		values[1] = result.Filename
	}
	return values
}

func writeSheet(f *excelize.File, sheet Sheet, values []any, headerStyle int) error {
	for i, col := range sheet.Columns {
		header, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet.Name, header, col.Header); err != nil {
			return fmt.Errorf("write %s header: %w", sheet.Name, err)
		}
		if values[i] == nil {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		if err := f.SetCellValue(sheet.Name, cell, values[i]); err != nil {
			return fmt.Errorf("write %s %s: %w", sheet.Name, col.Header, err)
		}
	}

	last, _ := excelize.ColumnNumberToName(len(sheet.Columns))
	if err := f.SetCellStyle(sheet.Name, "A1", last+"1", headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet.Name, err)
	}
	_ = f.SetColWidth(sheet.Name, "A", last, 22)
	return nil
}

// cellValue converts a decoded JSON value to something excelize stores
// natively. Nested objects and arrays are kept as compact JSON text.
func cellValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case string:
		if strings.TrimSpace(val) == "" {
			return nil
		}
		return val
	case bool, float64:
		return val
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}
