package document

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NotAvailable is shown for absent or null values.
const NotAvailable = "N/A"

var docTypeAcronyms = map[string]string{
	"loi": "LOI",
	"spa": "SPA",
	"nda": "NDA",
	"mou": "MOU",
	"apa": "APA",
	"ppa": "PPA",
	"cim": "CIM",
}

// DisplayValue renders an optional field for humans.
func DisplayValue(v OptionalString) string {
	if !v.Present() {
		return NotAvailable
	}
	return strings.TrimSpace(v.Value)
}

// DisplayAny renders a decoded JSON value from extracted_data.
func DisplayAny(v any) string {
	switch value := v.(type) {
	case nil:
		return NotAvailable
	case string:
		if strings.TrimSpace(value) == "" {
			return NotAvailable
		}
		return value
	case []any:
		parts := make([]string, 0, len(value))
		for _, item := range value {
			if s := DisplayAny(item); s != NotAvailable {
				parts = append(parts, s)
			}
		}
		if len(parts) == 0 {
			return NotAvailable
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(value)
	}
}

// DocTypeLabel turns a service identifier like "press_release" into
// "Press Release"; known acronyms stay upper case.
func DocTypeLabel(docType string) string {
	trimmed := strings.TrimSpace(docType)
	if trimmed == "" {
		return NotAvailable
	}
	caser := cases.Title(language.English)
	words := strings.FieldsFunc(trimmed, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	for i, word := range words {
		if acronym, ok := docTypeAcronyms[strings.ToLower(word)]; ok {
			words[i] = acronym
			continue
		}
		words[i] = caser.String(word)
	}
	return strings.Join(words, " ")
}

// Field is a labelled display value.
type Field struct {
	Label string
	Value string
}

// SummaryFields returns the deal summary rows shown after a successful
// extraction. It returns nil when the result carries no deal summary.
func SummaryFields(result *ExtractionResult) []Field {
	if result == nil || !result.HasSummary {
		return nil
	}
	s := result.Summary
	return []Field{
		{Label: "Deal Name", Value: DisplayValue(s.DealName)},
		{Label: "Target Company", Value: DisplayValue(s.TargetCompany)},
		{Label: "Buyer", Value: DisplayValue(s.Buyer)},
		{Label: "Deal Size (USD)", Value: DisplayValue(s.DealSizeUSD)},
	}
}

// FormatSize renders a byte count with binary units.
func FormatSize(n int64) string {
	if n < 0 {
		return NotAvailable
	}
	return humanize.IBytes(uint64(n))
}
