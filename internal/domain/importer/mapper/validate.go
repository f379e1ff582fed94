package mapper

import (
	"fmt"

	"github.com/budgetbee/importer/internal/domain/importer/parser"
)

// Validation is the verdict for one mapped row.
type Validation struct {
	// Data is the raw row re-keyed by target field, with ignored columns
	// and empty cells dropped. Never normalized here.
	Data     map[string]string
	Valid    bool
	Errors   []string
	Warnings []string
}

// ValidateRow applies the mapping to a raw row and checks it against the
// target catalog's required and recommended fields. Normalization runs
// separately, and only for rows that come back valid.
func ValidateRow(row parser.Row, m Mapping, fields []TargetField) Validation {
	data := make(map[string]string)
	for _, cell := range row {
		key, ok := m[cell.Header]
		if !ok || key == FieldIgnore || key == "" {
			continue
		}
		if cell.Value == "" {
			continue
		}
		data[key] = cell.Value
	}

	v := Validation{Data: data}
	for _, field := range fields {
		if _, present := data[field.Key]; present {
			continue
		}
		switch {
		case field.Required:
			v.Errors = append(v.Errors, fmt.Sprintf("Missing required field: %s", field.Label))
		case field.Recommended:
			v.Warnings = append(v.Warnings, fmt.Sprintf("Missing recommended field: %s", field.Label))
		}
	}
	v.Valid = len(v.Errors) == 0
	return v
}
