// Package mapper proposes and validates mappings from spreadsheet headers to
// canonical target fields. Detected mappings are suggestions; user overrides
// win, and confirmed mappings are cached per header signature so a
// structurally identical spreadsheet never re-prompts.
package mapper

// FieldIgnore is the sentinel target meaning "drop this column".
const FieldIgnore = "IGNORE"

// TargetField describes one canonical field a spreadsheet column can map to.
type TargetField struct {
	Key         string
	Label       string
	Required    bool
	Recommended bool
}

// BillFields is the target catalog for bill and subscription rows.
func BillFields() []TargetField {
	return []TargetField{
		{Key: "name", Label: "Name", Required: true},
		{Key: "amount", Label: "Amount", Recommended: true},
		{Key: "frequency", Label: "Frequency", Required: true},
		{Key: "due_day", Label: "Due Day", Recommended: true},
		{Key: "provider", Label: "Provider"},
		{Key: "category", Label: "Category"},
		{Key: "autopay", Label: "Autopay"},
		{Key: "notes", Label: "Notes"},
	}
}

// DebtFields is the target catalog for debt rows.
func DebtFields() []TargetField {
	return []TargetField{
		{Key: "creditor_name", Label: "Creditor Name", Required: true},
		{Key: "debt_type", Label: "Debt Type", Required: true},
		{Key: "starting_balance", Label: "Starting Balance", Recommended: true},
		{Key: "current_balance", Label: "Current Balance", Recommended: true},
		{Key: "interest_rate", Label: "Interest Rate"},
		{Key: "minimum_payment", Label: "Minimum Payment"},
		{Key: "due_day", Label: "Due Day"},
		{Key: "status", Label: "Status"},
		{Key: "notes", Label: "Notes"},
	}
}
