package normalizer

import (
	"strconv"
	"strings"
)

// Canonical debt statuses.
const (
	DebtStatusOpen    = "open"
	DebtStatusClosed  = "closed"
	DebtStatusPaidOff = "paid_off"
)

var debtStatusSynonyms = map[string]string{
	"open":     DebtStatusOpen,
	"active":   DebtStatusOpen,
	"current":  DebtStatusOpen,
	"closed":   DebtStatusClosed,
	"settled":  DebtStatusClosed,
	"paid":     DebtStatusPaidOff,
	"paid off": DebtStatusPaidOff,
	"cleared":  DebtStatusPaidOff,
}

// The field delimiter inside import keys.
const importKeyDelimiter = "|"

// BillRow normalizes a validated bill (or subscription) row. Frequency
// defaults to monthly when absent or unrecognized.
func BillRow(data map[string]string) map[string]any {
	out := map[string]any{
		"name": strings.TrimSpace(data["name"]),
	}

	if amount := Amount(data["amount"]); amount != nil {
		out["amount"] = *amount
	}

	frequency := Frequency(data["frequency"])
	if frequency == "" {
		frequency = FrequencyMonthly
	}
	out["frequency"] = frequency

	if day := DueDay(data["due_day"]); day > 0 {
		out["due_day"] = day
	}
	for _, key := range []string{"provider", "category", "notes"} {
		if v := strings.TrimSpace(data[key]); v != "" {
			out[key] = v
		}
	}
	if autopay, ok := Bool(data["autopay"]); ok {
		out["autopay"] = autopay
	}

	return out
}

// DebtRow normalizes a validated debt row. Status defaults to open, debt
// type to other, and a missing starting or current balance is backfilled
// from the other.
func DebtRow(data map[string]string) map[string]any {
	out := map[string]any{
		"creditor_name": strings.TrimSpace(data["creditor_name"]),
		"debt_type":     DebtType(data["debt_type"]),
	}
	if out["debt_type"] == "" {
		out["debt_type"] = DebtTypeOther
	}

	starting := Amount(data["starting_balance"])
	current := Amount(data["current_balance"])
	if starting == nil {
		starting = current
	}
	if current == nil {
		current = starting
	}
	if starting != nil {
		out["starting_balance"] = *starting
	}
	if current != nil {
		out["current_balance"] = *current
	}

	if rate := Amount(data["interest_rate"]); rate != nil {
		out["interest_rate"] = *rate
	}
	if payment := Amount(data["minimum_payment"]); payment != nil {
		out["minimum_payment"] = *payment
	}
	if day := DueDay(data["due_day"]); day > 0 {
		out["due_day"] = day
	}

	status := debtStatusSynonyms[normalizeToken(data["status"])]
	if status == "" {
		status = DebtStatusOpen
	}
	out["status"] = status

	if v := strings.TrimSpace(data["notes"]); v != "" {
		out["notes"] = v
	}

	return out
}

// BillImportKey builds the deterministic identity key for a bill:
// name|provider|frequency|due_day, lowercased and trimmed. A zero due day
// contributes an empty field.
func BillImportKey(name, provider, frequency string, dueDay int) string {
	day := ""
	if dueDay > 0 {
		day = strconv.Itoa(dueDay)
	}
	return joinKey(name, provider, frequency, day)
}

// DebtImportKey builds the identity key for a debt: creditor|type.
func DebtImportKey(creditorName, debtType string) string {
	return joinKey(creditorName, debtType)
}

// BillRowImportKey derives the import key from a normalized bill row.
func BillRowImportKey(row map[string]any) string {
	name, _ := row["name"].(string)
	provider, _ := row["provider"].(string)
	frequency, _ := row["frequency"].(string)
	dueDay, _ := row["due_day"].(int)
	return BillImportKey(name, provider, frequency, dueDay)
}

// DebtRowImportKey derives the import key from a normalized debt row.
func DebtRowImportKey(row map[string]any) string {
	creditor, _ := row["creditor_name"].(string)
	debtType, _ := row["debt_type"].(string)
	return DebtImportKey(creditor, debtType)
}

func joinKey(fields ...string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = strings.ToLower(strings.TrimSpace(f))
	}
	return strings.Join(parts, importKeyDelimiter)
}
