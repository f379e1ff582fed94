package mapper

import (
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Mapping maps a spreadsheet header to a target field key, or FieldIgnore.
type Mapping map[string]string

// Synonym dictionaries, target key -> accepted header spellings. The key and
// label themselves are always accepted; these cover everything else seen in
// real exports.
var fieldSynonyms = map[string][]string{
	"name":             {"name", "bill", "bill name", "payee", "description", "merchant", "item"},
	"amount":           {"amount", "cost", "price", "value", "payment", "monthly cost", "monthly amount"},
	"frequency":        {"frequency", "freq", "cycle", "billing cycle", "schedule", "how often", "recurrence"},
	"due_day":          {"due day", "due date", "due", "day", "payment day", "payment date", "billing day"},
	"provider":         {"provider", "company", "supplier", "vendor", "merchant", "who to"},
	"category":         {"category", "type", "group"},
	"autopay":          {"autopay", "auto pay", "auto-pay", "automatic", "direct debit", "dd"},
	"notes":            {"notes", "note", "comments", "comment", "memo"},
	"creditor_name":    {"creditor", "creditor name", "name", "lender", "company", "who to", "debt name"},
	"debt_type":        {"debt type", "type", "kind", "loan type"},
	"starting_balance": {"starting balance", "start balance", "original balance", "original amount", "opening balance", "amount borrowed"},
	"current_balance":  {"current balance", "balance", "remaining", "remaining balance", "amount owed", "outstanding", "owed"},
	"interest_rate":    {"interest rate", "interest", "apr", "rate"},
	"minimum_payment":  {"minimum payment", "min payment", "monthly payment", "payment", "repayment"},
	"status":           {"status", "state", "open/closed"},
}

// Accept a fuzzy header match only when it is within this Levenshtein
// distance of a synonym; anything looser maps headers it should not.
const fuzzyMaxDistance = 2

// AutoDetect proposes a mapping for the given headers against a target
// catalog. Each header gets exactly one entry; a consumed target key is never
// reused for a later header, so no two headers map to the same field.
// Unmatched or blank headers map to FieldIgnore. The result is a suggestion
// only; callers may override any entry before validation.
func AutoDetect(headers []string, fields []TargetField) Mapping {
	mapping := make(Mapping, len(headers))
	used := make(map[string]bool, len(fields))

	for _, header := range headers {
		if _, seen := mapping[header]; seen {
			continue
		}

		h := strings.ToLower(strings.TrimSpace(header))
		if h == "" {
			mapping[header] = FieldIgnore
			continue
		}

		key := matchExact(h, fields, used)
		if key == "" {
			key = matchPartial(h, fields, used)
		}
		if key == "" {
			key = matchFuzzy(h, fields, used)
		}

		if key == "" {
			mapping[header] = FieldIgnore
			continue
		}
		mapping[header] = key
		used[key] = true
	}

	return mapping
}

func synonymsFor(field TargetField) []string {
	syns := []string{field.Key, strings.ToLower(field.Label)}
	return append(syns, fieldSynonyms[field.Key]...)
}

func matchExact(header string, fields []TargetField, used map[string]bool) string {
	for _, field := range fields {
		if used[field.Key] {
			continue
		}
		for _, syn := range synonymsFor(field) {
			if header == syn {
				return field.Key
			}
		}
	}
	return ""
}

// matchPartial falls back to substring containment in either direction.
func matchPartial(header string, fields []TargetField, used map[string]bool) string {
	for _, field := range fields {
		if used[field.Key] {
			continue
		}
		for _, syn := range synonymsFor(field) {
			if strings.Contains(header, syn) || strings.Contains(syn, header) {
				return field.Key
			}
		}
	}
	return ""
}

// matchFuzzy catches near-miss spellings ("frequncy", "ammount") with a
// tight Levenshtein bound.
func matchFuzzy(header string, fields []TargetField, used map[string]bool) string {
	best := ""
	bestRank := fuzzyMaxDistance + 1
	for _, field := range fields {
		if used[field.Key] {
			continue
		}
		for _, syn := range synonymsFor(field) {
			// Both directions: a dropped letter leaves the header a
			// subsequence of the synonym, an inserted one the reverse.
			rank := fuzzy.RankMatchFold(header, syn)
			if r := fuzzy.RankMatchFold(syn, header); rank < 0 || (r >= 0 && r < rank) {
				rank = r
			}
			if rank >= 0 && rank < bestRank {
				best = field.Key
				bestRank = rank
			}
		}
	}
	return best
}
