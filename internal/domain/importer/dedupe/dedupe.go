// Package dedupe detects whether incoming rows already exist in a user's
// records. Matching is two-phase: an exact import-key comparison first, then
// a heuristic comparison over a fixed subset of normalized fields. A row
// matches at most one existing record.
package dedupe

import (
	"strings"

	"github.com/google/uuid"
)

// MatchType records which phase produced a match.
type MatchType string

const (
	MatchImportKey MatchType = "import_key"
	MatchFuzzy     MatchType = "fuzzy"
)

// Match links a candidate row to an existing record. RowIndex indexes the
// valid-only row list the candidates were built from.
type Match struct {
	RowIndex     int
	ExistingID   uuid.UUID
	ExistingName string
	MatchType    MatchType
}

// BillCandidate is the identity slice of a normalized bill row.
type BillCandidate struct {
	RowIndex  int
	Name      string
	Frequency string
	DueDay    int
	ImportKey string
}

// ExistingBill is the snapshot of a stored bill taken at mapping time.
type ExistingBill struct {
	ID        uuid.UUID
	Name      string
	Frequency string
	DueDay    int
	ImportKey string
}

// DebtCandidate is the identity slice of a normalized debt row.
type DebtCandidate struct {
	RowIndex     int
	CreditorName string
	DebtType     string
	ImportKey    string
}

// ExistingDebt is the snapshot of a stored debt taken at mapping time.
type ExistingDebt struct {
	ID           uuid.UUID
	CreditorName string
	DebtType     string
	ImportKey    string
}

// FindBillDuplicates matches candidates against existing bills, keyed by row
// index. The exact import-key phase always wins over the fuzzy fallback.
func FindBillDuplicates(candidates []BillCandidate, existing []ExistingBill) map[int]*Match {
	matches := make(map[int]*Match)
	for _, c := range candidates {
		if m := matchBill(c, existing); m != nil {
			matches[c.RowIndex] = m
		}
	}
	return matches
}

func matchBill(c BillCandidate, existing []ExistingBill) *Match {
	for _, e := range existing {
		if e.ImportKey != "" && e.ImportKey == c.ImportKey {
			return &Match{RowIndex: c.RowIndex, ExistingID: e.ID, ExistingName: e.Name, MatchType: MatchImportKey}
		}
	}
	for _, e := range existing {
		if equalFold(e.Name, c.Name) && e.DueDay == c.DueDay && e.Frequency == c.Frequency {
			return &Match{RowIndex: c.RowIndex, ExistingID: e.ID, ExistingName: e.Name, MatchType: MatchFuzzy}
		}
	}
	return nil
}

// FindDebtDuplicates matches candidates against existing debts.
func FindDebtDuplicates(candidates []DebtCandidate, existing []ExistingDebt) map[int]*Match {
	matches := make(map[int]*Match)
	for _, c := range candidates {
		if m := matchDebt(c, existing); m != nil {
			matches[c.RowIndex] = m
		}
	}
	return matches
}

func matchDebt(c DebtCandidate, existing []ExistingDebt) *Match {
	for _, e := range existing {
		if e.ImportKey != "" && e.ImportKey == c.ImportKey {
			return &Match{RowIndex: c.RowIndex, ExistingID: e.ID, ExistingName: e.CreditorName, MatchType: MatchImportKey}
		}
	}
	for _, e := range existing {
		if equalFold(e.CreditorName, c.CreditorName) && e.DebtType == c.DebtType {
			return &Match{RowIndex: c.RowIndex, ExistingID: e.ID, ExistingName: e.CreditorName, MatchType: MatchFuzzy}
		}
	}
	return nil
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
