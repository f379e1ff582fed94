package parser

import "strings"

// Kind is one of the three supported record kinds.
type Kind string

const (
	KindBills         Kind = "bills"
	KindSubscriptions Kind = "subscriptions"
	KindDebts         Kind = "debts"
)

// Kinds lists the record kinds in commit order.
var Kinds = []Kind{KindBills, KindSubscriptions, KindDebts}

// AssignedSections holds at most one table per record kind.
type AssignedSections struct {
	Bills         *ExtractedTable
	Subscriptions *ExtractedTable
	Debts         *ExtractedTable
}

// Get returns the table assigned to the given kind.
func (a AssignedSections) Get(kind Kind) *ExtractedTable {
	switch kind {
	case KindBills:
		return a.Bills
	case KindSubscriptions:
		return a.Subscriptions
	case KindDebts:
		return a.Debts
	}
	return nil
}

// Empty reports whether no section was assigned.
func (a AssignedSections) Empty() bool {
	return a.Bills == nil && a.Subscriptions == nil && a.Debts == nil
}

// AssignSections buckets extracted tables by section name. Subscriptions are
// checked before bills so a table named "Subscriptions" is never taken for a
// generic bill table. A later match silently overwrites an earlier one.
func AssignSections(tables []ExtractedTable) AssignedSections {
	var assigned AssignedSections
	for i := range tables {
		table := &tables[i]
		name := strings.ToLower(table.SectionName)
		switch {
		case strings.Contains(name, "subscription"):
			assigned.Subscriptions = table
		case strings.Contains(name, "bill"):
			assigned.Bills = table
		case strings.Contains(name, "debt"), strings.Contains(name, "loan"), strings.Contains(name, "credit"):
			assigned.Debts = table
		}
	}
	return assigned
}
