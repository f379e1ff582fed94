package parser

import "strings"

// Layout is the structural convention a workbook uses to separate sections:
// a single table with a category column, or several tables introduced by
// heading rows.
type Layout string

const (
	LayoutCategoryTable Layout = "category_table"
	LayoutSectionTables Layout = "section_tables"
	LayoutUnknown       Layout = "unknown"
)

var categoryKeywords = []string{"category", "type", "section"}

var sectionKeywords = map[string]struct{}{
	"bills":         {},
	"bill":          {},
	"subscriptions": {},
	"subscription":  {},
	"debts":         {},
	"debt":          {},
}

// DetectLayout classifies a grid. A category header near the top wins over
// section headings when both patterns are present. Pure function of the grid.
func DetectLayout(g Grid) Layout {
	limit := 5
	if len(g) < limit {
		limit = len(g)
	}
	for _, row := range g[:limit] {
		if categoryColumn(row) >= 0 && nonEmptyCells(row) >= 3 {
			return LayoutCategoryTable
		}
	}

	for _, row := range g {
		if isSectionHeading(row) {
			return LayoutSectionTables
		}
	}

	return LayoutUnknown
}

// categoryColumn returns the index of the first category-keyword cell in the
// row, or -1.
func categoryColumn(row []string) int {
	for i, cell := range row {
		lower := strings.ToLower(cell)
		for _, kw := range categoryKeywords {
			if lower == kw {
				return i
			}
		}
	}
	return -1
}

// isSectionHeading reports whether a row is a section heading: at most two
// non-empty cells, with the first token of the first non-empty cell matching
// a section keyword.
func isSectionHeading(row []string) bool {
	if n := nonEmptyCells(row); n == 0 || n > 2 {
		return false
	}
	token := headingToken(firstNonEmpty(row))
	_, ok := sectionKeywords[token]
	return ok
}

func headingToken(cell string) string {
	fields := strings.Fields(strings.ToLower(cell))
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimRight(fields[0], ":")
}
