package parser

import "strings"

// Cell is a single (header, value) pair in a data row.
type Cell struct {
	Header string
	Value  string
}

// Row is a data row as an ordered association list keyed by header text.
// Headers with no corresponding non-empty cell are omitted.
type Row []Cell

// Get returns the value for the given header text.
func (r Row) Get(header string) (string, bool) {
	for _, c := range r {
		if c.Header == header {
			return c.Value, true
		}
	}
	return "", false
}

// ExtractedTable is one logical table pulled out of the grid.
type ExtractedTable struct {
	SectionName string
	Headers     []string
	Rows        []Row
}

// The group label used when the category cell is blank.
const defaultCategoryGroup = "Other"

// ExtractTables produces the grid's tables using the strategy for the
// detected layout. An unknown layout yields no tables.
func ExtractTables(g Grid, layout Layout) []ExtractedTable {
	switch layout {
	case LayoutCategoryTable:
		return extractCategoryTables(g)
	case LayoutSectionTables:
		return extractSectionTables(g)
	default:
		return nil
	}
}

// extractCategoryTables splits a single category-column table into one table
// per distinct category value. The category column itself is excluded from
// each table's headers.
func extractCategoryTables(g Grid) []ExtractedTable {
	headerIdx, catCol := findCategoryHeader(g)
	if headerIdx < 0 {
		return nil
	}

	headers := make([]string, 0, len(g[headerIdx])-1)
	for i, cell := range g[headerIdx] {
		if i == catCol {
			continue
		}
		headers = append(headers, strings.ToLower(cell))
	}

	groups := make(map[string]*ExtractedTable)
	var order []string

	for _, gridRow := range g[headerIdx+1:] {
		if isBlankRow(gridRow) {
			continue
		}

		group := defaultCategoryGroup
		if catCol < len(gridRow) && gridRow[catCol] != "" {
			group = gridRow[catCol]
		}

		table, ok := groups[group]
		if !ok {
			table = &ExtractedTable{SectionName: group, Headers: headers}
			groups[group] = table
			order = append(order, group)
		}

		var row Row
		col := 0
		for i, value := range gridRow {
			if i == catCol {
				continue
			}
			if col < len(headers) && value != "" && headers[col] != "" {
				row = append(row, Cell{Header: headers[col], Value: value})
			}
			col++
		}
		table.Rows = append(table.Rows, row)
	}

	tables := make([]ExtractedTable, 0, len(order))
	for _, group := range order {
		tables = append(tables, *groups[group])
	}
	return tables
}

// findCategoryHeader locates the header row within the first 10 rows and the
// index of its category column.
func findCategoryHeader(g Grid) (rowIdx, catCol int) {
	limit := 10
	if len(g) < limit {
		limit = len(g)
	}
	for i := 0; i < limit; i++ {
		if col := categoryColumn(g[i]); col >= 0 {
			return i, col
		}
	}
	return -1, -1
}

type sectionScanState int

const (
	scanNoSection sectionScanState = iota
	scanAwaitingHeader
	scanCollectingRows
)

// extractSectionTables walks the grid once, collecting a table per heading
// row. A table is only emitted once it has headers and at least one data
// row; headings with nothing under them are dropped silently.
func extractSectionTables(g Grid) []ExtractedTable {
	var tables []ExtractedTable
	var current ExtractedTable
	state := scanNoSection

	flush := func() {
		if state == scanCollectingRows && len(current.Rows) > 0 {
			tables = append(tables, current)
		}
	}

	for _, gridRow := range g {
		if isSectionHeading(gridRow) {
			flush()
			current = ExtractedTable{SectionName: firstNonEmpty(gridRow)}
			state = scanAwaitingHeader
			continue
		}

		if isBlankRow(gridRow) {
			continue
		}

		switch state {
		case scanAwaitingHeader:
			// The first non-blank row with at least two filled cells is
			// the section's header row.
			if nonEmptyCells(gridRow) >= 2 {
				current.Headers = append([]string(nil), gridRow...)
				state = scanCollectingRows
			}
		case scanCollectingRows:
			var row Row
			for i, value := range gridRow {
				if i < len(current.Headers) && value != "" && current.Headers[i] != "" {
					row = append(row, Cell{Header: current.Headers[i], Value: value})
				}
			}
			current.Rows = append(current.Rows, row)
		}
	}
	flush()

	return tables
}
