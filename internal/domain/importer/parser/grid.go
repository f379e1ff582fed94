// Package parser turns an uploaded workbook into section tables ready for
// field mapping. It reads the settings sheet into a rectangular grid of
// trimmed string cells, classifies the grid layout and extracts one table
// per detected section.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
)

// Grid is a rectangular snapshot of the settings sheet. Every row has the
// same length; absent cells are empty strings. Immutable once produced.
type Grid [][]string

// Workbook is the result of reading an uploaded file.
type Workbook struct {
	SheetName string
	Grid      Grid
}

// ErrUnreadableFile indicates a corrupt or unsupported upload.
var ErrUnreadableFile = errors.New("unreadable workbook file")

// SheetNotFoundError is returned when no settings-like sheet exists. It
// carries the sheet names that were found so the caller can report them.
type SheetNotFoundError struct {
	Available []string
}

func (e *SheetNotFoundError) Error() string {
	return fmt.Sprintf("no settings sheet found (available sheets: %s)", strings.Join(e.Available, ", "))
}

// LegacyFormatError is returned for old binary .xls uploads, which are not
// supported. Sheets holds the sheet names recovered from the legacy file,
// when readable, so the rejection message can still name them.
type LegacyFormatError struct {
	Sheets []string
}

func (e *LegacyFormatError) Error() string {
	if len(e.Sheets) > 0 {
		return fmt.Sprintf("legacy .xls workbook (sheets: %s): re-save the file as .xlsx and upload again", strings.Join(e.Sheets, ", "))
	}
	return "legacy .xls workbook: re-save the file as .xlsx and upload again"
}

// OLE compound document magic, the signature of pre-OOXML Office files.
var oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

var settingsSheetNames = map[string]struct{}{
	"settings":      {},
	"setting":       {},
	"config":        {},
	"configuration": {},
}

// ReadGrid opens an uploaded workbook, locates the settings sheet and
// returns its cells as a trimmed rectangular grid.
func ReadGrid(data []byte) (*Workbook, error) {
	if bytes.HasPrefix(data, oleMagic) {
		return nil, probeLegacy(data)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}
	defer f.Close()

	sheet := findSettingsSheet(f)
	if sheet == "" {
		return nil, &SheetNotFoundError{Available: f.GetSheetList()}
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}

	return &Workbook{SheetName: sheet, Grid: rectangularize(rows)}, nil
}

// probeLegacy opens a BIFF workbook just far enough to recover its sheet
// names for the rejection message. Legacy files are never imported.
func probeLegacy(data []byte) error {
	wb, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return &LegacyFormatError{}
	}

	legacyErr := &LegacyFormatError{}
	for _, sheet := range wb.GetSheets() {
		legacyErr.Sheets = append(legacyErr.Sheets, sheet.GetName())
	}
	return legacyErr
}

func findSettingsSheet(f *excelize.File) string {
	for _, sheet := range f.GetSheetList() {
		name := strings.ToLower(strings.TrimSpace(sheet))
		if _, ok := settingsSheetNames[name]; ok {
			return sheet
		}
	}
	return ""
}

// rectangularize trims every cell and pads rows to a uniform width.
func rectangularize(rows [][]string) Grid {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	grid := make(Grid, len(rows))
	for i, row := range rows {
		cells := make([]string, width)
		for j, cell := range row {
			cells[j] = strings.TrimSpace(cell)
		}
		grid[i] = cells
	}
	return grid
}

func nonEmptyCells(row []string) int {
	n := 0
	for _, cell := range row {
		if cell != "" {
			n++
		}
	}
	return n
}

func isBlankRow(row []string) bool {
	return nonEmptyCells(row) == 0
}

func firstNonEmpty(row []string) string {
	for _, cell := range row {
		if cell != "" {
			return cell
		}
	}
	return ""
}
