// Package sheet writes lookup results to xlsx workbooks and reads key
// columns back out of them.
package sheet

import (
	"fmt"
	"io"
	"strconv"

	"github.com/tealeg/xlsx/v3"
)

// Limits of a single xlsx worksheet.
const (
	MaxRows    = 1_048_576
	MaxColumns = 16_384
)

// BaseName is the name of the first results sheet; later sheets get a
// numeric suffix.
const BaseName = "Boffo Results"

// Handle identifies a sheet created by CreateSheet.
type Handle int

// Workbook is an in-memory xlsx file of results sheets.
type Workbook struct {
	file   *xlsx.File
	sheets []*xlsx.Sheet
	bold   *xlsx.Style
}

func NewWorkbook() *Workbook {
	bold := xlsx.NewStyle()
	bold.Font.Bold = true
	bold.ApplyFont = true
	return &Workbook{file: xlsx.NewFile(), bold: bold}
}

// CreateSheet adds a sheet with a bold heading row and returns its handle.
func (w *Workbook) CreateSheet(headings []string) (Handle, error) {
	if len(headings) == 0 {
		return 0, fmt.Errorf("sheet needs at least one column")
	}
	if len(headings) > MaxColumns {
		return 0, fmt.Errorf("%d columns exceeds the sheet limit of %d", len(headings), MaxColumns)
	}

	sh, err := w.file.AddSheet(w.nextName())
	if err != nil {
		return 0, fmt.Errorf("failed to add sheet: %w", err)
	}
	row := sh.AddRow()
	for _, h := range headings {
		cell := row.AddCell()
		cell.SetString(h)
		cell.SetStyle(w.bold)
	}
	w.sheets = append(w.sheets, sh)
	return Handle(len(w.sheets) - 1), nil
}

// WriteRows writes rows starting at the zero-based row index startRow. Row 0
// holds the headings, so results normally start at 1.
func (w *Workbook) WriteRows(h Handle, startRow int, rows [][]string) error {
	sh, err := w.sheet(h)
	if err != nil {
		return err
	}
	if startRow < 0 {
		return fmt.Errorf("invalid start row %d", startRow)
	}
	if startRow+len(rows) > MaxRows {
		return fmt.Errorf("writing %d rows at row %d exceeds the sheet limit of %d", len(rows), startRow, MaxRows)
	}

	for sh.MaxRow < startRow {
		sh.AddRow()
	}
	for i, values := range rows {
		var row *xlsx.Row
		if idx := startRow + i; idx < sh.MaxRow {
			row, err = sh.Row(idx)
			if err != nil {
				return fmt.Errorf("failed to read row %d: %w", idx, err)
			}
		} else {
			row = sh.AddRow()
		}
		for col, v := range values {
			row.GetCell(col).SetString(v)
		}
	}
	return nil
}

// SheetName returns the name of the sheet behind h.
func (w *Workbook) SheetName(h Handle) string {
	sh, err := w.sheet(h)
	if err != nil {
		return ""
	}
	return sh.Name
}

// Save writes the workbook to path.
func (w *Workbook) Save(path string) error {
	if err := w.file.Save(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

// Write streams the workbook to wr.
func (w *Workbook) Write(wr io.Writer) error {
	if err := w.file.Write(wr); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func (w *Workbook) sheet(h Handle) (*xlsx.Sheet, error) {
	if int(h) < 0 || int(h) >= len(w.sheets) {
		return nil, fmt.Errorf("unknown sheet handle %d", h)
	}
	return w.sheets[h], nil
}

func (w *Workbook) nextName() string {
	if len(w.sheets) == 0 {
		return BaseName
	}
	return BaseName + " " + strconv.Itoa(len(w.sheets)+1)
}
