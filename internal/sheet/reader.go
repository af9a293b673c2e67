package sheet

import (
	"fmt"
	"io"
	"strings"

	"github.com/tealeg/xlsx/v3"
)

// KeyHeadings are the header texts recognized as a barcode column.
var KeyHeadings = []string{"Barcode", "Barcodes", "Item Barcode"}

// ReadRows returns the cell text of the first sheet in an xlsx file.
func ReadRows(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook: %w", err)
	}
	file, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	if len(file.Sheets) == 0 {
		return nil, nil
	}

	var rows [][]string
	err = file.Sheets[0].ForEachRow(func(row *xlsx.Row) error {
		var values []string
		err := row.ForEachCell(func(cell *xlsx.Cell) error {
			values = append(values, strings.TrimSpace(cell.String()))
			return nil
		})
		rows = append(rows, values)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}
	return rows, nil
}

// ReadKeys returns the non-blank values of the key column of the first
// sheet. A header row matching one of KeyHeadings picks the column and is
// skipped; without one the first column is read from the top.
func ReadKeys(r io.Reader) ([]string, error) {
	rows, err := ReadRows(r)
	if err != nil || len(rows) == 0 {
		return nil, err
	}

	col, start := 0, 0
	for i, h := range rows[0] {
		if isKeyHeading(h) {
			col, start = i, 1
			break
		}
	}

	var keys []string
	for _, row := range rows[start:] {
		if col < len(row) && row[col] != "" {
			keys = append(keys, row[col])
		}
	}
	return keys, nil
}

func isKeyHeading(h string) bool {
	for _, k := range KeyHeadings {
		if strings.EqualFold(h, k) {
			return true
		}
	}
	return false
}
