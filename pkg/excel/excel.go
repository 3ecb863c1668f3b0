// Package excel reads worksheets into plain Go values
package excel

import (
	"errors"
	"fmt"

	apperrors "sirius/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ErrNotAKeyValuePair is wrapped when a key-value sheet has more or fewer than two columns
var ErrNotAKeyValuePair = errors.New("not a key-value pair")

// GetExcelData returns every row after the header row as a map keyed by header.
// Numbers are decimal.Decimal, booleans bool, blanks nil and everything else string.
func GetExcelData(path, sheet string) ([]map[string]any, error) {
	rows, err := readSheet(path, sheet)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []map[string]any{}, nil
	}

	headers := make([]string, len(rows[0]))
	for i, header := range rows[0] {
		if header != nil {
			headers[i] = fmt.Sprint(header)
		}
	}

	data := make([]map[string]any, 0, len(rows)-1)
	for _, row := range rows[1:] {
		record := make(map[string]any, len(headers))
		for i, header := range headers {
			record[header] = row[i]
		}
		data = append(data, record)
	}
	return data, nil
}

// GetKeyValuePair reads a two-column sheet as key, value rows. Rows with a blank key are skipped.
func GetKeyValuePair(path, sheet string) (map[string]any, error) {
	rows, err := readSheet(path, sheet)
	if err != nil {
		return nil, err
	}

	pairs := make(map[string]any, len(rows))
	for i, row := range rows {
		if len(row) != 2 {
			return nil, apperrors.NewSDKClientError(
				fmt.Sprintf("row %d of sheet %s has %d columns", i+1, sheet, len(row)), ErrNotAKeyValuePair)
		}
		if row[0] == nil {
			continue
		}
		pairs[fmt.Sprint(row[0])] = row[1]
	}
	return pairs, nil
}

// readSheet returns typed cell values. Every row is padded to the sheet's widest row.
func readSheet(path, sheet string) ([][]any, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		var missing excelize.ErrSheetNotExist
		if errors.As(err, &missing) {
			return nil, apperrors.NewNotFound("sheet", sheet)
		}
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}

	width := 0
	for _, row := range raw {
		width = max(width, len(row))
	}

	rows := make([][]any, len(raw))
	for r, row := range raw {
		rows[r] = make([]any, width)
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, err
			}
			cellType, err := f.GetCellType(sheet, cell)
			if err != nil {
				return nil, fmt.Errorf("failed to read cell %s: %w", cell, err)
			}
			rows[r][c] = cellValue(cellType, value)
		}
	}
	return rows, nil
}

func cellValue(cellType excelize.CellType, value string) any {
	switch {
	case value == "":
		return nil
	case cellType == excelize.CellTypeBool:
		return value == "1" || value == "TRUE"
	case cellType == excelize.CellTypeNumber || cellType == excelize.CellTypeUnset:
		// excelize writes numbers without a type attribute
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return value
}
