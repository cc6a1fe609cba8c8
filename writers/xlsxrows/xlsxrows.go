// Package xlsxrows exports facility rows as an XLSX workbook.
package xlsxrows

import (
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/nihatbirbudak/Hotel-Lead-Builder/facility"
)

const sheetName = "Facilities"

// Write renders the facilities onto a single worksheet and writes the
// workbook to w.
func Write(w io.Writer, facilities []facility.Facility) error {
	book := excelize.NewFile()
	defer func() { _ = book.Close() }()

	index, err := book.NewSheet(sheetName)
	if err != nil {
		return err
	}

	book.SetActiveSheet(index)

	if err := book.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	var headers []string

	if len(facilities) > 0 {
		headers = facilities[0].CsvHeaders()
	} else {
		headers = (&facility.Facility{}).CsvHeaders()
	}

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}

		if err := book.SetCellValue(sheetName, cell, header); err != nil {
			return err
		}
	}

	for rowIdx := range facilities {
		for col, value := range facilities[rowIdx].CsvRow() {
			cell, err := excelize.CoordinatesToCellName(col+1, rowIdx+2)
			if err != nil {
				return err
			}

			if err := book.SetCellValue(sheetName, cell, value); err != nil {
				return err
			}
		}
	}

	return book.Write(w)
}
