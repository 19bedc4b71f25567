package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// WriteXLSX writes the table as a single-sheet workbook with a header row.
func (t *Table) WriteXLSX(path string) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"

	for col, name := range t.Columns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("header cell %d: %w", col, err)
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return fmt.Errorf("write header %q: %w", name, err)
		}
	}

	for i, row := range t.Rows {
		for col, name := range t.Columns {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return fmt.Errorf("cell %d,%d: %w", col, i, err)
			}
			if err := f.SetCellValue(sheet, cell, Cell(row[name])); err != nil {
				return fmt.Errorf("write row %d column %q: %w", i, name, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}
