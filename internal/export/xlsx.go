package export

import (
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/leadgen/internal/model"
)

// LeadsSheet is the worksheet name used for lead exports.
const LeadsSheet = "Leads"

// numericColumns are written as numbers so spreadsheets can sort them.
var numericColumns = map[string]bool{"SCORE": true, "AUDIT": true, "RATING": true, "REVIEWS": true}

// LeadsXLSX writes leads as a single-sheet workbook with a header row.
func LeadsXLSX(w io.Writer, leads []model.Lead) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(LeadsSheet)
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range leadColumns {
		header.AddCell().SetString(col)
	}

	for i := range leads {
		row := sheet.AddRow()
		for j, v := range leadRow(&leads[i]) {
			cell := row.AddCell()
			if numericColumns[leadColumns[j]] && v != "" {
				if n, err := strconv.ParseFloat(v, 64); err == nil {
					cell.SetFloat(n)
					continue
				}
			}
			cell.SetString(v)
		}
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "xlsx: write workbook")
	}
	return nil
}

// ReadLeadsXLSX returns every row of the leads sheet, header first.
func ReadLeadsXLSX(data []byte) ([][]string, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open workbook")
	}
	sheet, ok := f.Sheet[LeadsSheet]
	if !ok {
		return nil, eris.Errorf("xlsx: sheet %q not found", LeadsSheet)
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}
