// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

package export

import (
	"io"

	"github.com/samber/oops"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet the matrix is written to.
const SheetName = "Permissions"

func xlsxError(err error, op string) error {
	return oops.In("export").Code("EXPORT_FAILED").With("format", FormatXLSX).With("operation", op).Wrap(err)
}

func writeXLSX(w io.Writer, m Matrix) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return xlsxError(err, "new sheet")
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return xlsxError(err, "delete default sheet")
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return xlsxError(err, "header style")
	}

	headers := append([]string{"Module", "Action"}, m.Columns...)
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return xlsxError(err, "header cell")
		}
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return xlsxError(err, "header value")
		}
		if err := f.SetCellStyle(SheetName, cell, cell, headerStyle); err != nil {
			return xlsxError(err, "header style")
		}
	}
	last, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return xlsxError(err, "column name")
	}
	if err := f.SetColWidth(SheetName, "A", "B", 20); err != nil {
		return xlsxError(err, "column width")
	}
	if len(headers) > 2 {
		if err := f.SetColWidth(SheetName, "C", last, 12); err != nil {
			return xlsxError(err, "column width")
		}
	}

	for r, row := range m.Rows {
		values := make([]any, 0, len(headers))
		values = append(values, string(row.Module), string(row.Action))
		for _, allowed := range row.Allowed {
			values = append(values, yesNo(allowed))
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return xlsxError(err, "row cell")
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return xlsxError(err, "row values")
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		XSplit:      2,
		YSplit:      1,
		TopLeftCell: "C2",
		ActivePane:  "bottomRight",
	}); err != nil {
		return xlsxError(err, "freeze panes")
	}

	if _, err := f.WriteTo(w); err != nil {
		return xlsxError(err, "write")
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
