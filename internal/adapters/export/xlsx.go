package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"smart-factory/internal/domain"
)

const sheetName = "Audit Logs"

var auditHeader = []string{
	"Timestamp",
	"User ID",
	"User Name",
	"Action",
	"Resource",
	"Resource ID",
	"Result",
	"IP Address",
	"User Agent",
	"Details",
}

var auditColumnWidths = []float64{22, 30, 20, 14, 14, 30, 10, 16, 30, 50}

// XLSXExporter writes audit entries as a single-sheet workbook with a frozen
// header row.
type XLSXExporter struct{}

func NewXLSXExporter() *XLSXExporter { return &XLSXExporter{} }

func (*XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (*XLSXExporter) FileExtension() string { return "xlsx" }

func (x *XLSXExporter) Export(w io.Writer, logs []domain.AuditLog) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
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
		return fmt.Errorf("create header style: %w", err)
	}

	for col, header := range auditHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return fmt.Errorf("set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("set header style: %w", err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheetName, name, name, auditColumnWidths[col]); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}

	for i, l := range logs {
		row := i + 2
		values, err := auditRow(l)
		if err != nil {
			return err
		}
		for col, v := range values {
			if v == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func auditRow(l domain.AuditLog) ([]string, error) {
	details := ""
	if len(l.Details) > 0 {
		b, err := json.Marshal(l.Details)
		if err != nil {
			return nil, fmt.Errorf("encode details for %s: %w", l.ID, err)
		}
		details = string(b)
	}
	return []string{
		l.Timestamp.UTC().Format("2006-01-02 15:04:05"),
		l.UserID,
		l.UserName,
		string(l.Action),
		string(l.Resource),
		l.ResourceID,
		string(l.Result),
		l.IPAddress,
		l.UserAgent,
		details,
	}, nil
}
