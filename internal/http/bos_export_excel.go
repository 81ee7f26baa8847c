package httpapi

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"skyfire-equipment/internal/bos"
	"skyfire-equipment/internal/domain"
)

// BOSExportHeader 导出表头
var BOSExportHeader = []string{
	"Section",
	"System",
	"Equipment Type",
	"Standard Type",
	"Make",
	"Model",
	"Amp Rating",
	"Min Amp Rating",
	"Required",
	"New",
	"Confidence",
	"Note",
}

var bosColumnWidths = []float64{12, 10, 40, 28, 18, 22, 12, 15, 10, 8, 22, 40}

const (
	bosSheet     = "BOS"
	summarySheet = "Summary"
)

// GenerateBOSExport BOS 检测结果 → xlsx（BOS 明细 + Summary 两个工作表）
func GenerateBOSExport(projectID string, res *bos.Result) ([]byte, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(bosSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range BOSExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(bosSheet, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(bosSheet, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
		name, _ := excelize.ColumnNumberToName(col + 1)
		if err := f.SetColWidth(bosSheet, name, name, bosColumnWidths[col]); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, item := range res.Items {
		row := i + 2
		for col, value := range bosRow(item) {
			if value == nil || value == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(bosSheet, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell value at row %d, col %d: %w", row, col+1, err)
			}
		}
	}

	if err := f.SetPanes(bosSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	if err := writeSummarySheet(f, projectID, res); err != nil {
		f.Close()
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write excel: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close excel: %w", err)
	}
	return buf.Bytes(), nil
}

func bosRow(item domain.BOSItem) []any {
	system := any(item.Target)
	if item.Section == domain.SectionCombine {
		system = "Combined"
	}
	var amp any
	if item.AmpRating > 0 {
		amp = item.AmpRating
	}
	var minAmp any
	if item.MinAmpRating > 0 {
		minAmp = item.MinAmpRating
	}
	note := item.Note
	if item.SizingNote != "" {
		note = strings.TrimSpace(strings.Join([]string{item.SizingNote, item.Note}, " "))
	}
	return []any{
		string(item.Section),
		system,
		item.EquipmentType,
		item.StandardType,
		item.Make,
		item.Model,
		amp,
		minAmp,
		yesNo(item.Required),
		yesNo(item.IsNew),
		string(item.Confidence),
		note,
	}
}

func writeSummarySheet(f *excelize.File, projectID string, res *bos.Result) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	rows := [][]any{
		{"Project", projectID},
		{"Source", res.Source},
		{"Items", len(res.Items)},
	}
	for _, line := range strings.Split(res.Summary, "\n") {
		if strings.TrimSpace(line) != "" {
			rows = append(rows, []any{"Summary", line})
		}
	}
	for _, w := range res.Warnings {
		rows = append(rows, []any{"Warning", w})
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary row %d: %w", i+1, err)
		}
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 12); err != nil {
		return err
	}
	return f.SetColWidth(summarySheet, "B", "B", 80)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
