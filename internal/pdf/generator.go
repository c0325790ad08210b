package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/veyra/fleet-collections/internal/model"
)

type Generator struct {
	fontName string
	currency string
}

func NewGenerator(currency string) *Generator {
	return &Generator{fontName: "Helvetica", currency: currency}
}

func (g *Generator) Generate(statement model.HistoryStatement) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont(g.fontName, "B", 14)
	pdf.CellFormat(0, 10, "Vehicle Collection Statement", "", 1, "C", false, 0, "")

	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Client %s", statement.ClientID), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated %s", formatDateTime(statement.GeneratedAt)), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	headers := []string{"Address", "Date", "Status", "Fee", "Vehicles", "Total"}
	colWidths := []float64{70, 22, 38, 18, 16, 18}
	drawTableRow(pdf, g.fontName, headers, colWidths, true)

	total := 0.0
	for _, group := range statement.Groups {
		groupTotal := group.Agreement.Fee * float64(len(group.Vehicles))
		total += groupTotal
		row := []string{
			group.Agreement.AddressLabel,
			formatDatePtr(group.Agreement.ScheduledDate),
			string(group.Agreement.Status),
			formatAmount(group.Agreement.Fee),
			fmt.Sprintf("%d", len(group.Vehicles)),
			formatAmount(groupTotal),
		}
		drawTableRow(pdf, g.fontName, row, colWidths, false)
	}

	pdf.Ln(2)
	pdf.SetFont(g.fontName, "B", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Total: %s %s", formatAmount(total), g.currency), "", 1, "R", false, 0, "")
	pdf.Ln(4)

	for _, group := range statement.Groups {
		if len(group.Vehicles) == 0 {
			continue
		}
		g.addGroupBlock(pdf, group)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) addGroupBlock(pdf *gofpdf.Fpdf, group model.HistoryGroup) {
	pdf.SetFont(g.fontName, "B", 11)
	title := group.Agreement.AddressLabel
	if group.Agreement.ScheduledDate != nil {
		title = fmt.Sprintf("%s - %s", title, formatDatePtr(group.Agreement.ScheduledDate))
	}
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")

	headers := []string{"Plate", "Status", "Estimated date"}
	colWidths := []float64{50, 60, 40}
	drawTableRow(pdf, g.fontName, headers, colWidths, true)
	for _, vehicle := range group.Vehicles {
		row := []string{
			vehicle.Plate,
			string(vehicle.Status),
			formatDatePtr(vehicle.EstimatedDate),
		}
		drawTableRow(pdf, g.fontName, row, colWidths, false)
	}
	pdf.Ln(3)
}

func drawTableRow(pdf *gofpdf.Fpdf, fontName string, cols []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont(fontName, style, 9)
	for i, col := range cols {
		align := "L"
		if i > 2 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 7, col, "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)
}

func formatAmount(value float64) string {
	return fmt.Sprintf("%.2f", value)
}

func formatDatePtr(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}
