package excel

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/veyra/fleet-collections/internal/model"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Generate(statement model.HistoryStatement) ([]byte, error) {
	file := excelize.NewFile()

	summarySheet := "Summary"
	file.SetSheetName("Sheet1", summarySheet)
	if err := g.writeSummary(file, summarySheet, statement); err != nil {
		return nil, err
	}

	usedNames := map[string]struct{}{summarySheet: {}}
	for _, group := range statement.Groups {
		sheetName := buildSheetName(group.Agreement, usedNames)
		usedNames[sheetName] = struct{}{}

		file.NewSheet(sheetName)
		if err := g.writeGroup(file, sheetName, group); err != nil {
			return nil, err
		}
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, sheet string, statement model.HistoryStatement) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	totalVehicles := 0
	for _, group := range statement.Groups {
		totalVehicles += len(group.Vehicles)
	}

	set("A1", "Client")
	set("B1", statement.ClientID.String())
	set("A2", "Generated")
	set("B2", formatDateTime(statement.GeneratedAt))
	set("A3", "Agreements")
	set("B3", len(statement.Groups))
	set("A4", "Vehicles")
	set("B4", totalVehicles)

	tableRow := 6
	set(fmt.Sprintf("A%d", tableRow), "Address")
	set(fmt.Sprintf("B%d", tableRow), "Date")
	set(fmt.Sprintf("C%d", tableRow), "Status")
	set(fmt.Sprintf("D%d", tableRow), "Fee per vehicle")
	set(fmt.Sprintf("E%d", tableRow), "Vehicles")
	set(fmt.Sprintf("F%d", tableRow), "Total")

	for i, group := range statement.Groups {
		row := tableRow + 1 + i
		set(fmt.Sprintf("A%d", row), group.Agreement.AddressLabel)
		set(fmt.Sprintf("B%d", row), formatDatePtr(group.Agreement.ScheduledDate))
		set(fmt.Sprintf("C%d", row), string(group.Agreement.Status))
		set(fmt.Sprintf("D%d", row), formatAmount(group.Agreement.Fee))
		set(fmt.Sprintf("E%d", row), len(group.Vehicles))
		set(fmt.Sprintf("F%d", row), formatAmount(group.Agreement.Fee*float64(len(group.Vehicles))))
	}

	_ = file.SetColWidth(sheet, "A", "A", 45)
	_ = file.SetColWidth(sheet, "B", "C", 24)
	_ = file.SetColWidth(sheet, "D", "F", 16)
	return nil
}

func (g *Generator) writeGroup(file *excelize.File, sheet string, group model.HistoryGroup) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "Address")
	set("B1", group.Agreement.AddressLabel)
	set("A2", "Date")
	set("B2", formatDatePtr(group.Agreement.ScheduledDate))
	set("A3", "Status")
	set("B3", string(group.Agreement.Status))
	set("A4", "Fee per vehicle")
	set("B4", formatAmount(group.Agreement.Fee))
	set("A5", "Vehicles")
	set("B5", len(group.Vehicles))

	tableRow := 7
	headers := []string{"Plate", "Status", "Estimated date", "Linked"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, tableRow)
		set(cell, header)
	}

	for i, vehicle := range group.Vehicles {
		row := tableRow + 1 + i
		set(fmt.Sprintf("A%d", row), vehicle.Plate)
		set(fmt.Sprintf("B%d", row), string(vehicle.Status))
		set(fmt.Sprintf("C%d", row), formatDatePtr(vehicle.EstimatedDate))
		set(fmt.Sprintf("D%d", row), vehicle.AgreementID != nil)
	}

	_ = file.SetColWidth(sheet, "A", "B", 24)
	_ = file.SetColWidth(sheet, "C", "D", 16)
	return nil
}

func buildSheetName(agreement model.CollectionAgreement, used map[string]struct{}) string {
	base := strings.TrimSpace(agreement.AddressLabel)
	if agreement.ScheduledDate != nil {
		base = fmt.Sprintf("%s %s", base, agreement.ScheduledDate.Format("2006-01-02"))
	}
	if strings.TrimSpace(base) == "" {
		base = agreement.ID.String()
	}
	base = sanitizeSheetName(base)

	if len(base) > 31 {
		base = base[:31]
	}

	nameCandidate := base
	counter := 2
	for {
		if _, exists := used[nameCandidate]; !exists {
			return nameCandidate
		}
		suffix := fmt.Sprintf("-%d", counter)
		trimmed := base
		if len(trimmed)+len(suffix) > 31 {
			trimmed = trimmed[:31-len(suffix)]
		}
		nameCandidate = trimmed + suffix
		counter++
	}
}

func sanitizeSheetName(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "Sheet"
	}

	replacer := strings.NewReplacer(
		"[", "-",
		"]", "-",
		":", "-",
		"*", "-",
		"?", "-",
		"/", "-",
		"\\", "-",
	)
	value = replacer.Replace(value)
	value = strings.TrimSpace(value)
	if value == "" {
		return "Sheet"
	}
	return value
}

func formatDatePtr(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatAmount(value float64) string {
	return fmt.Sprintf("%.2f", value)
}
