package finance

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/warp/enterprise-dashboard/currency"
)

// =============================================================================
// XLSX EXPORT
// =============================================================================

const (
	summarySheet   = "Statement"
	breakdownSheet = "Enterprises"
)

var metricLabels = map[Metric]string{
	MetricRevenue:          "Revenue",
	MetricSalaryCost:       "Salary cost",
	MetricExpenseCost:      "Professional expenses",
	MetricOperatingCost:    "Operating cost",
	MetricNetProfit:        "Net profit",
	MetricPersonalExpenses: "Personal expenses",
	MetricFinalProfit:      "Final profit",
}

// ExportXLSX renders st as a workbook: a summary sheet with every metric in
// its display currency and the headcounts, and a per-enterprise sheet in EUR.
func ExportXLSX(st Statement, rates currency.Rates, display Display) ([]byte, error) {
	rendered, err := st.Render(rates, display)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	rows := [][]any{{"Month", st.Month.String(), ""}, {"Metric", "Amount", "Currency"}}
	for _, m := range Metrics {
		money := rendered[m]
		rows = append(rows, []any{metricLabels[m], money.Value.Round(2).InexactFloat64(), string(money.Currency)})
	}
	rows = append(rows,
		[]any{},
		[]any{"Employees", st.Employees, ""},
		[]any{"Active employees", st.ActiveEmployees, ""},
		[]any{"Clients", st.Clients, ""},
		[]any{"Equipment", st.Equipment, ""},
		[]any{"Assigned equipment", st.AssignedEquipment, ""},
	)
	if err := writeRows(f, summarySheet, rows); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(summarySheet, "A2", "C2", headerStyle); err != nil {
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 24); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	if _, err := f.NewSheet(breakdownSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	rows = [][]any{{"Enterprise", "Revenue (EUR)", "Salary cost (EUR)", "Expenses (EUR)", "Net profit (EUR)"}}
	for _, line := range st.Enterprises {
		rows = append(rows, []any{
			line.Name,
			line.Revenue.Round(2).InexactFloat64(),
			line.SalaryCost.Round(2).InexactFloat64(),
			line.ExpenseCost.Round(2).InexactFloat64(),
			line.NetProfit().Round(2).InexactFloat64(),
		})
	}
	if err := writeRows(f, breakdownSheet, rows); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(breakdownSheet, "A1", "E1", headerStyle); err != nil {
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}
	if err := f.SetColWidth(breakdownSheet, "A", "E", 20); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		for j, v := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}
	return nil
}
