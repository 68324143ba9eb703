package report

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/salesflow/salesflow/pkg/metrics"
	"github.com/salesflow/salesflow/pkg/pipeline"
)

// Sheet names in workbook order.
const (
	sheetSummary  = "summary"
	sheetQuality  = "data_quality"
	sheetData     = "data"
	sheetCategory = "revenue_by_category"
	sheetProduct  = "revenue_by_product"
	sheetDaily    = "daily_revenue"
)

// writeExcel renders the multi-sheet workbook. Money cells are
// written as numbers with a 0.00 format so spreadsheet formulas
// keep working on them.
func writeExcel(path string, run *pipeline.Run) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetSummary); err != nil {
		return err
	}
	for _, name := range []string{sheetQuality, sheetData, sheetCategory, sheetProduct, sheetDaily} {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return err
	}

	if err := writeSummarySheet(f, run, bold); err != nil {
		return err
	}
	if err := writeQualitySheet(f, run, bold); err != nil {
		return err
	}
	if err := writeDataSheet(f, run, bold, money); err != nil {
		return err
	}
	if err := writeGroupSheet(f, sheetCategory, "category", run.ByCategory.RowsByRevenue(), bold, money); err != nil {
		return err
	}
	if err := writeGroupSheet(f, sheetProduct, "product", run.ByProduct.RowsByRevenue(), bold, money); err != nil {
		return err
	}
	if err := writeGroupSheet(f, sheetDaily, "date", run.ByDay.RowsByKey(), bold, money); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	return f.SaveAs(path)
}

func setRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return err
		}
	}
	return nil
}

func freezeHeader(f *excelize.File, sheet string) error {
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func writeSummarySheet(f *excelize.File, run *pipeline.Run, bold int) error {
	m := run.Metrics
	q := run.Quality

	rows := [][]interface{}{
		{"metric", "value"},
		{"run_id", run.ID},
		{"started_at", run.StartedAt.UTC().Format(time.RFC3339)},
		{"input_rows", q.TotalRows},
		{"rows_accepted", q.Accepted},
		{"rows_rejected", q.Rejected},
		{"rejection_rate", q.RejectionRate},
		{"total_revenue", m.TotalRevenue.InexactFloat64()},
		{"total_units", m.TotalUnits},
		{"average_ticket", optCell(m.AverageTicket)},
		{"highest_sale", optCell(m.HighestSale)},
		{"lowest_sale", optCell(m.LowestSale)},
		{"best_product", GroupOr(m.BestProduct)},
		{"worst_product", GroupOr(m.WorstProduct)},
		{"best_category", GroupOr(m.BestCategory)},
		{"worst_category", GroupOr(m.WorstCategory)},
		{"best_day", GroupOr(m.BestDay)},
		{"worst_day", GroupOr(m.WorstDay)},
	}
	if err := setRows(f, sheetSummary, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetSummary, "A1", "B1", bold); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetSummary, "A", "A", 18); err != nil {
		return err
	}
	return f.SetColWidth(sheetSummary, "B", "B", 28)
}

func optCell(d *decimal.Decimal) interface{} {
	if d == nil {
		return "n/a"
	}
	return d.InexactFloat64()
}

func writeQualitySheet(f *excelize.File, run *pipeline.Run, bold int) error {
	rows := [][]interface{}{{"reason", "count", "description"}}
	for _, rc := range run.Quality.Breakdown() {
		rows = append(rows, []interface{}{string(rc.Reason), rc.Count, rc.Reason.Description()})
	}
	if err := setRows(f, sheetQuality, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetQuality, "A1", "C1", bold); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetQuality, "A", "A", 24); err != nil {
		return err
	}
	return f.SetColWidth(sheetQuality, "C", "C", 48)
}

func writeDataSheet(f *excelize.File, run *pipeline.Run, bold, money int) error {
	rows := [][]interface{}{{"date", "product", "category", "quantity", "price", "line_revenue", "month"}}
	for _, rec := range run.Accepted {
		rows = append(rows, []interface{}{
			rec.Day(),
			rec.Product,
			rec.Category,
			rec.Quantity,
			rec.Price.InexactFloat64(),
			rec.LineRevenue.InexactFloat64(),
			rec.Month(),
		})
	}
	if err := setRows(f, sheetData, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetData, "A1", "G1", bold); err != nil {
		return err
	}
	if n := len(run.Accepted); n > 0 {
		if err := f.SetCellStyle(sheetData, "E2", fmt.Sprintf("F%d", n+1), money); err != nil {
			return err
		}
	}
	if err := freezeHeader(f, sheetData); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetData, "A", "A", 12); err != nil {
		return err
	}
	return f.SetColWidth(sheetData, "B", "C", 20)
}

func writeGroupSheet(f *excelize.File, sheet, keyHeader string, groups []metrics.GroupStat, bold, money int) error {
	rows := [][]interface{}{{keyHeader, "revenue"}}
	for _, g := range groups {
		rows = append(rows, []interface{}{g.Key, g.Revenue.InexactFloat64()})
	}
	if err := setRows(f, sheet, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "B1", bold); err != nil {
		return err
	}
	if len(groups) > 0 {
		if err := f.SetCellStyle(sheet, "B2", fmt.Sprintf("B%d", len(groups)+1), money); err != nil {
			return err
		}
	}
	if err := freezeHeader(f, sheet); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", "A", 22); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "B", "B", 14)
}
