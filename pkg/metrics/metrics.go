// Package metrics computes the scalar metrics and revenue
// aggregations for a run's accepted records.
package metrics

import (
	"github.com/shopspring/decimal"

	"github.com/salesflow/salesflow/internal/model"
)

// Bundle holds the scalar metrics of one run. Pointer fields are nil
// when no records were accepted; they are never zeroed and never an
// error, so a report can still describe an empty run. When the
// accepted count is positive, LowestSale <= AverageTicket <=
// HighestSale.
type Bundle struct {
	// TotalRevenue is the sum of line revenue. Zero for an empty run.
	TotalRevenue decimal.Decimal

	// TotalUnits is the sum of quantities. Zero for an empty run.
	TotalUnits int64

	// AverageTicket is TotalRevenue divided by the accepted record
	// count.
	AverageTicket *decimal.Decimal

	// HighestSale and LowestSale are the extreme single line revenues.
	HighestSale *decimal.Decimal
	LowestSale  *decimal.Decimal

	// Best/Worst entries are argmax/argmin by revenue over the
	// corresponding table; ties resolve to the key seen first in the
	// input.
	BestProduct   *GroupStat
	WorstProduct  *GroupStat
	BestCategory  *GroupStat
	WorstCategory *GroupStat
	BestDay       *GroupStat
	WorstDay      *GroupStat
}

// Defined reports whether the optional metrics are populated, which
// is exactly when at least one record was accepted.
func (b Bundle) Defined() bool {
	return b.AverageTicket != nil
}

// Result bundles the metrics with the three aggregation tables.
type Result struct {
	Bundle     Bundle
	ByCategory *Table
	ByProduct  *Table
	ByDay      *Table
}

// Compute derives all metrics from the accepted records. It never
// fails: an empty input produces zero totals, nil optional metrics
// and empty tables.
func Compute(records []model.Record) Result {
	res := Result{
		ByCategory: NewTable(),
		ByProduct:  NewTable(),
		ByDay:      NewTable(),
	}

	total := decimal.Zero
	var units int64
	var highest, lowest decimal.Decimal

	for i, rec := range records {
		total = total.Add(rec.LineRevenue)
		units += rec.Quantity

		if i == 0 {
			highest = rec.LineRevenue
			lowest = rec.LineRevenue
		} else {
			if rec.LineRevenue.Cmp(highest) > 0 {
				highest = rec.LineRevenue
			}
			if rec.LineRevenue.Cmp(lowest) < 0 {
				lowest = rec.LineRevenue
			}
		}

		res.ByCategory.Add(rec.Category, rec.LineRevenue)
		res.ByProduct.Add(rec.Product, rec.LineRevenue)
		res.ByDay.Add(rec.Day(), rec.LineRevenue)
	}

	res.Bundle.TotalRevenue = total
	res.Bundle.TotalUnits = units

	if len(records) == 0 {
		return res
	}

	average := total.Div(decimal.NewFromInt(int64(len(records))))
	res.Bundle.AverageTicket = &average
	res.Bundle.HighestSale = &highest
	res.Bundle.LowestSale = &lowest
	res.Bundle.BestProduct = res.ByProduct.Max()
	res.Bundle.WorstProduct = res.ByProduct.Min()
	res.Bundle.BestCategory = res.ByCategory.Max()
	res.Bundle.WorstCategory = res.ByCategory.Min()
	res.Bundle.BestDay = res.ByDay.Max()
	res.Bundle.WorstDay = res.ByDay.Min()
	return res
}
