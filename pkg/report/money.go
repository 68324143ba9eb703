package report

import (
	"github.com/shopspring/decimal"

	"github.com/salesflow/salesflow/pkg/metrics"
)

// Money renders an amount with two digits, the scale used in every
// human-readable artifact.
func Money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// MoneyOr renders an optional amount, "n/a" when undefined.
func MoneyOr(d *decimal.Decimal) string {
	if d == nil {
		return "n/a"
	}
	return Money(*d)
}

// GroupOr renders an optional group extreme as "key (amount)",
// "n/a" when undefined.
func GroupOr(g *metrics.GroupStat) string {
	if g == nil {
		return "n/a"
	}
	return g.Key + " (" + Money(g.Revenue) + ")"
}
