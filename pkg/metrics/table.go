package metrics

import (
	"sort"

	"github.com/shopspring/decimal"
)

// GroupStat is one row of an aggregation table.
type GroupStat struct {
	Key     string
	Revenue decimal.Decimal
}

// Table accumulates revenue per grouping key. Keys remember the order
// of first appearance, which is what makes best/worst tie-breaks
// deterministic across re-runs of the same input.
type Table struct {
	keys []string
	sums map[string]decimal.Decimal
}

// NewTable returns an empty aggregation table.
func NewTable() *Table {
	return &Table{sums: make(map[string]decimal.Decimal)}
}

// Add accumulates revenue under key, registering the key on first
// sight.
func (t *Table) Add(key string, revenue decimal.Decimal) {
	sum, seen := t.sums[key]
	if !seen {
		t.keys = append(t.keys, key)
	}
	t.sums[key] = sum.Add(revenue)
}

// Len returns the number of distinct keys.
func (t *Table) Len() int {
	return len(t.keys)
}

// Revenue returns the summed revenue for key.
func (t *Table) Revenue(key string) (decimal.Decimal, bool) {
	sum, ok := t.sums[key]
	return sum, ok
}

// Total sums every group. It must equal the pipeline's total revenue;
// reports reconcile against it.
func (t *Table) Total() decimal.Decimal {
	total := decimal.Zero
	for _, key := range t.keys {
		total = total.Add(t.sums[key])
	}
	return total
}

// Rows returns the table in first-appearance order.
func (t *Table) Rows() []GroupStat {
	rows := make([]GroupStat, 0, len(t.keys))
	for _, key := range t.keys {
		rows = append(rows, GroupStat{Key: key, Revenue: t.sums[key]})
	}
	return rows
}

// RowsByRevenue returns the table sorted by revenue, highest first.
// Equal revenues keep first-appearance order.
func (t *Table) RowsByRevenue() []GroupStat {
	rows := t.Rows()
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Revenue.Cmp(rows[j].Revenue) > 0
	})
	return rows
}

// RowsByKey returns the table sorted by key ascending. Day keys use
// a layout whose lexical order is chronological, so daily tables come
// out in date order.
func (t *Table) RowsByKey() []GroupStat {
	rows := t.Rows()
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Key < rows[j].Key
	})
	return rows
}

// Max returns the first key, in first-appearance order, whose revenue
// no other key strictly exceeds. Nil for an empty table.
func (t *Table) Max() *GroupStat {
	return t.pick(func(candidate, best decimal.Decimal) bool {
		return candidate.Cmp(best) > 0
	})
}

// Min is the argmin counterpart of Max.
func (t *Table) Min() *GroupStat {
	return t.pick(func(candidate, best decimal.Decimal) bool {
		return candidate.Cmp(best) < 0
	})
}

func (t *Table) pick(better func(candidate, best decimal.Decimal) bool) *GroupStat {
	if len(t.keys) == 0 {
		return nil
	}
	best := GroupStat{Key: t.keys[0], Revenue: t.sums[t.keys[0]]}
	for _, key := range t.keys[1:] {
		if better(t.sums[key], best.Revenue) {
			best = GroupStat{Key: key, Revenue: t.sums[key]}
		}
	}
	return &best
}
