// Package quality summarizes how much of a run's input survived
// cleaning, and why the rest did not.
package quality

import (
	"sort"

	"github.com/salesflow/salesflow/internal/model"
)

// Summary describes the accepted/rejected split of one run. It is
// derived purely from counts the cleaner already produced; it never
// re-inspects rows.
type Summary struct {
	// TotalRows is every data row seen, accepted or not.
	TotalRows int

	// Accepted and Rejected partition TotalRows.
	Accepted int
	Rejected int

	// RejectionRate is Rejected/TotalRows, 0 for an empty input.
	RejectionRate float64

	// ReasonCounts maps each reason code to the number of rejected
	// rows carrying it. A row with several reasons counts once per
	// reason, so the values may sum past Rejected.
	ReasonCounts map[model.Reason]int
}

// ReasonCount is one row of the deterministic breakdown.
type ReasonCount struct {
	Reason model.Reason
	Count  int
}

// Summarize builds the summary for a run.
func Summarize(accepted int, rejected []model.Rejected) Summary {
	s := Summary{
		TotalRows:    accepted + len(rejected),
		Accepted:     accepted,
		Rejected:     len(rejected),
		ReasonCounts: make(map[model.Reason]int),
	}

	for _, rej := range rejected {
		for _, reason := range rej.Reasons {
			s.ReasonCounts[reason]++
		}
	}

	if s.TotalRows > 0 {
		s.RejectionRate = float64(s.Rejected) / float64(s.TotalRows)
	}
	return s
}

// Breakdown returns the reason counts ordered by count descending,
// then code ascending, so reports render identically on every run.
func (s Summary) Breakdown() []ReasonCount {
	rows := make([]ReasonCount, 0, len(s.ReasonCounts))
	for reason, count := range s.ReasonCounts {
		rows = append(rows, ReasonCount{Reason: reason, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Reason < rows[j].Reason
	})
	return rows
}
