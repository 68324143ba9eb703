package report

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/salesflow/salesflow/pkg/pipeline"
)

// writeText renders the executive summary. Output depends only on
// the run contents, so identical runs produce identical bytes.
func writeText(path string, run *pipeline.Run) error {
	var b bytes.Buffer

	rule := "=================================================="
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, " SALES REPORT  %s\n", run.ID)
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b)

	fmt.Fprintf(&b, "Run started      : %s\n", run.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintln(&b)

	q := run.Quality
	fmt.Fprintf(&b, "Input rows       : %d\n", q.TotalRows)
	fmt.Fprintf(&b, "Accepted         : %d\n", q.Accepted)
	fmt.Fprintf(&b, "Rejected         : %d\n", q.Rejected)
	fmt.Fprintf(&b, "Rejection rate   : %.2f%%\n", q.RejectionRate*100)
	fmt.Fprintln(&b)

	m := run.Metrics
	fmt.Fprintf(&b, "Total revenue    : %s\n", Money(m.TotalRevenue))
	fmt.Fprintf(&b, "Units sold       : %d\n", m.TotalUnits)
	fmt.Fprintf(&b, "Average ticket   : %s\n", MoneyOr(m.AverageTicket))
	fmt.Fprintf(&b, "Highest sale     : %s\n", MoneyOr(m.HighestSale))
	fmt.Fprintf(&b, "Lowest sale      : %s\n", MoneyOr(m.LowestSale))
	fmt.Fprintln(&b)

	fmt.Fprintf(&b, "Best product     : %s\n", GroupOr(m.BestProduct))
	fmt.Fprintf(&b, "Worst product    : %s\n", GroupOr(m.WorstProduct))
	fmt.Fprintf(&b, "Best category    : %s\n", GroupOr(m.BestCategory))
	fmt.Fprintf(&b, "Worst category   : %s\n", GroupOr(m.WorstCategory))
	fmt.Fprintf(&b, "Best day         : %s\n", GroupOr(m.BestDay))
	fmt.Fprintf(&b, "Worst day        : %s\n", GroupOr(m.WorstDay))

	if breakdown := q.Breakdown(); len(breakdown) > 0 {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "Rejection breakdown")
		fmt.Fprintln(&b, "-------------------")
		for _, rc := range breakdown {
			fmt.Fprintf(&b, "  %-22s %d\n", rc.Reason, rc.Count)
		}
	}

	return os.WriteFile(path, b.Bytes(), 0o644)
}
