package report

import (
	"os"
	"path/filepath"
)

// Paths resolves every artifact location for one run inside the
// report directory. File names embed the run id so consecutive runs
// never overwrite each other.
type Paths struct {
	Dir   string
	RunID string
}

// NewPaths creates the path set for a run.
func NewPaths(dir, runID string) Paths {
	return Paths{Dir: dir, RunID: runID}
}

// EnsureDir creates the report directory if needed.
func (p Paths) EnsureDir() error {
	return os.MkdirAll(p.Dir, 0o755)
}

func (p Paths) join(name string) string {
	return filepath.Join(p.Dir, name)
}

// Excel returns the workbook path.
func (p Paths) Excel() string {
	return p.join("sales_report_" + p.RunID + ".xlsx")
}

// Text returns the plain-text summary path.
func (p Paths) Text() string {
	return p.join("sales_report_" + p.RunID + ".txt")
}

// CategoryChart returns the revenue-by-category chart path.
func (p Paths) CategoryChart() string {
	return p.join("chart_revenue_by_category_" + p.RunID + ".png")
}

// DailyChart returns the daily-revenue chart path.
func (p Paths) DailyChart() string {
	return p.join("chart_daily_revenue_" + p.RunID + ".png")
}

// Rejects returns the rejected-rows JSONL path.
func (p Paths) Rejects() string {
	return p.join("rejected_rows_" + p.RunID + ".jsonl")
}

// Parquet returns the clean-data export path.
func (p Paths) Parquet() string {
	return p.join("sales_clean_" + p.RunID + ".parquet")
}

// Manifest returns the run manifest path.
func (p Paths) Manifest() string {
	return p.join("run_manifest_" + p.RunID + ".json")
}

// Log returns the execution log path.
func (p Paths) Log() string {
	return p.join("run_" + p.RunID + ".log")
}
