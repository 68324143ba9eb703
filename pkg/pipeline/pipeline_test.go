package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/salesflow/salesflow/internal/model"
	"github.com/salesflow/salesflow/pkg/schema"
)

// sliceSource serves an in-memory dataset and counts row reads so
// tests can prove schema failures stop before any data is touched.
type sliceSource struct {
	header []string
	rows   [][]string
	pos    int
	reads  int
}

func (s *sliceSource) Header() ([]string, error) { return s.header, nil }

func (s *sliceSource) Next() ([]string, int, error) {
	if s.pos >= len(s.rows) {
		return nil, 0, io.EOF
	}
	s.reads++
	cells := s.rows[s.pos]
	s.pos++
	return cells, s.pos + 1, nil
}

func salesHeader() []string {
	return []string{"date", "product", "category", "quantity", "price"}
}

func fixedClock(t *testing.T, value string) func() time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("bad clock value: %v", err)
	}
	return func() time.Time { return parsed }
}

func TestExecuteWorkedExample(t *testing.T) {
	src := &sliceSource{
		header: salesHeader(),
		rows: [][]string{
			{"2024-01-01", "A", "X", "2", "10.0"},
			{"2024-01-01", "B", "Y", "-1", "5.0"},
			{"2024-01-02", "A", "X", "1", "10.0"},
		},
	}

	run, err := New(Options{RunID: "test_run"}).Execute(context.Background(), src)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if run.ID != "test_run" {
		t.Errorf("ID = %s, want test_run", run.ID)
	}
	if len(run.Accepted) != 2 || len(run.Rejected) != 1 {
		t.Fatalf("accepted/rejected = %d/%d, want 2/1", len(run.Accepted), len(run.Rejected))
	}
	if !run.Rejected[0].Has(model.ReasonNonPositiveQuantity) {
		t.Errorf("rejected reasons = %v, want non_positive_quantity", run.Rejected[0].Reasons)
	}
	if run.Metrics.TotalRevenue.String() != "30" {
		t.Errorf("TotalRevenue = %s, want 30", run.Metrics.TotalRevenue)
	}
	if run.Metrics.AverageTicket.String() != "15" {
		t.Errorf("AverageTicket = %s, want 15", run.Metrics.AverageTicket)
	}
	if run.Metrics.BestCategory.Key != "X" || run.Metrics.BestCategory.Revenue.String() != "30" {
		t.Errorf("BestCategory = %+v, want X/30", run.Metrics.BestCategory)
	}
	if run.Metrics.BestDay.Key != "2024-01-01" || run.Metrics.BestDay.Revenue.String() != "20" {
		t.Errorf("BestDay = %+v, want 2024-01-01/20", run.Metrics.BestDay)
	}
	if run.Quality.RejectionRate <= 0.33 || run.Quality.RejectionRate >= 0.34 {
		t.Errorf("RejectionRate = %v, want 1/3", run.Quality.RejectionRate)
	}
}

func TestExecuteSchemaFailureReadsNoRows(t *testing.T) {
	src := &sliceSource{
		header: []string{"date", "product", "category", "quantity"},
		rows: [][]string{
			{"2024-01-01", "A", "X", "2"},
		},
	}

	run, err := New(Options{}).Execute(context.Background(), src)
	if err == nil {
		t.Fatal("Execute() expected error, got nil")
	}
	if run != nil {
		t.Errorf("Execute() run = %+v, want nil", run)
	}

	var missing *schema.MissingColumnsError
	if !errors.As(err, &missing) {
		t.Fatalf("error type = %T, want *schema.MissingColumnsError", err)
	}
	if len(missing.Missing) != 1 || missing.Missing[0] != "price" {
		t.Errorf("Missing = %v, want [price]", missing.Missing)
	}
	if src.reads != 0 {
		t.Errorf("source reads = %d, want 0", src.reads)
	}
}

func TestExecuteGeneratedRunID(t *testing.T) {
	src := &sliceSource{header: salesHeader()}
	opts := Options{Now: fixedClock(t, "2024-03-15T10:11:12Z")}

	run, err := New(opts).Execute(context.Background(), src)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if run.ID != "20240315_101112" {
		t.Errorf("ID = %s, want 20240315_101112", run.ID)
	}
}

func TestRunIDsSortLexically(t *testing.T) {
	earlier := NewRunID(time.Date(2024, 9, 30, 23, 59, 59, 0, time.UTC))
	later := NewRunID(time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC))
	if earlier >= later {
		t.Errorf("run ids out of order: %s >= %s", earlier, later)
	}
}

func TestExecuteAllRowsRejected(t *testing.T) {
	src := &sliceSource{
		header: salesHeader(),
		rows: [][]string{
			{"2024-01-01", "A", "X", "0", "10"},
			{"not a date", "B", "Y", "1", "10"},
		},
	}

	run, err := New(Options{RunID: "r"}).Execute(context.Background(), src)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(run.Accepted) != 0 || len(run.Rejected) != 2 {
		t.Fatalf("accepted/rejected = %d/%d, want 0/2", len(run.Accepted), len(run.Rejected))
	}
	if run.Metrics.Defined() {
		t.Error("metrics defined for empty accepted set")
	}
	if run.Quality.RejectionRate != 1 {
		t.Errorf("RejectionRate = %v, want 1", run.Quality.RejectionRate)
	}
}

func TestExecuteEmptyDataset(t *testing.T) {
	src := &sliceSource{header: salesHeader()}

	run, err := New(Options{RunID: "empty"}).Execute(context.Background(), src)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if run.Quality.TotalRows != 0 || run.Quality.RejectionRate != 0 {
		t.Errorf("quality = %+v, want zero counts and rate", run.Quality)
	}
	if run.Metrics.Defined() {
		t.Error("metrics defined for empty dataset")
	}
}

func TestExecuteIdempotent(t *testing.T) {
	rows := [][]string{
		{"2024-01-01", "A", "X", "2", "10.0"},
		{"2024-01-02", "B", "Y", "3", "2.5"},
		{"2024-01-02", "A", "X", "1", "10.0"},
	}
	render := func(run *Run) string {
		out := fmt.Sprintf("%s|%s|%d", run.ID, run.Metrics.TotalRevenue, run.Metrics.TotalUnits)
		for _, row := range run.ByProduct.Rows() {
			out += fmt.Sprintf("|%s=%s", row.Key, row.Revenue)
		}
		for _, row := range run.ByDay.Rows() {
			out += fmt.Sprintf("|%s=%s", row.Key, row.Revenue)
		}
		return out
	}

	exec := func() string {
		src := &sliceSource{header: salesHeader(), rows: rows}
		run, err := New(Options{RunID: "same"}).Execute(context.Background(), src)
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		return render(run)
	}

	if first, second := exec(), exec(); first != second {
		t.Errorf("runs differ:\n%s\n%s", first, second)
	}
}

func TestExecuteCanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &sliceSource{header: salesHeader()}
	if _, err := New(Options{}).Execute(ctx, src); !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
}

func TestExecuteColumnMapping(t *testing.T) {
	src := &sliceSource{
		header: []string{"order_date", "sku", "category", "qty", "unit_price"},
		rows: [][]string{
			{"2024-01-01", "Widget", "Tools", "2", "3.50"},
		},
	}
	opts := Options{
		RunID:   "mapped",
		Columns: schema.Mapping{Date: "order_date", Product: "sku", Quantity: "qty", Price: "unit_price"},
	}

	run, err := New(opts).Execute(context.Background(), src)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(run.Accepted) != 1 || run.Accepted[0].Product != "Widget" {
		t.Fatalf("accepted = %+v", run.Accepted)
	}
	if run.Metrics.TotalRevenue.String() != "7" {
		t.Errorf("TotalRevenue = %s, want 7", run.Metrics.TotalRevenue)
	}
}
