package cleaner

import (
	"testing"
	"time"

	"github.com/salesflow/salesflow/internal/model"
)

func row(date, product, category, quantity, price string) model.Raw {
	return model.Raw{Date: date, Product: product, Category: category, Quantity: quantity, Price: price}
}

func TestRowAccepted(t *testing.T) {
	c := New(DefaultConfig())

	record, reasons := c.Row(row("2024-01-01", " Widget ", "Gadgets", "2", "10.50"))
	if len(reasons) != 0 {
		t.Fatalf("Row() reasons = %v, want none", reasons)
	}

	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !record.Date.Equal(want) {
		t.Errorf("Date = %v, want %v", record.Date, want)
	}
	if record.Product != "Widget" || record.Category != "Gadgets" {
		t.Errorf("strings not trimmed: %q %q", record.Product, record.Category)
	}
	if record.Quantity != 2 {
		t.Errorf("Quantity = %d, want 2", record.Quantity)
	}
	if record.LineRevenue.String() != "21" {
		t.Errorf("LineRevenue = %s, want 21", record.LineRevenue)
	}
}

func TestRowRejections(t *testing.T) {
	tests := []struct {
		name    string
		raw     model.Raw
		reasons []model.Reason
	}{
		{
			name:    "unparseable date",
			raw:     row("01/02/2024", "A", "X", "1", "5"),
			reasons: []model.Reason{model.ReasonInvalidType},
		},
		{
			name:    "blank product",
			raw:     row("2024-01-01", "  ", "X", "1", "5"),
			reasons: []model.Reason{model.ReasonInvalidType},
		},
		{
			name:    "blank category",
			raw:     row("2024-01-01", "A", "", "1", "5"),
			reasons: []model.Reason{model.ReasonInvalidType},
		},
		{
			name:    "fractional quantity",
			raw:     row("2024-01-01", "A", "X", "2.5", "5"),
			reasons: []model.Reason{model.ReasonInvalidType},
		},
		{
			name:    "non-numeric price",
			raw:     row("2024-01-01", "A", "X", "1", "ten"),
			reasons: []model.Reason{model.ReasonInvalidType},
		},
		{
			name:    "zero quantity",
			raw:     row("2024-01-01", "A", "X", "0", "5"),
			reasons: []model.Reason{model.ReasonNonPositiveQuantity},
		},
		{
			name:    "negative quantity",
			raw:     row("2024-01-01", "A", "X", "-1", "5"),
			reasons: []model.Reason{model.ReasonNonPositiveQuantity},
		},
		{
			name:    "negative price",
			raw:     row("2024-01-01", "A", "X", "1", "-0.01"),
			reasons: []model.Reason{model.ReasonNegativePrice},
		},
		{
			name:    "multiple reasons",
			raw:     row("2024-01-01", "A", "X", "-2", "-5"),
			reasons: []model.Reason{model.ReasonNonPositiveQuantity, model.ReasonNegativePrice},
		},
		{
			name:    "bad date with negative quantity",
			raw:     row("nope", "A", "X", "-2", "5"),
			reasons: []model.Reason{model.ReasonInvalidType, model.ReasonNonPositiveQuantity},
		},
	}

	c := New(DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, reasons := c.Row(tt.raw)
			if len(reasons) != len(tt.reasons) {
				t.Fatalf("reasons = %v, want %v", reasons, tt.reasons)
			}
			for i := range reasons {
				if reasons[i] != tt.reasons[i] {
					t.Errorf("reasons[%d] = %s, want %s", i, reasons[i], tt.reasons[i])
				}
			}
		})
	}
}

func TestRowIntegralFloatQuantity(t *testing.T) {
	c := New(DefaultConfig())

	record, reasons := c.Row(row("2024-01-01", "A", "X", "2.0", "3"))
	if len(reasons) != 0 {
		t.Fatalf("Row() reasons = %v, want none", reasons)
	}
	if record.Quantity != 2 {
		t.Errorf("Quantity = %d, want 2", record.Quantity)
	}
}

func TestRowZeroPriceAccepted(t *testing.T) {
	c := New(DefaultConfig())

	record, reasons := c.Row(row("2024-01-01", "Sample", "Promo", "3", "0"))
	if len(reasons) != 0 {
		t.Fatalf("Row() reasons = %v, want none", reasons)
	}
	if !record.LineRevenue.IsZero() {
		t.Errorf("LineRevenue = %s, want 0", record.LineRevenue)
	}
}

func TestRowCustomDateLayout(t *testing.T) {
	c := New(Config{DateLayout: "02/01/2006"})

	record, reasons := c.Row(row("31/12/2024", "A", "X", "1", "5"))
	if len(reasons) != 0 {
		t.Fatalf("Row() reasons = %v, want none", reasons)
	}
	if record.Day() != "2024-12-31" {
		t.Errorf("Day() = %s, want 2024-12-31", record.Day())
	}
}

func TestCleanPreservesOrder(t *testing.T) {
	rows := []model.Raw{
		row("2024-01-02", "B", "Y", "1", "4"),
		row("2024-01-01", "A", "X", "bad", "4"),
		row("2024-01-01", "C", "Z", "2", "1"),
		row("2024-01-03", "D", "X", "-1", "1"),
	}

	accepted, rejected := New(DefaultConfig()).Clean(rows)
	if len(accepted) != 2 || len(rejected) != 2 {
		t.Fatalf("Clean() = %d accepted, %d rejected", len(accepted), len(rejected))
	}
	if accepted[0].Product != "B" || accepted[1].Product != "C" {
		t.Errorf("accepted order broken: %s, %s", accepted[0].Product, accepted[1].Product)
	}
	if rejected[0].Raw.Product != "A" || rejected[1].Raw.Product != "D" {
		t.Errorf("rejected order broken: %s, %s", rejected[0].Raw.Product, rejected[1].Raw.Product)
	}
}

func TestCleanAllRejected(t *testing.T) {
	rows := []model.Raw{
		row("x", "A", "X", "1", "1"),
		row("2024-01-01", "B", "Y", "0", "1"),
	}

	accepted, rejected := New(DefaultConfig()).Clean(rows)
	if len(accepted) != 0 {
		t.Errorf("accepted = %d, want 0", len(accepted))
	}
	if len(rejected) != 2 {
		t.Errorf("rejected = %d, want 2", len(rejected))
	}
}
