package schema

import (
	"errors"
	"strings"
	"testing"
)

func TestCheckAllColumnsPresent(t *testing.T) {
	header := []string{"date", "product", "category", "quantity", "price"}

	res, err := Check(header, DefaultMapping())
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if res.Date != 0 || res.Product != 1 || res.Category != 2 || res.Quantity != 3 || res.Price != 4 {
		t.Errorf("unexpected resolution: %+v", res)
	}
}

func TestCheckIgnoresCaseAndWhitespace(t *testing.T) {
	header := []string{" Date ", "PRODUCT", "Category", "quantity", "  Price"}

	if _, err := Check(header, DefaultMapping()); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
}

func TestCheckMissingColumns(t *testing.T) {
	tests := []struct {
		name    string
		header  []string
		missing string
	}{
		{
			name:    "no price",
			header:  []string{"date", "product", "category", "quantity"},
			missing: "price",
		},
		{
			name:    "several absent",
			header:  []string{"product", "category"},
			missing: "date, price, quantity",
		},
		{
			name:    "empty header",
			header:  nil,
			missing: "category, date, price, product, quantity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Check(tt.header, DefaultMapping())
			if err == nil {
				t.Fatal("Check() expected error, got nil")
			}
			if res != nil {
				t.Errorf("Check() resolution = %+v, want nil", res)
			}

			var missingErr *MissingColumnsError
			if !errors.As(err, &missingErr) {
				t.Fatalf("Check() error type = %T", err)
			}
			if got := strings.Join(missingErr.Missing, ", "); got != tt.missing {
				t.Errorf("missing = %q, want %q", got, tt.missing)
			}
		})
	}
}

func TestCheckWithMapping(t *testing.T) {
	header := []string{"order_date", "sku", "category", "qty", "unit_price"}
	mapping := Mapping{Date: "order_date", Product: "sku", Quantity: "qty", Price: "unit_price"}

	res, err := Check(header, mapping)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if res.Date != 0 || res.Product != 1 || res.Category != 2 || res.Quantity != 3 || res.Price != 4 {
		t.Errorf("unexpected resolution: %+v", res)
	}
}

func TestCheckDuplicateHeaderUsesFirst(t *testing.T) {
	header := []string{"date", "price", "product", "category", "quantity", "price"}

	res, err := Check(header, DefaultMapping())
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if res.Price != 1 {
		t.Errorf("Price index = %d, want 1", res.Price)
	}
}

func TestExtractShortRow(t *testing.T) {
	res, err := Check([]string{"date", "product", "category", "quantity", "price"}, DefaultMapping())
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}

	raw := res.Extract(7, []string{"2024-01-01", "Widget"})
	if raw.Line != 7 {
		t.Errorf("Line = %d, want 7", raw.Line)
	}
	if raw.Date != "2024-01-01" || raw.Product != "Widget" {
		t.Errorf("unexpected fields: %+v", raw)
	}
	if raw.Category != "" || raw.Quantity != "" || raw.Price != "" {
		t.Errorf("short row should yield empty fields: %+v", raw)
	}
}
