// Package cleaner applies the row-level business rules that separate
// raw input into validated sales records and rejected rows.
package cleaner

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/salesflow/salesflow/internal/model"
)

// DefaultDateLayout parses ISO-style dates such as 2024-01-31.
const DefaultDateLayout = "2006-01-02"

// Config controls row coercion.
type Config struct {
	// DateLayout is the Go reference layout for the date column.
	DateLayout string
}

// DefaultConfig returns the standard cleaning configuration.
func DefaultConfig() Config {
	return Config{DateLayout: DefaultDateLayout}
}

// Cleaner coerces and checks rows one at a time. It keeps no state
// between rows, so a single Cleaner may serve many runs.
type Cleaner struct {
	layout string
}

// New creates a Cleaner from cfg, falling back to defaults for zero
// values.
func New(cfg Config) *Cleaner {
	layout := cfg.DateLayout
	if layout == "" {
		layout = DefaultDateLayout
	}
	return &Cleaner{layout: layout}
}

// Clean partitions rows into accepted records and rejections. Both
// outputs preserve the input order. Rejection is ordinary data here,
// never an error: a fully rejected input yields an empty accepted
// slice and a complete rejected slice.
func (c *Cleaner) Clean(rows []model.Raw) ([]model.Record, []model.Rejected) {
	accepted := make([]model.Record, 0, len(rows))
	var rejected []model.Rejected

	for _, raw := range rows {
		record, reasons := c.Row(raw)
		if len(reasons) > 0 {
			rejected = append(rejected, model.Rejected{Raw: raw, Reasons: reasons})
			continue
		}
		accepted = append(accepted, record)
	}
	return accepted, rejected
}

// Row coerces a single raw row. The returned reasons are empty when
// the row is accepted; otherwise they appear in rule order:
// invalid_type, non_positive_quantity, negative_price. The rules are
// independent, so one row can carry several reasons.
func (c *Cleaner) Row(raw model.Raw) (model.Record, []model.Reason) {
	var reasons []model.Reason
	typeOK := true

	date, ok := c.parseDate(raw.Date)
	if !ok {
		typeOK = false
	}

	product := strings.TrimSpace(raw.Product)
	category := strings.TrimSpace(raw.Category)
	if product == "" || category == "" {
		typeOK = false
	}

	quantity, quantityOK := parseQuantity(raw.Quantity)
	if !quantityOK {
		typeOK = false
	}

	price, priceOK := parsePrice(raw.Price)
	if !priceOK {
		typeOK = false
	}

	if !typeOK {
		reasons = append(reasons, model.ReasonInvalidType)
	}
	if quantityOK && quantity <= 0 {
		reasons = append(reasons, model.ReasonNonPositiveQuantity)
	}
	if priceOK && price.IsNegative() {
		reasons = append(reasons, model.ReasonNegativePrice)
	}

	if len(reasons) > 0 {
		return model.Record{}, reasons
	}

	return model.Record{
		Date:        date,
		Product:     product,
		Category:    category,
		Quantity:    quantity,
		Price:       price,
		LineRevenue: decimal.NewFromInt(quantity).Mul(price),
	}, nil
}

// parseDate parses the configured layout and normalizes the result to
// UTC midnight so equal days always group together.
func (c *Cleaner) parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	parsed, err := time.Parse(c.layout, s)
	if err != nil {
		return time.Time{}, false
	}
	y, m, d := parsed.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
}

// parseQuantity accepts integers and integral floats ("2.0" counts
// as 2); anything fractional or non-numeric fails.
func parseQuantity(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if math.Trunc(f) != f || f < math.MinInt64 || f > math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func parsePrice(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, false
	}
	price, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return price, true
}
