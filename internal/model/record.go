// Package model defines core data structures for SalesFlow.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DayLayout renders a calendar day so that lexical order equals
// chronological order.
const DayLayout = "2006-01-02"

// RequiredColumns lists the logical columns every input must provide.
var RequiredColumns = []string{"date", "product", "category", "quantity", "price"}

// Raw represents one input row before validation.
// Fields hold the cell text exactly as read from the source.
type Raw struct {
	// Line is the 1-based position in the input, counting the header.
	Line int

	Date     string
	Product  string
	Category string
	Quantity string
	Price    string
}

// Record represents a validated sales row.
// Money fields are decimals so group sums reconcile exactly against
// the total and re-runs on identical input are byte-identical.
type Record struct {
	// Date is the sale date at UTC midnight.
	Date time.Time

	// Product is the trimmed product name.
	Product string

	// Category is the trimmed category name.
	Category string

	// Quantity is the number of units sold, always >= 1.
	Quantity int64

	// Price is the unit price, always >= 0.
	Price decimal.Decimal

	// LineRevenue is Quantity * Price, derived at acceptance time.
	LineRevenue decimal.Decimal
}

// Day returns the record's date in DayLayout form.
func (r Record) Day() string {
	return r.Date.Format(DayLayout)
}

// Month returns the record's calendar month as "2006-01".
func (r Record) Month() string {
	return r.Date.Format("2006-01")
}

// Reason identifies why a row was refused by the cleaner.
type Reason string

const (
	// ReasonInvalidType marks a required field that was blank or failed
	// type coercion.
	ReasonInvalidType Reason = "invalid_type"

	// ReasonNonPositiveQuantity marks a quantity <= 0.
	ReasonNonPositiveQuantity Reason = "non_positive_quantity"

	// ReasonNegativePrice marks a price < 0.
	ReasonNegativePrice Reason = "negative_price"
)

// Reasons lists all reason codes in rule-evaluation order.
var Reasons = []Reason{ReasonInvalidType, ReasonNonPositiveQuantity, ReasonNegativePrice}

// Description returns the human explanation for a reason code.
func (r Reason) Description() string {
	switch r {
	case ReasonInvalidType:
		return "field missing or not convertible to its declared type"
	case ReasonNonPositiveQuantity:
		return "quantity must be a positive integer"
	case ReasonNegativePrice:
		return "price must not be negative"
	default:
		return "unknown rejection reason"
	}
}

// Rejected pairs a raw row with the reasons it was refused.
// Reasons keep rule-evaluation order and are never mutated.
type Rejected struct {
	Raw     Raw
	Reasons []Reason
}

// Has reports whether the rejection carries the given reason.
func (r Rejected) Has(reason Reason) bool {
	for _, got := range r.Reasons {
		if got == reason {
			return true
		}
	}
	return false
}
