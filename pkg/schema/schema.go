// Package schema enforces the required input columns before any row
// is processed.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/salesflow/salesflow/internal/model"
)

// Mapping renames logical columns to the headers a source actually
// uses. Zero values fall back to the logical names themselves.
type Mapping struct {
	Date     string `yaml:"date"`
	Product  string `yaml:"product"`
	Category string `yaml:"category"`
	Quantity string `yaml:"quantity"`
	Price    string `yaml:"price"`
}

// DefaultMapping maps every logical column to its own name.
func DefaultMapping() Mapping {
	return Mapping{
		Date:     "date",
		Product:  "product",
		Category: "category",
		Quantity: "quantity",
		Price:    "price",
	}
}

// header returns the source header for a logical column.
func (m Mapping) header(logical string) string {
	var mapped string
	switch logical {
	case "date":
		mapped = m.Date
	case "product":
		mapped = m.Product
	case "category":
		mapped = m.Category
	case "quantity":
		mapped = m.Quantity
	case "price":
		mapped = m.Price
	}
	if mapped == "" {
		return logical
	}
	return mapped
}

// Resolution holds the cell index of each required column within a
// validated header.
type Resolution struct {
	Date     int
	Product  int
	Category int
	Quantity int
	Price    int
}

// MissingColumnsError reports required columns absent from the input
// header. It is unrecoverable for the run.
type MissingColumnsError struct {
	// Missing lists the absent logical column names, sorted.
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("input is missing required columns: %s", strings.Join(e.Missing, ", "))
}

// Check validates that every required column resolves to a header
// cell. Matching trims whitespace and ignores case. It inspects the
// header only, never row values; callers must not read data rows when
// an error is returned.
func Check(header []string, mapping Mapping) (*Resolution, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, seen := index[key]; !seen {
			index[key] = i
		}
	}

	res := &Resolution{}
	var missing []string
	for _, logical := range model.RequiredColumns {
		want := strings.ToLower(strings.TrimSpace(mapping.header(logical)))
		pos, ok := index[want]
		if !ok {
			missing = append(missing, logical)
			continue
		}
		switch logical {
		case "date":
			res.Date = pos
		case "product":
			res.Product = pos
		case "category":
			res.Category = pos
		case "quantity":
			res.Quantity = pos
		case "price":
			res.Price = pos
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &MissingColumnsError{Missing: missing}
	}
	return res, nil
}

// Extract builds a raw record from one row of cells using the
// resolved column positions. Cells beyond the header are ignored and
// short rows yield empty fields.
func (r *Resolution) Extract(line int, cells []string) model.Raw {
	at := func(i int) string {
		if i < len(cells) {
			return cells[i]
		}
		return ""
	}
	return model.Raw{
		Line:     line,
		Date:     at(r.Date),
		Product:  at(r.Product),
		Category: at(r.Category),
		Quantity: at(r.Quantity),
		Price:    at(r.Price),
	}
}
