// Package ingest opens tabular sales files and yields their rows.
// Readers return the header once, then data rows as cell slices in
// file order, so callers can gate on the header before touching data.
package ingest

import (
	"fmt"

	"github.com/salesflow/salesflow/pkg/util"
)

// Format identifies a supported input format.
type Format string

const (
	// FormatAuto picks the format from the file extension.
	FormatAuto Format = ""
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat parses a format name; anything unrecognized falls back
// to auto-detection.
func ParseFormat(s string) Format {
	switch s {
	case "csv":
		return FormatCSV
	case "xlsx", "excel":
		return FormatXLSX
	default:
		return FormatAuto
	}
}

// Config controls how an input file is read.
type Config struct {
	// Format forces a reader; FormatAuto detects from the extension,
	// ignoring a .gz suffix.
	Format Format

	// Delimiter separates CSV cells. Defaults to ','.
	Delimiter rune

	// Sheet names the Excel worksheet to read. Empty means the first
	// sheet.
	Sheet string
}

// Reader yields one dataset. Implementations are not safe for
// concurrent use. Next returns io.EOF after the last row.
type Reader interface {
	// Header returns the column names from the first row.
	Header() ([]string, error)

	// Next returns the cells of the next data row and its 1-based
	// line number in the source.
	Next() (cells []string, line int, err error)

	// Close releases the underlying file.
	Close() error
}

// Open creates a reader for path. The header row is read eagerly so
// an empty or unreadable input fails here rather than mid-run.
func Open(path string, cfg Config) (Reader, error) {
	format := cfg.Format
	if format == FormatAuto {
		switch util.BaseFormat(path) {
		case ".csv", ".tsv", ".txt":
			format = FormatCSV
		case ".xlsx":
			format = FormatXLSX
		default:
			return nil, fmt.Errorf("unsupported input format %q for %s", util.BaseFormat(path), path)
		}
	}

	switch format {
	case FormatCSV:
		return openCSV(path, cfg)
	case FormatXLSX:
		return openXLSX(path, cfg)
	default:
		return nil, fmt.Errorf("unknown input format %q", format)
	}
}
