package ingest

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// xlsxReader streams one worksheet of an Excel workbook using the
// excelize row iterator, so large workbooks never load fully into
// memory.
type xlsxReader struct {
	path   string
	file   *excelize.File
	rows   *excelize.Rows
	header []string
	line   int
}

func openXLSX(path string, cfg Config) (*xlsxReader, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	sheet := cfg.Sheet
	if sheet == "" {
		sheet = file.GetSheetName(0)
		if sheet == "" {
			list := file.GetSheetList()
			if len(list) == 0 {
				file.Close()
				return nil, fmt.Errorf("%s: workbook has no sheets", path)
			}
			sheet = list[0]
		}
	}

	rows, err := file.Rows(sheet)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("reading sheet %q of %s: %w", sheet, path, err)
	}

	if !rows.Next() {
		rows.Close()
		file.Close()
		return nil, fmt.Errorf("%s: sheet %q has no header row", path, sheet)
	}
	header, err := rows.Columns()
	if err != nil {
		rows.Close()
		file.Close()
		return nil, fmt.Errorf("reading header of %s: %w", path, err)
	}

	return &xlsxReader{
		path:   path,
		file:   file,
		rows:   rows,
		header: header,
		line:   1,
	}, nil
}

func (r *xlsxReader) Header() ([]string, error) {
	return r.header, nil
}

func (r *xlsxReader) Next() ([]string, int, error) {
	for {
		if !r.rows.Next() {
			if err := r.rows.Error(); err != nil {
				return nil, 0, fmt.Errorf("reading %s: %w", r.path, err)
			}
			return nil, 0, io.EOF
		}
		cells, err := r.rows.Columns()
		if err != nil {
			return nil, 0, fmt.Errorf("reading %s: %w", r.path, err)
		}
		r.line++
		if blankRow(cells) {
			continue
		}
		return cells, r.line, nil
	}
}

// blankRow reports whether every cell is empty. Worksheets often
// carry formatted-but-empty rows between or after the data.
func blankRow(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}

func (r *xlsxReader) Close() error {
	r.rows.Close()
	return r.file.Close()
}
