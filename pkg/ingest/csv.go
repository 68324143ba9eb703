package ingest

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/salesflow/salesflow/pkg/util"
)

// csvReader streams a CSV file, transparently handling gzip input.
type csvReader struct {
	path    string
	cleanup func() error
	records *csv.Reader
	header  []string
}

func openCSV(path string, cfg Config) (*csvReader, error) {
	reader, cleanup, err := util.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	records := csv.NewReader(reader)
	if cfg.Delimiter != 0 {
		records.Comma = cfg.Delimiter
	}
	// Rows may be ragged; schema resolution fills short rows with
	// blanks and ignores extra cells.
	records.FieldsPerRecord = -1
	records.ReuseRecord = false

	header, err := records.Read()
	if err == io.EOF {
		cleanup()
		return nil, fmt.Errorf("%s: no header row", path)
	}
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("reading header of %s: %w", path, err)
	}

	return &csvReader{
		path:    path,
		cleanup: cleanup,
		records: records,
		header:  header,
	}, nil
}

func (r *csvReader) Header() ([]string, error) {
	return r.header, nil
}

func (r *csvReader) Next() ([]string, int, error) {
	cells, err := r.records.Read()
	if err == io.EOF {
		return nil, 0, io.EOF
	}
	if err != nil {
		return nil, 0, fmt.Errorf("reading %s: %w", r.path, err)
	}
	line, _ := r.records.FieldPos(0)
	return cells, line, nil
}

func (r *csvReader) Close() error {
	return r.cleanup()
}
