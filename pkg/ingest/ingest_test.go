package ingest

import (
	"compress/gzip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func drain(t *testing.T, r Reader) ([][]string, []int) {
	t.Helper()
	var rows [][]string
	var lines []int
	for {
		cells, line, err := r.Next()
		if errors.Is(err, io.EOF) {
			return rows, lines
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		rows = append(rows, cells)
		lines = append(lines, line)
	}
}

func TestOpenCSV(t *testing.T) {
	path := writeCSV(t, "sales.csv", "date,product,category,quantity,price\n2024-01-01,A,X,2,10.0\n2024-01-02,B,Y,1,5\n")

	r, err := Open(path, Config{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()

	header, err := r.Header()
	if err != nil {
		t.Fatal(err)
	}
	if len(header) != 5 || header[0] != "date" || header[4] != "price" {
		t.Errorf("header = %v", header)
	}

	rows, lines := drain(t, r)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0][1] != "A" || rows[1][1] != "B" {
		t.Errorf("row contents: %v", rows)
	}
	if lines[0] != 2 || lines[1] != 3 {
		t.Errorf("line numbers = %v, want [2 3]", lines)
	}
}

func TestOpenCSVSkipsBlankLines(t *testing.T) {
	path := writeCSV(t, "gaps.csv", "date,product,category,quantity,price\n2024-01-01,A,X,2,10\n\n2024-01-02,B,Y,1,5\n")

	r, err := Open(path, Config{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()

	rows, lines := drain(t, r)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	// The blank line is skipped but real file positions are kept.
	if lines[1] != 4 {
		t.Errorf("second row line = %d, want 4", lines[1])
	}
}

func TestOpenCSVGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sales.csv.gz")
	file, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(file)
	if _, err := gz.Write([]byte("date,product,category,quantity,price\n2024-01-01,A,X,2,10\n")); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := file.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := Open(path, Config{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()

	rows, _ := drain(t, r)
	if len(rows) != 1 || rows[0][0] != "2024-01-01" {
		t.Errorf("rows = %v", rows)
	}
}

func TestOpenCSVDelimiter(t *testing.T) {
	path := writeCSV(t, "semi.csv", "date;product;category;quantity;price\n2024-01-01;A;X;2;10\n")

	r, err := Open(path, Config{Delimiter: ';'})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()

	header, _ := r.Header()
	if len(header) != 5 {
		t.Errorf("header = %v, want 5 columns", header)
	}
}

func TestOpenCSVRaggedRows(t *testing.T) {
	path := writeCSV(t, "ragged.csv", "date,product,category,quantity,price\n2024-01-01,A\n2024-01-02,B,Y,1,5,extra\n")

	r, err := Open(path, Config{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()

	rows, _ := drain(t, r)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if len(rows[0]) != 2 || len(rows[1]) != 6 {
		t.Errorf("cell counts = %d, %d", len(rows[0]), len(rows[1]))
	}
}

func TestOpenCSVEmptyFile(t *testing.T) {
	path := writeCSV(t, "empty.csv", "")

	if _, err := Open(path, Config{}); err == nil {
		t.Error("Open() expected error for empty file")
	}
}

func TestOpenUnsupportedFormat(t *testing.T) {
	path := writeCSV(t, "sales.parquet", "not really")

	if _, err := Open(path, Config{}); err == nil {
		t.Error("Open() expected error for unsupported format")
	}
}

func writeXLSX(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.xlsx")
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpenXLSX(t *testing.T) {
	path := writeXLSX(t, [][]interface{}{
		{"date", "product", "category", "quantity", "price"},
		{"2024-01-01", "A", "X", 2, 10.5},
		{"2024-01-02", "B", "Y", 1, 5},
	})

	r, err := Open(path, Config{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()

	header, err := r.Header()
	if err != nil {
		t.Fatal(err)
	}
	if len(header) != 5 || header[0] != "date" {
		t.Errorf("header = %v", header)
	}

	rows, lines := drain(t, r)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0][0] != "2024-01-01" || rows[0][3] != "2" {
		t.Errorf("first row = %v", rows[0])
	}
	if lines[0] != 2 || lines[1] != 3 {
		t.Errorf("line numbers = %v", lines)
	}
}

func TestOpenXLSXSkipsBlankRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gaps.xlsx")
	f := excelize.NewFile()
	for cell, row := range map[string][]interface{}{
		"A1": {"date", "product", "category", "quantity", "price"},
		"A2": {"2024-01-01", "A", "X", 2, 10},
		"A4": {"2024-01-02", "B", "Y", 1, 5},
	} {
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := Open(path, Config{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()

	rows, lines := drain(t, r)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	// Row 3 is empty and skipped, but positions stay truthful.
	if lines[0] != 2 || lines[1] != 4 {
		t.Errorf("line numbers = %v, want [2 4]", lines)
	}
}

func TestParseFormat(t *testing.T) {
	if ParseFormat("csv") != FormatCSV || ParseFormat("excel") != FormatXLSX {
		t.Error("explicit formats not recognized")
	}
	if ParseFormat("anything") != FormatAuto {
		t.Error("unknown format should fall back to auto")
	}
}
