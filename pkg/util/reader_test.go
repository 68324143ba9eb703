package util

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeGzipFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	file, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(file)
	if _, err := gz.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := file.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpenFilePlain(t *testing.T) {
	path := writeFile(t, "plain.csv", []byte("a,b,c\n"))

	r, cleanup, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer cleanup()

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "a,b,c\n" {
		t.Errorf("read %q", data)
	}
}

func TestOpenFileGzip(t *testing.T) {
	// Deliberately misnamed: detection must come from the stream.
	path := writeGzipFile(t, "data.csv", "date,price\n2024-01-01,3\n")

	r, cleanup, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer cleanup()

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "date,price\n2024-01-01,3\n" {
		t.Errorf("read %q", data)
	}
}

func TestOpenFileEmpty(t *testing.T) {
	path := writeFile(t, "empty.csv", nil)

	r, cleanup, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer cleanup()

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 0 {
		t.Errorf("read %d bytes from empty file", len(data))
	}
}

func TestOpenFileMissing(t *testing.T) {
	if _, _, err := OpenFile(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Error("OpenFile() expected error for missing file")
	}
}

func TestBaseFormat(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"sales.csv", ".csv"},
		{"sales.CSV", ".csv"},
		{"sales.csv.gz", ".csv"},
		{"report.xlsx", ".xlsx"},
		{"archive.GZ", ""},
		{"noext", ""},
	}
	for _, tt := range tests {
		if got := BaseFormat(tt.path); got != tt.want {
			t.Errorf("BaseFormat(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestFileSHA256(t *testing.T) {
	path := writeFile(t, "hashme.txt", []byte("salesflow"))

	got, err := FileSHA256(path)
	if err != nil {
		t.Fatalf("FileSHA256() error = %v", err)
	}
	// Digest of the literal bytes "salesflow".
	want := "ef40aa7e7ee30fd1d7fa0033d308fbc154dbd1bad94d6c4e0b712a3c27180298"
	if got != want {
		t.Errorf("FileSHA256() = %s, want %s", got, want)
	}
}
