// Package util provides shared file helpers.
package util

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// gzipMagic is the two-byte header of every gzip stream.
var gzipMagic = []byte{0x1f, 0x8b}

// OpenFile opens path for reading, transparently decompressing gzip
// input. Compression is detected from the stream itself, not the file
// name, so a renamed .gz still opens correctly. Returns the reader
// and a cleanup the caller must invoke when done.
func OpenFile(path string) (io.Reader, func() error, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	head := make([]byte, 2)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		file.Close()
		return nil, nil, fmt.Errorf("sniffing %s: %w", path, err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("rewinding %s: %w", path, err)
	}

	if n == len(gzipMagic) && bytes.Equal(head, gzipMagic) {
		gz, err := gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, nil, fmt.Errorf("opening gzip stream %s: %w", path, err)
		}
		cleanup := func() error {
			gz.Close()
			return file.Close()
		}
		return gz, cleanup, nil
	}

	return file, file.Close, nil
}

// StripCompression removes a trailing .gz from a path.
func StripCompression(path string) string {
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		return path[:len(path)-3]
	}
	return path
}

// BaseFormat extracts the lower-cased format extension after
// stripping compression: "sales.csv.gz" yields ".csv".
func BaseFormat(path string) string {
	return strings.ToLower(filepath.Ext(StripCompression(path)))
}

// FileSHA256 returns the hex digest of a file's raw contents. The
// bytes are hashed as stored, without decompression, so the digest
// matches external checksum tools.
func FileSHA256(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
