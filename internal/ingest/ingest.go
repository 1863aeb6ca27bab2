// Package ingest reads spreadsheet (CSV/TSV) files into period tables.
// The delimiter is sniffed from the file extension and first line, a
// header row is required, and empty cells are preserved as empty strings
// so absence survives the trip into the registry.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/crosspoll/harmonizer/pkg/constants"
	"github.com/crosspoll/harmonizer/pkg/errors"
	"github.com/crosspoll/harmonizer/pkg/tables"
)

// ReadFile reads a CSV or TSV file into a table for the given period.
func ReadFile(path string, period tables.Period) (*tables.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapIO("open", path, err)
	}
	defer func() { _ = f.Close() }()

	delimiter, err := sniffDelimiter(f, path)
	if err != nil {
		return nil, errors.WrapParse("csv", path, err)
	}

	t, err := Read(f, delimiter, period)
	if err != nil {
		return nil, errors.WrapParse("csv", path, err)
	}
	return t, nil
}

// Read parses delimiter-separated rows into a table. The first record is
// the header; duplicate or empty header fields are refused.
func Read(r io.Reader, delimiter rune, period tables.Period) (*tables.Table, error) {
	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("file is empty, header row required")
	}
	if err != nil {
		return nil, err
	}

	columns := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			return nil, fmt.Errorf("header field %d is empty", i+1)
		}
		if len(h) > constants.MaxColumnNameLength {
			return nil, fmt.Errorf("header field %d exceeds %d characters", i+1, constants.MaxColumnNameLength)
		}
		if seen[h] {
			return nil, fmt.Errorf("duplicate header field %q", h)
		}
		seen[h] = true
		columns[i] = h
	}

	t := tables.New(period, columns...)
	for row := 1; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) > len(columns) {
			return nil, fmt.Errorf("row %d has %d fields, header has %d", row, len(record), len(columns))
		}
		t.AppendValues(record...)
	}
	return t, nil
}

// sniffDelimiter picks the delimiter from the extension, falling back to
// counting candidates in the first line. The reader is rewound after.
func sniffDelimiter(f *os.File, path string) (rune, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsv", ".tab":
		return '\t', nil
	}

	buf := make([]byte, 4096)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return 0, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}

	line := string(buf[:n])
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}

	best, bestCount := ',', strings.Count(line, ",")
	for _, candidate := range []struct {
		r rune
		c int
	}{
		{';', strings.Count(line, ";")},
		{'\t', strings.Count(line, "\t")},
		{'|', strings.Count(line, "|")},
	} {
		if candidate.c > bestCount {
			best, bestCount = candidate.r, candidate.c
		}
	}
	return best, nil
}
