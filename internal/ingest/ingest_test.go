package ingest_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosspoll/harmonizer/internal/ingest"
	"github.com/crosspoll/harmonizer/pkg/tables"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRead(t *testing.T) {
	input := strings.NewReader("year,gender,q1\n2020,f,4\n2020,m,\n")

	tbl, err := ingest.Read(input, ',', "2020")
	require.NoError(t, err)

	assert.Equal(t, tables.Period("2020"), tbl.Period())
	assert.Equal(t, []string{"year", "gender", "q1"}, tbl.Columns())
	require.Equal(t, 2, tbl.Len())

	row0, err := tbl.Row(0)
	require.NoError(t, err)
	assert.Equal(t, "4", row0.Value("q1"))

	// Empty cells stay absent.
	row1, err := tbl.Row(1)
	require.NoError(t, err)
	assert.False(t, row1.Has("q1"))
}

func TestReadRefusesMissingHeader(t *testing.T) {
	_, err := ingest.Read(strings.NewReader(""), ',', "2020")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header")
}

func TestReadRefusesDuplicateHeader(t *testing.T) {
	_, err := ingest.Read(strings.NewReader("year,gender,gender\n"), ',', "2020")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gender")
}

func TestReadRefusesEmptyHeaderField(t *testing.T) {
	_, err := ingest.Read(strings.NewReader("year,,q1\n"), ',', "2020")
	assert.Error(t, err)
}

func TestReadRefusesOverlongRecord(t *testing.T) {
	// A record with more fields than the header would otherwise lose its
	// trailing cells.
	input := strings.NewReader("respondent_id,gender\nr1,f,18-24\n")

	_, err := ingest.Read(input, ',', "2020")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 1")
	assert.Contains(t, err.Error(), "3 fields")
}

func TestReadRefusesOverlongHeaderField(t *testing.T) {
	long := strings.Repeat("x", 300)
	_, err := ingest.Read(strings.NewReader("year,"+long+"\n"), ',', "2020")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestReadFileCSV(t *testing.T) {
	path := writeFile(t, "2019.csv", "year,gndr\n2019,f\n")

	tbl, err := ingest.ReadFile(path, "2019")
	require.NoError(t, err)
	assert.Equal(t, []string{"year", "gndr"}, tbl.Columns())
	assert.Equal(t, 1, tbl.Len())
}

func TestReadFileTSVByExtension(t *testing.T) {
	path := writeFile(t, "2019.tsv", "year\tgndr\n2019\tf\n")

	tbl, err := ingest.ReadFile(path, "2019")
	require.NoError(t, err)
	assert.Equal(t, []string{"year", "gndr"}, tbl.Columns())
}

func TestReadFileSniffsSemicolon(t *testing.T) {
	path := writeFile(t, "2019.csv", "year;gndr;age_grp\n2019;f;18-24\n")

	tbl, err := ingest.ReadFile(path, "2019")
	require.NoError(t, err)
	assert.Equal(t, []string{"year", "gndr", "age_grp"}, tbl.Columns())
}

func TestReadFileMissing(t *testing.T) {
	_, err := ingest.ReadFile(filepath.Join(t.TempDir(), "nope.csv"), "2019")
	assert.Error(t, err)
}
