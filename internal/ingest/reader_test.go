package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surveyforge/internal/observability"
	"surveyforge/pkg/errors"
	"surveyforge/pkg/models"
)

func writeSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReadDataset(t *testing.T) {
	path := writeSource(t, "2024.csv",
		"ResponseId,Country,AISelect\n"+
			"1,Germany,Yes\n"+
			"2,Brazil,No\n")

	reader := NewReader(nil, nil)
	ds, err := reader.Read(models.Dataset{Year: 2024, Path: path})
	require.NoError(t, err)

	assert.Equal(t, 2024, ds.Year)
	assert.Equal(t, []string{"ResponseId", "Country", "AISelect"}, ds.Header)
	assert.Len(t, ds.Rows, 2)
	assert.Equal(t, "Germany", ds.Rows[0][1])
	assert.Equal(t, EncodingUTF8, ds.Scan.Encoding)
	assert.Equal(t, 0, ds.Scan.RaggedRows)
}

func TestReadMissingFileIsFatal(t *testing.T) {
	reader := NewReader(nil, nil)
	_, err := reader.Read(models.Dataset{Year: 2024, Path: "/nonexistent/2024.csv"})
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
	assert.Equal(t, errors.ErrCodeSourceMissing, errors.GetErrorCode(err))
}

func TestReadEmptyFileIsFatal(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero bytes", ""},
		{"header only", "ResponseId,Country\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSource(t, "empty.csv", tt.content)
			reader := NewReader(nil, nil)
			_, err := reader.Read(models.Dataset{Year: 2023, Path: path})
			require.Error(t, err)
			assert.True(t, errors.IsFatal(err))
			assert.Equal(t, errors.ErrCodeSourceEmpty, errors.GetErrorCode(err))
		})
	}
}

func TestRaggedRowsAreDroppedNotFatal(t *testing.T) {
	path := writeSource(t, "ragged.csv",
		"ResponseId,Country,AISelect\n"+
			"1,Germany,Yes\n"+
			"2,Brazil\n"+
			"3,India,No,extra\n"+
			"4,France,Yes\n")

	metrics := observability.NewRunMetrics()
	reader := NewReader(nil, metrics)
	ds, err := reader.Read(models.Dataset{Year: 2024, Path: path})
	require.NoError(t, err)

	assert.Len(t, ds.Rows, 2)
	assert.Equal(t, 2, ds.Scan.RaggedRows)
	assert.Equal(t, float64(2), metrics.RaggedRows.Value())
	assert.Equal(t, float64(2), metrics.RowsRead.Value())
}

func TestQuotedFieldsSurviveParsing(t *testing.T) {
	path := writeSource(t, "quoted.csv",
		"ResponseId,DevType,CompTotal\n"+
			`1,"Developer, full-stack","85,000"`+"\n")

	reader := NewReader(nil, nil)
	ds, err := reader.Read(models.Dataset{Year: 2024, Path: path})
	require.NoError(t, err)
	require.Len(t, ds.Rows, 1)
	assert.Equal(t, "Developer, full-stack", ds.Rows[0][1])
	assert.Equal(t, "85,000", ds.Rows[0][2])
}

func TestEncodingFallback(t *testing.T) {
	tests := []struct {
		name     string
		content  []byte
		encoding string
		cell     string
	}{
		{
			name:     "utf-8 with BOM",
			content:  []byte("\xEF\xBB\xBFResponseId,Country\n1,Espa\xC3\xB1a\n"),
			encoding: EncodingUTF8BOM,
			cell:     "España",
		},
		{
			name:     "latin-1",
			content:  []byte("ResponseId,Country\n1,Espa\xF1a\n"),
			encoding: EncodingLatin1,
			cell:     "España",
		},
		{
			name:     "windows-1252",
			content:  []byte("ResponseId,Country\n1,C\x94te d'Ivoire\n"),
			encoding: EncodingCP1252,
			cell:     "C”te d'Ivoire",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "enc.csv")
			require.NoError(t, os.WriteFile(path, tt.content, 0644))

			reader := NewReader(nil, nil)
			ds, err := reader.Read(models.Dataset{Year: 2022, Path: path})
			require.NoError(t, err)
			assert.Equal(t, tt.encoding, ds.Scan.Encoding)
			require.Len(t, ds.Rows, 1)
			assert.Equal(t, tt.cell, ds.Rows[0][1])
		})
	}
}

func TestStructuralScan(t *testing.T) {
	scan := scanStructure(
		"a,b,c\n" +
			"1,2,3\n" +
			"4,5\n" +
			"\"x,y\",6,7\n")

	assert.Equal(t, 4, scan.TotalLines)
	assert.Equal(t, 3, scan.DominantWidth)
	assert.Equal(t, 3, scan.FieldCounts[3])
	assert.Equal(t, 1, scan.FieldCounts[2])
	require.Len(t, scan.Offenders, 1)
	assert.Equal(t, 3, scan.Offenders[0].Line)
	assert.Equal(t, 2, scan.Offenders[0].Fields)
}

func TestReadAllSortsByYear(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.csv", "b.csv"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name),
			[]byte("ResponseId\n1\n"), 0644))
	}

	reader := NewReader(nil, nil)
	out, err := reader.ReadAll([]models.Dataset{
		{Year: 2024, Path: filepath.Join(dir, "b.csv")},
		{Year: 2022, Path: filepath.Join(dir, "a.csv")},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 2022, out[0].Year)
	assert.Equal(t, 2024, out[1].Year)
}
