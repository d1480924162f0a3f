package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"surveyforge/internal/observability"
	"surveyforge/pkg/errors"
	"surveyforge/pkg/models"
)

const maxOffenderSamples = 5

// Offender records one structurally suspect line from the pre-parse scan.
type Offender struct {
	Line    int    `json:"line"`
	Fields  int    `json:"fields"`
	Preview string `json:"preview"`
}

// Scan summarizes the structural pre-parse pass over one source file.
type Scan struct {
	Encoding      string      `json:"encoding"`
	TotalLines    int         `json:"total_lines"`
	FieldCounts   map[int]int `json:"field_counts"`
	DominantWidth int         `json:"dominant_width"`
	RaggedRows    int         `json:"ragged_rows"`
	Offenders     []Offender  `json:"offenders,omitempty"`
}

// RawDataset is one survey year as read from disk, before any schema
// harmonization. Rows hold raw cell strings in header order.
type RawDataset struct {
	Year   int
	Path   string
	Label  string
	Header []string
	Rows   [][]string
	Scan   Scan
}

// Reader loads survey CSV exports with encoding fallback and a
// structural scan that flags ragged lines before parsing.
type Reader struct {
	logger  *observability.Logger
	metrics *observability.RunMetrics
}

// NewReader creates a Reader. Both arguments may be nil.
func NewReader(logger *observability.Logger, metrics *observability.RunMetrics) *Reader {
	if logger == nil {
		logger = observability.GetDefaultLogger()
	}
	return &Reader{logger: logger, metrics: metrics}
}

// Read loads one configured dataset. A missing, unreadable, or empty
// source is fatal: the run must not proceed with partial inputs.
func (r *Reader) Read(ds models.Dataset) (*RawDataset, error) {
	info, err := os.Stat(ds.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FatalInputError(
				fmt.Sprintf("source file for survey year %d not found", ds.Year), ds.Path, nil)
		}
		return nil, errors.FatalInputError(
			fmt.Sprintf("source file for survey year %d is not readable", ds.Year), ds.Path, err)
	}
	if info.Size() == 0 {
		return nil, errors.New(errors.ErrCodeSourceEmpty,
			fmt.Sprintf("source file for survey year %d is empty", ds.Year)).
			WithContext("path", ds.Path).
			WithSeverity(errors.SeverityCritical)
	}

	data, err := os.ReadFile(ds.Path)
	if err != nil {
		return nil, errors.FatalInputError(
			fmt.Sprintf("failed to read source file for survey year %d", ds.Year), ds.Path, err)
	}

	text, encoding := decodeBytes(data)
	if encoding != EncodingUTF8 {
		r.logger.WarnWithFields("Source required encoding fallback", map[string]interface{}{
			"path":     ds.Path,
			"year":     ds.Year,
			"encoding": encoding,
		})
	}

	scan := scanStructure(text)
	scan.Encoding = encoding

	header, rows, ragged, err := parseCSV(text)
	if err != nil {
		return nil, errors.FatalInputError(
			fmt.Sprintf("failed to parse source file for survey year %d", ds.Year), ds.Path, err)
	}
	if len(header) == 0 || len(rows) == 0 {
		return nil, errors.New(errors.ErrCodeSourceEmpty,
			fmt.Sprintf("source file for survey year %d has no data rows", ds.Year)).
			WithContext("path", ds.Path).
			WithSeverity(errors.SeverityCritical)
	}
	scan.RaggedRows = ragged

	if r.metrics != nil {
		r.metrics.RowsRead.Add(float64(len(rows)))
		r.metrics.RaggedRows.Add(float64(ragged))
	}
	r.logger.InfoWithFields("Loaded survey dataset", map[string]interface{}{
		"year":     ds.Year,
		"path":     ds.Path,
		"rows":     len(rows),
		"columns":  len(header),
		"ragged":   ragged,
		"encoding": encoding,
	})

	return &RawDataset{
		Year:   ds.Year,
		Path:   ds.Path,
		Label:  ds.Label,
		Header: header,
		Rows:   rows,
		Scan:   scan,
	}, nil
}

// ReadAll loads every configured dataset in year order. The first fatal
// input error aborts the whole batch.
func (r *Reader) ReadAll(datasets []models.Dataset) ([]*RawDataset, error) {
	sorted := make([]models.Dataset, len(datasets))
	copy(sorted, datasets)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Year < sorted[j].Year })

	out := make([]*RawDataset, 0, len(sorted))
	for _, ds := range sorted {
		raw, err := r.Read(ds)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

// scanStructure walks the text line by line counting top-level comma
// separations. Quoted fields spanning lines make this an approximation,
// which is all a drift report needs: the histogram shows whether the
// file agrees with itself about its own width.
func scanStructure(text string) Scan {
	scan := Scan{FieldCounts: make(map[int]int)}

	lines := strings.Split(text, "\n")
	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		scan.TotalLines++
		scan.FieldCounts[lineFieldCount(line)]++
	}

	best, bestCount := 0, 0
	for width, count := range scan.FieldCounts {
		if count > bestCount || (count == bestCount && width > best) {
			best, bestCount = width, count
		}
	}
	scan.DominantWidth = best

	for i, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if line == "" || i == 0 {
			continue
		}
		if width := lineFieldCount(line); width != best {
			if len(scan.Offenders) < maxOffenderSamples {
				scan.Offenders = append(scan.Offenders, Offender{
					Line:    i + 1,
					Fields:  width,
					Preview: truncateLine(line, 80),
				})
			}
		}
	}
	return scan
}

// lineFieldCount counts commas outside double quotes, plus one.
func lineFieldCount(line string) int {
	count := 1
	inQuotes := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				count++
			}
		}
	}
	return count
}

// parseCSV reads header and rows, dropping rows whose field count does
// not match the header. Dropped rows are counted, not fatal.
func parseCSV(text string) (header []string, rows [][]string, ragged int, err error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = false

	header, err = reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil, 0, nil
		}
		return nil, nil, 0, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	for {
		record, readErr := reader.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, nil, ragged, readErr
		}
		if len(record) != len(header) {
			ragged++
			continue
		}
		rows = append(rows, record)
	}
	return header, rows, ragged, nil
}

func truncateLine(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
