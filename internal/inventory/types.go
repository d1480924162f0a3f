package inventory

import "time"

// ColumnKind is the inferred shape of a raw source column
type ColumnKind string

const (
	ColumnKindText        ColumnKind = "text"
	ColumnKindNumeric     ColumnKind = "numeric"
	ColumnKindMultiselect ColumnKind = "multiselect"
	ColumnKindEmpty       ColumnKind = "empty"
)

// Detection thresholds for column kind inference
const (
	numericThreshold     = 0.80
	multiselectThreshold = 0.20
	maxExampleValues     = 3

	// A resolved column this sparse is flagged in the matrix; it will
	// harmonize, but almost every record comes out null.
	emptyCellPct    = 98.0
	emptyCellSuffix = " (empty)"
)

// ColumnProfile describes one raw column of one survey year
type ColumnProfile struct {
	Name        string     `json:"name"`
	Position    int        `json:"position"`
	Kind        ColumnKind `json:"kind"`
	NullPct     float64    `json:"null_pct"`
	UniqueCount int        `json:"unique_count"`
	Examples    []string   `json:"examples,omitempty"`
}

// DatasetProfile describes one survey year's raw file
type DatasetProfile struct {
	Year          int             `json:"year"`
	Path          string          `json:"path"`
	Label         string          `json:"label,omitempty"`
	Encoding      string          `json:"encoding"`
	Rows          int             `json:"rows"`
	ColumnCount   int             `json:"column_count"`
	RaggedRows    int             `json:"ragged_rows"`
	DominantWidth int             `json:"dominant_width"`
	Columns       []ColumnProfile `json:"columns"`
}

// AvailabilityMatrix records which canonical field resolves to which
// source column, per survey year. An empty cell means the field has no
// source in that year and will harmonize to null; a resolved column
// that is nearly all null carries an "(empty)" marker.
type AvailabilityMatrix struct {
	Fields []string                  `json:"fields"`
	Years  []int                     `json:"years"`
	Cells  map[string]map[int]string `json:"cells"`
}

// Resolved returns the source column for a field and year, with ok
// reporting whether the field is present in that year at all.
func (m *AvailabilityMatrix) Resolved(field string, year int) (string, bool) {
	byYear, ok := m.Cells[field]
	if !ok {
		return "", false
	}
	col, ok := byYear[year]
	if !ok || col == "" {
		return "", false
	}
	return col, true
}

// MissingCount returns how many field/year cells have no source column
func (m *AvailabilityMatrix) MissingCount() int {
	missing := 0
	for _, field := range m.Fields {
		for _, year := range m.Years {
			if _, ok := m.Resolved(field, year); !ok {
				missing++
			}
		}
	}
	return missing
}

// Inventory is the full profile of all configured raw datasets
type Inventory struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Datasets    []DatasetProfile   `json:"datasets"`
	Matrix      AvailabilityMatrix `json:"availability"`
}

// ReportFormat identifies an inventory report output format
type ReportFormat string

const (
	ReportFormatText     ReportFormat = "text"
	ReportFormatMarkdown ReportFormat = "markdown"
	ReportFormatJSON     ReportFormat = "json"
)
