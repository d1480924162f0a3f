package harmonize

import (
	"fmt"

	"surveyforge/internal/ingest"
	"surveyforge/internal/inventory"
	"surveyforge/internal/observability"
	"surveyforge/pkg/errors"
	"surveyforge/pkg/models"
)

// Record is one harmonized respondent row
type Record struct {
	Year       int
	ResponseID string
	Values     map[string]Value
}

// Value returns the record's value for a canonical field, null when
// the field was never set.
func (r Record) Value(field string) Value {
	return r.Values[field]
}

// Drift records one canonical field that found no source column in one
// survey year. Drift is reported and recovered, never fatal.
type Drift struct {
	Year  int    `json:"year"`
	Field string `json:"field"`
}

// Table is the unified harmonized dataset across all survey years.
// Derived holds category columns appended after harmonization.
type Table struct {
	Fields  []models.FieldSpec
	Derived []string
	Records []Record
}

// FieldNames returns canonical field names in mapping order
func (t *Table) FieldNames() []string {
	names := make([]string, 0, len(t.Fields))
	for _, f := range t.Fields {
		names = append(names, f.Name)
	}
	return names
}

// ColumnNames returns all output columns, schema fields then derived
func (t *Table) ColumnNames() []string {
	return append(t.FieldNames(), t.Derived...)
}

// MultiselectFields returns the names of multiselect-typed fields
func (t *Table) MultiselectFields() []string {
	var names []string
	for _, f := range t.Fields {
		if f.Type == models.FieldTypeMultiselect {
			names = append(names, f.Name)
		}
	}
	return names
}

// Harmonizer maps heterogeneous yearly schemas onto the canonical
// field set defined by the mapping configuration.
type Harmonizer struct {
	mapping *models.MappingConfig
	coercer *Coercer
	logger  *observability.Logger
	metrics *observability.RunMetrics
	handler *errors.ErrorHandler
}

// NewHarmonizer creates a harmonizer. logger, metrics and handler may
// be nil.
func NewHarmonizer(mapping *models.MappingConfig, missingToken string, logger *observability.Logger, metrics *observability.RunMetrics) *Harmonizer {
	if missingToken == "" {
		missingToken = models.DefaultMissingToken
	}
	if logger == nil {
		logger = observability.GetDefaultLogger()
	}
	return &Harmonizer{
		mapping: mapping,
		coercer: NewCoercer(missingToken),
		logger:  logger,
		metrics: metrics,
	}
}

// SetErrorHandler routes recovered drift and parse errors through the
// given handler so they land in the error log.
func (h *Harmonizer) SetErrorHandler(handler *errors.ErrorHandler) {
	h.handler = handler
}

// Harmonize converts all raw datasets into one unified table. Alias
// resolution happens once per dataset, then every row is coerced field
// by field. Every input row yields exactly one record; unresolvable
// fields and unparseable cells become nulls, not dropped rows.
func (h *Harmonizer) Harmonize(datasets []*ingest.RawDataset) (*Table, []Drift) {
	table := &Table{Fields: h.mapping.Fields}
	var drifts []Drift

	for _, raw := range datasets {
		resolution, missing := h.resolve(raw)
		for _, field := range missing {
			drifts = append(drifts, Drift{Year: raw.Year, Field: field})
		}
		h.harmonizeDataset(raw, resolution, table)
	}

	if h.metrics != nil {
		h.metrics.RecordsHarmonized.Add(float64(len(table.Records)))
	}
	h.logger.InfoWithFields("Harmonized datasets", map[string]interface{}{
		"datasets": len(datasets),
		"records":  len(table.Records),
		"drifts":   len(drifts),
	})
	return table, drifts
}

// resolve maps canonical fields to column positions for one dataset
func (h *Harmonizer) resolve(raw *ingest.RawDataset) (map[string]int, []string) {
	position := make(map[string]int, len(raw.Header))
	for i, col := range raw.Header {
		if _, seen := position[col]; !seen {
			position[col] = i
		}
	}

	resolution := make(map[string]int, len(h.mapping.Fields))
	var missing []string

	for _, spec := range h.mapping.Fields {
		col, ok := inventory.ResolveAlias(spec, raw.Header)
		if !ok {
			missing = append(missing, spec.Name)
			h.reportDrift(spec.Name, raw.Year)
			continue
		}
		resolution[spec.Name] = position[col]
	}
	return resolution, missing
}

func (h *Harmonizer) harmonizeDataset(raw *ingest.RawDataset, resolution map[string]int, table *Table) {
	idPos, hasID := resolution[models.FieldResponseID]

	for i, row := range raw.Rows {
		record := Record{
			Year:   raw.Year,
			Values: make(map[string]Value, len(h.mapping.Fields)),
		}

		for _, spec := range h.mapping.Fields {
			pos, ok := resolution[spec.Name]
			if !ok {
				continue
			}
			record.Values[spec.Name] = h.coerce(spec, row[pos], raw.Year)
		}

		// A respondent without a usable id gets a synthesized one so
		// exploded selections can still join back to the record.
		if hasID {
			if v := h.coercer.Text(row[idPos]); !v.IsNull() {
				record.ResponseID = v.String()
			}
		}
		if record.ResponseID == "" {
			record.ResponseID = fmt.Sprintf("%d-%06d", raw.Year, i+1)
		}
		record.Values[models.FieldResponseID] = Text(record.ResponseID)

		table.Records = append(table.Records, record)
	}
}

func (h *Harmonizer) coerce(spec models.FieldSpec, raw string, year int) Value {
	switch spec.Type {
	case models.FieldTypeNumber:
		v, ok := h.coercer.Number(raw)
		if !ok {
			h.reportParseFailure(spec.Name, raw, year)
		}
		return v
	case models.FieldTypeYears:
		v, ok := h.coercer.Years(raw)
		if !ok {
			h.reportParseFailure(spec.Name, raw, year)
		}
		return v
	default:
		return h.coercer.Text(raw)
	}
}

func (h *Harmonizer) reportDrift(field string, year int) {
	if h.metrics != nil {
		h.metrics.DriftEvents.Inc()
	}
	if h.handler != nil {
		h.handler.Handle(errors.DriftError(field, year))
	}
	h.logger.WarnWithFields("No source column for field", map[string]interface{}{
		"field": field,
		"year":  year,
	})
}

func (h *Harmonizer) reportParseFailure(field, raw string, year int) {
	if h.metrics != nil {
		h.metrics.ParseFailures.Inc()
	}
	if h.handler != nil {
		h.handler.Handle(errors.ParseError(field, raw))
	}
	h.logger.DebugWithFields("Cell failed coercion", map[string]interface{}{
		"field": field,
		"year":  year,
	})
}
