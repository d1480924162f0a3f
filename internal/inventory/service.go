package inventory

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"surveyforge/internal/ingest"
	"surveyforge/internal/observability"
	"surveyforge/pkg/models"
)

// Service profiles raw datasets and builds the field availability
// matrix that the harmonizer will later act on.
type Service struct {
	missingToken string
	logger       *observability.Logger
}

// NewService creates an inventory service. missingToken is the survey
// export's placeholder for absent answers, compared case-insensitively.
func NewService(missingToken string, logger *observability.Logger) *Service {
	if missingToken == "" {
		missingToken = models.DefaultMissingToken
	}
	if logger == nil {
		logger = observability.GetDefaultLogger()
	}
	return &Service{missingToken: missingToken, logger: logger}
}

// Build profiles every dataset and resolves the availability matrix
// against the mapping configuration.
func (s *Service) Build(datasets []*ingest.RawDataset, mapping *models.MappingConfig) *Inventory {
	inv := &Inventory{GeneratedAt: time.Now()}

	for _, raw := range datasets {
		profile := s.ProfileDataset(raw)
		inv.Datasets = append(inv.Datasets, profile)
	}
	sort.Slice(inv.Datasets, func(i, j int) bool {
		return inv.Datasets[i].Year < inv.Datasets[j].Year
	})

	inv.Matrix = s.buildMatrix(datasets, inv.Datasets, mapping)

	s.logger.InfoWithFields("Built dataset inventory", map[string]interface{}{
		"datasets":      len(inv.Datasets),
		"fields":        len(inv.Matrix.Fields),
		"missing_cells": inv.Matrix.MissingCount(),
	})
	return inv
}

// ProfileDataset computes per-column statistics for one raw dataset
func (s *Service) ProfileDataset(raw *ingest.RawDataset) DatasetProfile {
	profile := DatasetProfile{
		Year:          raw.Year,
		Path:          raw.Path,
		Label:         raw.Label,
		Encoding:      raw.Scan.Encoding,
		Rows:          len(raw.Rows),
		ColumnCount:   len(raw.Header),
		RaggedRows:    raw.Scan.RaggedRows,
		DominantWidth: raw.Scan.DominantWidth,
	}

	for pos, name := range raw.Header {
		profile.Columns = append(profile.Columns, s.profileColumn(name, pos, raw.Rows))
	}
	return profile
}

func (s *Service) profileColumn(name string, pos int, rows [][]string) ColumnProfile {
	col := ColumnProfile{Name: name, Position: pos}

	counts := make(map[string]int)
	nulls := 0
	numeric := 0
	multiselect := 0
	nonNull := 0

	for _, row := range rows {
		raw := strings.TrimSpace(row[pos])
		if raw == "" || strings.EqualFold(raw, s.missingToken) {
			nulls++
			continue
		}
		nonNull++
		counts[raw]++
		if looksNumeric(raw) {
			numeric++
		}
		if strings.Contains(raw, ";") {
			multiselect++
		}
	}

	if len(rows) > 0 {
		col.NullPct = float64(nulls) / float64(len(rows)) * 100
	}
	col.UniqueCount = len(counts)
	col.Examples = topValues(counts, maxExampleValues)

	switch {
	case nonNull == 0:
		col.Kind = ColumnKindEmpty
	case float64(multiselect)/float64(nonNull) > multiselectThreshold:
		col.Kind = ColumnKindMultiselect
	case float64(numeric)/float64(nonNull) >= numericThreshold:
		col.Kind = ColumnKindNumeric
	default:
		col.Kind = ColumnKindText
	}
	return col
}

// buildMatrix resolves each canonical field against each year's header
// using the mapping's alias priority order. Resolved columns whose
// profile is above the empty threshold are marked so a reader can tell
// "present but blank" from "present".
func (s *Service) buildMatrix(datasets []*ingest.RawDataset, profiles []DatasetProfile, mapping *models.MappingConfig) AvailabilityMatrix {
	matrix := AvailabilityMatrix{Cells: make(map[string]map[int]string)}

	nullPct := make(map[int]map[string]float64, len(profiles))
	for _, profile := range profiles {
		byCol := make(map[string]float64, len(profile.Columns))
		for _, col := range profile.Columns {
			byCol[col.Name] = col.NullPct
		}
		nullPct[profile.Year] = byCol
	}

	for _, spec := range mapping.Fields {
		matrix.Fields = append(matrix.Fields, spec.Name)
		matrix.Cells[spec.Name] = make(map[int]string)
	}
	for _, raw := range datasets {
		matrix.Years = append(matrix.Years, raw.Year)
		for _, spec := range mapping.Fields {
			col, ok := ResolveAlias(spec, raw.Header)
			if !ok {
				continue
			}
			cell := col
			if nullPct[raw.Year][col] > emptyCellPct {
				cell += emptyCellSuffix
			}
			matrix.Cells[spec.Name][raw.Year] = cell
		}
	}
	sort.Ints(matrix.Years)
	return matrix
}

// ResolveAlias finds the first alias of spec present in header. Exact
// matches win; a case-insensitive match is accepted as a fallback so a
// recased export does not read as schema drift.
func ResolveAlias(spec models.FieldSpec, header []string) (string, bool) {
	for _, alias := range spec.Aliases {
		for _, col := range header {
			if col == alias {
				return col, true
			}
		}
	}
	for _, alias := range spec.Aliases {
		for _, col := range header {
			if strings.EqualFold(col, alias) {
				return col, true
			}
		}
	}
	return "", false
}

// looksNumeric reports whether a raw cell parses as a number after
// thousands separators are removed.
func looksNumeric(s string) bool {
	cleaned := strings.ReplaceAll(s, ",", "")
	_, err := strconv.ParseFloat(cleaned, 64)
	return err == nil
}

// topValues returns up to n most frequent values, ties broken
// alphabetically so output is stable.
func topValues(counts map[string]int, n int) []string {
	type pair struct {
		value string
		count int
	}
	pairs := make([]pair, 0, len(counts))
	for v, c := range counts {
		pairs = append(pairs, pair{v, c})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].value < pairs[j].value
	})
	if len(pairs) > n {
		pairs = pairs[:n]
	}
	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, p.value)
	}
	return out
}
