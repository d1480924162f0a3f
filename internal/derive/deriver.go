package derive

import (
	"strings"

	"surveyforge/internal/harmonize"
	"surveyforge/internal/observability"
	"surveyforge/pkg/models"
)

// Bucket labels for professional coding experience. Bin edges are
// right-open, so 2 years lands in "2-4" and 20 in "20+".
const (
	BucketJunior  = "0-1"
	BucketEarly   = "2-4"
	BucketMid     = "5-9"
	BucketSenior  = "10-19"
	BucketVeteran = "20+"
	BucketUnknown = "Unknown"
)

// Deriver appends categorical feature columns to harmonized records.
// Classification is total: every record gets a value for every derived
// column, with unmapped answers landing in the category's default.
type Deriver struct {
	categories []models.CategorySpec
	logger     *observability.Logger
}

// NewDeriver creates a deriver from the mapping's category specs
func NewDeriver(mapping *models.MappingConfig, logger *observability.Logger) *Deriver {
	if logger == nil {
		logger = observability.GetDefaultLogger()
	}
	return &Deriver{categories: mapping.Categories, logger: logger}
}

// Apply mutates every record in place, adding one value per category
// spec plus the experience bucket, and registers the derived column
// names on the table.
func (d *Deriver) Apply(table *harmonize.Table) {
	for _, spec := range d.categories {
		table.Derived = append(table.Derived, spec.Name)
	}
	table.Derived = append(table.Derived, models.DerivedExperience)

	for i := range table.Records {
		record := &table.Records[i]
		for _, spec := range d.categories {
			record.Values[spec.Name] = harmonize.Text(Classify(spec, record.Value(spec.Source)))
		}
		record.Values[models.DerivedExperience] = harmonize.Text(BucketExperience(record.Value(models.FieldYearsCodePro)))
	}

	d.logger.InfoWithFields("Derived feature columns", map[string]interface{}{
		"columns": len(table.Derived),
		"records": len(table.Records),
	})
}

// Classify runs a category's rules against a harmonized value.
// Rules are ordered most specific first and the first match wins, so a
// category can put "don't plan to use" ahead of the broader "plan" rule.
// Null input and unmatched answers both yield the category's default.
func Classify(spec models.CategorySpec, v harmonize.Value) string {
	if v.IsNull() {
		return spec.Default
	}
	answer := strings.ToLower(strings.TrimSpace(v.String()))
	if answer == "" {
		return spec.Default
	}

	for _, rule := range spec.Rules {
		match := strings.ToLower(rule.Value)
		switch rule.Match {
		case models.MatchEquals:
			if answer == match {
				return rule.Category
			}
		case models.MatchPrefix:
			if strings.HasPrefix(answer, match) {
				return rule.Category
			}
		case models.MatchContains:
			if strings.Contains(answer, match) {
				return rule.Category
			}
		}
	}
	return spec.Default
}

// BucketExperience maps professional coding years to a bucket label.
// Null and negative values are unclassifiable, not errors.
func BucketExperience(v harmonize.Value) string {
	years, ok := v.Float()
	if !ok || years < 0 {
		return BucketUnknown
	}
	switch {
	case years < 2:
		return BucketJunior
	case years < 5:
		return BucketEarly
	case years < 10:
		return BucketMid
	case years < 20:
		return BucketSenior
	default:
		return BucketVeteran
	}
}
