package explode

import (
	"strings"

	"surveyforge/internal/harmonize"
	"surveyforge/internal/observability"
	"surveyforge/pkg/models"
)

// Selection is one exploded multi-select answer token
type Selection struct {
	Year       int
	ResponseID string
	Field      string
	Token      string
}

// Exploder flattens semicolon-delimited multi-select answers into one
// row per selected option.
type Exploder struct {
	missingToken string
	logger       *observability.Logger
	metrics      *observability.RunMetrics
}

// NewExploder creates an exploder. logger and metrics may be nil.
func NewExploder(missingToken string, logger *observability.Logger, metrics *observability.RunMetrics) *Exploder {
	if missingToken == "" {
		missingToken = models.DefaultMissingToken
	}
	if logger == nil {
		logger = observability.GetDefaultLogger()
	}
	return &Exploder{missingToken: missingToken, logger: logger, metrics: metrics}
}

// Explode produces selections for every multiselect field of every
// record. A respondent with no usable selections simply contributes no
// rows; the harmonized record itself is untouched.
func (e *Exploder) Explode(table *harmonize.Table) []Selection {
	fields := table.MultiselectFields()
	var selections []Selection

	for _, record := range table.Records {
		for _, field := range fields {
			for _, token := range e.Tokens(record.Value(field)) {
				selections = append(selections, Selection{
					Year:       record.Year,
					ResponseID: record.ResponseID,
					Field:      field,
					Token:      token,
				})
			}
		}
	}

	if e.metrics != nil {
		e.metrics.SelectionsExploded.Add(float64(len(selections)))
	}
	e.logger.InfoWithFields("Exploded multi-select answers", map[string]interface{}{
		"fields":     len(fields),
		"selections": len(selections),
	})
	return selections
}

// Tokens splits one multi-select cell into its usable tokens. Tokens
// are trimmed; empties and the missing placeholder are dropped.
func (e *Exploder) Tokens(v harmonize.Value) []string {
	if v.IsNull() {
		return nil
	}
	var tokens []string
	for _, part := range strings.Split(v.String(), ";") {
		token := strings.TrimSpace(part)
		if token == "" || strings.EqualFold(token, e.missingToken) {
			continue
		}
		tokens = append(tokens, token)
	}
	return tokens
}
