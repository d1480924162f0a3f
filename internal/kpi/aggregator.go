package kpi

import (
	"math"
	"sort"
	"time"

	"surveyforge/internal/explode"
	"surveyforge/internal/harmonize"
	"surveyforge/internal/observability"
	"surveyforge/pkg/errors"
	"surveyforge/pkg/models"
)

// Aggregator reduces the harmonized table and exploded selections to
// the KPI result tables. Every reduction filters first, then groups,
// so outliers and unclassified respondents never leak into rates.
type Aggregator struct {
	regions *RegionMapper
	ceiling float64
	topN    int
	logger  *observability.Logger
	metrics *observability.RunMetrics
	handler *errors.ErrorHandler
}

// NewAggregator creates an aggregator. The region mapper is required;
// logger and metrics may be nil.
func NewAggregator(regions *RegionMapper, cfg models.Pipeline, logger *observability.Logger, metrics *observability.RunMetrics) *Aggregator {
	ceiling := cfg.Compensation.Ceiling
	if ceiling <= 0 {
		ceiling = models.DefaultCompensationCeiling
	}
	topN := cfg.TopN
	if topN <= 0 {
		topN = models.DefaultTopN
	}
	if logger == nil {
		logger = observability.GetDefaultLogger()
	}
	return &Aggregator{
		regions: regions,
		ceiling: ceiling,
		topN:    topN,
		logger:  logger,
		metrics: metrics,
	}
}

// SetErrorHandler routes recovered outlier rejections through the
// given handler.
func (a *Aggregator) SetErrorHandler(handler *errors.ErrorHandler) {
	a.handler = handler
}

// Aggregate computes all KPI tables for one run
func (a *Aggregator) Aggregate(table *harmonize.Table, selections []explode.Selection) *Results {
	results := &Results{
		GeneratedAt: time.Now(),
		Tables: []*ResultTable{
			a.adoptionByYear(table),
			a.adoptionByRegion(table),
			a.sentimentByYear(table),
			a.medianCompByAIUse(table),
			a.experienceDistribution(table),
			a.topSelections(selections),
		},
	}

	rows := 0
	for _, t := range results.Tables {
		rows += len(t.Rows)
	}
	if a.metrics != nil {
		a.metrics.TablesPublished.Add(float64(len(results.Tables)))
	}
	a.logger.InfoWithFields("Aggregated KPI tables", map[string]interface{}{
		"tables": len(results.Tables),
		"rows":   rows,
	})
	return results
}

// category reads a derived category column, mapping absent values to
// the unknown bucket so grouping stays total.
func category(record harmonize.Record, column string) string {
	v := record.Value(column)
	if v.IsNull() {
		return "Unknown"
	}
	return v.String()
}

func (a *Aggregator) region(record harmonize.Record) string {
	country := record.Value(models.FieldCountry)
	if country.IsNull() {
		return a.regions.Fallback()
	}
	return a.regions.Region(country.String())
}

// adoptionByYear computes the adoption rate trend. The denominator is
// respondents whose usage answer classified; a year where nobody
// classified keeps its row with a null rate rather than dividing by
// zero.
func (a *Aggregator) adoptionByYear(table *harmonize.Table) *ResultTable {
	type counts struct{ classified, adopters int }
	groups := make(map[int]*counts)

	for _, record := range table.Records {
		g := groups[record.Year]
		if g == nil {
			g = &counts{}
			groups[record.Year] = g
		}
		cat := category(record, models.CategoryAIUse)
		if cat == "Unknown" {
			continue
		}
		g.classified++
		if cat == "Yes" {
			g.adopters++
		}
	}

	result := &ResultTable{
		Name:    TableAdoptionByYear,
		Columns: []string{"year", "respondents", "adopters", "adoption_rate"},
		Types:   []ColumnType{ColumnNumber, ColumnNumber, ColumnNumber, ColumnNumber},
	}
	for _, year := range sortedYears(groups) {
		g := groups[year]
		result.Rows = append(result.Rows, []harmonize.Value{
			harmonize.Number(float64(year)),
			harmonize.Number(float64(g.classified)),
			harmonize.Number(float64(g.adopters)),
			rate(g.adopters, g.classified),
		})
	}
	return result
}

// adoptionByRegion is the same reduction keyed by year and region
func (a *Aggregator) adoptionByRegion(table *harmonize.Table) *ResultTable {
	type key struct {
		year   int
		region string
	}
	type counts struct{ classified, adopters int }
	groups := make(map[key]*counts)

	for _, record := range table.Records {
		k := key{year: record.Year, region: a.region(record)}
		g := groups[k]
		if g == nil {
			g = &counts{}
			groups[k] = g
		}
		cat := category(record, models.CategoryAIUse)
		if cat == "Unknown" {
			continue
		}
		g.classified++
		if cat == "Yes" {
			g.adopters++
		}
	}

	keys := make([]key, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year < keys[j].year
		}
		return keys[i].region < keys[j].region
	})

	result := &ResultTable{
		Name:    TableAdoptionByRegion,
		Columns: []string{"year", "region", "respondents", "adopters", "adoption_rate"},
		Types:   []ColumnType{ColumnNumber, ColumnText, ColumnNumber, ColumnNumber, ColumnNumber},
	}
	for _, k := range keys {
		g := groups[k]
		result.Rows = append(result.Rows, []harmonize.Value{
			harmonize.Number(float64(k.year)),
			harmonize.Text(k.region),
			harmonize.Number(float64(g.classified)),
			harmonize.Number(float64(g.adopters)),
			rate(g.adopters, g.classified),
		})
	}
	return result
}

// sentimentByYear emits one row per sentiment class per year. Shares
// are over classified respondents; the Unknown row keeps its count but
// carries a null share.
func (a *Aggregator) sentimentByYear(table *harmonize.Table) *ResultTable {
	groups := make(map[int]map[string]int)

	for _, record := range table.Records {
		byClass := groups[record.Year]
		if byClass == nil {
			byClass = make(map[string]int)
			groups[record.Year] = byClass
		}
		byClass[category(record, models.CategorySentiment)]++
	}

	result := &ResultTable{
		Name:    TableSentimentByYear,
		Columns: []string{"year", "sentiment", "respondents", "share"},
		Types:   []ColumnType{ColumnNumber, ColumnText, ColumnNumber, ColumnNumber},
	}
	for _, year := range sortedYears(groups) {
		byClass := groups[year]
		classified := byClass["Positive"] + byClass["Neutral"] + byClass["Negative"]
		for _, class := range sentimentOrder {
			share := harmonize.Null()
			if class != "Unknown" {
				share = rate(byClass[class], classified)
			}
			result.Rows = append(result.Rows, []harmonize.Value{
				harmonize.Number(float64(year)),
				harmonize.Text(class),
				harmonize.Number(float64(byClass[class])),
				share,
			})
		}
	}
	return result
}

// medianCompByAIUse computes the interpolated median of in-window
// compensation per year and usage category. Values outside the window
// are rejected from the reduction only; the harmonized table keeps
// them. An empty group keeps its row with a null median.
func (a *Aggregator) medianCompByAIUse(table *harmonize.Table) *ResultTable {
	type key struct {
		year int
		cat  string
	}
	groups := make(map[key][]float64)
	years := make(map[int]bool)

	for _, record := range table.Records {
		years[record.Year] = true
		comp, ok := record.Value(models.FieldCompTotal).Float()
		if !ok {
			continue
		}
		if comp <= 0 || comp >= a.ceiling {
			a.rejectOutlier(record, comp)
			continue
		}
		k := key{year: record.Year, cat: category(record, models.CategoryAIUse)}
		groups[k] = append(groups[k], comp)
	}

	result := &ResultTable{
		Name:    TableMedianCompByUse,
		Columns: []string{"year", "ai_use_category", "respondents", "median_comp"},
		Types:   []ColumnType{ColumnNumber, ColumnText, ColumnNumber, ColumnNumber},
	}
	for _, year := range sortedYears(years) {
		for _, cat := range aiUseOrder {
			values := groups[key{year: year, cat: cat}]
			median := harmonize.Null()
			if m, ok := Median(values); ok {
				median = harmonize.Number(m)
			}
			result.Rows = append(result.Rows, []harmonize.Value{
				harmonize.Number(float64(year)),
				harmonize.Text(cat),
				harmonize.Number(float64(len(values))),
				median,
			})
		}
	}
	return result
}

// experienceDistribution emits bucket counts and shares per year.
// Shares are over all respondents of the year, so every year's shares
// sum to one.
func (a *Aggregator) experienceDistribution(table *harmonize.Table) *ResultTable {
	groups := make(map[int]map[string]int)
	totals := make(map[int]int)

	for _, record := range table.Records {
		byBucket := groups[record.Year]
		if byBucket == nil {
			byBucket = make(map[string]int)
			groups[record.Year] = byBucket
		}
		byBucket[category(record, models.DerivedExperience)]++
		totals[record.Year]++
	}

	result := &ResultTable{
		Name:    TableExperienceDist,
		Columns: []string{"year", "experience_bucket", "respondents", "share"},
		Types:   []ColumnType{ColumnNumber, ColumnText, ColumnNumber, ColumnNumber},
	}
	for _, year := range sortedYears(groups) {
		for _, bucket := range experienceOrder {
			result.Rows = append(result.Rows, []harmonize.Value{
				harmonize.Number(float64(year)),
				harmonize.Text(bucket),
				harmonize.Number(float64(groups[year][bucket])),
				rate(groups[year][bucket], totals[year]),
			})
		}
	}
	return result
}

// topSelections ranks multi-select tokens per field and year by
// respondent count, ties broken alphabetically.
func (a *Aggregator) topSelections(selections []explode.Selection) *ResultTable {
	type key struct {
		year  int
		field string
	}
	groups := make(map[key]map[string]int)

	for _, sel := range selections {
		k := key{year: sel.Year, field: sel.Field}
		byToken := groups[k]
		if byToken == nil {
			byToken = make(map[string]int)
			groups[k] = byToken
		}
		byToken[sel.Token]++
	}

	keys := make([]key, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year < keys[j].year
		}
		return keys[i].field < keys[j].field
	})

	result := &ResultTable{
		Name:    TableTopSelections,
		Columns: []string{"year", "field", "token", "respondents", "rank"},
		Types:   []ColumnType{ColumnNumber, ColumnText, ColumnText, ColumnNumber, ColumnNumber},
	}
	for _, k := range keys {
		type tokenCount struct {
			token string
			count int
		}
		counts := make([]tokenCount, 0, len(groups[k]))
		for token, count := range groups[k] {
			counts = append(counts, tokenCount{token, count})
		}
		sort.Slice(counts, func(i, j int) bool {
			if counts[i].count != counts[j].count {
				return counts[i].count > counts[j].count
			}
			return counts[i].token < counts[j].token
		})
		if len(counts) > a.topN {
			counts = counts[:a.topN]
		}
		for rank, tc := range counts {
			result.Rows = append(result.Rows, []harmonize.Value{
				harmonize.Number(float64(k.year)),
				harmonize.Text(k.field),
				harmonize.Text(tc.token),
				harmonize.Number(float64(tc.count)),
				harmonize.Number(float64(rank + 1)),
			})
		}
	}
	return result
}

func (a *Aggregator) rejectOutlier(record harmonize.Record, comp float64) {
	if a.metrics != nil {
		a.metrics.OutliersRejected.Inc()
	}
	if a.handler != nil {
		a.handler.Handle(errors.OutlierError(models.FieldCompTotal, comp))
	}
	a.logger.DebugWithFields("Compensation outside analysis window", map[string]interface{}{
		"response_id": record.ResponseID,
		"year":        record.Year,
	})
}

// rate divides safely, returning null for an empty denominator. Rates
// are rounded to four decimals for stable output.
func rate(num, den int) harmonize.Value {
	if den == 0 {
		return harmonize.Null()
	}
	return harmonize.Number(math.Round(float64(num)/float64(den)*10000) / 10000)
}

// sortedYears works over any map keyed by year
func sortedYears[V any](groups map[int]V) []int {
	years := make([]int, 0, len(groups))
	for year := range groups {
		years = append(years, year)
	}
	sort.Ints(years)
	return years
}
