package kpi

import "surveyforge/pkg/models"

// RegionMapper resolves countries to reporting regions. Lookups never
// fail: unmapped and missing countries land in the fallback region so
// aggregation stays total.
type RegionMapper struct {
	fallback string
	regions  map[string]string
}

// NewRegionMapper creates a mapper from a region configuration
func NewRegionMapper(cfg *models.RegionConfig) *RegionMapper {
	fallback := cfg.Fallback
	if fallback == "" {
		fallback = "Other"
	}
	regions := make(map[string]string, len(cfg.Regions))
	for country, region := range cfg.Regions {
		regions[country] = region
	}
	return &RegionMapper{fallback: fallback, regions: regions}
}

// Region returns the reporting region for a country
func (m *RegionMapper) Region(country string) string {
	if region, ok := m.regions[country]; ok {
		return region
	}
	return m.fallback
}

// Fallback returns the fallback region name
func (m *RegionMapper) Fallback() string {
	return m.fallback
}
