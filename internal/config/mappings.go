package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"surveyforge/internal/common"
	"surveyforge/pkg/errors"
	"surveyforge/pkg/models"
)

// DefaultMappings returns the embedded schema mapping for the developer
// survey exports. Alias lists are in priority order and cover the column
// renames the published datasets went through between years.
func DefaultMappings() *models.MappingConfig {
	return &models.MappingConfig{
		Version: 1,
		Fields: []models.FieldSpec{
			{Name: models.FieldResponseID, Type: models.FieldTypeText, Aliases: []string{"ResponseId", "RespondentId", "Respondent"}},
			{Name: models.FieldMainBranch, Type: models.FieldTypeText, Aliases: []string{"MainBranch"}},
			{Name: models.FieldAge, Type: models.FieldTypeText, Aliases: []string{"Age"}},
			{Name: models.FieldCountry, Type: models.FieldTypeText, Aliases: []string{"Country"}},
			{Name: models.FieldEmployment, Type: models.FieldTypeText, Aliases: []string{"Employment"}},
			{Name: models.FieldRemoteWork, Type: models.FieldTypeText, Aliases: []string{"RemoteWork"}},
			{Name: models.FieldEdLevel, Type: models.FieldTypeText, Aliases: []string{"EdLevel"}},
			{Name: models.FieldOrgSize, Type: models.FieldTypeText, Aliases: []string{"OrgSize"}},
			{Name: models.FieldIndustry, Type: models.FieldTypeText, Aliases: []string{"Industry"}},
			{Name: models.FieldDevType, Type: models.FieldTypeText, Aliases: []string{"DevType"}},
			{Name: models.FieldYearsCode, Type: models.FieldTypeYears, Aliases: []string{"YearsCode"}},
			{Name: models.FieldYearsCodePro, Type: models.FieldTypeYears, Aliases: []string{"YearsCodePro", "YearsCodingProf"}},
			{Name: models.FieldCompTotal, Type: models.FieldTypeNumber, Aliases: []string{"ConvertedCompYearly", "CompTotal", "Salary"}},
			{Name: models.FieldJobSat, Type: models.FieldTypeText, Aliases: []string{"JobSat", "JobSatisfaction"}},
			{Name: models.FieldAISelect, Type: models.FieldTypeText, Aliases: []string{"AISelect"}},
			{Name: models.FieldAISentiment, Type: models.FieldTypeText, Aliases: []string{"AISent", "AISentiment"}},
			{Name: models.FieldAIAcc, Type: models.FieldTypeText, Aliases: []string{"AIAcc"}},
			{Name: models.FieldLanguages, Type: models.FieldTypeMultiselect, Aliases: []string{"LanguageHaveWorkedWith", "LanguageWorkedWith"}},
			{Name: models.FieldDatabases, Type: models.FieldTypeMultiselect, Aliases: []string{"DatabaseHaveWorkedWith", "DatabaseWorkedWith"}},
			{Name: models.FieldPlatforms, Type: models.FieldTypeMultiselect, Aliases: []string{"PlatformHaveWorkedWith", "PlatformWorkedWith"}},
		},
		Categories: []models.CategorySpec{
			{
				Name:   models.CategoryAIUse,
				Source: models.FieldAISelect,
				// "don't plan" must match before the bare "plan" rule,
				// and both before the "no" rules
				Rules: []models.CategoryRule{
					{Match: models.MatchEquals, Value: "yes", Category: "Yes"},
					{Match: models.MatchContains, Value: "don't plan", Category: "No"},
					{Match: models.MatchContains, Value: "plan", Category: "Plan to Adopt"},
					{Match: models.MatchPrefix, Value: "no,", Category: "No"},
					{Match: models.MatchEquals, Value: "no", Category: "No"},
				},
				Default: "Unknown",
			},
			{
				Name:   models.CategorySentiment,
				Source: models.FieldAISentiment,
				// "unfavorable" contains "favorable", so it runs first
				Rules: []models.CategoryRule{
					{Match: models.MatchContains, Value: "unfavorable", Category: "Negative"},
					{Match: models.MatchContains, Value: "favorable", Category: "Positive"},
					{Match: models.MatchEquals, Value: "indifferent", Category: "Neutral"},
				},
				Default: "Unknown",
			},
		},
	}
}

// DefaultRegions returns the embedded country-to-region mapping
func DefaultRegions() *models.RegionConfig {
	return &models.RegionConfig{
		Fallback: "Other",
		Regions: map[string]string{
			"United States of America":                             "North America",
			"Canada":                                               "North America",
			"Mexico":                                               "North America",
			"Brazil":                                               "South America",
			"Argentina":                                            "South America",
			"Colombia":                                             "South America",
			"Chile":                                                "South America",
			"Peru":                                                 "South America",
			"United Kingdom of Great Britain and Northern Ireland": "Europe",
			"Germany":     "Europe",
			"France":      "Europe",
			"Netherlands": "Europe",
			"Poland":      "Europe",
			"Italy":       "Europe",
			"Spain":       "Europe",
			"Sweden":      "Europe",
			"Switzerland": "Europe",
			"Austria":     "Europe",
			"Czech Republic": "Europe",
			"Portugal":    "Europe",
			"Denmark":     "Europe",
			"Norway":      "Europe",
			"Finland":     "Europe",
			"Belgium":     "Europe",
			"Ireland":     "Europe",
			"Romania":     "Europe",
			"Ukraine":     "Europe",
			"India":       "Asia",
			"China":       "Asia",
			"Japan":       "Asia",
			"South Korea": "Asia",
			"Indonesia":   "Asia",
			"Pakistan":    "Asia",
			"Bangladesh":  "Asia",
			"Viet Nam":    "Asia",
			"Philippines": "Asia",
			"Israel":      "Asia",
			"Turkey":      "Asia",
			"Iran, Islamic Republic of...": "Asia",
			"Nigeria":      "Africa",
			"South Africa": "Africa",
			"Egypt":        "Africa",
			"Kenya":        "Africa",
			"Morocco":      "Africa",
			"Australia":    "Oceania",
			"New Zealand":  "Oceania",
		},
	}
}

// LoadMappings reads a mapping file, falling back to the embedded defaults
// when path is empty. The loaded document is validated before use.
func LoadMappings(path string) (*models.MappingConfig, error) {
	if path == "" {
		return DefaultMappings(), nil
	}

	cleaned, err := common.CleanPath(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMappingInvalid, "Invalid mappings file path")
	}

	data, err := os.ReadFile(cleaned) // #nosec G304 - path is validated
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMappingInvalid, "Failed to read mappings file").
			WithContext("path", path)
	}

	var mapping models.MappingConfig
	if err := yaml.Unmarshal(data, &mapping); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMappingInvalid, "Failed to parse mappings file").
			WithContext("path", path)
	}

	if err := ValidateMappings(&mapping); err != nil {
		return nil, err
	}

	return &mapping, nil
}

// LoadRegions reads a region file, falling back to the embedded defaults
func LoadRegions(path string) (*models.RegionConfig, error) {
	if path == "" {
		return DefaultRegions(), nil
	}

	cleaned, err := common.CleanPath(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Invalid regions file path")
	}

	data, err := os.ReadFile(cleaned) // #nosec G304 - path is validated
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to read regions file").
			WithContext("path", path)
	}

	var rc models.RegionConfig
	if err := yaml.Unmarshal(data, &rc); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to parse regions file").
			WithContext("path", path)
	}

	if rc.Fallback == "" {
		rc.Fallback = "Other"
	}

	return &rc, nil
}

// ValidateMappings checks structural integrity of a mapping document
func ValidateMappings(mapping *models.MappingConfig) error {
	if len(mapping.Fields) == 0 {
		return errors.New(errors.ErrCodeMappingInvalid, "Mapping document defines no fields")
	}

	fields := make(map[string]models.FieldType, len(mapping.Fields))
	for _, f := range mapping.Fields {
		if f.Name == "" {
			return errors.New(errors.ErrCodeMappingInvalid, "Field spec is missing a name")
		}
		if _, dup := fields[f.Name]; dup {
			return errors.New(errors.ErrCodeMappingInvalid,
				fmt.Sprintf("Duplicate field spec '%s'", f.Name))
		}
		if len(f.Aliases) == 0 {
			return errors.New(errors.ErrCodeMappingInvalid,
				fmt.Sprintf("Field '%s' has no source aliases", f.Name))
		}
		switch f.Type {
		case models.FieldTypeText, models.FieldTypeNumber, models.FieldTypeYears, models.FieldTypeMultiselect:
		default:
			return errors.New(errors.ErrCodeMappingInvalid,
				fmt.Sprintf("Field '%s' has unknown type '%s'", f.Name, f.Type))
		}
		fields[f.Name] = f.Type
	}

	for _, c := range mapping.Categories {
		if c.Name == "" {
			return errors.New(errors.ErrCodeMappingInvalid, "Category spec is missing a name")
		}
		if _, ok := fields[c.Source]; !ok {
			return errors.New(errors.ErrCodeMappingInvalid,
				fmt.Sprintf("Category '%s' sources unknown field '%s'", c.Name, c.Source))
		}
		if c.Default == "" {
			return errors.New(errors.ErrCodeMappingInvalid,
				fmt.Sprintf("Category '%s' has no default category", c.Name))
		}
		for i, r := range c.Rules {
			switch r.Match {
			case models.MatchEquals, models.MatchPrefix, models.MatchContains:
			default:
				return errors.New(errors.ErrCodeMappingInvalid,
					fmt.Sprintf("Category '%s' rule %d has unknown match kind '%s'", c.Name, i, r.Match))
			}
			if r.Category == "" {
				return errors.New(errors.ErrCodeMappingInvalid,
					fmt.Sprintf("Category '%s' rule %d maps to an empty category", c.Name, i))
			}
		}
	}

	return nil
}
