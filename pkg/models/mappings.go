package models

// Canonical field names used across the pipeline. Mapping documents
// may define more, but these are the ones derivation and aggregation
// key on.
const (
	FieldResponseID   = "response_id"
	FieldMainBranch   = "main_branch"
	FieldAge          = "age"
	FieldCountry      = "country"
	FieldEmployment   = "employment"
	FieldRemoteWork   = "remote_work"
	FieldEdLevel      = "ed_level"
	FieldOrgSize      = "org_size"
	FieldIndustry     = "industry"
	FieldDevType      = "dev_type"
	FieldYearsCode    = "years_code"
	FieldYearsCodePro = "years_code_pro"
	FieldCompTotal    = "comp_total"
	FieldJobSat       = "job_sat"
	FieldAISelect     = "ai_select"
	FieldAISentiment  = "ai_sentiment"
	FieldAIAcc        = "ai_acc"
	FieldLanguages    = "languages"
	FieldDatabases    = "databases"
	FieldPlatforms    = "platforms"
)

// Derived column names appended by the feature derivation stage
const (
	CategoryAIUse     = "ai_use_category"
	CategorySentiment = "ai_sentiment_class"
	DerivedExperience = "experience_bucket"
)

// FieldType describes how a harmonized field's raw values are coerced
type FieldType string

const (
	FieldTypeText        FieldType = "text"
	FieldTypeNumber      FieldType = "number"
	FieldTypeYears       FieldType = "years" // numeric with phrase coercion
	FieldTypeMultiselect FieldType = "multiselect"
)

// FieldSpec maps one canonical field to its source column candidates.
// Aliases are in priority order; the first one present in a dataset
// header wins for that survey year.
type FieldSpec struct {
	Name    string    `yaml:"name"`
	Type    FieldType `yaml:"type"`
	Aliases []string  `yaml:"aliases"`
}

// MatchKind is the comparison a category rule applies
type MatchKind string

const (
	MatchEquals   MatchKind = "equals"
	MatchPrefix   MatchKind = "prefix"
	MatchContains MatchKind = "contains"
)

// CategoryRule is one ordered predicate of a category spec
type CategoryRule struct {
	Match    MatchKind `yaml:"match"`
	Value    string    `yaml:"value"`
	Category string    `yaml:"category"`
}

// CategorySpec derives a categorical field from a source field.
// Rules run in order against the trimmed answer, case-insensitively;
// the first match wins and no input falls through Default.
type CategorySpec struct {
	Name    string         `yaml:"name"`
	Source  string         `yaml:"source"`
	Rules   []CategoryRule `yaml:"rules"`
	Default string         `yaml:"default"`
}

// MappingConfig is the versioned schema-mapping document
type MappingConfig struct {
	Version    int            `yaml:"version"`
	Fields     []FieldSpec    `yaml:"fields"`
	Categories []CategorySpec `yaml:"categories"`
}

// RegionConfig maps countries to reporting regions
type RegionConfig struct {
	Fallback string            `yaml:"fallback"`
	Regions  map[string]string `yaml:"regions"`
}
