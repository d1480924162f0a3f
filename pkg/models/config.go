package models

// Config is the root configuration for a surveyforge project
type Config struct {
	Datasets     []Dataset    `yaml:"datasets"`
	Output       Output       `yaml:"output"`
	Pipeline     Pipeline     `yaml:"pipeline"`
	Snowflake    Snowflake    `yaml:"snowflake"`
	Repositories []Repository `yaml:"repositories"`
}

// Dataset points at one raw survey export
type Dataset struct {
	Year  int    `yaml:"year"`
	Path  string `yaml:"path"`
	Label string `yaml:"label,omitempty"`
}

// Output controls where published tables land
type Output struct {
	Directory string   `yaml:"directory"`
	Store     string   `yaml:"store,omitempty"`   // DuckDB file; empty disables the store stage
	Formats   []string `yaml:"formats,omitempty"` // csv, markdown
}

// Pipeline holds tunables for harmonization and aggregation
type Pipeline struct {
	Mappings     string       `yaml:"mappings,omitempty"` // mappings file; empty uses embedded defaults
	Regions      string       `yaml:"regions,omitempty"`  // regions file; empty uses embedded defaults
	MissingToken string       `yaml:"missing_token,omitempty"`
	TopN         int          `yaml:"top_n,omitempty"`
	Compensation Compensation `yaml:"compensation,omitempty"`
}

// Compensation bounds the sanity window for the compensation KPI.
// Values outside (0, Ceiling) are rejected from aggregation only;
// the harmonized table keeps them untouched.
type Compensation struct {
	Ceiling float64 `yaml:"ceiling,omitempty"`
}

// Snowflake holds warehouse connection settings.
// Password may be a plain value, "${ENV_VAR}", or "keyring:<name>".
type Snowflake struct {
	Account   string `yaml:"account"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Role      string `yaml:"role"`
	Warehouse string `yaml:"warehouse"`
	Database  string `yaml:"database"`
	Schema    string `yaml:"schema"`
}

// Repository is a git repository holding raw datasets and mapping files
type Repository struct {
	Name   string `yaml:"name"`
	GitURL string `yaml:"git_url"`
	Branch string `yaml:"branch"`
	Path   string `yaml:"path,omitempty"` // Subdirectory within the repo holding data files
}

// DefaultMissingToken is dropped (case-insensitively) by the explode stage
const DefaultMissingToken = "NA"

// DefaultCompensationCeiling bounds the compensation KPI window
const DefaultCompensationCeiling = 1000000.0

// DefaultTopN limits top-selection KPI rows per field and year
const DefaultTopN = 10
