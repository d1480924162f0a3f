package scaffold

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"surveyforge/internal/common"
	"surveyforge/internal/config"
)

// Generator handles project scaffolding
type Generator struct {
	projectDir string
	config     *Config
}

// Config holds scaffolding configuration
type Config struct {
	ProjectName   string
	Author        string
	Years         []int
	WithWarehouse bool
	WithSample    bool
}

// NewGenerator creates a new scaffold generator
func NewGenerator(projectDir string, config *Config) *Generator {
	return &Generator{
		projectDir: projectDir,
		config:     config,
	}
}

// GenerateProject creates the full starter layout and returns the list
// of files it wrote, relative to the project directory.
func (g *Generator) GenerateProject() ([]string, error) {
	for _, dir := range []string{"data/raw", "out"} {
		if err := os.MkdirAll(filepath.Join(g.projectDir, dir), common.DirPermissionNormal); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	var written []string

	steps := []func() (string, error){
		g.GenerateConfig,
		g.GenerateMappings,
		g.GenerateRegions,
		g.GenerateGitignore,
		g.GenerateReadme,
	}

	for _, step := range steps {
		path, err := step()
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}

	if g.config.WithSample {
		for _, year := range g.config.Years {
			path, err := g.GenerateSampleData(year)
			if err != nil {
				return written, err
			}
			written = append(written, path)
		}
	}

	return written, nil
}

// GenerateConfig creates the project configuration file. The file may
// later hold warehouse credentials, so it is written owner-only.
func (g *Generator) GenerateConfig() (string, error) {
	vars := map[string]interface{}{
		"ProjectName":   g.config.ProjectName,
		"Date":          time.Now().Format("2006-01-02"),
		"Years":         g.config.Years,
		"WithWarehouse": g.config.WithWarehouse,
	}

	content := g.processTemplate("config", configTemplate, vars)

	return g.writeFile("surveyforge.yaml", content, common.FilePermissionSecure)
}

// GenerateMappings writes the starter schema mapping document. The
// content is the embedded default mapping, so a fresh project starts
// from a document that is known to validate.
func (g *Generator) GenerateMappings() (string, error) {
	data, err := yaml.Marshal(config.DefaultMappings())
	if err != nil {
		return "", fmt.Errorf("failed to render mappings: %w", err)
	}

	content := mappingsHeader + string(data)

	return g.writeFile("mappings.yaml", content, common.FilePermissionNormal)
}

// GenerateRegions writes the starter country-to-region document
func (g *Generator) GenerateRegions() (string, error) {
	data, err := yaml.Marshal(config.DefaultRegions())
	if err != nil {
		return "", fmt.Errorf("failed to render regions: %w", err)
	}

	content := regionsHeader + string(data)

	return g.writeFile("regions.yaml", content, common.FilePermissionNormal)
}

// GenerateSampleData creates a small raw export for one survey year so
// a fresh project can run the pipeline end to end before real exports
// are dropped in. The rows deliberately include phrase-coded numbers,
// missing tokens and multi-select answers.
func (g *Generator) GenerateSampleData(year int) (string, error) {
	filename := filepath.Join("data", "raw", fmt.Sprintf("survey_%d.csv", year))

	return g.writeFile(filename, sampleDataContent, common.FilePermissionNormal)
}

// GenerateGitignore creates the project .gitignore
func (g *Generator) GenerateGitignore() (string, error) {
	return g.writeFile(".gitignore", gitignoreContent, common.FilePermissionNormal)
}

// GenerateReadme creates the project README
func (g *Generator) GenerateReadme() (string, error) {
	vars := map[string]interface{}{
		"ProjectName": g.config.ProjectName,
		"Years":       g.config.Years,
	}

	content := g.processTemplate("readme", readmeTemplate, vars)

	return g.writeFile("README.md", content, common.FilePermissionNormal)
}

// writeFile writes one scaffold file and reports its relative path
func (g *Generator) writeFile(relPath, content string, perm os.FileMode) (string, error) {
	fullPath := filepath.Join(g.projectDir, relPath)
	if err := os.WriteFile(fullPath, []byte(content), perm); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", relPath, err)
	}
	return relPath, nil
}

// processTemplate applies template with variables
func (g *Generator) processTemplate(name, tmplStr string, vars map[string]interface{}) string {
	tmpl, err := template.New(name).Parse(tmplStr)
	if err != nil {
		return fmt.Sprintf("Error processing template: %v", err)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, vars); err != nil {
		return fmt.Sprintf("Error executing template: %v", err)
	}

	return buf.String()
}

// Template constants
const configTemplate = `# {{.ProjectName}} pipeline configuration
# Generated by surveyforge init on {{.Date}}

datasets:
{{- range .Years}}
  - year: {{.}}
    path: data/raw/survey_{{.}}.csv
{{- end}}

output:
  directory: out
  store: surveyforge.duckdb
  formats:
    - csv
    - markdown

pipeline:
  # Empty mappings/regions fall back to the embedded defaults
  mappings: mappings.yaml
  regions: regions.yaml
  missing_token: NA
  top_n: 10
  compensation:
    ceiling: 1000000
{{- if .WithWarehouse}}

snowflake:
  account: your-account.region
  username: PIPELINE_SVC
  # Plain value, ${ENV_VAR}, or keyring:<credential-name>
  password: keyring:warehouse-password
  role: SYSADMIN
  warehouse: COMPUTE_WH
  database: SURVEYS
  schema: ANALYTICS
{{- end}}
`

const mappingsHeader = `# Schema mapping for the raw survey exports.
# Aliases are in priority order; the first alias present in a year's
# header wins for that year. Category rules run in order against the
# trimmed answer, case-insensitively, and the first match wins.

`

const regionsHeader = `# Country-to-region mapping for regional KPIs.
# Countries must match the survey answers exactly; anything not listed
# falls back to the fallback region.

`

const sampleDataContent = `ResponseId,MainBranch,Age,Country,Employment,RemoteWork,EdLevel,OrgSize,Industry,DevType,YearsCode,YearsCodePro,ConvertedCompYearly,JobSat,AISelect,AISent,LanguageHaveWorkedWith,DatabaseHaveWorkedWith,PlatformHaveWorkedWith
1,I am a developer by profession,25-34 years old,Germany,"Employed, full-time",Remote,"Master's degree",100 to 499 employees,Software Development,"Developer, back-end",8,5,72000,Satisfied,Yes,Favorable,Go;Python;SQL,PostgreSQL;Redis,Amazon Web Services (AWS)
2,I am a developer by profession,35-44 years old,United States of America,"Employed, full-time",Hybrid,"Bachelor's degree","1,000 to 4,999 employees",Fintech,"Developer, full-stack",More than 50 years,20,145000,Very satisfied,"No, and I don't plan to",Unfavorable,JavaScript;TypeScript;SQL,MySQL,Microsoft Azure
3,I code primarily as a hobby,18-24 years old,India,"Student, full-time",NA,Some college,NA,NA,NA,Less than 1 year,NA,NA,NA,"No, but I plan to soon",Indifferent,Python,NA,NA
4,I am a developer by profession,25-34 years old,Brazil,"Employed, full-time",In-person,"Bachelor's degree",20 to 99 employees,E-commerce,"Developer, front-end",6,4,38000,Neither satisfied nor dissatisfied,Yes,Very favorable,JavaScript;HTML/CSS,MongoDB;PostgreSQL,Google Cloud
5,I am a developer by profession,45-54 years old,Germany,Independent contractor,Remote,"Master's degree",2 to 19 employees,Consulting,"Developer, embedded",More than 50 years,30,98000,Satisfied,Yes,Favorable,C;C++;Go,SQLite,NA
`

const gitignoreContent = `# Pipeline outputs
out/
*.duckdb
*.duckdb.wal

# Local overrides
surveyforge.local.yaml
`

const readmeTemplate = `# {{.ProjectName}}

Survey analytics project managed with surveyforge.

## Layout

` + "```" + `
surveyforge.yaml   Pipeline configuration
mappings.yaml      Schema mapping (column aliases per survey year)
regions.yaml       Country-to-region mapping
data/raw/          Raw survey exports, one CSV per year
out/               Published KPI tables
` + "```" + `

## Usage

Drop the raw exports into data/raw/ and run:

` + "```bash" + `
surveyforge run
` + "```" + `

Inspect schema coverage without running the pipeline:

` + "```bash" + `
surveyforge inventory
` + "```" + `

Render a published table:

` + "```bash" + `
surveyforge report --table adoption_by_year
` + "```" + `

## Survey years

{{range .Years}}- survey_{{.}}.csv
{{end}}`
