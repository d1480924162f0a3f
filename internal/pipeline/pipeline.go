package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"surveyforge/internal/config"
	"surveyforge/internal/derive"
	"surveyforge/internal/explode"
	"surveyforge/internal/harmonize"
	"surveyforge/internal/ingest"
	"surveyforge/internal/inventory"
	"surveyforge/internal/kpi"
	"surveyforge/internal/observability"
	"surveyforge/internal/report"
	"surveyforge/internal/runledger"
	"surveyforge/internal/store"
	"surveyforge/pkg/errors"
	"surveyforge/pkg/models"
)

// Options control one pipeline run
type Options struct {
	OutDir string // overrides the configured output directory
	Years  []int  // restricts the run to these survey years; empty runs all
	Store  bool   // persist the run to the analytics store
	DryRun bool   // compute everything, write nothing

	// Progress is called before each stage when set
	Progress func(stage string, current, total int)
}

// Result summarizes one completed run
type Result struct {
	RunID      string
	StartedAt  time.Time
	Duration   time.Duration
	Years      []int
	Records    int
	Selections int
	Drifts     []harmonize.Drift
	Warnings   int
	OutputDir  string
	StorePath  string
	DryRun     bool
	Results    *kpi.Results
	Inventory  *inventory.Inventory
	Metrics    map[string]float64
	Stages     []observability.StageDuration
}

// Pipeline orchestrates one batch run: ingest, inventory, harmonize,
// derive, explode, aggregate, then staged output publication and the
// optional store save. A run either publishes completely or leaves the
// previous output untouched.
type Pipeline struct {
	cfg     *models.Config
	logger  *observability.Logger
	metrics *observability.RunMetrics
	handler *errors.ErrorHandler
	ledger  *runledger.Ledger
}

// New creates a pipeline for one run. logger and handler may be nil.
func New(cfg *models.Config, logger *observability.Logger, handler *errors.ErrorHandler) *Pipeline {
	if logger == nil {
		logger = observability.GetDefaultLogger()
	}
	if handler == nil {
		handler = errors.GetGlobalErrorHandler()
	}
	return &Pipeline{
		cfg:     cfg,
		logger:  logger,
		metrics: observability.NewRunMetrics(),
		handler: handler,
	}
}

// SetLedger overrides the default run ledger location
func (p *Pipeline) SetLedger(l *runledger.Ledger) {
	p.ledger = l
}

// runState carries everything the stages hand to each other
type runState struct {
	opts      Options
	runID     string
	startedAt time.Time
	outDir    string

	mapping  *models.MappingConfig
	regions  *models.RegionConfig
	datasets []models.Dataset

	raw        []*ingest.RawDataset
	inv        *inventory.Inventory
	table      *harmonize.Table
	drifts     []harmonize.Drift
	selections []explode.Selection
	results    *kpi.Results

	staging   string
	storePath string
}

type runStep struct {
	name string
	fn   func(context.Context) error
}

// Run executes the full pipeline. Completed and failed runs both land
// in the run ledger; dry runs do not.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	state := &runState{
		opts:      opts,
		runID:     uuid.New().String(),
		startedAt: time.Now(),
		outDir:    opts.OutDir,
	}
	if state.outDir == "" {
		state.outDir = p.cfg.Output.Directory
	}

	p.logger.InfoWithFields("Starting pipeline run", map[string]interface{}{
		"run_id":  state.runID,
		"out_dir": state.outDir,
		"dry_run": opts.DryRun,
	})

	result, err := p.run(ctx, state)
	p.recordRun(state, result, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, state *runState) (*Result, error) {
	if err := config.ValidateForRun(p.cfg); err != nil {
		return nil, err
	}

	datasets, err := filterDatasets(p.cfg.Datasets, state.opts.Years)
	if err != nil {
		return nil, err
	}
	state.datasets = datasets

	if state.mapping, err = config.LoadMappings(p.cfg.Pipeline.Mappings); err != nil {
		return nil, err
	}
	if state.regions, err = config.LoadRegions(p.cfg.Pipeline.Regions); err != nil {
		return nil, err
	}

	// A failed run may leave the staging directory behind; remove it on
	// the way out. After a successful publish the path no longer exists.
	defer func() {
		if state.staging != "" {
			os.RemoveAll(state.staging)
		}
	}()

	steps := p.steps(state)
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeTimeout, "Run cancelled").
				WithContext("stage", step.name)
		}
		if state.opts.Progress != nil {
			state.opts.Progress(step.name, i+1, len(steps))
		}
		if err := p.metrics.TimeStage(step.name, func() error { return step.fn(ctx) }); err != nil {
			return nil, err
		}
	}

	return p.buildResult(state), nil
}

func (p *Pipeline) steps(state *runState) []runStep {
	steps := []runStep{
		{"ingest", func(context.Context) error { return p.ingest(state) }},
		{"inventory", func(context.Context) error { return p.buildInventory(state) }},
		{"harmonize", func(context.Context) error { return p.harmonizeDatasets(state) }},
		{"derive", func(context.Context) error { return p.deriveFeatures(state) }},
		{"explode", func(context.Context) error { return p.explodeSelections(state) }},
		{"aggregate", func(context.Context) error { return p.aggregate(state) }},
	}
	if state.opts.DryRun {
		return steps
	}

	steps = append(steps,
		runStep{"write", func(context.Context) error { return p.writeStaging(state) }},
		runStep{"publish", func(context.Context) error { return p.publishStaging(state) }},
	)
	if state.opts.Store && p.cfg.Output.Store != "" {
		steps = append(steps, runStep{"store", func(ctx context.Context) error { return p.saveToStore(ctx, state) }})
	}
	return steps
}

func (p *Pipeline) ingest(state *runState) error {
	raw, err := ingest.NewReader(p.logger, p.metrics).ReadAll(state.datasets)
	if err != nil {
		return err
	}
	state.raw = raw
	return nil
}

func (p *Pipeline) buildInventory(state *runState) error {
	state.inv = inventory.NewService(p.cfg.Pipeline.MissingToken, p.logger).Build(state.raw, state.mapping)
	return nil
}

func (p *Pipeline) harmonizeDatasets(state *runState) error {
	h := harmonize.NewHarmonizer(state.mapping, p.cfg.Pipeline.MissingToken, p.logger, p.metrics)
	h.SetErrorHandler(p.handler)
	state.table, state.drifts = h.Harmonize(state.raw)
	return nil
}

func (p *Pipeline) deriveFeatures(state *runState) error {
	derive.NewDeriver(state.mapping, p.logger).Apply(state.table)
	return nil
}

func (p *Pipeline) explodeSelections(state *runState) error {
	state.selections = explode.NewExploder(p.cfg.Pipeline.MissingToken, p.logger, p.metrics).Explode(state.table)
	return nil
}

func (p *Pipeline) aggregate(state *runState) error {
	agg := kpi.NewAggregator(kpi.NewRegionMapper(state.regions), p.cfg.Pipeline, p.logger, p.metrics)
	agg.SetErrorHandler(p.handler)
	state.results = agg.Aggregate(state.table, state.selections)
	return nil
}

// writeStaging materializes every artifact next to the output directory
// so the final publish is a rename on the same filesystem.
func (p *Pipeline) writeStaging(state *runState) error {
	state.staging = filepath.Join(filepath.Dir(state.outDir),
		fmt.Sprintf(".staging-%s", shortID(state.runID)))

	writer := report.NewWriter(p.cfg.Output.Formats, p.logger)
	return writer.WriteAll(state.staging, state.table, state.selections, state.results, state.inv)
}

// publishStaging swaps the staged artifacts into place. The swap is two
// renames; if the second fails the previous output is restored, so a
// failed run never leaves a half-written output directory.
func (p *Pipeline) publishStaging(state *runState) error {
	backup := state.outDir + ".previous"
	if err := os.RemoveAll(backup); err != nil {
		return errors.Wrap(err, errors.ErrCodeStagingFailed, "Failed to clear stale output backup").
			WithContext("dir", backup)
	}

	hadPrevious := false
	if _, err := os.Stat(state.outDir); err == nil {
		if err := os.Rename(state.outDir, backup); err != nil {
			return errors.Wrap(err, errors.ErrCodeStagingFailed, "Failed to set aside previous output").
				WithContext("dir", state.outDir)
		}
		hadPrevious = true
	}

	if err := os.Rename(state.staging, state.outDir); err != nil {
		if hadPrevious {
			if restoreErr := os.Rename(backup, state.outDir); restoreErr != nil {
				p.logger.ErrorWithFields("Failed to restore previous output", map[string]interface{}{
					"dir":   state.outDir,
					"error": restoreErr.Error(),
				})
			}
		}
		return errors.Wrap(err, errors.ErrCodeStagingFailed, "Failed to publish output directory").
			WithContext("staging", state.staging).
			WithContext("dir", state.outDir)
	}

	if hadPrevious {
		if err := os.RemoveAll(backup); err != nil {
			p.logger.WarnWithFields("Failed to remove previous output backup", map[string]interface{}{
				"dir": backup,
			})
		}
	}

	p.logger.InfoWithFields("Published run outputs", map[string]interface{}{
		"run_id": state.runID,
		"dir":    state.outDir,
	})
	return nil
}

func (p *Pipeline) saveToStore(ctx context.Context, state *runState) error {
	st, err := store.Open(p.cfg.Output.Store, p.logger)
	if err != nil {
		return err
	}
	defer st.Close()

	st.SetErrorHandler(p.handler)
	if err := st.SaveRun(ctx, state.runID, state.table, state.selections, state.results); err != nil {
		return err
	}
	state.storePath = st.Path()
	return nil
}

func (p *Pipeline) buildResult(state *runState) *Result {
	warnings := int(p.metrics.RaggedRows.Value() +
		p.metrics.DriftEvents.Value() +
		p.metrics.ParseFailures.Value() +
		p.metrics.OutliersRejected.Value())

	return &Result{
		RunID:      state.runID,
		StartedAt:  state.startedAt,
		Duration:   time.Since(state.startedAt),
		Years:      yearsOf(state.datasets),
		Records:    len(state.table.Records),
		Selections: len(state.selections),
		Drifts:     state.drifts,
		Warnings:   warnings,
		OutputDir:  state.outDir,
		StorePath:  state.storePath,
		DryRun:     state.opts.DryRun,
		Results:    state.results,
		Inventory:  state.inv,
		Metrics:    p.metrics.Snapshot(),
		Stages:     p.metrics.StageDurations(),
	}
}

// recordRun appends the run to the ledger. Ledger trouble is logged and
// swallowed; the run's own outcome already stands.
func (p *Pipeline) recordRun(state *runState, result *Result, runErr error) {
	if state.opts.DryRun {
		return
	}

	ledger := p.ledger
	if ledger == nil {
		l, err := runledger.New()
		if err != nil {
			p.logger.WarnWithFields("Run ledger unavailable", map[string]interface{}{
				"error": err.Error(),
			})
			return
		}
		ledger = l
	}

	years := yearsOf(state.datasets)
	if len(years) == 0 {
		years = state.opts.Years
	}

	entry := runledger.Entry{
		RunID:      state.runID,
		StartedAt:  state.startedAt,
		DurationMS: time.Since(state.startedAt).Milliseconds(),
		Years:      years,
		Status:     runledger.StatusCompleted,
	}
	if result != nil {
		entry.Records = result.Records
		entry.Selections = result.Selections
		entry.Warnings = result.Warnings
	}
	if runErr != nil {
		entry.Status = runledger.StatusFailed
		entry.Error = runErr.Error()
	}

	if err := ledger.Append(entry); err != nil {
		p.logger.WarnWithFields("Failed to record run in ledger", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// filterDatasets restricts configured datasets to the requested years.
// Requesting a year with no configured dataset is an input error, not a
// silent no-op.
func filterDatasets(datasets []models.Dataset, years []int) ([]models.Dataset, error) {
	if len(years) == 0 {
		return datasets, nil
	}

	want := make(map[int]bool, len(years))
	for _, y := range years {
		want[y] = true
	}

	var out []models.Dataset
	for _, ds := range datasets {
		if want[ds.Year] {
			out = append(out, ds)
			delete(want, ds.Year)
		}
	}

	if len(want) > 0 {
		missing := make([]int, 0, len(want))
		for y := range want {
			missing = append(missing, y)
		}
		sort.Ints(missing)
		return nil, errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("No dataset configured for survey years %v", missing)).
			WithSuggestions("Check --years against the datasets in your configuration")
	}
	return out, nil
}

// yearsOf lists dataset years in ascending order
func yearsOf(datasets []models.Dataset) []int {
	years := make([]int, 0, len(datasets))
	for _, ds := range datasets {
		years = append(years, ds.Year)
	}
	sort.Ints(years)
	return years
}

// shortID keeps staging paths readable
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
