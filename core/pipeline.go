package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/tzcluster/core/agg"
	"github.com/huangsam/tzcluster/core/cluster"
	"github.com/huangsam/tzcluster/core/feature"
	"github.com/huangsam/tzcluster/core/region"
	"github.com/huangsam/tzcluster/internal/contract"
	"github.com/huangsam/tzcluster/schema"
)

// Options are the tunables of one analysis run.
type Options struct {
	Clusters      int
	Seed          uint64
	MaxIterations int
	Tolerance     float64
	Decay         schema.DecayPolicy
	Alternatives  int
	Regions       []schema.RegionCandidate
	Params        map[string]any // Recorded with the run
}

// DefaultOptions returns K=24, seed 42, linear decay and the built-in region table.
func DefaultOptions() Options {
	return Options{
		Clusters:      schema.DefaultClusters,
		Seed:          schema.DefaultSeed,
		MaxIterations: schema.DefaultMaxIterations,
		Tolerance:     schema.DefaultTolerance,
		Decay:         schema.LinearDecay,
		Alternatives:  schema.DefaultAlternatives,
		Regions:       schema.DefaultRegions(),
	}
}

// OptionsFromConfig copies the analysis settings out of a validated config.
func OptionsFromConfig(cfg *contract.Config) Options {
	return Options{
		Clusters:      cfg.Clusters,
		Seed:          cfg.Seed,
		MaxIterations: cfg.MaxIterations,
		Tolerance:     cfg.Tolerance,
		Decay:         cfg.Decay,
		Alternatives:  cfg.Alternatives,
		Regions:       cfg.Regions,
		Params:        cfg.Params(),
	}
}

// Analyzer runs the feature, cluster, region and aggregation stages in order.
type Analyzer struct {
	opts   Options
	engine *cluster.Engine
	mapper *region.Mapper
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// AnalyzerOption customizes an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithClock replaces time.Now for run timestamps.
func WithClock(now func() time.Time) AnalyzerOption {
	return func(a *Analyzer) { a.now = now }
}

// WithRunID replaces the random run id generator.
func WithRunID(newID func() string) AnalyzerOption {
	return func(a *Analyzer) { a.newID = newID }
}

// NewAnalyzer validates opts and builds the stage components.
func NewAnalyzer(opts Options, logger *slog.Logger, extra ...AnalyzerOption) (*Analyzer, error) {
	if logger == nil {
		logger = contract.NewDiscardLogger()
	}
	engine, err := cluster.NewEngine(opts.Clusters, opts.Seed,
		cluster.WithMaxIterations(opts.MaxIterations),
		cluster.WithTolerance(opts.Tolerance),
	)
	if err != nil {
		return nil, err
	}
	mapper, err := region.NewMapper(opts.Regions,
		region.WithDecay(opts.Decay),
		region.WithAlternatives(opts.Alternatives),
	)
	if err != nil {
		return nil, err
	}

	a := &Analyzer{
		opts:   opts,
		engine: engine,
		mapper: mapper,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, o := range extra {
		o(a)
	}
	return a, nil
}

// Analyze turns one batch of records into cluster assignments and per-region summaries.
// Nothing is persisted.
func (a *Analyzer) Analyze(ctx context.Context, records []schema.PostRecord) (*schema.RunResult, error) {
	return a.AnalyzeBatch(ctx, &schema.PostBatch{Records: records})
}

// AnalyzeBatch is Analyze for a loaded batch. Rows the source skipped count as
// dropped records alongside those with malformed timestamps.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, batch *schema.PostBatch) (*schema.RunResult, error) {
	started := a.now().UTC()
	runID := a.newID()
	log := a.logger.With("run_id", runID)

	features, err := feature.Extract(batch.Records)
	var empty *schema.EmptyInputError
	if errors.As(err, &empty) {
		return nil, &schema.EmptyInputError{
			Total:    empty.Total + batch.Skipped,
			Rejected: empty.Rejected + batch.Skipped,
		}
	}
	if err != nil {
		return nil, err
	}
	total := features.Total + batch.Skipped
	dropped := features.Dropped() + batch.Skipped
	log.Info("features extracted",
		"total", total,
		"valid", len(features.Vectors),
		"dropped", dropped)

	fit, err := a.engine.Fit(ctx, features.Vectors)
	if err != nil {
		return nil, err
	}
	nonEmpty := fit.NonEmpty()
	log.Info("clustering complete",
		"clusters", a.engine.K(),
		"non_empty", len(nonEmpty),
		"iterations", fit.Iterations,
		"converged", fit.Converged)

	result := &schema.RunResult{}
	if warn := fit.Warning(); warn != nil {
		log.Warn("clustering did not converge", "error", warn)
		result.Warning = warn.Error()
	}

	result.Assignments = a.mapper.Map(fit.Clusters)
	completed := a.now().UTC()
	result.Summaries = agg.Summarize(result.Assignments, completed)
	result.Histogram = feature.Histogram(features.Vectors)
	result.Rejected = append(result.Rejected, batch.Rejected...)
	for _, rej := range features.Rejected {
		if len(result.Rejected) >= schema.MaxRejectedShown {
			break
		}
		result.Rejected = append(result.Rejected, schema.RejectedRecord{
			PostID: rej.PostID,
			Value:  rej.Value,
			Reason: rej.Err.Error(),
		})
	}
	result.Run = schema.RunRecord{
		RunID:            runID,
		StartedAt:        started,
		CompletedAt:      completed,
		TotalRecords:     total,
		ValidRecords:     len(features.Vectors),
		DroppedRecords:   dropped,
		Clusters:         a.engine.K(),
		NonEmptyClusters: len(nonEmpty),
		Iterations:       fit.Iterations,
		Converged:        fit.Converged,
		Seed:             a.engine.Seed(),
		ConfigParams:     a.opts.Params,
	}
	log.Info("summarization complete", "regions", len(result.Summaries))
	return result, nil
}

// Commit merges the run's summaries into the store in one transaction.
func (a *Analyzer) Commit(ctx context.Context, store contract.SummaryStore, result *schema.RunResult) error {
	if store == nil {
		return errors.New("no summary store configured")
	}
	stored, err := store.CommitRun(ctx, result.Run, result.Summaries)
	if err != nil {
		return err
	}
	result.Stored = stored
	result.Committed = store.Backend() != schema.NoneBackend
	a.logger.Info("upsert complete",
		"run_id", result.Run.RunID,
		"backend", store.Backend(),
		"regions", len(stored))
	return nil
}

// Preview shows what Commit would store without writing anything.
func (a *Analyzer) Preview(ctx context.Context, store contract.SummaryStore, result *schema.RunResult) error {
	result.DryRun = true
	existing := map[string]schema.RegionalSummary{}
	if store != nil {
		rows, err := store.GetSummaries(ctx)
		if err != nil {
			return err
		}
		for _, row := range rows {
			existing[row.Region] = row
		}
	}

	touched := make(map[string]struct{}, len(result.Summaries))
	for _, s := range result.Summaries {
		touched[s.Region] = struct{}{}
	}
	result.Stored = result.Stored[:0]
	for _, row := range agg.MergeAll(existing, result.Summaries) {
		if _, ok := touched[row.Region]; ok {
			result.Stored = append(result.Stored, row)
		}
	}
	a.logger.Info("dry run, nothing committed", "run_id", result.Run.RunID, "regions", len(result.Stored))
	return nil
}

// Run loads the source, analyzes it and commits or previews the result.
func (a *Analyzer) Run(ctx context.Context, src contract.PostSource, limit int, store contract.SummaryStore, dryRun bool) (*schema.RunResult, error) {
	batch, err := src.Load(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", src.Name(), err)
	}
	a.logger.Info("load complete", "source", src.Name(), "records", len(batch.Records), "skipped", batch.Skipped)
	if batch.Skipped > 0 {
		a.logger.Warn("skipped unreadable records", "source", src.Name(), "count", batch.Skipped)
	}

	result, err := a.AnalyzeBatch(ctx, batch)
	if err != nil {
		return nil, err
	}
	result.Source = src.Name()

	if dryRun {
		return result, a.Preview(ctx, store, result)
	}
	// The caller may have given up while clustering ran
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run aborted before commit: %w", err)
	}
	if err := a.Commit(ctx, store, result); err != nil {
		return nil, err
	}
	return result, nil
}
