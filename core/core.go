// Package core runs the timezone inference pipeline and the commands built on it.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/huangsam/tzcluster/internal/contract"
	"github.com/huangsam/tzcluster/internal/loader"
	"github.com/huangsam/tzcluster/internal/outwriter"
	"github.com/huangsam/tzcluster/internal/runlock"
	"github.com/huangsam/tzcluster/schema"
)

// ExecutorFunc defines the function signature for executing different commands.
type ExecutorFunc func(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) error

// writer renders every command result in the configured output format.
var writer = outwriter.NewOutWriter()

// errNoStore is returned when a command needs the summary store before it was initialized.
var errNoStore = errors.New("summary store is not initialized")

// ExecuteAnalyze runs the full pipeline over the configured input and prints the result.
// It serves as the main entry point for the 'analyze' command.
func ExecuteAnalyze(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) error {
	result, duration, err := GetAnalyzeResults(ctx, cfg, mgr)
	if err != nil {
		return err
	}
	return writer.WriteRun(result, cfg, duration)
}

// GetAnalyzeResults runs the full pipeline and returns the result without printing.
// Committing runs hold the run lock; dry runs only read the store.
func GetAnalyzeResults(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) (*schema.RunResult, time.Duration, error) {
	start := time.Now()
	logger := stageLogger(ctx)

	src, err := loader.NewFileSource(cfg.InputPath, cfg.InputFormat)
	if err != nil {
		return nil, 0, err
	}
	analyzer, err := NewAnalyzer(OptionsFromConfig(cfg), logger)
	if err != nil {
		return nil, 0, err
	}

	var store contract.SummaryStore
	if mgr != nil {
		store = mgr.GetSummaryStore()
	}
	if store == nil && !cfg.DryRun {
		return nil, 0, errNoStore
	}

	if !cfg.DryRun {
		lock, err := runlock.New(cfg.LockBackend, cfg.LockAddr, contract.DefaultLockKey, cfg.LockTTL, logger)
		if err != nil {
			return nil, 0, err
		}
		defer func() { _ = lock.Close() }()

		if err := lock.Acquire(ctx); err != nil {
			return nil, 0, fmt.Errorf("failed to acquire run lock: %w", err)
		}
		defer func() {
			// The request context may already be done; release must still reach Redis
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("failed to release run lock", "error", err)
			}
		}()
	}

	result, err := analyzer.Run(ctx, src, cfg.Sample, store, cfg.DryRun)
	if err != nil {
		return nil, 0, err
	}
	return result, time.Since(start), nil
}

// ExecuteRegions prints the region table the mapper would use.
func ExecuteRegions(_ context.Context, cfg *contract.Config, _ contract.StoreManager) error {
	return writer.WriteRegions(cfg.Regions, cfg)
}

// ExecuteShowSummaries prints every stored regional summary.
func ExecuteShowSummaries(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) error {
	summaries, err := GetStoredSummaries(ctx, mgr)
	if err != nil {
		return err
	}
	return writer.WriteSummaries(summaries, cfg)
}

// ExecuteShowRuns prints the recorded run history.
func ExecuteShowRuns(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) error {
	store, err := requireStore(mgr)
	if err != nil {
		return err
	}
	runs, err := store.GetRuns(ctx)
	if err != nil {
		return err
	}
	return writer.WriteRuns(runs, cfg)
}

// GetStoredSummaries returns the stored regional summaries.
func GetStoredSummaries(ctx context.Context, mgr contract.StoreManager) ([]schema.RegionalSummary, error) {
	store, err := requireStore(mgr)
	if err != nil {
		return nil, err
	}
	return store.GetSummaries(ctx)
}

func requireStore(mgr contract.StoreManager) (contract.SummaryStore, error) {
	if mgr == nil {
		return nil, errNoStore
	}
	store := mgr.GetSummaryStore()
	if store == nil {
		return nil, errNoStore
	}
	return store, nil
}

// stageLogger picks the logger for pipeline stages from ctx.
func stageLogger(ctx context.Context) *slog.Logger {
	if isQuiet(ctx) {
		return contract.NewDiscardLogger()
	}
	return loggerFromContext(ctx)
}
