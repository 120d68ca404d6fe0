// Package batch records extraction runs and their results in a store.
package batch

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/termex/pkg/termex"
	"github.com/cognicore/termex/pkg/termex/config"
	"github.com/cognicore/termex/pkg/termex/store"
)

// Runner executes one extraction per call and keeps the run bookkeeping.
type Runner struct {
	Store     store.Store
	Extractor *termex.Extractor
	Logger    *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// Run creates a run, extracts, persists the outcome and marks the run
// completed. On failure the run is marked failed and the error returned.
func (r *Runner) Run(ctx context.Context, docs []string, cfg config.Extraction) (store.Run, termex.Result, error) {
	if r.Store == nil || r.Extractor == nil {
		return store.Run{}, termex.Result{}, errors.New("batch runner: invalid configuration")
	}
	logger := r.logger()

	run := store.Run{
		ID:        r.newID(),
		Status:    store.RunRunning,
		StartedAt: r.now(),
	}
	if err := r.Store.CreateRun(ctx, run); err != nil {
		return store.Run{}, termex.Result{}, fmt.Errorf("create run: %w", err)
	}
	logger.Info("run started", "run", run.ID, "documents", len(docs))

	res, err := r.Extractor.Extract(ctx, docs, cfg)
	if err == nil {
		err = r.save(ctx, run.ID, res)
	}
	if err != nil {
		return r.fail(ctx, run, err)
	}

	run.Status = store.RunCompleted
	run.FinishedAt = r.now()
	run.TotalDocuments = res.TotalDocuments
	run.Candidates = len(res.Candidates)
	run.DictionaryCandidates = len(res.DictionaryCandidates)
	if err := r.Store.FinishRun(ctx, run); err != nil {
		return run, termex.Result{}, fmt.Errorf("finish run %s: %w", run.ID, err)
	}
	logger.Info("run completed",
		"run", run.ID,
		"candidates", run.Candidates,
		"dictionary_candidates", run.DictionaryCandidates,
		"elapsed", run.FinishedAt.Sub(run.StartedAt))
	return run, res, nil
}

func (r *Runner) save(ctx context.Context, runID string, res termex.Result) error {
	if err := r.Store.SaveCandidates(ctx, runID, res.Candidates); err != nil {
		return fmt.Errorf("save candidates: %w", err)
	}
	if err := r.Store.SaveDictionaryCandidates(ctx, runID, res.DictionaryCandidates); err != nil {
		return fmt.Errorf("save dictionary candidates: %w", err)
	}
	return nil
}

func (r *Runner) fail(ctx context.Context, run store.Run, cause error) (store.Run, termex.Result, error) {
	run.Status = store.RunFailed
	run.FinishedAt = r.now()
	run.Error = cause.Error()
	// The run is marked failed even when ctx is what failed it.
	if err := r.Store.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		r.logger().Warn("could not mark run failed", "run", run.ID, "err", err)
	}
	r.logger().Error("run failed", "run", run.ID, "err", cause)
	return run, termex.Result{}, cause
}

func (r *Runner) newID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entropy == nil {
		r.entropy = ulid.Monotonic(rand.Reader, 0)
	}
	return ulid.MustNew(ulid.Timestamp(r.now()), r.entropy).String()
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
