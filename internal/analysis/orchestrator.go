package analysis

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadscore/internal/model"
)

const (
	defaultConcurrency = 1
	defaultDelay       = 1500 * time.Millisecond
)

// BatchResult summarizes one batch run. Completed+Failed equals Selected
// unless the run was interrupted, in which case Err is set.
type BatchResult struct {
	Selected  int   `json:"selected"`
	Completed int   `json:"completed"`
	Failed    int   `json:"failed"`
	Err       error `json:"-"`
}

// Sleeper pauses between items. It returns early with ctx's error.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// itemAnalyzer scores one claimed record.
type itemAnalyzer interface {
	Analyze(ctx context.Context, rec model.BusinessRecord) model.ScoreResult
}

// Orchestrator claims the eligible records of a scope and scores them on a
// bounded worker pool, pacing items to stay under provider rate limits.
type Orchestrator struct {
	store       RecordStore
	analyzer    itemAnalyzer
	concurrency int
	delay       time.Duration
	sleep       Sleeper
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithConcurrency sets the worker pool size.
func WithConcurrency(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithDelay sets the pause a worker takes after each item.
func WithDelay(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.delay = d
		}
	}
}

// WithSleeper replaces the pause implementation.
func WithSleeper(s Sleeper) OrchestratorOption {
	return func(o *Orchestrator) { o.sleep = s }
}

// NewOrchestrator creates an Orchestrator with one worker and a 1.5s delay
// unless overridden.
func NewOrchestrator(store RecordStore, analyzer itemAnalyzer, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		store:       store,
		analyzer:    analyzer,
		concurrency: defaultConcurrency,
		delay:       defaultDelay,
		sleep:       Sleep,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run claims the scope's eligible records and scores each one. Per-item
// failures are counted, never returned. A failed claim is a no-op. Records
// claimed but not reached before ctx ends stay analyzing.
func (o *Orchestrator) Run(ctx context.Context, scope model.Scope) BatchResult {
	log := zap.L().With(
		zap.String("search_id", scope.SearchID),
		zap.String("scope", scope.String()),
		zap.Int("page", scope.Page),
	)

	records, err := o.store.ClaimEligible(ctx, scope)
	if err != nil {
		serr := &SelectionError{Scope: scope, Err: err}
		log.Error("analysis: claim failed, batch skipped", zap.Error(serr))
		return BatchResult{Err: serr}
	}
	if len(records) == 0 {
		log.Info("analysis: nothing to analyze")
		return BatchResult{}
	}

	log.Info("analysis: batch started",
		zap.Int("records", len(records)),
		zap.Int("concurrency", o.concurrency),
	)

	var g errgroup.Group
	g.SetLimit(o.concurrency)

	var completed, failed atomic.Int64
	last := len(records) - 1

	for i, rec := range records {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			res := o.analyzer.Analyze(ctx, rec)
			if res.Success {
				completed.Add(1)
			} else {
				failed.Add(1)
			}
			if i < last {
				// Interruption is checked before the next item starts.
				_ = o.sleep(ctx, o.delay)
			}
			return nil
		})
	}
	_ = g.Wait()

	result := BatchResult{
		Selected:  len(records),
		Completed: int(completed.Load()),
		Failed:    int(failed.Load()),
	}
	if result.Completed+result.Failed < result.Selected {
		result.Err = ctx.Err()
	}
	if result.Err != nil {
		log.Warn("analysis: batch interrupted",
			zap.Int("unprocessed", result.Selected-result.Completed-result.Failed),
			zap.Error(result.Err),
		)
	} else {
		log.Info("analysis: batch complete",
			zap.Int("completed", result.Completed),
			zap.Int("failed", result.Failed),
		)
	}
	return result
}
