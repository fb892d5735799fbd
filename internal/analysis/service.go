package analysis

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/leadscore/internal/model"
)

// Service is the analysis surface used by the HTTP API and CLI.
type Service struct {
	orchestrator *Orchestrator
	analyzer     *Analyzer
	reporter     *Reporter

	wg sync.WaitGroup
}

// NewService wires the analysis components together.
func NewService(o *Orchestrator, a *Analyzer, r *Reporter) *Service {
	return &Service{orchestrator: o, analyzer: a, reporter: r}
}

// RunBatch runs a batch and waits for it.
func (s *Service) RunBatch(ctx context.Context, scope model.Scope) BatchResult {
	return s.orchestrator.Run(ctx, scope)
}

// StartBatch runs a batch in the background and returns immediately. The
// batch outlives ctx's cancellation but keeps its values.
func (s *Service) StartBatch(ctx context.Context, scope model.Scope) {
	bctx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				zap.L().Error("analysis: background batch panicked",
					zap.String("search_id", scope.SearchID),
					zap.Any("panic", r),
				)
			}
		}()
		s.orchestrator.Run(bctx, scope)
	}()
}

// Wait blocks until background batches finish or ctx ends.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ScoreOne scores a single record.
func (s *Service) ScoreOne(ctx context.Context, recordID string) (model.ScoreResult, error) {
	return s.analyzer.ScoreOne(ctx, recordID)
}

// Progress reports the scope's analysis progress.
func (s *Service) Progress(ctx context.Context, scope model.Scope) (model.AnalysisProgress, error) {
	return s.reporter.Progress(ctx, scope)
}
