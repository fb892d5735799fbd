package analysis

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadscore/internal/model"
	"github.com/sells-group/leadscore/internal/presence"
)

// persistTimeout bounds the terminal status writes. They ignore caller
// cancellation so a record never stays analyzing after a disconnect.
const persistTimeout = 10 * time.Second

// Analyzer scores a single business record and persists the outcome.
type Analyzer struct {
	store    RecordStore
	presence presence.DigitalPresenceScorer
	website  presence.WebsiteScorer
	clock    func() time.Time
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithClock sets the time source for last_analyzed_at.
func WithClock(clock func() time.Time) AnalyzerOption {
	return func(a *Analyzer) { a.clock = clock }
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(store RecordStore, dp presence.DigitalPresenceScorer, ws presence.WebsiteScorer, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		store:    store,
		presence: dp,
		website:  ws,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze scores rec and persists it as complete. Any failure marks the
// record failed and is reported in the result; Analyze never panics.
// Rescoring overwrites previous scores.
func (a *Analyzer) Analyze(ctx context.Context, rec model.BusinessRecord) (result model.ScoreResult) {
	log := zap.L().With(
		zap.String("record_id", rec.ID),
		zap.String("search_id", rec.SearchID),
	)

	defer func() {
		if r := recover(); r != nil {
			err := eris.Errorf("analysis: panic scoring record: %v", r)
			log.Error("analysis: recovered panic", zap.Error(err))
			result = a.fail(ctx, rec.ID, err)
		}
	}()

	if err := validate(rec); err != nil {
		log.Warn("analysis: invalid record", zap.Error(err))
		return a.fail(ctx, rec.ID, err)
	}

	dp := a.presence.Score(ctx, rec.Name, rec.Address, rec.Website)
	ws := a.website.Score(ctx, rec.Name, rec.Website)
	scores := NewScores(ws.Quality, dp, ws.SEO)

	wctx, cancel := persistContext(ctx)
	defer cancel()
	if err := a.store.UpdateScores(wctx, rec.ID, scores, model.StatusComplete, a.clock()); err != nil {
		perr := &PersistenceError{RecordID: rec.ID, Op: "save scores", Err: err}
		log.Error("analysis: persist scores failed", zap.Error(perr))
		return a.fail(ctx, rec.ID, perr)
	}

	log.Info("analysis: record scored",
		zap.Int("website_quality", scores.WebsiteQuality),
		zap.Int("digital_presence", scores.DigitalPresence),
		zap.Int("seo", scores.SEO),
		zap.Int("overall", scores.Overall),
	)
	return model.ScoreResult{Success: true, Scores: &scores}
}

// ScoreOne loads a record, marks it analyzing, and scores it. The error is
// non-nil only when the record cannot be loaded.
func (a *Analyzer) ScoreOne(ctx context.Context, recordID string) (model.ScoreResult, error) {
	rec, err := a.store.GetRecord(ctx, recordID)
	if err != nil {
		return model.ScoreResult{}, eris.Wrapf(err, "analysis: load record %s", recordID)
	}
	if err := a.store.UpdateStatus(ctx, recordID, model.StatusAnalyzing); err != nil {
		perr := &PersistenceError{RecordID: recordID, Op: "mark analyzing", Err: err}
		zap.L().Error("analysis: mark analyzing failed", zap.Error(perr))
		return model.ScoreResult{Success: false, Error: perr.Error()}, nil
	}
	return a.Analyze(ctx, *rec), nil
}

// fail persists the failed status and builds the failure result. A failed
// write is logged; the record keeps its last persisted state.
func (a *Analyzer) fail(ctx context.Context, recordID string, cause error) model.ScoreResult {
	if recordID != "" {
		wctx, cancel := persistContext(ctx)
		defer cancel()
		if err := a.store.UpdateStatus(wctx, recordID, model.StatusFailed); err != nil {
			zap.L().Error("analysis: mark failed failed",
				zap.String("record_id", recordID),
				zap.Error(&PersistenceError{RecordID: recordID, Op: "mark failed", Err: err}),
			)
		}
	}
	return model.ScoreResult{Success: false, Error: cause.Error()}
}

func persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
}

func validate(rec model.BusinessRecord) error {
	var missing []string
	if rec.ID == "" {
		missing = append(missing, "id")
	}
	if strings.TrimSpace(rec.Name) == "" {
		missing = append(missing, "business name")
	}
	if len(missing) > 0 {
		return eris.Errorf("analysis: record missing %s", strings.Join(missing, ", "))
	}
	return nil
}
