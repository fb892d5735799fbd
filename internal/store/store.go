package store

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscore/internal/model"
)

// ErrNotFound is returned (wrapped) when a search or record does not exist.
var ErrNotFound = eris.New("store: not found")

// ListOpts filters and pages ListRecords. Records are always ordered by
// overall score (unscored last) then discovery position.
type ListOpts struct {
	MinScore int                  `json:"min_score,omitempty"`
	Status   model.AnalysisStatus `json:"status,omitempty"`
	Offset   int                  `json:"offset,omitempty"`
	Limit    int                  `json:"limit,omitempty"`
}

// ScopeOpts returns ListOpts covering the page window of scope.
func ScopeOpts(scope model.Scope) ListOpts {
	return ListOpts{Offset: scope.Offset(), Limit: scope.Limit()}
}

// RateWindow is the state of one fixed rate-limit window.
type RateWindow struct {
	Count   int       `json:"count"`
	ResetAt time.Time `json:"reset_at"`
}

// Store defines the persistence interface for searches, business records and
// rate-limit windows.
type Store interface {
	// Searches
	CreateSearch(ctx context.Context, search *model.Search) error
	GetSearch(ctx context.Context, searchID string) (*model.Search, error)

	// Records
	InsertRecords(ctx context.Context, records []model.BusinessRecord) (int64, error)
	GetRecord(ctx context.Context, recordID string) (*model.BusinessRecord, error)
	ListRecords(ctx context.Context, searchID string, opts ListOpts) ([]model.BusinessRecord, error)

	// Analysis
	SelectEligible(ctx context.Context, scope model.Scope) ([]model.BusinessRecord, error)
	ClaimEligible(ctx context.Context, scope model.Scope) ([]model.BusinessRecord, error)
	UpdateStatus(ctx context.Context, recordID string, status model.AnalysisStatus) error
	UpdateScores(ctx context.Context, recordID string, scores model.Scores, status model.AnalysisStatus, analyzedAt time.Time) error
	CountByStatus(ctx context.Context, scope model.Scope) (model.StatusCounts, error)

	// Rate limits
	HitRateLimit(ctx context.Context, key string, window time.Duration, now time.Time) (RateWindow, error)
	PeekRateLimit(ctx context.Context, key string, now time.Time) (RateWindow, bool, error)
	DeleteExpiredRateLimits(ctx context.Context, now time.Time) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// validateRecords checks the fields every inserted record must carry.
func validateRecords(records []model.BusinessRecord) error {
	for i, r := range records {
		if r.ID == "" || r.SearchID == "" {
			return eris.Errorf("store: record %d missing id or search id", i)
		}
		if r.Name == "" {
			return eris.Errorf("store: record %s has empty business name", r.ID)
		}
		if !r.AnalysisStatus.Valid() {
			return eris.Errorf("store: record %s has invalid status %q", r.ID, r.AnalysisStatus)
		}
	}
	return nil
}

// recordColumns is the column order every record query selects and scans.
const recordColumns = `id, search_id, position, business_name, address, phone, email, website,
	google_place_id, website_quality_score, digital_presence_score, seo_score,
	overall_score, analysis_status, last_analyzed_at, created_at, updated_at`

// sortForScope orders claimed rows the way the scope selects them. UPDATE ...
// RETURNING gives no ordering guarantee.
func sortForScope(records []model.BusinessRecord, scope model.Scope) {
	if !scope.IsPage() {
		slices.SortStableFunc(records, func(a, b model.BusinessRecord) int {
			return cmp.Compare(a.Position, b.Position)
		})
		return
	}
	slices.SortStableFunc(records, func(a, b model.BusinessRecord) int {
		switch {
		case a.OverallScore == nil && b.OverallScore != nil:
			return 1
		case a.OverallScore != nil && b.OverallScore == nil:
			return -1
		case a.OverallScore != nil && b.OverallScore != nil && *a.OverallScore != *b.OverallScore:
			return cmp.Compare(*b.OverallScore, *a.OverallScore)
		}
		return cmp.Compare(a.Position, b.Position)
	})
}
