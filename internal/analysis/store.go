package analysis

import (
	"context"
	"time"

	"github.com/sells-group/leadscore/internal/model"
)

// RecordStore is the persistence the analysis pipeline needs. store.Store
// satisfies it.
type RecordStore interface {
	GetRecord(ctx context.Context, recordID string) (*model.BusinessRecord, error)
	ClaimEligible(ctx context.Context, scope model.Scope) ([]model.BusinessRecord, error)
	UpdateStatus(ctx context.Context, recordID string, status model.AnalysisStatus) error
	UpdateScores(ctx context.Context, recordID string, scores model.Scores, status model.AnalysisStatus, analyzedAt time.Time) error
	CountByStatus(ctx context.Context, scope model.Scope) (model.StatusCounts, error)
}
