package analysis

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscore/internal/model"
)

// Reporter answers progress polls from current record states.
type Reporter struct {
	store RecordStore
}

// NewReporter creates a Reporter.
func NewReporter(store RecordStore) *Reporter {
	return &Reporter{store: store}
}

// Progress counts the scope's records by status. Page scopes also carry the
// page's rollup status.
func (r *Reporter) Progress(ctx context.Context, scope model.Scope) (model.AnalysisProgress, error) {
	counts, err := r.store.CountByStatus(ctx, scope)
	if err != nil {
		return model.AnalysisProgress{}, eris.Wrapf(err, "analysis: count %s %s", scope, scope.SearchID)
	}

	p := model.AnalysisProgress{
		Pending:   counts[model.StatusPending] + counts[model.StatusBasicComplete],
		Analyzing: counts[model.StatusAnalyzing],
		Complete:  counts[model.StatusComplete],
		Failed:    counts[model.StatusFailed],
	}
	p.Total = p.Pending + p.Analyzing + p.Complete + p.Failed

	if scope.IsPage() {
		p.Page = scope.Page
		p.Status = Rollup(p)
	}
	return p, nil
}

// Rollup reduces progress counts to one page status. Analyzing wins, then an
// empty page or a finished page with at least one success is complete, then
// an all-failed page is failed. Anything else is pending.
func Rollup(p model.AnalysisProgress) model.PageStatus {
	switch {
	case p.Analyzing > 0:
		return model.PageAnalyzing
	case p.Total == 0:
		return model.PageComplete
	case p.Complete+p.Failed == p.Total && p.Complete > 0:
		return model.PageComplete
	case p.Failed == p.Total:
		return model.PageFailed
	default:
		return model.PagePending
	}
}
