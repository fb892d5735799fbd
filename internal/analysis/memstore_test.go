package analysis

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscore/internal/model"
)

// memStore is an in-memory RecordStore with failure injection.
type memStore struct {
	mu      sync.Mutex
	records map[string]*model.BusinessRecord

	claimErr        error
	updateScoresErr map[string]error
	updateStatusErr map[string]error
	statusWrites    []string
}

func newMemStore(records ...model.BusinessRecord) *memStore {
	s := &memStore{
		records:         make(map[string]*model.BusinessRecord),
		updateScoresErr: make(map[string]error),
		updateStatusErr: make(map[string]error),
	}
	for i := range records {
		r := records[i]
		s.records[r.ID] = &r
	}
	return s
}

func (s *memStore) get(id string) model.BusinessRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.records[id]
}

func (s *memStore) GetRecord(_ context.Context, id string) (*model.BusinessRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, eris.New("store: not found")
	}
	cp := *r
	return &cp, nil
}

// window returns the scope's records in page order, or position order for a
// whole search.
func (s *memStore) window(scope model.Scope) []*model.BusinessRecord {
	var rows []*model.BusinessRecord
	for _, r := range s.records {
		if r.SearchID == scope.SearchID {
			rows = append(rows, r)
		}
	}
	if !scope.IsPage() {
		slices.SortFunc(rows, func(a, b *model.BusinessRecord) int { return cmp.Compare(a.Position, b.Position) })
		return rows
	}
	slices.SortFunc(rows, func(a, b *model.BusinessRecord) int {
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
	lo := min(scope.Offset(), len(rows))
	hi := min(lo+scope.Limit(), len(rows))
	return rows[lo:hi]
}

func (s *memStore) ClaimEligible(_ context.Context, scope model.Scope) ([]model.BusinessRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimErr != nil {
		return nil, s.claimErr
	}
	var out []model.BusinessRecord
	for _, r := range s.window(scope) {
		if r.AnalysisStatus.Eligible() {
			r.AnalysisStatus = model.StatusAnalyzing
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *memStore) UpdateStatus(_ context.Context, id string, status model.AnalysisStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.updateStatusErr[id]; err != nil {
		return err
	}
	r, ok := s.records[id]
	if !ok {
		return eris.New("store: not found")
	}
	r.AnalysisStatus = status
	s.statusWrites = append(s.statusWrites, id+":"+string(status))
	return nil
}

func (s *memStore) UpdateScores(_ context.Context, id string, scores model.Scores, status model.AnalysisStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.updateScoresErr[id]; err != nil {
		return err
	}
	r, ok := s.records[id]
	if !ok {
		return eris.New("store: not found")
	}
	r.ApplyScores(scores)
	r.AnalysisStatus = status
	r.LastAnalyzedAt = &at
	return nil
}

func (s *memStore) CountByStatus(_ context.Context, scope model.Scope) (model.StatusCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := model.StatusCounts{}
	for _, r := range s.window(scope) {
		counts[r.AnalysisStatus]++
	}
	return counts, nil
}

// rec builds a test record.
func rec(id string, pos int, name, website string, status model.AnalysisStatus) model.BusinessRecord {
	return model.BusinessRecord{
		ID:             id,
		SearchID:       "search-1",
		Position:       pos,
		Name:           name,
		Website:        website,
		AnalysisStatus: status,
	}
}
