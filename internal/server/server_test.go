package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/leadscore/internal/discovery"
	"github.com/sells-group/leadscore/internal/model"
	"github.com/sells-group/leadscore/internal/ratelimit"
	"github.com/sells-group/leadscore/internal/resilience"
	"github.com/sells-group/leadscore/internal/store"
)

type mockDiscoverer struct {
	mock.Mock
}

func (m *mockDiscoverer) Discover(ctx context.Context, p discovery.SearchParams) (*model.Search, []model.BusinessRecord, error) {
	args := m.Called(ctx, p)
	s, _ := args.Get(0).(*model.Search)
	rs, _ := args.Get(1).([]model.BusinessRecord)
	return s, rs, args.Error(2)
}

func (m *mockDiscoverer) Industries() []string { return []string{"all", "automotive"} }

type mockAnalysis struct {
	mock.Mock
}

func (m *mockAnalysis) StartBatch(ctx context.Context, scope model.Scope) {
	m.Called(ctx, scope)
}

func (m *mockAnalysis) ScoreOne(ctx context.Context, id string) (model.ScoreResult, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.ScoreResult), args.Error(1)
}

func (m *mockAnalysis) Progress(ctx context.Context, scope model.Scope) (model.AnalysisProgress, error) {
	args := m.Called(ctx, scope)
	return args.Get(0).(model.AnalysisProgress), args.Error(1)
}

type fakeRecords struct {
	mu      sync.Mutex
	search  *model.Search
	records []model.BusinessRecord
	gotOpts store.ListOpts
}

func (f *fakeRecords) GetSearch(_ context.Context, id string) (*model.Search, error) {
	if f.search == nil || f.search.ID != id {
		return nil, store.ErrNotFound
	}
	return f.search, nil
}

func (f *fakeRecords) ListRecords(_ context.Context, _ string, opts store.ListOpts) ([]model.BusinessRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotOpts = opts
	var out []model.BusinessRecord
	for _, r := range f.records {
		if opts.MinScore > 0 && (r.OverallScore == nil || *r.OverallScore < opts.MinScore) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

var testNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

type harness struct {
	srv      *httptest.Server
	disc     *mockDiscoverer
	analysis *mockAnalysis
	records  *fakeRecords
}

func newHarness(t *testing.T, searchMax, exportMax int) *harness {
	t.Helper()
	clock := ratelimit.WithClock(func() time.Time { return testNow })
	backend := ratelimit.NewMemoryBackend()

	overall := 72
	h := &harness{
		disc:     &mockDiscoverer{},
		analysis: &mockAnalysis{},
		records: &fakeRecords{
			search: &model.Search{ID: "s1", Location: "Austin", Industry: "all", ResultsCount: 2},
			records: []model.BusinessRecord{
				{ID: "r1", SearchID: "s1", Position: 1, Name: "Alpha", OverallScore: &overall, AnalysisStatus: model.StatusComplete},
				{ID: "r2", SearchID: "s1", Position: 2, Name: "Beta", AnalysisStatus: model.StatusPending},
			},
		},
	}
	s := New(Deps{
		Discoverer:    h.disc,
		Analysis:      h.analysis,
		Records:       h.records,
		SearchLimiter: ratelimit.NewLimiter(searchMax, time.Hour, backend, clock),
		ExportLimiter: ratelimit.NewLimiter(exportMax, time.Hour, backend, clock),
		Breakers:      resilience.NewServiceBreakers(resilience.DefaultCircuitBreakerConfig()),
	})
	h.srv = httptest.NewServer(s.Routes())
	t.Cleanup(h.srv.Close)
	return h
}

func (h *harness) do(t *testing.T, method, path, body string, headers ...string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, h.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	h := newHarness(t, 5, 5)
	resp := h.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestIndustries(t *testing.T) {
	h := newHarness(t, 5, 5)
	resp := h.do(t, http.MethodGet, "/v1/industries", "")
	body := decode[map[string][]string](t, resp)
	assert.Equal(t, []string{"all", "automotive"}, body["industries"])
}

func TestCreateSearch(t *testing.T) {
	h := newHarness(t, 2, 5)
	h.disc.On("Discover", mock.Anything, discovery.SearchParams{UserID: "u1", Location: "Austin", Industry: "automotive", RadiusMiles: 10}).
		Return(&model.Search{ID: "s9", Location: "Austin"}, []model.BusinessRecord{{ID: "r9", Name: "Garage"}}, nil).Once()

	resp := h.do(t, http.MethodPost, "/v1/searches", `{"location":"Austin","industry":"automotive","radius":10}`, "X-User-ID", "u1")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("X-RateLimit-Remaining"))

	body := decode[searchResponse](t, resp)
	assert.Equal(t, "s9", body.Search.ID)
	require.Len(t, body.Results, 1)
	assert.Equal(t, "Garage", body.Results[0].Name)
	h.disc.AssertExpectations(t)
}

func TestCreateSearch_RateLimited(t *testing.T) {
	h := newHarness(t, 1, 5)
	h.disc.On("Discover", mock.Anything, mock.Anything).Return(&model.Search{ID: "s9"}, nil, nil).Twice()

	first := h.do(t, http.MethodPost, "/v1/searches", `{"location":"Austin"}`)
	require.Equal(t, http.StatusCreated, first.StatusCode)

	second := h.do(t, http.MethodPost, "/v1/searches", `{"location":"Austin"}`)
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
	assert.Equal(t, "3600", second.Header.Get("Retry-After"))
	assert.Equal(t, "0", second.Header.Get("X-RateLimit-Remaining"))

	other := h.do(t, http.MethodPost, "/v1/searches", `{"location":"Austin"}`, "X-User-ID", "someone-else")
	assert.Equal(t, http.StatusCreated, other.StatusCode)
	h.disc.AssertExpectations(t)
}

func TestCreateSearch_BadInput(t *testing.T) {
	h := newHarness(t, 5, 5)
	h.disc.On("Discover", mock.Anything, mock.Anything).
		Return(nil, nil, discovery.ErrInvalidParams).Once()

	resp := h.do(t, http.MethodPost, "/v1/searches", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = h.do(t, http.MethodPost, "/v1/searches", `{"location":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetSearch(t *testing.T) {
	h := newHarness(t, 5, 5)

	resp := h.do(t, http.MethodGet, "/v1/searches/s1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Austin", decode[model.Search](t, resp).Location)

	resp = h.do(t, http.MethodGet, "/v1/searches/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListResults(t *testing.T) {
	h := newHarness(t, 5, 5)

	resp := h.do(t, http.MethodGet, "/v1/searches/s1/results?page=2&page_size=5", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[resultsResponse](t, resp)
	assert.Equal(t, 2, body.Page)
	assert.Equal(t, 5, body.PageSize)
	assert.Equal(t, store.ListOpts{Offset: 5, Limit: 5}, h.records.gotOpts)

	resp = h.do(t, http.MethodGet, "/v1/searches/s1/results?min_score=50&status=complete", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decode[resultsResponse](t, resp)
	require.Len(t, body.Results, 1)
	assert.Equal(t, "r1", body.Results[0].ID)

	resp = h.do(t, http.MethodGet, "/v1/searches/s1/results?page=x", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = h.do(t, http.MethodGet, "/v1/searches/s1/results?status=bogus", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStartAnalysis(t *testing.T) {
	h := newHarness(t, 5, 5)
	h.analysis.On("StartBatch", mock.Anything, model.PageScope("s1", 1, 10)).Once()
	h.analysis.On("StartBatch", mock.Anything, model.SearchScope("s1")).Once()

	resp := h.do(t, http.MethodPost, "/v1/searches/s1/analysis", `{"page":1,"page_size":10}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, map[string]string{"status": "accepted"}, decode[map[string]string](t, resp))

	resp = h.do(t, http.MethodPost, "/v1/searches/s1/analysis", "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = h.do(t, http.MethodPost, "/v1/searches/missing/analysis", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	h.analysis.AssertExpectations(t)
}

func TestProgress(t *testing.T) {
	h := newHarness(t, 5, 5)
	h.analysis.On("Progress", mock.Anything, model.PageScope("s1", 1, 10)).
		Return(model.AnalysisProgress{Total: 10, Complete: 4, Analyzing: 6, Page: 1, Status: model.PageAnalyzing}, nil).Once()

	resp := h.do(t, http.MethodGet, "/v1/searches/s1/progress?page=1&page_size=10", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	p := decode[model.AnalysisProgress](t, resp)
	assert.Equal(t, 4, p.Complete)
	assert.Equal(t, model.PageAnalyzing, p.Status)
}

func TestScore(t *testing.T) {
	h := newHarness(t, 5, 5)
	scores := &model.Scores{WebsiteQuality: 30, DigitalPresence: 20, SEO: 20, Overall: 70}
	h.analysis.On("ScoreOne", mock.Anything, "r1").Return(model.ScoreResult{Success: true, Scores: scores}, nil).Once()
	h.analysis.On("ScoreOne", mock.Anything, "gone").Return(model.ScoreResult{}, store.ErrNotFound).Once()

	resp := h.do(t, http.MethodPost, "/v1/results/r1/score", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[model.ScoreResult](t, resp)
	assert.True(t, res.Success)
	assert.Equal(t, 70, res.Scores.Overall)

	resp = h.do(t, http.MethodPost, "/v1/results/gone/score", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExportXLSX(t *testing.T) {
	h := newHarness(t, 5, 1)

	resp := h.do(t, http.MethodGet, "/v1/searches/s1/export.xlsx?min_score=50", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, xlsxContentType, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "leads-s1.xlsx")

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	f, err := xlsx.OpenBinary(data)
	require.NoError(t, err)
	assert.Len(t, f.Sheets[0].Rows, 2)

	again := h.do(t, http.MethodGet, "/v1/searches/s1/export.xlsx", "")
	assert.Equal(t, http.StatusTooManyRequests, again.StatusCode)
}

func TestExportXLSX_NotFound(t *testing.T) {
	h := newHarness(t, 5, 5)
	resp := h.do(t, http.MethodGet, "/v1/searches/missing/export.xlsx", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRateLimitStatus(t *testing.T) {
	h := newHarness(t, 3, 5)
	h.disc.On("Discover", mock.Anything, mock.Anything).Return(&model.Search{ID: "s9"}, nil, nil).Once()

	resp := h.do(t, http.MethodGet, "/v1/ratelimit/search", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[rateLimitResponse](t, resp)
	assert.Equal(t, 3, body.Remaining)
	assert.Zero(t, body.RemainingTimeMs)

	h.do(t, http.MethodPost, "/v1/searches", `{"location":"Austin"}`)

	resp = h.do(t, http.MethodGet, "/v1/ratelimit/search", "")
	body = decode[rateLimitResponse](t, resp)
	assert.Equal(t, 2, body.Remaining)
	assert.Equal(t, int64(time.Hour/time.Millisecond), body.RemainingTimeMs)
	assert.Equal(t, 3, body.Max)

	resp = h.do(t, http.MethodGet, "/v1/ratelimit/teleport", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
