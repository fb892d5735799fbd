package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadscore/internal/discovery"
	"github.com/sells-group/leadscore/internal/export"
	"github.com/sells-group/leadscore/internal/model"
	"github.com/sells-group/leadscore/internal/ratelimit"
	"github.com/sells-group/leadscore/internal/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps not-found to 404 and anything else to 500.
func writeStoreError(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, what+" not found")
		return
	}
	zap.L().Error("server: "+what, zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{"status": "ok"}
	if s.deps.Breakers != nil {
		providers := make(map[string]string)
		for name, state := range s.deps.Breakers.States() {
			providers[name] = state.String()
		}
		resp["providers"] = providers
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleIndustries(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"industries": s.deps.Discoverer.Industries()})
}

type createSearchRequest struct {
	Location string  `json:"location"`
	Industry string  `json:"industry"`
	Radius   float64 `json:"radius"`
}

type searchResponse struct {
	Search  *model.Search          `json:"search"`
	Results []model.BusinessRecord `json:"results"`
}

func (s *Server) handleCreateSearch(w http.ResponseWriter, r *http.Request) {
	var req createSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	search, records, err := s.deps.Discoverer.Discover(r.Context(), discovery.SearchParams{
		UserID:      userFrom(r.Context()),
		Location:    req.Location,
		Industry:    req.Industry,
		RadiusMiles: req.Radius,
	})
	if err != nil {
		if errors.Is(err, discovery.ErrInvalidParams) || errors.Is(err, discovery.ErrUnknownIndustry) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		zap.L().Error("server: discover", zap.Error(err))
		writeError(w, http.StatusBadGateway, "search failed")
		return
	}
	if records == nil {
		records = []model.BusinessRecord{}
	}
	writeJSON(w, http.StatusCreated, searchResponse{Search: search, Results: records})
}

func (s *Server) handleGetSearch(w http.ResponseWriter, r *http.Request) {
	search, err := s.deps.Records.GetSearch(r.Context(), chi.URLParam(r, "searchID"))
	if err != nil {
		writeStoreError(w, err, "search")
		return
	}
	writeJSON(w, http.StatusOK, search)
}

type resultsResponse struct {
	SearchID string                 `json:"search_id"`
	Page     int                    `json:"page,omitempty"`
	PageSize int                    `json:"page_size,omitempty"`
	Results  []model.BusinessRecord `json:"results"`
}

func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	searchID := chi.URLParam(r, "searchID")
	scope, err := scopeFromQuery(searchID, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts := store.ScopeOpts(scope)
	if opts.MinScore, err = intParam(r, "min_score", 0); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if st := r.URL.Query().Get("status"); st != "" {
		opts.Status = model.AnalysisStatus(st)
		if !opts.Status.Valid() {
			writeError(w, http.StatusBadRequest, "invalid status "+st)
			return
		}
	}

	if _, err := s.deps.Records.GetSearch(r.Context(), searchID); err != nil {
		writeStoreError(w, err, "search")
		return
	}
	records, err := s.deps.Records.ListRecords(r.Context(), searchID, opts)
	if err != nil {
		writeStoreError(w, err, "results")
		return
	}
	if records == nil {
		records = []model.BusinessRecord{}
	}
	writeJSON(w, http.StatusOK, resultsResponse{
		SearchID: searchID,
		Page:     scope.Page,
		PageSize: scope.Limit(),
		Results:  records,
	})
}

type analysisRequest struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

func (s *Server) handleStartAnalysis(w http.ResponseWriter, r *http.Request) {
	searchID := chi.URLParam(r, "searchID")

	var req analysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Page < 0 || req.PageSize < 0 {
		writeError(w, http.StatusBadRequest, "page and page_size must be >= 0")
		return
	}

	if _, err := s.deps.Records.GetSearch(r.Context(), searchID); err != nil {
		writeStoreError(w, err, "search")
		return
	}

	scope := model.SearchScope(searchID)
	if req.Page > 0 {
		scope = model.PageScope(searchID, req.Page, req.PageSize)
	}
	s.deps.Analysis.StartBatch(r.Context(), scope)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromQuery(chi.URLParam(r, "searchID"), r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := s.deps.Analysis.Progress(r.Context(), scope)
	if err != nil {
		writeStoreError(w, err, "progress")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Analysis.ScoreOne(r.Context(), chi.URLParam(r, "resultID"))
	if err != nil {
		writeStoreError(w, err, "result")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	searchID := chi.URLParam(r, "searchID")
	minScore, err := intParam(r, "min_score", s.deps.ExportMinScore)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var buf bytes.Buffer
	if _, err := s.exporter.Export(r.Context(), searchID, store.ListOpts{MinScore: minScore}, export.NewXLSXWriter(&buf)); err != nil {
		writeStoreError(w, err, "export")
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="leads-%s.xlsx"`, searchID))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		zap.L().Debug("server: write export", zap.Error(err))
	}
}

type rateLimitResponse struct {
	Operation          string `json:"operation"`
	Max                int    `json:"max"`
	Remaining          int    `json:"remaining"`
	RemainingTimeMs    int64  `json:"remaining_time_ms"`
	RemainingTimeHuman string `json:"remaining_time"`
}

func (s *Server) handleRateLimit(w http.ResponseWriter, r *http.Request) {
	op := chi.URLParam(r, "operation")
	l, ok := s.limiters[op]
	if !ok || l == nil {
		writeError(w, http.StatusNotFound, "unknown operation "+op)
		return
	}

	key := ratelimit.Key(op, userFrom(r.Context()))
	remaining, err := l.Remaining(r.Context(), key)
	if err != nil {
		writeStoreError(w, err, "rate limit")
		return
	}
	left, err := l.RemainingTime(r.Context(), key)
	if err != nil {
		writeStoreError(w, err, "rate limit")
		return
	}
	writeJSON(w, http.StatusOK, rateLimitResponse{
		Operation:          op,
		Max:                l.Max(),
		Remaining:          remaining,
		RemainingTimeMs:    left.Milliseconds(),
		RemainingTimeHuman: left.Round(time.Second).String(),
	})
}

// scopeFromQuery reads page and page_size. No page means the whole search.
func scopeFromQuery(searchID string, r *http.Request) (model.Scope, error) {
	page, err := intParam(r, "page", 0)
	if err != nil {
		return model.Scope{}, err
	}
	size, err := intParam(r, "page_size", 0)
	if err != nil {
		return model.Scope{}, err
	}
	if page < 0 || size < 0 {
		return model.Scope{}, eris.New("page and page_size must be >= 0")
	}
	if page == 0 {
		return model.SearchScope(searchID), nil
	}
	return model.PageScope(searchID, page, size), nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, eris.Errorf("invalid %s %q", name, v)
	}
	return n, nil
}
