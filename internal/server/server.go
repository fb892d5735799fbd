// Package server exposes discovery, analysis, progress and export over a JSON
// HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadscore/internal/discovery"
	"github.com/sells-group/leadscore/internal/export"
	"github.com/sells-group/leadscore/internal/model"
	"github.com/sells-group/leadscore/internal/ratelimit"
	"github.com/sells-group/leadscore/internal/resilience"
)

// Rate-limited operation names.
const (
	OpSearch = "search"
	OpExport = "export"
)

// Discoverer runs searches.
type Discoverer interface {
	Discover(ctx context.Context, p discovery.SearchParams) (*model.Search, []model.BusinessRecord, error)
	Industries() []string
}

// Analysis starts batches, scores single records and reports progress.
// *analysis.Service satisfies it.
type Analysis interface {
	StartBatch(ctx context.Context, scope model.Scope)
	ScoreOne(ctx context.Context, recordID string) (model.ScoreResult, error)
	Progress(ctx context.Context, scope model.Scope) (model.AnalysisProgress, error)
}

// Deps are the services the API serves.
type Deps struct {
	Discoverer     Discoverer
	Analysis       Analysis
	Records        export.Source
	SearchLimiter  *ratelimit.Limiter
	ExportLimiter  *ratelimit.Limiter
	Breakers       *resilience.ServiceBreakers
	CORSOrigins    []string
	ExportMinScore int
}

// Server is the HTTP API.
type Server struct {
	deps     Deps
	exporter *export.Exporter
	limiters map[string]*ratelimit.Limiter
}

// New creates a Server.
func New(deps Deps) *Server {
	return &Server{
		deps:     deps,
		exporter: export.NewExporter(deps.Records),
		limiters: map[string]*ratelimit.Limiter{
			OpSearch: deps.SearchLimiter,
			OpExport: deps.ExportLimiter,
		},
	}
}

// Routes builds the router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.corsOrigins(),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", headerUserID},
		ExposedHeaders:   []string{"Retry-After", headerRemaining, "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(withUser)

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/industries", s.handleIndustries)
		r.With(s.limit(OpSearch)).Post("/searches", s.handleCreateSearch)
		r.Route("/searches/{searchID}", func(r chi.Router) {
			r.Get("/", s.handleGetSearch)
			r.Get("/results", s.handleListResults)
			r.Post("/analysis", s.handleStartAnalysis)
			r.Get("/progress", s.handleProgress)
			r.With(s.limit(OpExport)).Get("/export.xlsx", s.handleExportXLSX)
		})
		r.Post("/results/{resultID}/score", s.handleScore)
		r.Get("/ratelimit/{operation}", s.handleRateLimit)
	})
	return r
}

func (s *Server) corsOrigins() []string {
	if len(s.deps.CORSOrigins) == 0 {
		return []string{"*"}
	}
	return s.deps.CORSOrigins
}

// ListenAndServe serves on port until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("server: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("server: shutdown", zap.Error(err))
		}
	}()

	zap.L().Info("server: listening", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}
