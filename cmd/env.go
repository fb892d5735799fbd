package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadscore/internal/analysis"
	"github.com/sells-group/leadscore/internal/discovery"
	"github.com/sells-group/leadscore/internal/presence"
	"github.com/sells-group/leadscore/internal/ratelimit"
	"github.com/sells-group/leadscore/internal/resilience"
	"github.com/sells-group/leadscore/internal/scrape"
	"github.com/sells-group/leadscore/internal/store"
	anthropicpkg "github.com/sells-group/leadscore/pkg/anthropic"
	"github.com/sells-group/leadscore/pkg/brave"
	"github.com/sells-group/leadscore/pkg/firecrawl"
	"github.com/sells-group/leadscore/pkg/google"
	"github.com/sells-group/leadscore/pkg/jina"
	"github.com/sells-group/leadscore/pkg/notion"
	"github.com/sells-group/leadscore/pkg/perplexity"
	sfpkg "github.com/sells-group/leadscore/pkg/salesforce"
)

// appEnv holds the store and services shared by the commands.
type appEnv struct {
	Store    store.Store
	Guard    *resilience.Guard
	Analysis *analysis.Service
}

// Close releases the store.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured store and applies migrations.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		var s *store.SQLiteStore
		s, err = store.NewSQLite(cfg.Store.DatabaseURL)
		if err == nil {
			st = s
		}
	case "postgres":
		var s *store.PostgresStore
		s, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
		if err == nil {
			st = s
		}
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initGuard builds the shared provider call policy from config.
func initGuard() *resilience.Guard {
	breakers := resilience.NewServiceBreakers(
		resilience.FromCircuitConfig(cfg.Circuit.FailureThreshold, cfg.Circuit.ResetTimeoutSecs),
	)
	retry := resilience.FromRetryConfig(
		cfg.Retry.MaxAttempts,
		cfg.Retry.InitialBackoffMs,
		cfg.Retry.MaxBackoffMs,
		cfg.Retry.Multiplier,
		cfg.Retry.JitterFraction,
	)
	return resilience.NewGuard(breakers, retry, cfg.Analysis.ProviderTimeout())
}

// buildSearcher returns the configured web-search capability, or nil when
// it has no credentials.
func buildSearcher() presence.Searcher {
	switch cfg.Search.Provider {
	case "brave":
		if cfg.Brave.Key == "" {
			zap.L().Warn("LEADSCORE_BRAVE_KEY not set, digital presence uses fallback scores")
			return nil
		}
		return presence.NewBraveSearcher(brave.NewClient(cfg.Brave.Key,
			brave.WithBaseURL(cfg.Brave.BaseURL),
			brave.WithCount(cfg.Brave.Count),
		))
	case "jina":
		if cfg.Jina.Key == "" {
			zap.L().Warn("LEADSCORE_JINA_KEY not set, digital presence uses fallback scores")
			return nil
		}
		return presence.NewJinaSearcher(newJinaClient())
	case "", "none":
		return nil
	default:
		zap.L().Warn("unknown search provider, digital presence uses fallback scores",
			zap.String("provider", cfg.Search.Provider))
		return nil
	}
}

// buildRater returns the configured language-model rater, or nil when it
// has no credentials.
func buildRater() presence.Rater {
	switch cfg.Rater.Provider {
	case "anthropic":
		if cfg.Anthropic.Key == "" {
			zap.L().Warn("LEADSCORE_ANTHROPIC_KEY not set, website scores use fallback")
			return nil
		}
		return presence.NewAnthropicRater(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model, cfg.Anthropic.MaxTokens)
	case "perplexity":
		if cfg.Perplexity.Key == "" {
			zap.L().Warn("LEADSCORE_PERPLEXITY_KEY not set, website scores use fallback")
			return nil
		}
		client := perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model),
		)
		return presence.NewPerplexityRater(client, cfg.Perplexity.Model)
	case "", "none":
		return nil
	default:
		zap.L().Warn("unknown rater provider, website scores use fallback",
			zap.String("provider", cfg.Rater.Provider))
		return nil
	}
}

// buildFetcher assembles the page-fetch chain: Jina Reader, then Firecrawl
// when configured, then a plain HTTP fetch.
func buildFetcher(breakers *resilience.ServiceBreakers) scrape.Fetcher {
	scrapers := []scrape.Scraper{scrape.NewJinaAdapter(newJinaClient())}
	if cfg.Firecrawl.Key != "" {
		scrapers = append(scrapers, scrape.NewFirecrawlAdapter(
			firecrawl.NewClient(cfg.Firecrawl.Key, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL)),
		))
	}
	if cfg.Scrape.LocalEnabled {
		scrapers = append(scrapers, scrape.NewLocalScraper())
	}
	return scrape.NewChain(scrape.NewPathMatcher(nil), breakers, scrapers...)
}

func newJinaClient() jina.Client {
	opts := []jina.Option{jina.WithBaseURL(cfg.Jina.BaseURL)}
	if cfg.Jina.SearchBaseURL != "" {
		opts = append(opts, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
	}
	return jina.NewClient(cfg.Jina.Key, opts...)
}

// buildScorers wires the presence scorers. Offline mode uses the
// deterministic fallback scores and calls no provider.
func buildScorers(guard *resilience.Guard, offline bool) (presence.DigitalPresenceScorer, presence.WebsiteScorer) {
	if offline {
		fb := presence.FallbackScorer{}
		return fb, fb.Website()
	}

	dp := presence.NewSearchPresenceScorer(buildSearcher(), guard)

	var ws presence.WebsiteScorer
	if rater := buildRater(); rater != nil {
		ws = presence.NewContentWebsiteScorer(buildFetcher(guard.Breakers()), rater, guard)
	} else {
		ws = presence.NewContentWebsiteScorer(nil, nil, guard)
	}
	return dp, ws
}

// initAnalysis builds the analysis service over st.
func initAnalysis(st store.Store, dp presence.DigitalPresenceScorer, ws presence.WebsiteScorer) *analysis.Service {
	analyzer := analysis.NewAnalyzer(st, dp, ws)
	orch := analysis.NewOrchestrator(st, analyzer,
		analysis.WithConcurrency(cfg.Analysis.Concurrency),
		analysis.WithDelay(cfg.Analysis.Delay()),
	)
	return analysis.NewService(orch, analyzer, analysis.NewReporter(st))
}

// initEnv opens the store and wires the analysis service.
func initEnv(ctx context.Context, mode string, offline bool) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	guard := initGuard()
	dp, ws := buildScorers(guard, offline)
	return &appEnv{
		Store:    st,
		Guard:    guard,
		Analysis: initAnalysis(st, dp, ws),
	}, nil
}

// initDiscoverer builds the Google Places discoverer over st.
func initDiscoverer(st discovery.Store) (*discovery.Discoverer, error) {
	gc := google.NewClient(cfg.Google.Key, google.WithBaseURL(cfg.Google.BaseURL))
	return discovery.NewDiscoverer(st, gc,
		discovery.WithRateLimit(cfg.Google.RateLimit),
		discovery.WithMaxResults(cfg.Google.MaxResults),
	)
}

// initLimiters builds the search and export limiters. The memory backend is
// returned so the caller can run its cleanup loop; it is nil for the store
// backend.
func initLimiters(st store.Store) (search, export *ratelimit.Limiter, mem *ratelimit.MemoryBackend, err error) {
	var backend ratelimit.Backend
	switch cfg.RateLimit.Backend {
	case "", "memory":
		mem = ratelimit.NewMemoryBackend()
		backend = mem
	case "store":
		backend = st
	default:
		return nil, nil, nil, eris.Errorf("unsupported rate limit backend: %s", cfg.RateLimit.Backend)
	}
	window := cfg.RateLimit.Window()
	return ratelimit.NewLimiter(cfg.RateLimit.SearchMax, window, backend),
		ratelimit.NewLimiter(cfg.RateLimit.ExportMax, window, backend),
		mem, nil
}

// initNotion returns a Notion client for the lead database.
func initNotion() (notion.Client, error) {
	if cfg.Export.Notion.Token == "" || cfg.Export.Notion.LeadDB == "" {
		return nil, eris.New("notion token and lead database are required (LEADSCORE_EXPORT_NOTION_TOKEN, LEADSCORE_EXPORT_NOTION_LEAD_DB)")
	}
	return notion.NewClient(cfg.Export.Notion.Token), nil
}

// initSalesforce authenticates with the JWT bearer flow.
func initSalesforce() (sfpkg.Client, error) {
	sf := cfg.Export.Salesforce
	if sf.ClientID == "" {
		return nil, eris.New("salesforce client ID is required (LEADSCORE_EXPORT_SALESFORCE_CLIENT_ID)")
	}
	pemData, err := os.ReadFile(sf.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}
	return sfpkg.Dial(sfpkg.Creds{
		LoginURL:   sf.LoginURL,
		Username:   sf.Username,
		ClientID:   sf.ClientID,
		PrivateKey: string(pemData),
	})
}
