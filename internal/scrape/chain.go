package scrape

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadscore/internal/resilience"
)

// ErrExcluded is returned when the URL matches an exclude pattern.
var ErrExcluded = eris.New("scrape: url excluded")

// Chain tries scrapers in priority order, returning the first success. Each
// scraper has its own circuit breaker so a failing upstream is skipped
// without waiting on it.
type Chain struct {
	PathMatcher *PathMatcher
	scrapers    []Scraper
	breakers    *resilience.ServiceBreakers
}

// NewChain creates a Chain with the given path matcher and scrapers. A nil
// breakers set uses the default breaker config.
func NewChain(matcher *PathMatcher, breakers *resilience.ServiceBreakers, scrapers ...Scraper) *Chain {
	if breakers == nil {
		breakers = resilience.NewServiceBreakers(resilience.DefaultCircuitBreakerConfig())
	}
	return &Chain{
		PathMatcher: matcher,
		scrapers:    scrapers,
		breakers:    breakers,
	}
}

// Len returns the number of scrapers in the chain.
func (c *Chain) Len() int { return len(c.scrapers) }

// Fetch implements Fetcher.
func (c *Chain) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	return c.Scrape(ctx, rawURL)
}

// Scrape normalizes targetURL and tries each scraper in order. Returns the
// first successful page, or an error if all fail.
func (c *Chain) Scrape(ctx context.Context, targetURL string) (*Page, error) {
	u, err := NormalizeURL(targetURL)
	if err != nil {
		return nil, err
	}
	if c.PathMatcher.IsExcluded(u) {
		return nil, eris.Wrapf(ErrExcluded, "scrape: %s", u)
	}

	var lastErr error
	for _, s := range c.scrapers {
		if !s.Supports(u) {
			continue
		}
		cb := c.breakers.Get("scrape." + s.Name())
		page, err := resilience.ExecuteVal(ctx, cb, func(ctx context.Context) (*Page, error) {
			return s.Scrape(ctx, u)
		})
		if err == nil && page != nil {
			return page, nil
		}
		if err != nil {
			zap.L().Debug("scrape: scraper failed, trying next",
				zap.String("scraper", s.Name()),
				zap.String("url", u),
				zap.Error(err),
			)
			lastErr = err
		}
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "scrape: fetch cancelled")
		}
	}
	if lastErr != nil {
		return nil, eris.Wrap(lastErr, "scrape: all scrapers failed")
	}
	return nil, eris.Errorf("scrape: no suitable scraper for url: %s", u)
}
