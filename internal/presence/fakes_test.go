package presence

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sells-group/leadscore/internal/resilience"
	"github.com/sells-group/leadscore/internal/scrape"
)

type fakeSearcher struct {
	urls  []string
	err   error
	block bool
	calls atomic.Int32
	query string
}

func (f *fakeSearcher) Name() string { return "fake_search" }

func (f *fakeSearcher) Search(ctx context.Context, query string) ([]string, error) {
	f.calls.Add(1)
	f.query = query
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.urls, f.err
}

type fakeFetcher struct {
	page  *scrape.Page
	err   error
	block bool
	calls atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, _ string) (*scrape.Page, error) {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.page, f.err
}

type fakeRater struct {
	reply string
	err   error
	calls atomic.Int32
}

func (f *fakeRater) Name() string { return "fake_rater" }

func (f *fakeRater) Rate(_ context.Context, _ *scrape.Page, _ string) (Rating, error) {
	f.calls.Add(1)
	if f.err != nil {
		return Rating{}, f.err
	}
	return ParseRating(f.Name(), f.reply)
}

// testGuard never retries and opens a breaker after threshold failures.
func testGuard(threshold int, timeout time.Duration) *resilience.Guard {
	return resilience.NewGuard(
		resilience.NewServiceBreakers(resilience.FromCircuitConfig(threshold, 60)),
		resilience.RetryConfig{MaxAttempts: 1},
		timeout,
	)
}

var rossisPage = &scrape.Page{
	URL:         "https://rossis.com",
	Title:       "Rossi's Pizzeria",
	Description: "Wood-fired pizza",
	Markdown:    "# Rossi's\n\nWood-fired pizza since 1982.",
}
