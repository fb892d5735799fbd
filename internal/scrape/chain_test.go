package scrape

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadscore/internal/resilience"
)

type stubScraper struct {
	name     string
	supports bool
	page     *Page
	err      error
	calls    int
}

func (s *stubScraper) Name() string           { return s.name }
func (s *stubScraper) Supports(_ string) bool { return s.supports }
func (s *stubScraper) Scrape(_ context.Context, _ string) (*Page, error) {
	s.calls++
	return s.page, s.err
}

func TestChain_FirstSuccessWins(t *testing.T) {
	s1 := &stubScraper{name: "primary", supports: true, page: &Page{URL: "https://rossis.com", Markdown: "pizza", Source: "primary"}}
	s2 := &stubScraper{name: "secondary", supports: true, page: &Page{Source: "secondary"}}
	chain := NewChain(NewPathMatcher(nil), nil, s1, s2)

	page, err := chain.Fetch(context.Background(), "rossis.com")
	require.NoError(t, err)
	assert.Equal(t, "primary", page.Source)
	assert.Equal(t, 1, s1.calls)
	assert.Equal(t, 0, s2.calls)
	assert.Equal(t, 2, chain.Len())
}

func TestChain_FallsThroughOnError(t *testing.T) {
	s1 := &stubScraper{name: "primary", supports: true, err: errors.New("boom")}
	s2 := &stubScraper{name: "secondary", supports: true, page: &Page{Source: "secondary"}}
	chain := NewChain(nil, nil, s1, s2)

	page, err := chain.Scrape(context.Background(), "https://rossis.com")
	require.NoError(t, err)
	assert.Equal(t, "secondary", page.Source)
}

func TestChain_SkipsUnsupported(t *testing.T) {
	s1 := &stubScraper{name: "picky", supports: false, page: &Page{Source: "picky"}}
	s2 := &stubScraper{name: "any", supports: true, page: &Page{Source: "any"}}
	chain := NewChain(nil, nil, s1, s2)

	page, err := chain.Scrape(context.Background(), "https://rossis.com")
	require.NoError(t, err)
	assert.Equal(t, "any", page.Source)
	assert.Equal(t, 0, s1.calls)
}

func TestChain_AllFail(t *testing.T) {
	s1 := &stubScraper{name: "a", supports: true, err: errors.New("first")}
	s2 := &stubScraper{name: "b", supports: true, err: errors.New("second")}
	chain := NewChain(nil, nil, s1, s2)

	_, err := chain.Scrape(context.Background(), "https://rossis.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all scrapers failed")
	assert.Contains(t, err.Error(), "second")
}

func TestChain_NoSuitableScraper(t *testing.T) {
	chain := NewChain(nil, nil, &stubScraper{name: "picky"})

	_, err := chain.Scrape(context.Background(), "https://rossis.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no suitable scraper")
}

func TestChain_Excluded(t *testing.T) {
	s1 := &stubScraper{name: "a", supports: true, page: &Page{}}
	chain := NewChain(NewPathMatcher(nil), nil, s1)

	_, err := chain.Scrape(context.Background(), "https://www.facebook.com/rossis")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExcluded)
	assert.Equal(t, 0, s1.calls)
}

func TestChain_InvalidURL(t *testing.T) {
	chain := NewChain(nil, nil, &stubScraper{name: "a", supports: true})

	_, err := chain.Scrape(context.Background(), "   ")
	require.Error(t, err)
}

func TestChain_OpenBreakerSkipsScraper(t *testing.T) {
	breakers := resilience.NewServiceBreakers(resilience.CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Hour,
	})
	s1 := &stubScraper{name: "flaky", supports: true, err: errors.New("down")}
	s2 := &stubScraper{name: "steady", supports: true, page: &Page{Source: "steady"}}
	chain := NewChain(nil, breakers, s1, s2)

	for range 3 {
		page, err := chain.Scrape(context.Background(), "https://rossis.com")
		require.NoError(t, err)
		assert.Equal(t, "steady", page.Source)
	}
	assert.Equal(t, 1, s1.calls)
	assert.Equal(t, resilience.CircuitOpen, breakers.Get("scrape.flaky").State())
}

func TestChain_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s1 := &stubScraper{name: "a", supports: true, err: errors.New("fail")}
	s2 := &stubScraper{name: "b", supports: true, page: &Page{}}
	chain := NewChain(nil, nil, s1, s2)
	cancel()

	_, err := chain.Scrape(ctx, "https://rossis.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, s2.calls)
}

func TestPage_Content(t *testing.T) {
	var nilPage *Page
	assert.Empty(t, nilPage.Content())
	assert.Equal(t, "md", (&Page{Markdown: "md", HTML: "<p>h</p>"}).Content())
	assert.Equal(t, "<p>h</p>", (&Page{Markdown: "  ", HTML: "<p>h</p>"}).Content())
}
