package presence

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/leadscore/internal/model"
	"github.com/sells-group/leadscore/internal/resilience"
)

var (
	socialDomains    = []string{"facebook.com", "instagram.com", "twitter.com", "linkedin.com", "youtube.com"}
	directoryDomains = []string{"yelp.com", "google.com/maps", "yellowpages.com", "bbb.org"}
)

const (
	socialPoints    = 3
	socialCap       = 12
	directoryPoints = 2
	directoryCap    = 8
)

// SearchPresenceScorer scores digital presence from web search results:
// social profiles, directory listings, and result volume.
type SearchPresenceScorer struct {
	searcher Searcher
	guard    *resilience.Guard
}

// NewSearchPresenceScorer creates a scorer. A nil searcher means no search
// credentials are configured and every score is the fallback.
func NewSearchPresenceScorer(searcher Searcher, guard *resilience.Guard) *SearchPresenceScorer {
	return &SearchPresenceScorer{searcher: searcher, guard: guard}
}

// Score implements DigitalPresenceScorer.
func (s *SearchPresenceScorer) Score(ctx context.Context, name, address, website string) int {
	log := zap.L().With(zap.String("business", name))
	if s.searcher == nil {
		log.Debug("presence: no searcher configured, using fallback", zap.Error(ErrMissingCredentials))
		return FallbackPresence(website)
	}

	provider := s.searcher.Name()
	urls, err := resilience.Call(ctx, s.guard, provider, "search", func(ctx context.Context) ([]string, error) {
		return s.searcher.Search(ctx, PresenceQuery(name, address))
	})
	if err != nil {
		perr := &ProviderError{Provider: provider, Op: "search", Err: err}
		log.Warn("presence: search failed, using fallback",
			zap.String("provider", provider),
			zap.Bool("circuit_open", errors.Is(err, resilience.ErrCircuitOpen)),
			zap.Error(perr),
		)
		return FallbackPresence(website)
	}
	return ScoreResults(urls)
}

// PresenceQuery builds the exact-phrase query for a business.
func PresenceQuery(name, address string) string {
	q := strconv.Quote(name)
	if strings.TrimSpace(address) != "" {
		q += " " + strconv.Quote(address)
	}
	return q
}

// ScoreResults scores a list of search result URLs. Each URL counts toward at
// most one social platform and one directory.
func ScoreResults(urls []string) int {
	social, directory := 0, 0
	for _, raw := range urls {
		u := strings.ToLower(raw)
		if containsAnyOf(u, socialDomains) {
			social = min(social+socialPoints, socialCap)
		}
		if containsAnyOf(u, directoryDomains) {
			directory = min(directory+directoryPoints, directoryCap)
		}
	}

	score := baseDigitalPresence + social + directory
	if len(urls) >= 5 {
		score += 3
	}
	if len(urls) >= 10 {
		score += 2
	}
	return clamp(score, 0, model.MaxDigitalPresence)
}

func containsAnyOf(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
