package presence

import "context"

// FallbackScorer scores from the record alone without calling any provider.
// It implements both DigitalPresenceScorer and WebsiteScorer and is used for
// offline runs and as a deterministic stand-in in tests.
type FallbackScorer struct{}

// Score implements DigitalPresenceScorer.
func (FallbackScorer) Score(_ context.Context, _, _, website string) int {
	return FallbackPresence(website)
}

// Website returns a WebsiteScorer view of the fallback.
func (FallbackScorer) Website() WebsiteScorer { return fallbackWebsite{} }

type fallbackWebsite struct{}

func (fallbackWebsite) Score(_ context.Context, _, website string) WebsiteScores {
	return FallbackWebsite(website)
}
