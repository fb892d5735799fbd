package presence

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sells-group/leadscore/internal/resilience"
	"github.com/sells-group/leadscore/internal/scrape"
)

const fetchProvider = "page_fetch"

// ContentWebsiteScorer fetches a business's landing page and has a language
// model rate it for quality and SEO.
type ContentWebsiteScorer struct {
	fetcher scrape.Fetcher
	rater   Rater
	guard   *resilience.Guard
}

// NewContentWebsiteScorer creates a scorer. A nil fetcher or rater means the
// capability is not configured and every score is the fallback.
func NewContentWebsiteScorer(fetcher scrape.Fetcher, rater Rater, guard *resilience.Guard) *ContentWebsiteScorer {
	return &ContentWebsiteScorer{fetcher: fetcher, rater: rater, guard: guard}
}

// Score implements WebsiteScorer.
func (s *ContentWebsiteScorer) Score(ctx context.Context, name, website string) WebsiteScores {
	if website == "" {
		return WebsiteScores{}
	}
	log := zap.L().With(zap.String("business", name), zap.String("website", website))
	if s.fetcher == nil || s.rater == nil {
		log.Debug("presence: website rating not configured, using fallback", zap.Error(ErrMissingCredentials))
		return FallbackWebsite(website)
	}

	page, err := resilience.Call(ctx, s.guard, fetchProvider, "fetch", func(ctx context.Context) (*scrape.Page, error) {
		return s.fetcher.Fetch(ctx, website)
	})
	if err != nil {
		log.Warn("presence: page fetch failed, using fallback",
			zap.Error(&ProviderError{Provider: fetchProvider, Op: "fetch", Err: err}),
		)
		return FallbackWebsite(website)
	}

	provider := s.rater.Name()
	rating, err := resilience.Call(ctx, s.guard, provider, "rate", func(ctx context.Context) (Rating, error) {
		return s.rater.Rate(ctx, page, name)
	})
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			log.Warn("presence: unparsable rating, using fallback",
				zap.String("provider", provider),
				zap.String("reply", perr.Reply),
			)
			return WebsiteScores{Quality: fallbackQualityWithSite, SEO: fallbackSEOUnparsedRating}
		}
		log.Warn("presence: rating failed, using fallback",
			zap.String("provider", provider),
			zap.Error(&ProviderError{Provider: provider, Op: "rate", Err: err}),
		)
		return FallbackWebsite(website)
	}
	return WebsiteScores{Quality: rating.Quality, SEO: rating.SEO}
}
