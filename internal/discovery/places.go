package discovery

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadscore/pkg/google"
)

const (
	// maxPagesPerQuery limits pagination per text query to bound API cost.
	maxPagesPerQuery = 3
	placesPageSize   = 20
)

// placesSearcher runs paginated, rate-limited Places text searches.
type placesSearcher struct {
	google  google.Client
	limiter *rate.Limiter
}

func newPlacesSearcher(g google.Client, rps float64) *placesSearcher {
	if rps <= 0 {
		rps = 5
	}
	return &placesSearcher{
		google:  g,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// search returns up to limit places for one query, following page tokens.
func (s *placesSearcher) search(ctx context.Context, query string, limit int) ([]google.Place, int, error) {
	var (
		places    []google.Place
		pageToken string
		apiCalls  int
	)

	for page := 0; page < maxPagesPerQuery && len(places) < limit; page++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return places, apiCalls, eris.Wrap(err, "discovery: rate limit wait")
		}

		resp, err := s.google.TextSearch(ctx, google.TextSearchRequest{
			TextQuery: query,
			PageSize:  placesPageSize,
			PageToken: pageToken,
		})
		apiCalls++
		if err != nil {
			return places, apiCalls, eris.Wrapf(err, "discovery: text search %q", query)
		}

		places = append(places, resp.Places...)
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	zap.L().Debug("discovery: query searched",
		zap.String("query", query),
		zap.Int("places", len(places)),
		zap.Int("api_calls", apiCalls),
	)
	if len(places) > limit {
		places = places[:limit]
	}
	return places, apiCalls, nil
}
