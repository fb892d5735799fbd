// Package discovery finds local businesses for a search with Google Places
// and stores them as business records ready for presence scoring.
package discovery

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadscore/internal/model"
	"github.com/sells-group/leadscore/pkg/google"
)

const defaultMaxResults = 100

// ErrInvalidParams is returned for a search missing required params.
var ErrInvalidParams = eris.New("discovery: invalid search params")

// SearchParams describes one user search.
type SearchParams struct {
	UserID      string  `json:"user_id"`
	Location    string  `json:"location"`
	Industry    string  `json:"industry"`
	RadiusMiles float64 `json:"radius"`
}

// Validate checks the params a search needs.
func (p SearchParams) Validate() error {
	if strings.TrimSpace(p.Location) == "" {
		return eris.Wrap(ErrInvalidParams, "location is required")
	}
	if p.RadiusMiles < 0 {
		return eris.Wrap(ErrInvalidParams, "radius must be >= 0")
	}
	return nil
}

// Store persists searches and their records. store.Store satisfies it.
type Store interface {
	CreateSearch(ctx context.Context, search *model.Search) error
	InsertRecords(ctx context.Context, records []model.BusinessRecord) (int64, error)
}

// Discoverer runs searches.
type Discoverer struct {
	store      Store
	places     *placesSearcher
	catalog    Catalog
	maxResults int
	clock      func() time.Time
	newID      func() string
}

// Option configures a Discoverer.
type Option func(*Discoverer)

// WithMaxResults caps the records one search produces.
func WithMaxResults(n int) Option {
	return func(d *Discoverer) {
		if n > 0 {
			d.maxResults = n
		}
	}
}

// WithRateLimit sets the Places requests per second.
func WithRateLimit(rps float64) Option {
	return func(d *Discoverer) {
		d.places = newPlacesSearcher(d.places.google, rps)
	}
}

// WithCatalog replaces the embedded industry catalog.
func WithCatalog(c Catalog) Option {
	return func(d *Discoverer) { d.catalog = c }
}

// WithClock sets the time source for created_at.
func WithClock(clock func() time.Time) Option {
	return func(d *Discoverer) { d.clock = clock }
}

// NewDiscoverer creates a Discoverer using the embedded industry catalog.
func NewDiscoverer(store Store, g google.Client, opts ...Option) (*Discoverer, error) {
	catalog, err := LoadCatalog()
	if err != nil {
		return nil, err
	}
	d := &Discoverer{
		store:      store,
		places:     newPlacesSearcher(g, 0),
		catalog:    catalog,
		maxResults: defaultMaxResults,
		clock:      time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Industries lists the searchable industry slugs.
func (d *Discoverer) Industries() []string {
	return d.catalog.Industries()
}

// Discover searches Places for the params, de-duplicates the results, applies
// basic scores, and persists the search and its records.
func (d *Discoverer) Discover(ctx context.Context, p SearchParams) (*model.Search, []model.BusinessRecord, error) {
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	queries, err := d.catalog.Queries(p.Industry, strings.TrimSpace(p.Location))
	if err != nil {
		return nil, nil, err
	}

	log := zap.L().With(
		zap.String("user_id", p.UserID),
		zap.String("location", p.Location),
		zap.String("industry", p.Industry),
	)

	now := d.clock().UTC()
	search := &model.Search{
		ID:          d.newID(),
		UserID:      p.UserID,
		Location:    strings.TrimSpace(p.Location),
		Industry:    Slug(p.Industry),
		RadiusMiles: p.RadiusMiles,
		CreatedAt:   now,
	}
	if search.Industry == "" {
		search.Industry = "all"
	}

	seen := newDeduper()
	var records []model.BusinessRecord
	apiCalls := 0
	for _, q := range queries {
		if len(records) >= d.maxResults {
			break
		}
		places, calls, err := d.places.search(ctx, q, d.maxResults-len(records))
		apiCalls += calls
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, eris.Wrap(err, "discovery: search cancelled")
			}
			log.Warn("discovery: query failed", zap.String("query", q), zap.Error(err))
			continue
		}
		for _, pl := range places {
			name := strings.TrimSpace(pl.DisplayName.Text)
			if name == "" || seen.seen(pl.ID, name, pl.FormattedAddress) {
				continue
			}
			r := model.BusinessRecord{
				ID:            d.newID(),
				SearchID:      search.ID,
				Position:      len(records) + 1,
				Name:          name,
				Address:       pl.FormattedAddress,
				Phone:         pl.NationalPhoneNumber,
				Website:       pl.WebsiteURI,
				GooglePlaceID: pl.ID,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			ApplyBasicScores(&r)
			records = append(records, r)
			if len(records) >= d.maxResults {
				break
			}
		}
	}
	search.ResultsCount = len(records)

	if err := d.store.CreateSearch(ctx, search); err != nil {
		return nil, nil, eris.Wrap(err, "discovery: create search")
	}
	if len(records) > 0 {
		if _, err := d.store.InsertRecords(ctx, records); err != nil {
			return nil, nil, eris.Wrap(err, "discovery: insert records")
		}
	}

	log.Info("discovery: search complete",
		zap.String("search_id", search.ID),
		zap.Int("results", len(records)),
		zap.Int("api_calls", apiCalls),
	)
	return search, records, nil
}
