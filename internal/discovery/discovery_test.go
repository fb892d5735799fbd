package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadscore/internal/model"
	"github.com/sells-group/leadscore/pkg/google"
	"github.com/sells-group/leadscore/pkg/google/mocks"
)

type fakeStore struct {
	searches  []*model.Search
	records   []model.BusinessRecord
	createErr error
	insertErr error
}

func (f *fakeStore) CreateSearch(_ context.Context, s *model.Search) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.searches = append(f.searches, s)
	return nil
}

func (f *fakeStore) InsertRecords(_ context.Context, rs []model.BusinessRecord) (int64, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.records = append(f.records, rs...)
	return int64(len(rs)), nil
}

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestDiscoverer(t *testing.T, st Store, gc google.Client, opts ...Option) *Discoverer {
	t.Helper()
	opts = append([]Option{WithRateLimit(1000), WithClock(func() time.Time { return fixedTime })}, opts...)
	d, err := NewDiscoverer(st, gc, opts...)
	require.NoError(t, err)
	return d
}

func TestDiscover_BuildsRecords(t *testing.T) {
	gc := mocks.NewMockClient(t)
	gc.On("TextSearch", mock.Anything, mock.MatchedBy(func(r google.TextSearchRequest) bool {
		return r.TextQuery == "local businesses in Springfield, IL"
	})).Return(&google.TextSearchResponse{Places: []google.Place{
		{ID: "p1", DisplayName: google.DisplayName{Text: "Rossi's Pizza"}, FormattedAddress: "1 Main St", NationalPhoneNumber: "(217) 555-0101", WebsiteURI: "https://rossis.example"},
		{ID: "p2", DisplayName: google.DisplayName{Text: "Corner Shop"}, FormattedAddress: "2 Main St"},
		{ID: "p1", DisplayName: google.DisplayName{Text: "Rossi's Pizza"}, FormattedAddress: "1 Main St"},
	}}, nil).Once()

	st := &fakeStore{}
	d := newTestDiscoverer(t, st, gc)

	search, records, err := d.Discover(context.Background(), SearchParams{UserID: "u1", Location: " Springfield, IL ", RadiusMiles: 5})
	require.NoError(t, err)

	assert.Equal(t, "Springfield, IL", search.Location)
	assert.Equal(t, "all", search.Industry)
	assert.Equal(t, 2, search.ResultsCount)
	assert.Equal(t, fixedTime, search.CreatedAt)
	require.Len(t, records, 2)
	require.Len(t, st.searches, 1)
	assert.Len(t, st.records, 2)

	first := records[0]
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, search.ID, first.SearchID)
	assert.Equal(t, 1, first.Position)
	assert.Equal(t, model.StatusBasicComplete, first.AnalysisStatus)
	assert.Equal(t, 10, first.WebsiteQualityScore)
	assert.Equal(t, 8, first.DigitalPresenceScore)
	assert.Equal(t, 5, first.SEOScore)
	require.NotNil(t, first.OverallScore)
	assert.Equal(t, 23, *first.OverallScore)

	second := records[1]
	assert.Equal(t, 2, second.Position)
	assert.Equal(t, model.StatusPending, second.AnalysisStatus)
	assert.Nil(t, second.OverallScore)
}

func TestDiscover_IndustryQueriesAndCap(t *testing.T) {
	gc := mocks.NewMockClient(t)
	gc.On("TextSearch", mock.Anything, mock.MatchedBy(func(r google.TextSearchRequest) bool {
		return r.TextQuery == "restaurants in Austin"
	})).Return(&google.TextSearchResponse{Places: []google.Place{
		{ID: "r1", DisplayName: google.DisplayName{Text: "One"}},
		{ID: "r2", DisplayName: google.DisplayName{Text: "Two"}},
	}}, nil).Once()
	gc.On("TextSearch", mock.Anything, mock.MatchedBy(func(r google.TextSearchRequest) bool {
		return r.TextQuery == "cafes in Austin"
	})).Return(&google.TextSearchResponse{Places: []google.Place{
		{ID: "c1", DisplayName: google.DisplayName{Text: "Three"}},
		{ID: "c2", DisplayName: google.DisplayName{Text: "Four"}},
	}}, nil).Once()

	st := &fakeStore{}
	d := newTestDiscoverer(t, st, gc, WithMaxResults(3))

	search, records, err := d.Discover(context.Background(), SearchParams{Location: "Austin", Industry: "Restaurants & Food"})
	require.NoError(t, err)
	assert.Equal(t, "restaurants-food", search.Industry)
	require.Len(t, records, 3)
	assert.Equal(t, "Three", records[2].Name)
}

func TestDiscover_QueryFailureContinues(t *testing.T) {
	gc := mocks.NewMockClient(t)
	gc.On("TextSearch", mock.Anything, mock.MatchedBy(func(r google.TextSearchRequest) bool {
		return r.TextQuery == "restaurants in Austin"
	})).Return(nil, &google.APIError{StatusCode: 500, Body: "boom"}).Once()
	gc.On("TextSearch", mock.Anything, mock.Anything).
		Return(&google.TextSearchResponse{}, nil)

	st := &fakeStore{}
	d := newTestDiscoverer(t, st, gc)

	search, records, err := d.Discover(context.Background(), SearchParams{Location: "Austin", Industry: "restaurants-food"})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Zero(t, search.ResultsCount)
	assert.Len(t, st.searches, 1)
	assert.Empty(t, st.records)
}

func TestDiscover_Validation(t *testing.T) {
	gc := mocks.NewMockClient(t)
	d := newTestDiscoverer(t, &fakeStore{}, gc)

	_, _, err := d.Discover(context.Background(), SearchParams{Location: "  "})
	assert.ErrorIs(t, err, ErrInvalidParams)

	_, _, err = d.Discover(context.Background(), SearchParams{Location: "Austin", RadiusMiles: -1})
	assert.ErrorIs(t, err, ErrInvalidParams)

	_, _, err = d.Discover(context.Background(), SearchParams{Location: "Austin", Industry: "space-mining"})
	assert.ErrorIs(t, err, ErrUnknownIndustry)
}

func TestDiscover_StoreErrors(t *testing.T) {
	resp := &google.TextSearchResponse{Places: []google.Place{{ID: "p", DisplayName: google.DisplayName{Text: "P"}}}}

	t.Run("create search", func(t *testing.T) {
		gc := mocks.NewMockClient(t)
		gc.On("TextSearch", mock.Anything, mock.Anything).Return(resp, nil)
		d := newTestDiscoverer(t, &fakeStore{createErr: errors.New("db down")}, gc)
		_, _, err := d.Discover(context.Background(), SearchParams{Location: "Austin"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "create search")
	})

	t.Run("insert records", func(t *testing.T) {
		gc := mocks.NewMockClient(t)
		gc.On("TextSearch", mock.Anything, mock.Anything).Return(resp, nil)
		d := newTestDiscoverer(t, &fakeStore{insertErr: errors.New("db down")}, gc)
		_, _, err := d.Discover(context.Background(), SearchParams{Location: "Austin"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "insert records")
	})
}

func TestDiscoverer_Industries(t *testing.T) {
	d := newTestDiscoverer(t, &fakeStore{}, mocks.NewMockClient(t))
	inds := d.Industries()
	assert.Contains(t, inds, "all")
	assert.Contains(t, inds, "home-services")
	assert.IsIncreasing(t, inds)
}
