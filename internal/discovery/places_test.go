package discovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadscore/pkg/google"
	"github.com/sells-group/leadscore/pkg/google/mocks"
)

func place(id, name, addr string) google.Place {
	return google.Place{ID: id, DisplayName: google.DisplayName{Text: name}, FormattedAddress: addr}
}

func TestPlacesSearcher_FollowsPageTokens(t *testing.T) {
	gc := mocks.NewMockClient(t)
	gc.On("TextSearch", mock.Anything, google.TextSearchRequest{TextQuery: "cafes in Austin", PageSize: 20}).
		Return(&google.TextSearchResponse{Places: []google.Place{place("a", "A", "1 St")}, NextPageToken: "p2"}, nil).Once()
	gc.On("TextSearch", mock.Anything, google.TextSearchRequest{TextQuery: "cafes in Austin", PageSize: 20, PageToken: "p2"}).
		Return(&google.TextSearchResponse{Places: []google.Place{place("b", "B", "2 St")}}, nil).Once()

	s := newPlacesSearcher(gc, 1000)
	places, calls, err := s.search(context.Background(), "cafes in Austin", 10)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, places, 2)
	assert.Equal(t, "b", places[1].ID)
}

func TestPlacesSearcher_StopsAtLimit(t *testing.T) {
	gc := mocks.NewMockClient(t)
	gc.On("TextSearch", mock.Anything, mock.Anything).
		Return(&google.TextSearchResponse{
			Places:        []google.Place{place("a", "A", ""), place("b", "B", ""), place("c", "C", "")},
			NextPageToken: "more",
		}, nil).Once()

	s := newPlacesSearcher(gc, 1000)
	places, calls, err := s.search(context.Background(), "q", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Len(t, places, 2)
}

func TestPlacesSearcher_PageCap(t *testing.T) {
	gc := mocks.NewMockClient(t)
	gc.On("TextSearch", mock.Anything, mock.Anything).
		Return(&google.TextSearchResponse{Places: []google.Place{place("a", "A", "")}, NextPageToken: "again"}, nil).
		Times(maxPagesPerQuery)

	s := newPlacesSearcher(gc, 1000)
	_, calls, err := s.search(context.Background(), "q", 100)
	require.NoError(t, err)
	assert.Equal(t, maxPagesPerQuery, calls)
}

func TestPlacesSearcher_Error(t *testing.T) {
	gc := mocks.NewMockClient(t)
	gc.On("TextSearch", mock.Anything, mock.Anything).
		Return(nil, &google.APIError{StatusCode: 403, Body: "denied"}).Once()

	s := newPlacesSearcher(gc, 1000)
	_, calls, err := s.search(context.Background(), "q", 10)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Contains(t, err.Error(), "text search")
}

func TestPlacesSearcher_CancelledWait(t *testing.T) {
	gc := mocks.NewMockClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newPlacesSearcher(gc, 1000)
	_, calls, err := s.search(ctx, "q", 10)
	require.Error(t, err)
	assert.Zero(t, calls)
}
