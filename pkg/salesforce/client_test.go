package salesforce

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// mockClient is a func-field Client double. Unset inserts and updates
// succeed and echo an ID per record.
type mockClient struct {
	queryFn            func(ctx context.Context, soql string, out any) error
	insertCollectionFn func(ctx context.Context, sObjectName string, records []map[string]any) ([]CollectionResult, error)
	updateCollectionFn func(ctx context.Context, sObjectName string, records []CollectionRecord) ([]CollectionResult, error)
}

var _ Client = (*mockClient)(nil)

func (m *mockClient) Query(ctx context.Context, soql string, out any) error {
	if m.queryFn == nil {
		return nil
	}
	return m.queryFn(ctx, soql, out)
}

func (m *mockClient) InsertCollection(ctx context.Context, sObjectName string, records []map[string]any) ([]CollectionResult, error) {
	if m.insertCollectionFn != nil {
		return m.insertCollectionFn(ctx, sObjectName, records)
	}
	out := make([]CollectionResult, 0, len(records))
	for i := range records {
		out = append(out, CollectionResult{ID: "00Q" + string(rune('A'+i)), Success: true})
	}
	return out, nil
}

func (m *mockClient) UpdateCollection(ctx context.Context, sObjectName string, records []CollectionRecord) ([]CollectionResult, error) {
	if m.updateCollectionFn != nil {
		return m.updateCollectionFn(ctx, sObjectName, records)
	}
	out := make([]CollectionResult, 0, len(records))
	for _, r := range records {
		out = append(out, CollectionResult{ID: r.ID, Success: true})
	}
	return out, nil
}

func TestWithRateLimit(t *testing.T) {
	tests := []struct {
		name      string
		opts      []ClientOption
		wantNil   bool
		wantBurst int
	}{
		{name: "unset", wantNil: true},
		{name: "zero", opts: []ClientOption{WithRateLimit(0)}, wantNil: true},
		{name: "negative", opts: []ClientOption{WithRateLimit(-2)}, wantNil: true},
		{name: "whole", opts: []ClientOption{WithRateLimit(4)}, wantBurst: 4},
		{name: "fractional", opts: []ClientOption{WithRateLimit(0.25)}, wantBurst: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(nil, tt.opts...).(*sfClient)
			if tt.wantNil {
				assert.Nil(t, c.limiter)
				return
			}
			require.NotNil(t, c.limiter)
			assert.Equal(t, tt.wantBurst, c.limiter.Burst())
		})
	}
}

func TestWait_CancelledContext(t *testing.T) {
	c := &sfClient{limiter: rate.NewLimiter(rate.Every(time.Hour), 0)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, c.wait(ctx))
}

func TestWait_NoLimiter(t *testing.T) {
	c := &sfClient{}
	assert.NoError(t, c.wait(context.Background()))
}

func TestDial_RequiresIdentity(t *testing.T) {
	_, err := Dial(Creds{LoginURL: "https://login.salesforce.com", Username: "ops@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client id and username are required")

	_, err = Dial(Creds{ClientID: "3MVG9"})
	require.Error(t, err)
}
