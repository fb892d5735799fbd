package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadscore/internal/model"
)

func newTestService(st *memStore) *Service {
	a := newTestAnalyzer(st, stubPresence{10}, stubWebsite{})
	return NewService(NewOrchestrator(st, a, WithDelay(0)), a, NewReporter(st))
}

func TestService_StartBatch_OutlivesCaller(t *testing.T) {
	st := newMemStore(searchRecords(3, model.StatusPending)...)
	svc := newTestService(st)

	ctx, cancel := context.WithCancel(context.Background())
	svc.StartBatch(ctx, model.SearchScope("search-1"))
	cancel()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, svc.Wait(waitCtx))

	p, err := svc.Progress(context.Background(), model.SearchScope("search-1"))
	require.NoError(t, err)
	assert.Equal(t, 3, p.Complete)
	assert.Zero(t, p.Pending+p.Analyzing)
}

func TestService_Wait_RespectsDeadline(t *testing.T) {
	st := newMemStore(searchRecords(2, model.StatusPending)...)
	block := make(chan struct{})
	a := newTestAnalyzer(st, stubPresence{10}, stubWebsite{})
	slow := func(ctx context.Context, _ time.Duration) error {
		<-block
		return nil
	}
	svc := NewService(NewOrchestrator(st, a, WithSleeper(slow)), a, NewReporter(st))

	svc.StartBatch(context.Background(), model.SearchScope("search-1"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, svc.Wait(ctx), context.DeadlineExceeded)

	close(block)
	require.NoError(t, svc.Wait(context.Background()))
}

func TestService_RunBatchAndScoreOne(t *testing.T) {
	st := newMemStore(searchRecords(2, model.StatusPending)...)
	svc := newTestService(st)

	res := svc.RunBatch(context.Background(), model.SearchScope("search-1"))
	assert.Equal(t, BatchResult{Selected: 2, Completed: 2}, res)

	one, err := svc.ScoreOne(context.Background(), "r01")
	require.NoError(t, err)
	assert.True(t, one.Success)
	assert.Equal(t, 10, one.Scores.Overall)
}
