package sweeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andymarkow/taskmart/internal/domain/tasks"
	"github.com/andymarkow/taskmart/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	stats tasks.Stats
	err   error
	calls atomic.Int32
}

func (f *fakeSource) TaskStats(context.Context) (tasks.Stats, error) {
	f.calls.Add(1)

	return f.stats, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweepExportsStats(t *testing.T) {
	source := &fakeSource{stats: tasks.Stats{Open: 3, ExpiredUnclaimed: 2, Held: 5, HoldElapsed: 1}}
	collector := metrics.NewCollector()

	s := New(source, WithLogger(discardLogger()), WithMetrics(collector))

	stats, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, source.stats, stats)

	expected := `
# HELP taskmart_pool_tasks Tasks in the pool by state at the last sweep.
# TYPE taskmart_pool_tasks gauge
taskmart_pool_tasks{state="expired_unclaimed"} 2
taskmart_pool_tasks{state="held"} 5
taskmart_pool_tasks{state="hold_elapsed"} 1
taskmart_pool_tasks{state="open"} 3
`
	require.NoError(t, testutil.GatherAndCompare(
		collector.Registry(), strings.NewReader(expected), "taskmart_pool_tasks"))
}

func TestSweepSourceError(t *testing.T) {
	source := &fakeSource{err: errors.New("db down")}

	s := New(source, WithLogger(discardLogger()))

	_, err := s.Sweep(context.Background())
	require.Error(t, err)
}

func TestRunSweepsOnSchedule(t *testing.T) {
	source := &fakeSource{}

	s := New(source, WithLogger(discardLogger()), WithSchedule("@every 1s"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- s.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return source.calls.Load() > 0
	}, 5*time.Second, 50*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestRunRejectsBadSchedule(t *testing.T) {
	s := New(&fakeSource{}, WithLogger(discardLogger()), WithSchedule("not a schedule"))

	err := s.Run(context.Background())
	require.Error(t, err)
}
