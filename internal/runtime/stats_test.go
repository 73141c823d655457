package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectorStatsCounters(t *testing.T) {
	stats := newConnectorStats(nil, nil)

	stats.onEnqueued(1)
	stats.onEnqueued(2)
	stats.onEnqueued(3)
	stats.onDropped(2)
	stats.onStart(2)
	stats.onFinish(10*time.Millisecond, nil)
	stats.onStart(1)
	stats.onFinish(30*time.Millisecond, errors.New("boom"))
	stats.onStart(0)
	stats.onFinish(time.Millisecond, context.Canceled)

	snap := stats.Snapshot()
	assert.Equal(t, uint64(3), snap.DocumentsReceived)
	assert.Equal(t, uint64(2), snap.DocumentsDropped)
	assert.Equal(t, uint64(3), snap.DocumentsProcessed)
	assert.Equal(t, uint64(2), snap.DocumentsFailed)
	assert.Equal(t, int64(41*time.Millisecond), snap.TotalProcessingTime)
	assert.Equal(t, 3, snap.Latency.SampleSize)
	assert.Equal(t, int64(time.Millisecond), snap.Latency.LastNs)
	assert.Equal(t, uint64(1), snap.Errors.Handler)
	assert.Equal(t, uint64(1), snap.Errors.Canceled)
	assert.Equal(t, context.Canceled.Error(), snap.Errors.LastError)
	assert.Equal(t, 0, snap.Backlog.QueueDepth)
	assert.Equal(t, 3, snap.Backlog.MaxQueueDepth)
	assert.Zero(t, snap.Backlog.InFlight)
	assert.False(t, snap.LastProcessedAt.IsZero())
	assert.Equal(t, uint64(3), snap.Throughput.DocumentsInWindow)

	stats.reset()
	assert.Equal(t, ConnectorStatsSnapshot{}, stats.Snapshot())
}

func TestConnectorStatsNilSnapshot(t *testing.T) {
	var stats *ConnectorStats
	assert.Equal(t, ConnectorStatsSnapshot{}, stats.Snapshot())
}

func TestDefaultErrorClassifier(t *testing.T) {
	assert.Equal(t, ErrorCategoryNone, defaultErrorClassifier(nil))
	assert.Equal(t, ErrorCategoryPanic, defaultErrorClassifier(newPanicError("x")))
	assert.Equal(t, ErrorCategoryCanceled, defaultErrorClassifier(context.DeadlineExceeded))
	assert.Equal(t, ErrorCategoryHandler, defaultErrorClassifier(errors.New("x")))
}

func TestPercentile(t *testing.T) {
	samples := []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, int64(5), percentile(samples, 0.5))
	assert.Equal(t, int64(9), percentile(samples, 0.99))
	assert.Equal(t, int64(10), percentile(samples, 1))
	assert.Zero(t, percentile(nil, 0.5))
}

func TestConnectorStatsSampleResources(t *testing.T) {
	p := NewProcessor(ProcessorConfig{Name: "p"})
	c := p.MustCreateConnector("", Any, noopHandler)

	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Put(1, ""))
	require.NoError(t, p.Stop())
	waitDone(t, p)

	snap := c.Stats().Snapshot()
	assert.Equal(t, uint64(1), snap.DocumentsProcessed)
	assert.Positive(t, snap.Resource.Goroutines)
}
