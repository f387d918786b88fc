package observability

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPipelineMetrics_RecordsThroughScrape(t *testing.T) {
	t.Parallel()

	meter, handler, err := NewPrometheus()
	require.NoError(t, err)

	pm, err := NewPipelineMetrics(meter)
	require.NoError(t, err)

	ctx := context.Background()
	pm.RecordRead(ctx, 1000)
	pm.RecordDropped(ctx, 24)
	pm.RecordChunk(ctx, 3*time.Millisecond)

	err = ObserveRingOccupancy(meter, func() int64 { return 8192 })
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	assert.Contains(t, body, "daqstream_samples_read_total")
	assert.Contains(t, body, "daqstream_samples_dropped_total")
	assert.Contains(t, body, "daqstream_chunks_committed_total")
	assert.Contains(t, body, "daqstream_ring_occupancy_bytes")
}

func TestPipelineMetrics_NilSafe(t *testing.T) {
	t.Parallel()

	var pm *PipelineMetrics

	ctx := context.Background()

	// Must not panic when the pipeline runs without metrics.
	pm.RecordRead(ctx, 1)
	pm.RecordDropped(ctx, 1)
	pm.RecordChunk(ctx, time.Millisecond)
}
