package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRecord(t *testing.T) {
	c := NewCollector()
	c.Record(OpSimilarity, 10*time.Millisecond, OutcomeSuccess)
	c.Record(OpSimilarity, 30*time.Millisecond, OutcomeFailure)
	c.Record(OpSimilarity, 20*time.Millisecond, OutcomeCancelled)
	c.Record(OpClips, 5*time.Millisecond, OutcomeSuccess)

	snap := c.Snapshot()
	require.Len(t, snap.Operations, 2)

	assert.Equal(t, OpClips, snap.Operations[0].Operation, "operations are sorted by name")

	sim := snap.Operations[1]
	assert.Equal(t, OpSimilarity, sim.Operation)
	assert.Equal(t, int64(3), sim.Count)
	assert.Equal(t, int64(1), sim.Failures)
	assert.Equal(t, int64(1), sim.Cancelled)
	assert.Equal(t, int64(10), sim.MinTimeMs)
	assert.Equal(t, int64(30), sim.MaxTimeMs)
	assert.InDelta(t, 20.0, sim.AvgTimeMs, 0.001)
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.Record(OpRocAuc, time.Second, OutcomeSuccess)
	assert.Empty(t, c.Snapshot().Operations)
}
