// Package metrics provides in-memory request statistics for the remote service client.
package metrics

import (
	"math"
	"slices"
	"sync"
	"time"
)

// Operation names, one per remote endpoint.
const (
	OpClips       = "clips"
	OpPlayClip    = "play_clip"
	OpImage       = "image"
	OpListTexts   = "texts_list"
	OpAddText     = "texts_add"
	OpAddAllTexts = "texts_add_all"
	OpRemoveText  = "texts_remove"
	OpUpdateText  = "texts_update"
	OpVariations  = "variations"
	OpTextMethods = "text_classification_methods"
	OpSimilarity  = "similarity"
	OpTsneImages  = "tsne_images"
	OpTsneTexts   = "tsne_texts"
	OpRocAuc      = "roc_auc"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	Failures  int64
	Cancelled int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Operation   string
	Count       int64
	Failures    int64
	Cancelled   int64
	TotalTimeMs int64
	AvgTimeMs   float64
	MinTimeMs   int64
	MaxTimeMs   int64
}

// Snapshot represents the client statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64
	Operations    []OperationSnapshot
}

// Outcome classifies a finished request.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
	OutcomeCancelled
)

// Collector aggregates in-memory request statistics.
// All methods are thread-safe. A nil *Collector discards everything.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	return m
}

// Record records the duration and outcome of one request.
func (c *Collector) Record(op string, duration time.Duration, outcome Outcome) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration

	switch outcome {
	case OutcomeFailure:
		m.Failures++
	case OutcomeCancelled:
		m.Cancelled++
	}

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

func snapshotOp(op string, m *OperationMetrics) OperationSnapshot {
	return OperationSnapshot{
		Operation:   op,
		Count:       m.Count,
		Failures:    m.Failures,
		Cancelled:   m.Cancelled,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}
}

// Snapshot returns a point-in-time snapshot of all metrics, ordered by operation name.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{UptimeSeconds: time.Since(c.startTime).Seconds()}
	for op, m := range c.ops {
		if m.Count == 0 {
			continue
		}
		snap.Operations = append(snap.Operations, snapshotOp(op, m))
	}
	slices.SortFunc(snap.Operations, func(a, b OperationSnapshot) int {
		if a.Operation < b.Operation {
			return -1
		}
		if a.Operation > b.Operation {
			return 1
		}
		return 0
	})
	return snap
}
