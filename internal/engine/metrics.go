package engine

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Stage names one step of the per-package pipeline.
type Stage string

// Pipeline stages in execution order.
const (
	StageLoad      Stage = "load"
	StageValidate  Stage = "validate"
	StageMatch     Stage = "match"
	StageClassify  Stage = "classify"
	StageAggregate Stage = "aggregate"
	StagePackage   Stage = "package"
)

var stageOrder = []Stage{StageLoad, StageValidate, StageMatch, StageClassify, StageAggregate, StagePackage}

// maxSamples bounds the latency window kept per stage.
const maxSamples = 2048

// StageStats summarizes one stage.
type StageStats struct {
	Stage     Stage   `json:"stage"`
	Count     int64   `json:"count"`
	AverageMS float64 `json:"avg_ms"`
	P95MS     float64 `json:"p95_ms"`
}

type stageWindow struct {
	samples []time.Duration
	next    int
	count   int64
}

// Metrics records per-stage latency. It is safe for concurrent use. Counts
// are cumulative; averages and percentiles cover the most recent samples.
type Metrics struct {
	stages map[Stage]*stageWindow
	mu     sync.Mutex
}

// NewMetrics creates an empty recorder.
func NewMetrics() *Metrics {
	return &Metrics{stages: make(map[Stage]*stageWindow)}
}

// Observe records one stage duration.
func (m *Metrics) Observe(stage Stage, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.stages[stage]
	if !ok {
		w = &stageWindow{}
		m.stages[stage] = w
	}
	w.count++
	if len(w.samples) < maxSamples {
		w.samples = append(w.samples, d)
		return
	}
	w.samples[w.next] = d
	w.next = (w.next + 1) % maxSamples
}

// Snapshot returns stats for every observed stage in pipeline order.
func (m *Metrics) Snapshot() []StageStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := make([]StageStats, 0, len(m.stages))
	for _, stage := range stageOrder {
		w, ok := m.stages[stage]
		if !ok || len(w.samples) == 0 {
			continue
		}

		sorted := append([]time.Duration(nil), w.samples...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var total time.Duration
		for _, d := range sorted {
			total += d
		}
		// Nearest-rank percentile.
		idx := int(math.Ceil(0.95*float64(len(sorted)))) - 1

		stats = append(stats, StageStats{
			Stage:     stage,
			Count:     w.count,
			AverageMS: toMS(total / time.Duration(len(sorted))),
			P95MS:     toMS(sorted[idx]),
		})
	}
	return stats
}

func toMS(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
