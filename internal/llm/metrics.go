package llm

import (
	"sync"
	"time"
)

// TaskStats is a point-in-time view of the calls made for one task.
type TaskStats struct {
	Requests     int64   `json:"requests"`
	Errors       int64   `json:"errors"`
	Tokens       int64   `json:"tokens"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// MetricsCollector collects metrics for LLM operations
type MetricsCollector struct {
	requests  map[TaskType]int64
	errors    map[TaskType]int64
	tokens    map[TaskType]int64
	latencies map[TaskType][]time.Duration
	mu        sync.RWMutex
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		requests:  make(map[TaskType]int64),
		errors:    make(map[TaskType]int64),
		tokens:    make(map[TaskType]int64),
		latencies: make(map[TaskType][]time.Duration),
	}
}

// RecordRequest records a request
func (mc *MetricsCollector) RecordRequest(task TaskType, success bool, latency time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.requests[task]++
	if !success {
		mc.errors[task]++
	}

	mc.latencies[task] = append(mc.latencies[task], latency)

	// Keep only last 100 latencies
	if len(mc.latencies[task]) > 100 {
		mc.latencies[task] = mc.latencies[task][1:]
	}
}

// RecordUsage records token usage
func (mc *MetricsCollector) RecordUsage(task TaskType, usage Usage) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.tokens[task] += int64(usage.TotalTokens)
}

// Snapshot returns a copy of the current metrics keyed by task
func (mc *MetricsCollector) Snapshot() map[TaskType]TaskStats {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	snapshot := make(map[TaskType]TaskStats, len(mc.requests))
	for task, requests := range mc.requests {
		stats := TaskStats{
			Requests: requests,
			Errors:   mc.errors[task],
			Tokens:   mc.tokens[task],
		}
		if latencies := mc.latencies[task]; len(latencies) > 0 {
			var total time.Duration
			for _, l := range latencies {
				total += l
			}
			stats.AvgLatencyMs = float64(total.Milliseconds()) / float64(len(latencies))
		}
		snapshot[task] = stats
	}

	return snapshot
}
