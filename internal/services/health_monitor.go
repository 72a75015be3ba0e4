package services

import (
	"context"
	"sync"
	"time"

	"github.com/novaconsult/nova-backend/internal/llm"
)

// Pinger is satisfied by the database handle.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthStatus represents the health of the store
type HealthStatus struct {
	Healthy      bool      `json:"healthy"`
	LastCheck    time.Time `json:"last_check"`
	LastError    string    `json:"last_error,omitempty"`
	ResponseTime int64     `json:"response_time_ms"`
	ErrorCount   int       `json:"error_count"`
	SuccessCount int       `json:"success_count"`
}

// HealthReport is what the health endpoint returns.
type HealthReport struct {
	Status   string                         `json:"status"`
	Database HealthStatus                   `json:"database"`
	Model    map[llm.TaskType]llm.TaskStats `json:"model"`
}

// HealthMonitor checks the store on demand and reports model call metrics.
type HealthMonitor struct {
	store   Pinger
	metrics *llm.MetricsCollector
	timeout time.Duration

	mu     sync.Mutex
	status HealthStatus
}

// NewHealthMonitor creates a new health monitor. metrics may be nil.
func NewHealthMonitor(store Pinger, metrics *llm.MetricsCollector) *HealthMonitor {
	return &HealthMonitor{
		store:   store,
		metrics: metrics,
		timeout: 2 * time.Second,
	}
}

// Check pings the store and returns a report. The status is "degraded" when
// the store does not answer.
func (m *HealthMonitor) Check(ctx context.Context) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	err := m.store.PingContext(ctx)
	responseTime := time.Since(start).Milliseconds()

	m.mu.Lock()
	m.status.LastCheck = time.Now()
	m.status.ResponseTime = responseTime
	if err != nil {
		m.status.Healthy = false
		m.status.ErrorCount++
		m.status.LastError = err.Error()
	} else {
		m.status.Healthy = true
		m.status.SuccessCount++
		m.status.LastError = ""
	}
	status := m.status
	m.mu.Unlock()

	report := HealthReport{
		Status:   "healthy",
		Database: status,
		Model:    map[llm.TaskType]llm.TaskStats{},
	}
	if !status.Healthy {
		report.Status = "degraded"
	}
	if m.metrics != nil {
		report.Model = m.metrics.Snapshot()
	}
	return report
}
