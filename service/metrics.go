package service

import (
	"sync"
	"time"
)

// MetricsCollector tracks counts and cumulative processing time for the
// voter-facing operations.
type MetricsCollector struct {
	mu sync.RWMutex

	registrationFirst time.Time
	registrationLast  time.Time
	registrationCount int
	registrationTotal time.Duration

	votingFirst time.Time
	votingLast  time.Time
	votingCount int
	votingTotal time.Duration

	verificationCount int
	verificationTotal time.Duration
}

// OperationMetrics contains timing information for one operation class.
type OperationMetrics struct {
	FirstAt          time.Time `json:"first_at"`
	LastAt           time.Time `json:"last_at"`
	Count            int       `json:"count"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	AverageTimeMs    int64     `json:"average_time_ms"`
}

// MetricsSnapshot provides the metrics for all operations.
type MetricsSnapshot struct {
	Registration OperationMetrics `json:"registration"`
	Voting       OperationMetrics `json:"voting"`
	Verification OperationMetrics `json:"verification"`
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

func (mc *MetricsCollector) RecordRegistration(elapsed time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := time.Now()
	if mc.registrationCount == 0 {
		mc.registrationFirst = now
	}
	mc.registrationLast = now
	mc.registrationCount++
	mc.registrationTotal += elapsed
}

func (mc *MetricsCollector) RecordVote(elapsed time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := time.Now()
	if mc.votingCount == 0 {
		mc.votingFirst = now
	}
	mc.votingLast = now
	mc.votingCount++
	mc.votingTotal += elapsed
}

func (mc *MetricsCollector) RecordVerification(elapsed time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.verificationCount++
	mc.verificationTotal += elapsed
}

// Snapshot returns a consistent copy of all collected metrics.
func (mc *MetricsCollector) Snapshot() MetricsSnapshot {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	return MetricsSnapshot{
		Registration: OperationMetrics{
			FirstAt:          mc.registrationFirst,
			LastAt:           mc.registrationLast,
			Count:            mc.registrationCount,
			ProcessingTimeMs: mc.registrationTotal.Milliseconds(),
			AverageTimeMs:    average(mc.registrationTotal, mc.registrationCount),
		},
		Voting: OperationMetrics{
			FirstAt:          mc.votingFirst,
			LastAt:           mc.votingLast,
			Count:            mc.votingCount,
			ProcessingTimeMs: mc.votingTotal.Milliseconds(),
			AverageTimeMs:    average(mc.votingTotal, mc.votingCount),
		},
		Verification: OperationMetrics{
			Count:            mc.verificationCount,
			ProcessingTimeMs: mc.verificationTotal.Milliseconds(),
			AverageTimeMs:    average(mc.verificationTotal, mc.verificationCount),
		},
	}
}

func average(total time.Duration, count int) int64 {
	if count == 0 {
		return 0
	}
	return (total / time.Duration(count)).Milliseconds()
}
