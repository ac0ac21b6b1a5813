package tracker

import (
	"time"

	"github.com/joseph-ayodele/receipts-lifecycle/constants"
)

// ProcessingMetrics tracks one in-flight processing attempt. Instances live in
// the tracker's active map from StartProcessing until the attempt completes or
// fails, and are never persisted.
type ProcessingMetrics struct {
	StartTime time.Time
	EndTime   time.Time

	AIProcessingTime   time.Duration
	ValidationTime     time.Duration
	FileOperationsTime time.Duration

	TotalRetries      int
	ErrorCount        int
	LastError         string
	LastErrorCategory constants.ErrorCategory
}

func newProcessingMetrics(start time.Time) *ProcessingMetrics {
	return &ProcessingMetrics{StartTime: start}
}

// End marks the attempt finished.
func (m *ProcessingMetrics) End(at time.Time) {
	m.EndTime = at
}

// RecordError notes a failure during this attempt.
func (m *ProcessingMetrics) RecordError(message string, category constants.ErrorCategory) {
	m.ErrorCount++
	m.LastError = message
	m.LastErrorCategory = category
}

// IncrementRetry bumps the attempt's retry counter.
func (m *ProcessingMetrics) IncrementRetry() {
	m.TotalRetries++
}

// TotalProcessingTime returns the elapsed attempt time, or zero and false when
// the attempt has not ended.
func (m *ProcessingMetrics) TotalProcessingTime() (time.Duration, bool) {
	if m.StartTime.IsZero() || m.EndTime.IsZero() {
		return 0, false
	}
	return m.EndTime.Sub(m.StartTime), true
}
