// Package retry holds per-entry retry counters and computes backoff delays.
// State is in-memory only: it paces retries within a single run and is not
// required for correctness of the status machine across restarts.
package retry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipts-lifecycle/constants"
)

// Defaults applied when NewManager is given non-positive values.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
)

// nonRetryable lists the categories that must never be retried, regardless of
// the caller's hint.
var nonRetryable = map[constants.ErrorCategory]bool{
	constants.CategoryConfiguration:  true,
	constants.CategoryDataValidation: true,
}

// Manager tracks retry counts and last-attempt times keyed by log entry id.
// Safe for concurrent use.
type Manager struct {
	mu          sync.Mutex
	maxRetries  int
	baseDelay   time.Duration
	counts      map[uuid.UUID]int
	lastAttempt map[uuid.UUID]time.Time

	now func() time.Time // overridable in tests
}

// NewManager creates a Manager with the given limits; non-positive values fall
// back to the defaults.
func NewManager(maxRetries int, baseDelay time.Duration) *Manager {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	return &Manager{
		maxRetries:  maxRetries,
		baseDelay:   baseDelay,
		counts:      make(map[uuid.UUID]int),
		lastAttempt: make(map[uuid.UUID]time.Time),
		now:         time.Now,
	}
}

// ShouldRetry reports whether the entry may be retried for the given failure
// category: false for non-retryable categories and once the retry count has
// reached the configured maximum.
func (m *Manager) ShouldRetry(id uuid.UUID, category constants.ErrorCategory) bool {
	if nonRetryable[category] {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[id] < m.maxRetries
}

// Delay computes the wait before the next attempt under the given strategy.
func (m *Manager) Delay(id uuid.UUID, strategy constants.RetryStrategy) time.Duration {
	m.mu.Lock()
	count := m.counts[id]
	m.mu.Unlock()

	switch strategy {
	case constants.StrategyImmediate:
		return 0
	case constants.StrategyFixed:
		return m.baseDelay
	case constants.StrategyLinear:
		return m.baseDelay * time.Duration(count+1)
	case constants.StrategyExponential:
		return m.baseDelay * time.Duration(1<<count)
	default:
		return 0
	}
}

// CanRetryNow reports whether the computed delay has elapsed since the last
// recorded retry. An entry with no recorded retry is always eligible.
func (m *Manager) CanRetryNow(id uuid.UUID, strategy constants.RetryStrategy) bool {
	m.mu.Lock()
	last, ok := m.lastAttempt[id]
	m.mu.Unlock()
	if !ok {
		return true
	}
	return m.now().Sub(last) >= m.Delay(id, strategy)
}

// RecordRetry increments the entry's retry count, stamps the attempt time and
// returns the new count.
func (m *Manager) RecordRetry(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[id]++
	m.lastAttempt[id] = m.now()
	return m.counts[id]
}

// Count returns the current retry count for the entry.
func (m *Manager) Count(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[id]
}

// Reset clears retry state for the entry; called on successful completion and
// on manual reset to pending.
func (m *Manager) Reset(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.counts, id)
	delete(m.lastAttempt, id)
}
