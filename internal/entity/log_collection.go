package entity

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipts-lifecycle/constants"
)

// LogCollection is the persisted document: every tracked receipt plus derived
// counters. The counters are recomputed on every mutation so that the persisted
// document is always internally consistent.
type LogCollection struct {
	Version     string    `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`

	Logs []*ReceiptLog `json:"logs"`

	TotalReceipts         int `json:"total_receipts"`
	SuccessfulExtractions int `json:"successful_extractions"`
	FailedExtractions     int `json:"failed_extractions"`
}

// NewLogCollection creates an empty, valid document.
func NewLogCollection() *LogCollection {
	now := time.Now().UTC()
	return &LogCollection{
		Version:     LogFileVersion,
		CreatedAt:   now,
		LastUpdated: now,
		Logs:        []*ReceiptLog{},
	}
}

// AddLog appends a log entry and recomputes counters.
func (c *LogCollection) AddLog(l *ReceiptLog) {
	c.Logs = append(c.Logs, l)
	c.LastUpdated = time.Now().UTC()
	c.RecomputeStatistics()
}

// GetByID returns the log entry with the given id, or nil.
func (c *LogCollection) GetByID(id uuid.UUID) *ReceiptLog {
	for _, l := range c.Logs {
		if l.ID == id {
			return l
		}
	}
	return nil
}

// ByStatus returns all log entries with the given status.
func (c *LogCollection) ByStatus(status constants.Status) []*ReceiptLog {
	var out []*ReceiptLog
	for _, l := range c.Logs {
		if l.CurrentStatus == status {
			out = append(out, l)
		}
	}
	return out
}

// Recent returns up to limit entries, newest creation first.
func (c *LogCollection) Recent(limit int) []*ReceiptLog {
	sorted := make([]*ReceiptLog, len(c.Logs))
	copy(sorted, c.Logs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	if limit < len(sorted) {
		sorted = sorted[:limit]
	}
	return sorted
}

// RecomputeStatistics refreshes the derived counters from the entry list.
func (c *LogCollection) RecomputeStatistics() {
	c.TotalReceipts = len(c.Logs)
	success, failed := 0, 0
	for _, l := range c.Logs {
		if l.CurrentStatus.IsSuccessful() {
			success++
		}
		if l.CurrentStatus.IsFailed() {
			failed++
		}
	}
	c.SuccessfulExtractions = success
	c.FailedExtractions = failed
}

// CleanupOlderThan removes entries created before the cutoff and returns the
// number removed. Counters are recomputed only when something was removed.
func (c *LogCollection) CleanupOlderThan(cutoff time.Time) int {
	kept := c.Logs[:0]
	for _, l := range c.Logs {
		if l.CreatedAt.After(cutoff) {
			kept = append(kept, l)
		}
	}
	removed := len(c.Logs) - len(kept)
	c.Logs = kept
	if removed > 0 {
		c.LastUpdated = time.Now().UTC()
		c.RecomputeStatistics()
	}
	return removed
}
