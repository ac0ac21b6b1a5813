// Package tracker orchestrates the receipt lifecycle: it is the only
// component permitted to change an entry's status, composing the store, the
// status flow validator, the error categorizer and the retry manager.
package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipts-lifecycle/constants"
	"github.com/joseph-ayodele/receipts-lifecycle/internal/entity"
	"github.com/joseph-ayodele/receipts-lifecycle/internal/errclass"
	"github.com/joseph-ayodele/receipts-lifecycle/internal/retry"
	"github.com/joseph-ayodele/receipts-lifecycle/internal/statusflow"
	"github.com/joseph-ayodele/receipts-lifecycle/internal/storage"
)

// LogStore is the persistence surface the tracker drives.
type LogStore interface {
	Get(ctx context.Context, id uuid.UUID) (*entity.ReceiptLog, error)
	ListByStatus(ctx context.Context, status constants.Status) ([]*entity.ReceiptLog, error)
	ListAll(ctx context.Context) ([]*entity.ReceiptLog, error)
	AppendTransition(ctx context.Context, id uuid.UUID, toStatus constants.Status, opts storage.TransitionOptions) error
	Update(ctx context.Context, id uuid.UUID, upd entity.LogUpdate) error
}

// Config tunes retry pacing for the tracker's retry manager.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	Strategy   constants.RetryStrategy
}

// ErrorSummary aggregates terminal errors and pending retries by category and
// priority, read from transition metadata.
type ErrorSummary struct {
	TotalErrors  int                             `json:"total_errors"`
	TotalRetries int                             `json:"total_retries"`
	ByCategory   map[constants.ErrorCategory]int `json:"by_category"`
	ByPriority   map[int]int                     `json:"by_priority"`
}

// Statistics aggregates counts and timing over all entries.
type Statistics struct {
	TotalReceipts int                      `json:"total_receipts"`
	ByStatus      map[constants.Status]int `json:"by_status"`

	HasTimingData     bool    `json:"has_timing_data"`
	AvgProcessingTime float64 `json:"avg_processing_time,omitempty"`
	MinProcessingTime float64 `json:"min_processing_time,omitempty"`
	MaxProcessingTime float64 `json:"max_processing_time,omitempty"`

	ErrorRate float64 `json:"error_rate"`
	RetryRate float64 `json:"retry_rate"`
}

// Tracker implements the lifecycle operations. The retry manager and the
// in-flight metrics map are owned by the instance; there is no package-level
// state.
type Tracker struct {
	store    LogStore
	retries  *retry.Manager
	strategy constants.RetryStrategy
	logger   *slog.Logger

	mu     sync.Mutex
	active map[uuid.UUID]*ProcessingMetrics
}

// NewTracker creates a tracker over the given store.
func NewTracker(store LogStore, cfg Config, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	strategy := cfg.Strategy
	if strategy == "" {
		strategy = constants.StrategyExponential
	}
	return &Tracker{
		store:    store,
		retries:  retry.NewManager(cfg.MaxRetries, cfg.BaseDelay),
		strategy: strategy,
		logger:   logger,
		active:   make(map[uuid.UUID]*ProcessingMetrics),
	}
}

// RetryManager exposes the tracker's retry manager for pacing inspection.
func (t *Tracker) RetryManager() *retry.Manager { return t.retries }

// StartProcessing moves a pending or retry entry into processing and begins
// per-attempt metrics.
func (t *Tracker) StartProcessing(ctx context.Context, id uuid.UUID) error {
	l, err := t.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := statusflow.Validate(l.CurrentStatus, constants.StatusProcessing); err != nil {
		t.logger.Error("cannot start processing", "id", id, "status", l.CurrentStatus, "error", err)
		return err
	}

	now := time.Now().UTC()
	t.mu.Lock()
	t.active[id] = newProcessingMetrics(now)
	t.mu.Unlock()

	start := now
	err = t.store.AppendTransition(ctx, id, constants.StatusProcessing, storage.TransitionOptions{
		Reason:   "processing started",
		User:     "system",
		Metadata: &entity.TransitionMetadata{StartTime: &start},
	})
	if err != nil {
		t.discardMetrics(id)
		return err
	}
	t.logger.Info("started processing", "id", id)
	return nil
}

// CompleteProcessing finishes an attempt: a usable payload moves the entry to
// processed and stores the payload and duration, anything else moves it to
// no_data_extracted. Retry state for the entry is cleared either way.
func (t *Tracker) CompleteProcessing(ctx context.Context, id uuid.UUID, data *entity.ReceiptData) error {
	l, err := t.store.Get(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	metrics := t.takeMetrics(id)
	if metrics != nil {
		metrics.End(now)
	}

	final := constants.StatusNoDataExtracted
	reason := "no valid data extracted from receipt"
	md := &entity.TransitionMetadata{CompletionTime: &now}
	if data.Usable() {
		final = constants.StatusProcessed
		reason = "processing completed successfully"
		conf := data.ExtractionConfidence
		md.ExtractionConfidence = &conf
	}

	if err := statusflow.Validate(l.CurrentStatus, final); err != nil {
		t.logger.Error("cannot complete processing", "id", id, "status", l.CurrentStatus, "error", err)
		return err
	}
	if err := t.store.AppendTransition(ctx, id, final, storage.TransitionOptions{
		Reason:   reason,
		User:     "system",
		Metadata: md,
	}); err != nil {
		return err
	}

	if data != nil {
		upd := entity.LogUpdate{ReceiptData: data}
		if metrics != nil {
			if d, ok := metrics.TotalProcessingTime(); ok {
				secs := d.Seconds()
				upd.ProcessingTimeSeconds = &secs
			}
		}
		if err := t.store.Update(ctx, id, upd); err != nil {
			return err
		}
	}

	t.retries.Reset(id)
	t.logger.Info("completed processing", "id", id, "status", final)
	return nil
}

// RecordError categorizes a failure and either schedules a retry (when the
// caller's hint and the retry manager both permit it) or marks the entry as a
// terminal error. It returns whether the entry is now retryable.
func (t *Tracker) RecordError(ctx context.Context, id uuid.UUID, message string, shouldRetry bool) (bool, error) {
	l, err := t.store.Get(ctx, id)
	if err != nil {
		return false, err
	}

	category := errclass.Categorize(message)
	priority := errclass.Priority(category)
	now := time.Now().UTC()

	t.mu.Lock()
	if m, ok := t.active[id]; ok {
		m.RecordError(message, category)
	}
	t.mu.Unlock()

	if shouldRetry && t.retries.ShouldRetry(id, category) {
		if err := statusflow.Validate(l.CurrentStatus, constants.StatusRetry); err != nil {
			return false, err
		}
		count := t.retries.RecordRetry(id)
		t.mu.Lock()
		if m, ok := t.active[id]; ok {
			m.IncrementRetry()
		}
		t.mu.Unlock()

		err := t.store.AppendTransition(ctx, id, constants.StatusRetry, storage.TransitionOptions{
			Reason: "error occurred, scheduling retry: " + message,
			User:   "system",
			Metadata: &entity.TransitionMetadata{
				ErrorCategory: category,
				ErrorPriority: priority,
				RetryCount:    count,
				ErrorTime:     &now,
			},
		})
		if err != nil {
			return false, err
		}
		if err := t.store.Update(ctx, id, entity.LogUpdate{LastError: &message}); err != nil {
			return false, err
		}
		t.logger.Warn("error recorded, retry scheduled", "id", id, "category", category, "retry_count", count)
		return true, nil
	}

	if err := statusflow.Validate(l.CurrentStatus, constants.StatusError); err != nil {
		return false, err
	}
	err = t.store.AppendTransition(ctx, id, constants.StatusError, storage.TransitionOptions{
		Reason: "error occurred, no retry: " + message,
		User:   "system",
		Metadata: &entity.TransitionMetadata{
			ErrorCategory: category,
			ErrorPriority: priority,
			FinalError:    true,
			ErrorTime:     &now,
		},
	})
	if err != nil {
		return false, err
	}
	if err := t.store.Update(ctx, id, entity.LogUpdate{LastError: &message}); err != nil {
		return false, err
	}
	t.discardMetrics(id)
	t.logger.Error("error recorded, no retry", "id", id, "category", category, "error", message)
	return false, nil
}

// UpdateStatus performs a generic validated transition, used for the statuses
// the automatic flows do not cover (emailed, submitted, payment_received, and
// manual resets). A manual reset to pending clears the entry's retry state.
func (t *Tracker) UpdateStatus(ctx context.Context, id uuid.UUID, newStatus constants.Status, opts storage.TransitionOptions) error {
	l, err := t.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := statusflow.Validate(l.CurrentStatus, newStatus); err != nil {
		t.logger.Error("status update rejected", "id", id, "from", l.CurrentStatus, "to", newStatus, "error", err)
		return err
	}
	if err := t.store.AppendTransition(ctx, id, newStatus, opts); err != nil {
		return err
	}
	if newStatus == constants.StatusPending {
		t.retries.Reset(id)
	}
	t.logger.Info("status updated", "id", id, "from", l.CurrentStatus, "to", newStatus)
	return nil
}

// BulkUpdateStatus applies UpdateStatus to each id independently and returns a
// per-id result map; one id's failure never aborts the others.
func (t *Tracker) BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, newStatus constants.Status, opts storage.TransitionOptions) map[uuid.UUID]error {
	results := make(map[uuid.UUID]error, len(ids))
	succeeded := 0
	for _, id := range ids {
		err := t.UpdateStatus(ctx, id, newStatus, opts)
		results[id] = err
		if err == nil {
			succeeded++
		}
	}
	t.logger.Info("bulk status update completed", "succeeded", succeeded, "total", len(ids), "to", newStatus)
	return results
}

// RetryCandidates returns the entries in retry status whose backoff delay has
// elapsed.
func (t *Tracker) RetryCandidates(ctx context.Context) ([]*entity.ReceiptLog, error) {
	retrying, err := t.store.ListByStatus(ctx, constants.StatusRetry)
	if err != nil {
		return nil, err
	}
	var candidates []*entity.ReceiptLog
	for _, l := range retrying {
		if t.retries.CanRetryNow(l.ID, t.strategy) {
			candidates = append(candidates, l)
		}
	}
	return candidates, nil
}

// ErrorSummary counts error and retry entries by category and priority, read
// from their latest transition metadata.
func (t *Tracker) ErrorSummary(ctx context.Context) (ErrorSummary, error) {
	errored, err := t.store.ListByStatus(ctx, constants.StatusError)
	if err != nil {
		return ErrorSummary{}, err
	}
	retrying, err := t.store.ListByStatus(ctx, constants.StatusRetry)
	if err != nil {
		return ErrorSummary{}, err
	}

	summary := ErrorSummary{
		TotalErrors:  len(errored),
		TotalRetries: len(retrying),
		ByCategory:   make(map[constants.ErrorCategory]int),
		ByPriority:   make(map[int]int),
	}
	for _, l := range append(errored, retrying...) {
		tr := l.LatestTransition()
		if tr == nil || tr.Metadata == nil || tr.Metadata.ErrorCategory == "" {
			continue
		}
		summary.ByCategory[tr.Metadata.ErrorCategory]++
		summary.ByPriority[tr.Metadata.ErrorPriority]++
	}
	return summary, nil
}

// ProcessingStatistics aggregates counts by status plus timing, error and
// retry rates over the whole collection.
func (t *Tracker) ProcessingStatistics(ctx context.Context) (Statistics, error) {
	all, err := t.store.ListAll(ctx)
	if err != nil {
		return Statistics{}, err
	}

	stats := Statistics{
		TotalReceipts: len(all),
		ByStatus:      make(map[constants.Status]int),
	}
	var times []float64
	for _, l := range all {
		stats.ByStatus[l.CurrentStatus]++
		if l.ProcessingTimeSeconds != nil {
			times = append(times, *l.ProcessingTimeSeconds)
		}
	}

	if len(times) > 0 {
		stats.HasTimingData = true
		sum, minT, maxT := 0.0, times[0], times[0]
		for _, v := range times {
			sum += v
			if v < minT {
				minT = v
			}
			if v > maxT {
				maxT = v
			}
		}
		stats.AvgProcessingTime = sum / float64(len(times))
		stats.MinProcessingTime = minT
		stats.MaxProcessingTime = maxT
	}

	completed := stats.ByStatus[constants.StatusProcessed] +
		stats.ByStatus[constants.StatusError] +
		stats.ByStatus[constants.StatusNoDataExtracted]
	if completed > 0 {
		stats.ErrorRate = float64(stats.ByStatus[constants.StatusError]) / float64(completed)
		stats.RetryRate = float64(stats.ByStatus[constants.StatusRetry]) / float64(completed)
	}
	return stats, nil
}

// CleanupStaleMetrics drops in-flight metrics older than maxAge; attempts that
// never completed would otherwise leak. Returns the count removed.
func (t *Tracker) CleanupStaleMetrics(maxAge time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxAge)
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for id, m := range t.active {
		if m.StartTime.Before(cutoff) {
			delete(t.active, id)
			removed++
		}
	}
	return removed
}

// activeMetrics returns the in-flight metrics for id, or nil.
func (t *Tracker) activeMetrics(id uuid.UUID) *ProcessingMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active[id]
}

// takeMetrics removes and returns the in-flight metrics for id.
func (t *Tracker) takeMetrics(id uuid.UUID) *ProcessingMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := t.active[id]
	delete(t.active, id)
	return m
}

func (t *Tracker) discardMetrics(id uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.active, id)
}
