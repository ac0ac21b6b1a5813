// Package storage persists the receipt log collection as a single JSON
// document with atomic whole-file replacement.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/receipts-lifecycle/constants"
	"github.com/joseph-ayodele/receipts-lifecycle/internal/common"
	"github.com/joseph-ayodele/receipts-lifecycle/internal/entity"
)

// TransitionOptions carries the optional provenance of a status transition.
type TransitionOptions struct {
	Reason   string
	User     string
	Metadata *entity.TransitionMetadata
}

// Statistics summarizes the persisted document.
type Statistics struct {
	TotalReceipts         int       `json:"total_receipts"`
	SuccessfulExtractions int       `json:"successful_extractions"`
	FailedExtractions     int       `json:"failed_extractions"`
	LastUpdated           time.Time `json:"last_updated"`
	FileSizeBytes         int64     `json:"file_size_bytes"`
}

// Store reads and writes the log document. Every mutation is a full
// load -> mutate -> serialize to temp file -> atomic rename cycle, so a
// concurrent reader of the document path only ever observes a complete
// document. That cycle is not safe against two concurrent writers, so all
// operations on one Store are serialized by its mutex; multi-process access
// must be externally serialized.
type Store struct {
	mu        sync.Mutex
	path      string
	backupDir string
	schema    *jsonschema.Schema
	logger    *slog.Logger
}

// NewStore creates a store for the document at logFilePath, initializing an
// empty document if none exists. An empty backupDir defaults to a "backups"
// directory next to the document.
func NewStore(logFilePath, backupDir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if backupDir == "" {
		backupDir = filepath.Join(filepath.Dir(logFilePath), "backups")
	}
	if err := os.MkdirAll(filepath.Dir(logFilePath), 0o755); err != nil {
		return nil, common.StorageError("create log directory", err)
	}
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return nil, common.StorageError("create backup directory", err)
	}
	schema, err := compileLogFileSchema()
	if err != nil {
		return nil, common.WrapError(err, "compile document schema")
	}
	s := &Store{
		path:      logFilePath,
		backupDir: backupDir,
		schema:    schema,
		logger:    logger,
	}
	if err := s.Initialize(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the log document path.
func (s *Store) Path() string { return s.path }

// BackupDir returns the backup directory path.
func (s *Store) BackupDir() string { return s.backupDir }

// Initialize creates an empty, valid document if none exists. Idempotent: an
// existing document is never altered.
func (s *Store) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return common.StorageError("stat log file", err)
	}
	if err := s.persist(entity.NewLogCollection()); err != nil {
		return err
	}
	s.logger.Info("initialized new log file", "path", s.path)
	return nil
}

// Add appends a log entry, recomputes counters and persists. On failure the
// previously persisted document is left untouched.
func (s *Store) Add(ctx context.Context, l *entity.ReceiptLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, err := s.load()
	if err != nil {
		return err
	}
	col.AddLog(l)
	if err := s.persist(col); err != nil {
		return err
	}
	s.logger.Info("added log entry", "id", l.ID, "file", l.OriginalFilename)
	return nil
}

// Update applies the named field changes to one entry and persists.
func (s *Store) Update(ctx context.Context, id uuid.UUID, upd entity.LogUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, err := s.load()
	if err != nil {
		return err
	}
	l := col.GetByID(id)
	if l == nil {
		return common.NotFoundError(id.String())
	}
	upd.ApplyTo(l)
	now := time.Now().UTC()
	l.LastUpdated = now
	col.LastUpdated = now
	col.RecomputeStatistics()
	if err := s.persist(col); err != nil {
		return err
	}
	s.logger.Info("updated log entry", "id", id)
	return nil
}

// AppendTransition appends a status transition to one entry, moving it to
// toStatus, and persists. Legality of the transition is the caller's
// responsibility (the tracker layers the validator on top).
func (s *Store) AppendTransition(ctx context.Context, id uuid.UUID, toStatus constants.Status, opts TransitionOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, err := s.load()
	if err != nil {
		return err
	}
	l := col.GetByID(id)
	if l == nil {
		return common.NotFoundError(id.String())
	}
	now := time.Now().UTC()
	l.ApplyTransition(toStatus, opts.Reason, opts.User, opts.Metadata, now)
	col.LastUpdated = now
	col.RecomputeStatistics()
	if err := s.persist(col); err != nil {
		return err
	}
	s.logger.Info("status transition recorded", "id", id, "to", toStatus)
	return nil
}

// Get returns the entry with the given id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*entity.ReceiptLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, err := s.load()
	if err != nil {
		return nil, err
	}
	l := col.GetByID(id)
	if l == nil {
		return nil, common.NotFoundError(id.String())
	}
	return l, nil
}

// ListByStatus returns all entries with the given status.
func (s *Store) ListByStatus(ctx context.Context, status constants.Status) ([]*entity.ReceiptLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, err := s.load()
	if err != nil {
		return nil, err
	}
	return col.ByStatus(status), nil
}

// ListRecent returns up to limit entries, newest creation first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]*entity.ReceiptLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, err := s.load()
	if err != nil {
		return nil, err
	}
	return col.Recent(limit), nil
}

// ListAll returns every entry in the document.
func (s *Store) ListAll(ctx context.Context) ([]*entity.ReceiptLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, err := s.load()
	if err != nil {
		return nil, err
	}
	return col.Logs, nil
}

// CleanupOlderThan removes entries created more than maxAgeDays ago and
// returns the count removed. The document is rewritten only when the count is
// non-zero.
func (s *Store) CleanupOlderThan(ctx context.Context, maxAgeDays int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, err := s.load()
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -maxAgeDays)
	removed := col.CleanupOlderThan(cutoff)
	if removed == 0 {
		return 0, nil
	}
	if err := s.persist(col); err != nil {
		return 0, err
	}
	s.logger.Info("cleaned up old log entries", "removed", removed, "max_age_days", maxAgeDays)
	return removed, nil
}

// Backup copies the current document to a timestamped file in the backup
// directory and returns its path.
func (s *Store) Backup(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backupLocked()
}

func (s *Store) backupLocked() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", common.StorageError("read log file for backup", err)
	}
	name := fmt.Sprintf("receipt_log_backup_%s.json", time.Now().UTC().Format("20060102_150405"))
	backupPath := filepath.Join(s.backupDir, name)
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return "", common.StorageError("write backup file", err)
	}
	s.logger.Info("created backup", "path", backupPath)
	return backupPath, nil
}

// VerifyIntegrity checks that the persisted document is structurally sound:
// it parses, matches the document schema, and every entry has an id, a known
// status, and at least one transition. It never returns an error; problems are
// logged and reported as false.
func (s *Store) VerifyIntegrity(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		s.logger.Error("integrity check failed to read log file", "path", s.path, "error", err)
		return false
	}
	if err := validateDocument(s.schema, data); err != nil {
		s.logger.Error("integrity check failed schema validation", "path", s.path, "error", err)
		return false
	}
	var col entity.LogCollection
	if err := json.Unmarshal(data, &col); err != nil {
		s.logger.Error("integrity check failed to decode document", "error", err)
		return false
	}
	for _, l := range col.Logs {
		if l.ID == uuid.Nil || !l.CurrentStatus.IsValid() || len(l.StatusHistory) == 0 {
			s.logger.Error("integrity check found malformed entry", "id", l.ID)
			return false
		}
	}
	s.logger.Debug("log file integrity verified", "entries", len(col.Logs))
	return true
}

// Statistics returns the document's derived counters and on-disk size.
func (s *Store) Statistics(ctx context.Context) (Statistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, err := s.load()
	if err != nil {
		return Statistics{}, err
	}
	stats := Statistics{
		TotalReceipts:         col.TotalReceipts,
		SuccessfulExtractions: col.SuccessfulExtractions,
		FailedExtractions:     col.FailedExtractions,
		LastUpdated:           col.LastUpdated,
	}
	if info, err := os.Stat(s.path); err == nil {
		stats.FileSizeBytes = info.Size()
	}
	return stats, nil
}

// load reads and decodes the current document.
func (s *Store) load() (*entity.LogCollection, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, common.StorageError("read log file", err)
	}
	var col entity.LogCollection
	if err := json.Unmarshal(data, &col); err != nil {
		return nil, common.StorageError("decode log file", err)
	}
	return &col, nil
}

// persist serializes the document to a temp file in the same directory and
// atomically renames it over the target path. A reader of the path therefore
// sees either the fully-old or fully-new document, never a partial write.
func (s *Store) persist(col *entity.LogCollection) error {
	data, err := json.MarshalIndent(col, "", "  ")
	if err != nil {
		return common.StorageError("encode log file", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".receipt_log_*.tmp")
	if err != nil {
		return common.StorageError("create temp file", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return common.StorageError("write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return common.StorageError("sync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return common.StorageError("close temp file", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return common.StorageError("chmod temp file", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return common.StorageError("replace log file", err)
	}
	return nil
}
