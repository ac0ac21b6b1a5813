package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/joseph-ayodele/receipts-lifecycle/internal/common"
	"github.com/joseph-ayodele/receipts-lifecycle/internal/entity"
)

const backupGlob = "receipt_log_backup_*.json"

// RotationManager bounds the on-disk size of the log document by archiving it
// into a backup and starting a fresh empty document.
type RotationManager struct {
	store    *Store
	maxBytes int64
	logger   *slog.Logger
}

// NewRotationManager creates a manager that rotates once the document exceeds
// maxFileSizeMB.
func NewRotationManager(store *Store, maxFileSizeMB int, logger *slog.Logger) *RotationManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &RotationManager{
		store:    store,
		maxBytes: int64(maxFileSizeMB) * 1024 * 1024,
		logger:   logger,
	}
}

// ShouldRotate reports whether the document exceeds the size threshold.
// A missing document never needs rotation.
func (r *RotationManager) ShouldRotate() bool {
	info, err := os.Stat(r.store.Path())
	if err != nil {
		return false
	}
	return info.Size() > r.maxBytes
}

// Rotate backs up the current document and replaces it with a fresh empty
// collection. If the backup fails, rotation does not proceed and the live
// document is untouched.
func (r *RotationManager) Rotate(ctx context.Context) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	backupPath, err := r.store.backupLocked()
	if err != nil {
		return common.WrapError(err, "backup before rotation")
	}
	if err := r.store.persist(entity.NewLogCollection()); err != nil {
		return common.WrapError(err, "reset log file after backup")
	}
	r.logger.Info("rotated log file", "backup", backupPath)
	return nil
}

// PruneBackups deletes all but the keep most recent backup files, oldest
// first, and returns the count removed.
func (r *RotationManager) PruneBackups(keep int) (int, error) {
	matches, err := filepath.Glob(filepath.Join(r.store.BackupDir(), backupGlob))
	if err != nil {
		return 0, common.StorageError("list backups", err)
	}
	type backup struct {
		path  string
		mtime int64
	}
	backups := make([]backup, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		backups = append(backups, backup{path: m, mtime: info.ModTime().UnixNano()})
	}
	sort.Slice(backups, func(i, j int) bool { return backups[i].mtime > backups[j].mtime })

	removed := 0
	for i := len(backups) - 1; i >= keep && i >= 0; i-- {
		if err := os.Remove(backups[i].path); err != nil {
			r.logger.Warn("failed to remove old backup", "path", backups[i].path, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		r.logger.Info("pruned old backups", "removed", removed, "kept", keep)
	}
	return removed, nil
}
