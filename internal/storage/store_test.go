package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipts-lifecycle/constants"
	"github.com/joseph-ayodele/receipts-lifecycle/internal/common"
	"github.com/joseph-ayodele/receipts-lifecycle/internal/entity"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "receipt_log.json"), "", testLogger())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func addTestEntry(t *testing.T, s *Store, filename string) *entity.ReceiptLog {
	t.Helper()
	l := entity.NewReceiptLog(filename, "/in/"+filename, 512)
	if err := s.Add(context.Background(), l); err != nil {
		t.Fatalf("Add(%s): %v", filename, err)
	}
	return l
}

func TestInitializeIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "receipt_log.json")

	s1, err := NewStore(path, "", testLogger())
	if err != nil {
		t.Fatalf("first NewStore: %v", err)
	}
	addTestEntry(t, s1, "a.jpg")

	// Reopening the same path must not alter the existing document.
	s2, err := NewStore(path, "", testLogger())
	if err != nil {
		t.Fatalf("second NewStore: %v", err)
	}
	all, err := s2.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("reopened store has %d entries, want 1", len(all))
	}
}

func TestAddAndGet(t *testing.T) {
	s := openTestStore(t)
	l := addTestEntry(t, s, "a.jpg")

	got, err := s.Get(context.Background(), l.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.OriginalFilename != "a.jpg" || got.CurrentStatus != constants.StatusPending {
		t.Errorf("got %q/%s, want a.jpg/pending", got.OriginalFilename, got.CurrentStatus)
	}
}

func TestGetUnknownIDIsNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), uuid.New())
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("Get(unknown) = %v, want ErrNotFound", err)
	}
}

func TestUpdateUnknownIDIsNotFound(t *testing.T) {
	s := openTestStore(t)
	err := s.Update(context.Background(), uuid.New(), entity.LogUpdate{})
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("Update(unknown) = %v, want ErrNotFound", err)
	}
}

func TestUpdateAppliesOnlyNamedFields(t *testing.T) {
	s := openTestStore(t)
	l := addTestEntry(t, s, "a.jpg")

	notes := "checked manually"
	if err := s.Update(context.Background(), l.ID, entity.LogUpdate{Notes: &notes}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := s.Get(context.Background(), l.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Notes == nil || *got.Notes != notes {
		t.Error("Notes should be updated")
	}
	if got.OriginalFilename != "a.jpg" {
		t.Error("unnamed fields must be untouched")
	}
	if !got.LastUpdated.After(l.LastUpdated) {
		t.Error("LastUpdated should be bumped")
	}
}

func TestAppendTransitionUpdatesStatusAndCounters(t *testing.T) {
	s := openTestStore(t)
	l := addTestEntry(t, s, "a.jpg")
	ctx := context.Background()

	if err := s.AppendTransition(ctx, l.ID, constants.StatusProcessing, TransitionOptions{Reason: "start", User: "system"}); err != nil {
		t.Fatalf("AppendTransition: %v", err)
	}
	if err := s.AppendTransition(ctx, l.ID, constants.StatusProcessed, TransitionOptions{Reason: "done", User: "system"}); err != nil {
		t.Fatalf("AppendTransition: %v", err)
	}

	got, err := s.Get(ctx, l.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.CurrentStatus != constants.StatusProcessed {
		t.Errorf("status = %s, want processed", got.CurrentStatus)
	}
	if got.ProcessedAt == nil {
		t.Error("entering processed should stamp ProcessedAt")
	}
	if last := got.LatestTransition(); last == nil || last.ToStatus != got.CurrentStatus {
		t.Error("current status must equal the last transition's to_status")
	}

	stats, err := s.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if stats.TotalReceipts != 1 || stats.SuccessfulExtractions != 1 || stats.FailedExtractions != 0 {
		t.Errorf("stats = %+v, want 1 total / 1 successful / 0 failed", stats)
	}
}

func TestListByStatusAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a := addTestEntry(t, s, "a.jpg")
	addTestEntry(t, s, "b.jpg")

	if err := s.AppendTransition(ctx, a.ID, constants.StatusProcessing, TransitionOptions{}); err != nil {
		t.Fatalf("AppendTransition: %v", err)
	}

	pending, err := s.ListByStatus(ctx, constants.StatusPending)
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	if len(pending) != 1 || pending[0].OriginalFilename != "b.jpg" {
		t.Errorf("pending = %d entries, want just b.jpg", len(pending))
	}

	recent, err := s.ListRecent(ctx, 1)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recent) != 1 {
		t.Errorf("ListRecent(1) returned %d entries", len(recent))
	}
}

func TestRoundTripIsStable(t *testing.T) {
	s := openTestStore(t)
	l := addTestEntry(t, s, "a.jpg")
	if err := s.AppendTransition(context.Background(), l.ID, constants.StatusProcessing, TransitionOptions{Reason: "start"}); err != nil {
		t.Fatalf("AppendTransition: %v", err)
	}

	before, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("read document: %v", err)
	}

	// Deserialize and re-serialize without mutation: the bytes must not change.
	col, err := s.load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := s.persist(col); err != nil {
		t.Fatalf("persist: %v", err)
	}

	after, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Error("load + persist changed the document bytes")
	}
}

func TestCleanupOlderThan(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	old := entity.NewReceiptLog("old.jpg", "/in/old.jpg", 1)
	old.CreatedAt = time.Now().UTC().AddDate(0, 0, -200)
	if err := s.Add(ctx, old); err != nil {
		t.Fatalf("Add: %v", err)
	}
	fresh := addTestEntry(t, s, "fresh.jpg")

	removed, err := s.CleanupOlderThan(ctx, 180)
	if err != nil {
		t.Fatalf("CleanupOlderThan: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}

	if _, err := s.Get(ctx, old.ID); !errors.Is(err, common.ErrNotFound) {
		t.Error("old entry should be gone")
	}
	if _, err := s.Get(ctx, fresh.ID); err != nil {
		t.Errorf("fresh entry should remain, got %v", err)
	}
}

func TestCleanupWithNothingToRemoveDoesNotRewrite(t *testing.T) {
	s := openTestStore(t)
	addTestEntry(t, s, "a.jpg")

	before, err := os.Stat(s.Path())
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	removed, err := s.CleanupOlderThan(context.Background(), 180)
	if err != nil {
		t.Fatalf("CleanupOlderThan: %v", err)
	}
	if removed != 0 {
		t.Fatalf("removed = %d, want 0", removed)
	}
	after, err := os.Stat(s.Path())
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Error("document should not be rewritten when nothing was removed")
	}
}

func TestBackupCopiesDocument(t *testing.T) {
	s := openTestStore(t)
	addTestEntry(t, s, "a.jpg")

	path, err := s.Backup(context.Background())
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if filepath.Dir(path) != s.BackupDir() {
		t.Errorf("backup written to %s, want %s", filepath.Dir(path), s.BackupDir())
	}

	live, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("read live: %v", err)
	}
	backup, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if !bytes.Equal(live, backup) {
		t.Error("backup must be a full copy of the live document")
	}
}

func TestVerifyIntegrity(t *testing.T) {
	s := openTestStore(t)
	addTestEntry(t, s, "a.jpg")
	ctx := context.Background()

	if !s.VerifyIntegrity(ctx) {
		t.Error("freshly written document should pass the integrity check")
	}

	if err := os.WriteFile(s.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("corrupt document: %v", err)
	}
	if s.VerifyIntegrity(ctx) {
		t.Error("corrupted document should fail the integrity check")
	}

	if err := os.WriteFile(s.Path(), []byte(`{"version":"1.0"}`), 0o644); err != nil {
		t.Fatalf("truncate document: %v", err)
	}
	if s.VerifyIntegrity(ctx) {
		t.Error("document missing required keys should fail the integrity check")
	}
}

func TestAddFailureLeavesDocumentUntouched(t *testing.T) {
	s := openTestStore(t)
	addTestEntry(t, s, "a.jpg")

	before, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("read document: %v", err)
	}

	// Point the store at an unwritable directory to force a persist failure.
	goodPath := s.path
	s.path = filepath.Join(t.TempDir(), "missing", "receipt_log.json")
	err = s.Add(context.Background(), entity.NewReceiptLog("b.jpg", "/in/b.jpg", 1))
	s.path = goodPath

	if !errors.Is(err, common.ErrStorageUnavailable) {
		t.Fatalf("Add into unwritable path = %v, want ErrStorageUnavailable", err)
	}
	after, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Error("failed write must leave the previous document intact")
	}
}
