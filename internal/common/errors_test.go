package common

import (
	"errors"
	"os"
	"strings"
	"testing"
)

func TestAppErrorFormatting(t *testing.T) {
	bare := NewAppError("CONFIG_ERROR", "LOG_FILE_PATH is required", nil)
	if got := bare.Error(); got != "CONFIG_ERROR: LOG_FILE_PATH is required" {
		t.Errorf("Error() = %q", got)
	}

	wrapped := NewAppError("STORAGE_ERROR", "cannot open log file", os.ErrPermission)
	if !strings.Contains(wrapped.Error(), "permission denied") {
		t.Errorf("Error() = %q, should include the cause", wrapped.Error())
	}
	if !errors.Is(wrapped, os.ErrPermission) {
		t.Error("AppError should unwrap to its cause")
	}
}

func TestWrapError(t *testing.T) {
	if WrapError(nil, "context") != nil {
		t.Error("wrapping nil should stay nil")
	}
	err := WrapError(ErrNotFound, "lookup")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("WrapError lost the sentinel: %v", err)
	}
}

func TestSentinelConstructors(t *testing.T) {
	nf := NotFoundError("3f1c")
	if !errors.Is(nf, ErrNotFound) || !strings.Contains(nf.Error(), "3f1c") {
		t.Errorf("NotFoundError = %v", nf)
	}

	se := StorageError("write temp file", os.ErrPermission)
	if !errors.Is(se, ErrStorageUnavailable) {
		t.Errorf("StorageError should match ErrStorageUnavailable: %v", se)
	}
	if !strings.Contains(se.Error(), "write temp file") {
		t.Errorf("StorageError should name the operation: %v", se)
	}
}
