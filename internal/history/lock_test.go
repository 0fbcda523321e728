package history

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func releaseLock(t *testing.T, l *InstanceLock) {
	t.Helper()
	if err := l.Release(); err != nil {
		t.Logf("Warning: Release failed: %v", err)
	}
}

func TestInstanceLock_Acquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", LockFilename)
	l := NewInstanceLock(path)
	defer releaseLock(t, l)

	if err := l.Acquire(); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if !l.Held() {
		t.Error("Expected Held to be true")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if strings.TrimSpace(string(data)) != strconv.Itoa(os.Getpid()) {
		t.Errorf("Lock file content = %q, want own PID", data)
	}

	// Acquiring twice on the same instance is a no-op.
	if err := l.Acquire(); err != nil {
		t.Errorf("Second Acquire failed: %v", err)
	}
}

func TestInstanceLock_Contention(t *testing.T) {
	path := filepath.Join(t.TempDir(), LockFilename)

	first := NewInstanceLock(path)
	if err := first.Acquire(); err != nil {
		t.Fatalf("First Acquire failed: %v", err)
	}

	second := NewInstanceLock(path)
	if err := second.Acquire(); !errors.Is(err, ErrLocked) {
		t.Fatalf("Second Acquire error = %v, want ErrLocked", err)
	}
	if second.Held() {
		t.Error("Second lock should not be held")
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := second.Acquire(); err != nil {
		t.Errorf("Acquire after release failed: %v", err)
	}
	releaseLock(t, second)
}

func TestInstanceLock_ReleaseUnheld(t *testing.T) {
	l := NewInstanceLock(filepath.Join(t.TempDir(), LockFilename))
	if err := l.Release(); err != nil {
		t.Errorf("Release on unheld lock failed: %v", err)
	}
	if l.Path() == "" {
		t.Error("Path should be set")
	}
}
