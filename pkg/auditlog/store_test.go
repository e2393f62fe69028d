package auditlog

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"prismgate/pkg/proxy"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "audit.db"), testLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func waitForCount(t *testing.T, s *Store, want int64) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n, err := s.Count(context.Background())
		if err != nil {
			t.Fatalf("Count() error = %v", err)
		}
		if n == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	n, _ := s.Count(context.Background())
	t.Fatalf("count = %d, want %d", n, want)
}

func TestStoreRecord(t *testing.T) {
	s := openTestStore(t)

	s.Record(context.Background(), proxy.AuditEntry{
		RequestID: "req-1",
		Path:      "/api/provider/openai/v1/chat/completions",
		Target:    "https://upstream.example.com/v1/chat/completions",
		Method:    "POST",
		Model:     "gpt-4o",
		Status:    200,
		Duration:  120 * time.Millisecond,
	})

	waitForCount(t, s, 1)
}

func TestStorePrune(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 5; i++ {
		s.Record(context.Background(), proxy.AuditEntry{
			Path:   "/api/x",
			Target: "https://example.com",
			Method: "POST",
			Status: 200,
		})
	}
	waitForCount(t, s, 5)

	// Everything was just written; a cutoff in the past removes nothing.
	removed, err := s.Prune(context.Background(), time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}

	removed, err = s.Prune(context.Background(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if removed != 5 {
		t.Errorf("removed = %d, want 5", removed)
	}
	waitForCount(t, s, 0)
}

func TestNewPrunerRejectsBadSchedule(t *testing.T) {
	s := openTestStore(t)

	if _, err := NewPruner(s, "not a schedule", 30, testLogger()); err == nil {
		t.Fatal("expected error for invalid cron schedule")
	}
	if _, err := NewPruner(s, "0 3 * * *", 30, testLogger()); err != nil {
		t.Errorf("valid schedule rejected: %v", err)
	}
}
