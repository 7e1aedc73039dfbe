package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close catalog: %v", err)
		}
	})
	return store
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "catalog.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close catalog: %v", err)
	}
}

func TestRecordSessionRequiresStatus(t *testing.T) {
	store := testStore(t)
	if _, err := store.RecordSession(context.Background(), Session{}); err == nil {
		t.Fatalf("expected error for missing status")
	}
}

func TestRecordAndListSessions(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	first, err := store.RecordSession(ctx, Session{
		StartedAt:     base,
		EndedAt:       base.Add(30 * time.Second),
		FrameCount:    900,
		KeyEventCount: 42,
		ItemCount:     810,
		AverageFPS:    29.7,
		Status:        StatusExported,
		ExportDir:     "data/20240601-120000",
	})
	if err != nil {
		t.Fatalf("record first session: %v", err)
	}
	if first.ID == "" {
		t.Fatalf("expected an ID to be assigned")
	}

	second, err := store.RecordSession(ctx, Session{
		StartedAt: base.Add(time.Minute),
		EndedAt:   base.Add(time.Minute + 2*time.Second),
		Status:    StatusDiscarded,
		Message:   "session too short",
	})
	if err != nil {
		t.Fatalf("record second session: %v", err)
	}

	sessions, err := store.ListSessions(ctx, 10)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	// Newest first.
	if sessions[0].ID != second.ID {
		t.Fatalf("expected newest session first, got %q", sessions[0].ID)
	}
	if sessions[0].Message != "session too short" {
		t.Fatalf("message mismatch: %q", sessions[0].Message)
	}
	if sessions[1].FrameCount != 900 || sessions[1].ItemCount != 810 {
		t.Fatalf("counts mismatch: %+v", sessions[1])
	}
	if sessions[1].ExportDir != "data/20240601-120000" {
		t.Fatalf("export dir mismatch: %q", sessions[1].ExportDir)
	}
	if sessions[1].Status != StatusExported {
		t.Fatalf("status mismatch: %q", sessions[1].Status)
	}
}

func TestListSessionsHonoursLimit(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := store.RecordSession(ctx, Session{
			StartedAt: base.Add(time.Duration(i) * time.Minute),
			EndedAt:   base.Add(time.Duration(i)*time.Minute + 30*time.Second),
			Status:    StatusExported,
		})
		if err != nil {
			t.Fatalf("record session %d: %v", i, err)
		}
	}

	sessions, err := store.ListSessions(ctx, 3)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(sessions))
	}
}
