package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/partswork/engine/internal/storage"
)

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := New()

	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	record := storage.SessionRecord{ID: "s1", Energy: 1.0, CreatedAt: created, UpdatedAt: created}
	if err := store.CreateSession(ctx, record); err != nil {
		t.Fatalf("CreateSession(): %v", err)
	}
	if err := store.CreateSession(ctx, record); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate CreateSession() = %v, want ErrAlreadyExists", err)
	}

	got, err := store.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession(): %v", err)
	}
	if got.Energy != 1.0 {
		t.Fatalf("Energy = %v, want 1.0", got.Energy)
	}

	record.Energy = 0.4
	record.PartCount = 3
	if err := store.UpdateSession(ctx, record); err != nil {
		t.Fatalf("UpdateSession(): %v", err)
	}
	got, _ = store.GetSession(ctx, "s1")
	if got.Energy != 0.4 || got.PartCount != 3 {
		t.Fatalf("after update = %+v", got)
	}

	if err := store.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("DeleteSession(): %v", err)
	}
	if _, err := store.GetSession(ctx, "s1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetSession(deleted) = %v, want ErrNotFound", err)
	}
	if err := store.DeleteSession(ctx, "s1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("DeleteSession(absent) = %v, want ErrNotFound", err)
	}
}

func TestListSessionsOrdered(t *testing.T) {
	ctx := context.Background()
	store := New()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"c", "a", "b"} {
		record := storage.SessionRecord{ID: id, CreatedAt: base.Add(time.Duration(2-i) * time.Hour)}
		if err := store.CreateSession(ctx, record); err != nil {
			t.Fatalf("CreateSession(%s): %v", id, err)
		}
	}

	records, err := store.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions(): %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("ListSessions() = %d, want 3", len(records))
	}
	if records[0].ID != "b" || records[2].ID != "c" {
		t.Fatalf("order = %s,%s,%s", records[0].ID, records[1].ID, records[2].ID)
	}
}

func TestEventJournal(t *testing.T) {
	ctx := context.Background()
	store := New()
	if err := store.CreateSession(ctx, storage.SessionRecord{ID: "s1"}); err != nil {
		t.Fatalf("CreateSession(): %v", err)
	}

	if err := store.AppendEvent(ctx, storage.EventRecord{SessionID: "ghost"}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("AppendEvent(ghost) = %v, want ErrNotFound", err)
	}

	for _, kind := range []string{"blend", "engagement", "unburdening"} {
		if err := store.AppendEvent(ctx, storage.EventRecord{SessionID: "s1", Kind: kind}); err != nil {
			t.Fatalf("AppendEvent(%s): %v", kind, err)
		}
	}

	events, err := store.ListEvents(ctx, "s1")
	if err != nil {
		t.Fatalf("ListEvents(): %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("ListEvents() = %d, want 3", len(events))
	}
	for i, event := range events {
		if event.Seq != int64(i+1) {
			t.Fatalf("event %d seq = %d", i, event.Seq)
		}
	}

	if err := store.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("DeleteSession(): %v", err)
	}
	if _, err := store.ListEvents(ctx, "s1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("ListEvents(deleted) = %v, want ErrNotFound", err)
	}
}
