package history_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"scribed/internal/history"
	"scribed/internal/testsupport"
)

func testRecord(filename string, createdAt time.Time) history.Record {
	return history.Record{
		ID:         uuid.NewString(),
		Filename:   filename,
		Language:   "en",
		Provider:   "whisper",
		Transcript: "transcript of " + filename,
		CreatedAt:  createdAt,
	}
}

func TestInsertAndGet(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	ctx := context.Background()

	rec := testRecord("talk.mp3", time.Now())
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Filename != "talk.mp3" || got.Provider != "whisper" || got.Transcript != rec.Transcript {
		t.Errorf("Get returned %+v", got)
	}
	if got.Error != "" {
		t.Errorf("finished record carries error %q", got.Error)
	}
}

func TestGetUnknownID(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	if _, err := store.Get(context.Background(), uuid.NewString()); !errors.Is(err, history.ErrNotFound) {
		t.Errorf("Get returned %v, want ErrNotFound", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, name := range []string{"a.mp3", "b.mp3", "c.mp3"} {
		if err := store.Insert(ctx, testRecord(name, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	records, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("List returned %d records", len(records))
	}
	for i, want := range []string{"c.mp3", "b.mp3", "a.mp3"} {
		if records[i].Filename != want {
			t.Errorf("records[%d] = %s, want %s", i, records[i].Filename, want)
		}
	}

	limited, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List with limit failed: %v", err)
	}
	if len(limited) != 2 || limited[0].Filename != "c.mp3" {
		t.Errorf("limited list = %+v", limited)
	}
}

func TestFailedJobRecord(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	ctx := context.Background()

	rec := history.Record{
		ID:       uuid.NewString(),
		Filename: "broken.webm",
		Provider: "gemini",
		Error:    "media decode failed",
	}
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	got, err := store.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Error != "media decode failed" || got.Transcript != "" {
		t.Errorf("failed record = %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt was not defaulted")
	}
}

func TestDeleteAndClear(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first := testRecord("one.wav", time.Now())
	second := testRecord("two.wav", time.Now())
	for _, rec := range []history.Record{first, second} {
		if err := store.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	removed, err := store.Delete(ctx, first.ID)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !removed {
		t.Error("Delete reported no row removed")
	}
	if removed, _ := store.Delete(ctx, first.ID); removed {
		t.Error("second Delete reported a removal")
	}

	cleared, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if cleared != 1 {
		t.Errorf("Clear removed %d rows, want 1", cleared)
	}
}

func TestReopenPersists(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	rec := testRecord("persist.ogg", time.Now())
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := testsupport.MustOpenHistory(t, cfg)
	got, err := reopened.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if got.Filename != "persist.ogg" {
		t.Errorf("reopened record = %+v", got)
	}
}
