package memory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dreamwell/sleepdiary/internal/app/domain/user"
)

func TestFlusherFlushesOnStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diary.json")
	ctx := context.Background()

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.CreateUser(ctx, user.User{Username: "alice"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	f := NewFlusher(store, time.Hour, nil)
	if err := f.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// The interval never fires; Stop must still persist the state.
	if err := f.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, err := reopened.GetUserByUsername(ctx, "alice"); err != nil {
		t.Fatalf("data not flushed on stop: %v", err)
	}
}

func TestFlusherStopIdempotent(t *testing.T) {
	store := New()
	f := NewFlusher(store, time.Hour, nil)
	ctx := context.Background()

	if err := f.Stop(ctx); err != nil {
		t.Fatalf("Stop before Start: %v", err)
	}
	if err := f.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.Start(ctx); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if err := f.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := f.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}
