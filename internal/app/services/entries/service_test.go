package entries

import (
	"context"
	"testing"

	"github.com/dreamwell/sleepdiary/internal/app/domain/user"
	"github.com/dreamwell/sleepdiary/internal/app/storage"
	"github.com/dreamwell/sleepdiary/internal/app/storage/memory"
	apperrors "github.com/dreamwell/sleepdiary/internal/errors"
)

func f(v float64) *float64 { return &v }
func i(v int) *int         { return &v }

func validInput() Input {
	return Input{
		Date:       "2024-01-01",
		BedTime:    "22:30",
		WakeTime:   "06:30",
		Duration:   f(8),
		ScreenTime: f(1.5),
		Energy:     i(4),
		Notes:      "slept well",
	}
}

func newTestService(t *testing.T) (*Service, *memory.Store, int64) {
	t.Helper()
	store := memory.New()
	u, err := store.CreateUser(context.Background(), user.User{Username: "alice"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return New(storage.Static(store), nil), store, u.ID
}

func TestUpsertReplacesSameDay(t *testing.T) {
	svc, _, userID := newTestService(t)
	ctx := context.Background()

	if err := svc.Upsert(ctx, userID, validInput()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	in := validInput()
	in.Duration = f(7.5)
	in.Notes = "woke up once"
	if err := svc.Upsert(ctx, userID, in); err != nil {
		t.Fatalf("Upsert (second): %v", err)
	}

	list, err := svc.List(ctx, userID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 entry after resubmission, got %d", len(list))
	}
	if list[0].Duration != 7.5 || list[0].Notes != "woke up once" {
		t.Fatalf("fields not replaced: %+v", list[0])
	}
}

func TestUpsertValidation(t *testing.T) {
	svc, _, userID := newTestService(t)
	ctx := context.Background()

	mutations := map[string]func(*Input){
		"missing date":        func(in *Input) { in.Date = "  " },
		"missing bed time":    func(in *Input) { in.BedTime = "" },
		"missing wake time":   func(in *Input) { in.WakeTime = "" },
		"missing duration":    func(in *Input) { in.Duration = nil },
		"missing screen time": func(in *Input) { in.ScreenTime = nil },
		"missing energy":      func(in *Input) { in.Energy = nil },
		"negative duration":   func(in *Input) { in.Duration = f(-1) },
		"negative screen":     func(in *Input) { in.ScreenTime = f(-0.5) },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			in := validInput()
			mutate(&in)
			if err := svc.Upsert(ctx, userID, in); !apperrors.IsCode(err, apperrors.CodeInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}

	// Notes are optional.
	in := validInput()
	in.Notes = ""
	if err := svc.Upsert(ctx, userID, in); err != nil {
		t.Fatalf("Upsert without notes: %v", err)
	}
}

func TestListIsolatedPerUser(t *testing.T) {
	svc, store, aliceID := newTestService(t)
	ctx := context.Background()

	bob, err := store.CreateUser(ctx, user.User{Username: "bob"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	if err := svc.Upsert(ctx, aliceID, validInput()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	list, err := svc.List(ctx, bob.ID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("bob sees alice's entries: %+v", list)
	}
}

func TestDeleteOnlyOwn(t *testing.T) {
	svc, store, aliceID := newTestService(t)
	ctx := context.Background()

	bob, _ := store.CreateUser(ctx, user.User{Username: "bob"})
	if err := svc.Upsert(ctx, aliceID, validInput()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	list, _ := svc.List(ctx, aliceID)
	entryID := list[0].ID

	if err := svc.Delete(ctx, entryID, bob.ID); err != nil {
		t.Fatalf("Delete by non-owner must be a silent no-op, got %v", err)
	}
	if list, _ = svc.List(ctx, aliceID); len(list) != 1 {
		t.Fatal("non-owner delete removed the entry")
	}

	if err := svc.Delete(ctx, entryID, aliceID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if list, _ = svc.List(ctx, aliceID); len(list) != 0 {
		t.Fatal("entry not removed by owner delete")
	}
}
