package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	logx "zodbot/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := OpenSQLite(context.Background(), Options{
		Path:        filepath.Join(t.TempDir(), "bot.db"),
		DefaultHour: 9,
	}, logx.Nop())
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestEnsureUserIsIdempotent(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.EnsureUser(ctx, 42); err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if err := st.SetSign(ctx, 42, "leo"); err != nil {
		t.Fatalf("SetSign: %v", err)
	}
	if err := st.SetNotifyHour(ctx, 42, 7); err != nil {
		t.Fatalf("SetNotifyHour: %v", err)
	}

	// A second Ensure must not reset anything.
	if err := st.EnsureUser(ctx, 42); err != nil {
		t.Fatalf("EnsureUser again: %v", err)
	}
	u, err := st.GetUser(ctx, 42)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.Sign != "leo" || u.NotifyHour != 7 || !u.Subscribed {
		t.Fatalf("unexpected user after re-ensure: %+v", u)
	}
}

func TestGetUserNotFound(t *testing.T) {
	st := openTestStore(t)
	if _, err := st.GetUser(context.Background(), 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetNotifyHourClamps(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	if err := st.EnsureUser(ctx, 1); err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}

	for _, c := range []struct{ in, want int }{{-5, 0}, {0, 0}, {23, 23}, {30, 23}} {
		if err := st.SetNotifyHour(ctx, 1, c.in); err != nil {
			t.Fatalf("SetNotifyHour(%d): %v", c.in, err)
		}
		u, err := st.GetUser(ctx, 1)
		if err != nil {
			t.Fatalf("GetUser: %v", err)
		}
		if u.NotifyHour != c.want {
			t.Fatalf("hour %d stored as %d, want %d", c.in, u.NotifyHour, c.want)
		}
	}
}

func TestListDueFiltering(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	day := time.Date(2026, 9, 1, 9, 30, 0, 0, time.UTC)

	seed := func(id int64, sign string, hour int, subscribed bool) {
		t.Helper()
		if err := st.EnsureUser(ctx, id); err != nil {
			t.Fatalf("EnsureUser(%d): %v", id, err)
		}
		if sign != "" {
			if err := st.SetSign(ctx, id, sign); err != nil {
				t.Fatalf("SetSign(%d): %v", id, err)
			}
		}
		if err := st.SetNotifyHour(ctx, id, hour); err != nil {
			t.Fatalf("SetNotifyHour(%d): %v", id, err)
		}
		if err := st.SetSubscribed(ctx, id, subscribed); err != nil {
			t.Fatalf("SetSubscribed(%d): %v", id, err)
		}
	}

	seed(1, "leo", 9, true)     // due
	seed(2, "virgo", 9, true)   // due, then marked sent
	seed(3, "", 9, true)        // no sign
	seed(4, "aries", 10, true)  // wrong hour
	seed(5, "pisces", 9, false) // unsubscribed

	if err := st.MarkSent(ctx, 2, day); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}

	due, err := st.ListDue(ctx, day, 9)
	if err != nil {
		t.Fatalf("ListDue: %v", err)
	}
	if len(due) != 1 || due[0].ID != 1 || due[0].Sign != "leo" {
		t.Fatalf("unexpected due set: %+v", due)
	}

	// Next day user 2 is eligible again.
	due, err = st.ListDue(ctx, day.AddDate(0, 0, 1), 9)
	if err != nil {
		t.Fatalf("ListDue next day: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected 2 due next day, got %+v", due)
	}
}

func TestMarkSentRecordsDay(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	if err := st.EnsureUser(ctx, 7); err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if err := st.MarkSent(ctx, 7, day); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	u, err := st.GetUser(ctx, 7)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.LastSentDate != "2026-09-01" {
		t.Fatalf("last_sent_date = %q", u.LastSentDate)
	}
}

func TestRegistrySwitch(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	m, err := st.ActiveModel(ctx)
	if err != nil {
		t.Fatalf("ActiveModel: %v", err)
	}
	if m.ID != 1 {
		t.Fatalf("seeded active id = %d, want 1", m.ID)
	}

	// Switch upward, then downward: the target id being lower than the
	// currently active one must not trip ux_models_single_active.
	for _, target := range []int64{3, 4, 2, 1} {
		if _, err := st.SetActiveModel(ctx, target); err != nil {
			t.Fatalf("SetActiveModel(%d): %v", target, err)
		}
		models, err := st.ListModels(ctx)
		if err != nil {
			t.Fatalf("ListModels: %v", err)
		}
		activeCount := 0
		for _, m := range models {
			if m.Active {
				activeCount++
				if m.ID != target {
					t.Fatalf("active id = %d, want %d", m.ID, target)
				}
			}
		}
		if activeCount != 1 {
			t.Fatalf("after switch to %d: active rows = %d, want exactly 1", target, activeCount)
		}
	}
}

func TestRegistryUnknownIDLeavesStateUnchanged(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	_, err := st.SetActiveModel(ctx, 999)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	m, err := st.ActiveModel(ctx)
	if err != nil {
		t.Fatalf("ActiveModel: %v", err)
	}
	if m.ID != 1 {
		t.Fatalf("active id changed to %d after failed switch", m.ID)
	}
}

func TestRegistryConcurrentSwitch(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, id := range []int64{1, 2, 3, 4, 2, 3} {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if _, err := st.SetActiveModel(ctx, id); err != nil {
				t.Errorf("SetActiveModel(%d): %v", id, err)
			}
		}(id)
	}
	wg.Wait()

	models, err := st.ListModels(ctx)
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	active := 0
	for _, m := range models {
		if m.Active {
			active++
		}
	}
	if active != 1 {
		t.Fatalf("active rows after concurrent switches = %d, want 1", active)
	}
}

func TestRegistrySelfHeals(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	// Knock out the active flag behind the store's back.
	raw := st.(*sqliteStore)
	if _, err := raw.db.ExecContext(ctx, `UPDATE models SET active = 0`); err != nil {
		t.Fatalf("clear active: %v", err)
	}

	m, err := st.ActiveModel(ctx)
	if err != nil {
		t.Fatalf("ActiveModel: %v", err)
	}
	if m.ID != 1 || !m.Active {
		t.Fatalf("self-heal promoted %+v, want id 1 active", m)
	}

	var count int
	if err := raw.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM models WHERE active = 1`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("active rows after heal = %d", count)
	}
}

func TestUserCharacterFallback(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	if err := st.EnsureUser(ctx, 5); err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}

	// Never picked: falls back to id 1.
	c, err := st.UserCharacter(ctx, 5)
	if err != nil {
		t.Fatalf("UserCharacter: %v", err)
	}
	if c.ID != 1 {
		t.Fatalf("fallback persona id = %d, want 1", c.ID)
	}

	picked, err := st.SetUserCharacter(ctx, 5, 4)
	if err != nil {
		t.Fatalf("SetUserCharacter: %v", err)
	}
	if picked.Name != "Sherlock Holmes" {
		t.Fatalf("picked %q", picked.Name)
	}
	c, err = st.UserCharacter(ctx, 5)
	if err != nil {
		t.Fatalf("UserCharacter after pick: %v", err)
	}
	if c.ID != 4 {
		t.Fatalf("persona id = %d, want 4", c.ID)
	}

	// Re-pick overwrites, not duplicates.
	if _, err := st.SetUserCharacter(ctx, 5, 2); err != nil {
		t.Fatalf("SetUserCharacter again: %v", err)
	}
	c, err = st.UserCharacter(ctx, 5)
	if err != nil {
		t.Fatalf("UserCharacter after re-pick: %v", err)
	}
	if c.ID != 2 {
		t.Fatalf("persona id = %d, want 2", c.ID)
	}

	if _, err := st.SetUserCharacter(ctx, 5, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown persona, got %v", err)
	}
}

func TestNotesLifecycle(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	if err := st.EnsureUser(ctx, 8); err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}

	id1, err := st.AddNote(ctx, 8, "first")
	if err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	id2, err := st.AddNote(ctx, 8, "second")
	if err != nil {
		t.Fatalf("AddNote: %v", err)
	}

	notes, err := st.ListNotes(ctx, 8, 10)
	if err != nil {
		t.Fatalf("ListNotes: %v", err)
	}
	if len(notes) != 2 || notes[0].ID != id2 || notes[1].ID != id1 {
		t.Fatalf("unexpected listing: %+v", notes)
	}

	// Another user's note is invisible and undeletable.
	if _, err := st.AddNote(ctx, 9, "not yours"); err != nil {
		t.Fatalf("AddNote other user: %v", err)
	}
	notes, err = st.ListNotes(ctx, 8, 10)
	if err != nil {
		t.Fatalf("ListNotes: %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("saw another user's note: %+v", notes)
	}

	ok, err := st.DeleteNote(ctx, 8, id1)
	if err != nil || !ok {
		t.Fatalf("DeleteNote = (%v, %v)", ok, err)
	}
	ok, err = st.DeleteNote(ctx, 8, id1)
	if err != nil || ok {
		t.Fatalf("second DeleteNote = (%v, %v), want (false, nil)", ok, err)
	}
}
