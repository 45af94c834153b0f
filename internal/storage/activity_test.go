package storage

import (
	"context"
	"testing"
)

func TestIncrementDailyActivity(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.IncrementDailyActivity(ctx, "g1", "u1", "alice", "2026-08-28", 1, 2, 0); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := store.IncrementDailyActivity(ctx, "g1", "u1", "alice", "2026-08-28", 1, 2, 0); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := store.IncrementDailyActivity(ctx, "g1", "u1", "alice", "2026-08-28", 0, 0, 1); err != nil {
		t.Fatalf("session increment: %v", err)
	}

	got, err := store.GetDailyActivity(ctx, "g1", "u1", "2026-08-28")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.VoiceMinutes != 2 || got.XPEarned != 4 || got.SessionsCount != 1 {
		t.Fatalf("expected (2m, 4xp, 1 session), got %+v", got)
	}
	if got.AverageSessionLength() != 2 {
		t.Fatalf("expected average session of 2 minutes, got %d", got.AverageSessionLength())
	}
}

func TestTopVoiceUsersOrdering(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	seed := []struct {
		user    string
		minutes int
		xp      int
	}{
		{"u1", 40, 80},
		{"u2", 120, 240},
		{"u3", 40, 100},
		{"u4", 10, 20},
	}
	for _, s := range seed {
		if err := store.IncrementDailyActivity(ctx, "g1", s.user, s.user, "2026-08-28", s.minutes, s.xp, 1); err != nil {
			t.Fatalf("seed %s: %v", s.user, err)
		}
	}

	top, err := store.TopVoiceUsers(ctx, "g1", "2026-08-28", 3)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(top))
	}
	// Minutes first, then XP breaks the u1/u3 tie.
	if top[0].UserID != "u2" || top[1].UserID != "u3" || top[2].UserID != "u1" {
		t.Fatalf("expected [u2 u3 u1], got [%s %s %s]", top[0].UserID, top[1].UserID, top[2].UserID)
	}
}

func TestRecentActivityNewestFirst(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for _, day := range []string{"2026-08-26", "2026-08-28", "2026-08-27"} {
		if err := store.IncrementDailyActivity(ctx, "g1", "u1", "alice", day, 30, 60, 1); err != nil {
			t.Fatalf("seed %s: %v", day, err)
		}
	}

	rows, err := store.RecentActivity(ctx, "g1", "u1", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(rows) != 3 || rows[0].Day != "2026-08-28" || rows[2].Day != "2026-08-26" {
		t.Fatalf("expected newest-first days, got %+v", rows)
	}
}

func TestSetVcActiveFlags(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for _, user := range []string{"u1", "u2", "u3"} {
		if err := store.IncrementDailyActivity(ctx, "g1", user, user, "2026-08-28", 60, 120, 1); err != nil {
			t.Fatalf("seed %s: %v", user, err)
		}
	}

	if err := store.SetVcActiveFlags(ctx, "g1", "2026-08-28", []string{"u1", "u2"}); err != nil {
		t.Fatalf("set flags: %v", err)
	}
	// A later run with a different winner set must clear stale flags.
	if err := store.SetVcActiveFlags(ctx, "g1", "2026-08-28", []string{"u3"}); err != nil {
		t.Fatalf("set flags: %v", err)
	}

	for user, want := range map[string]bool{"u1": false, "u2": false, "u3": true} {
		got, err := store.GetDailyActivity(ctx, "g1", user, "2026-08-28")
		if err != nil {
			t.Fatalf("get %s: %v", user, err)
		}
		if got.HadVcActiveRole != want {
			t.Fatalf("user %s flag = %v, want %v", user, got.HadVcActiveRole, want)
		}
	}
}

func TestSetVcActiveFlagsEmpty(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.IncrementDailyActivity(ctx, "g1", "u1", "alice", "2026-08-28", 60, 120, 1); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.SetVcActiveFlags(ctx, "g1", "2026-08-28", []string{"u1"}); err != nil {
		t.Fatalf("set flags: %v", err)
	}
	if err := store.SetVcActiveFlags(ctx, "g1", "2026-08-28", nil); err != nil {
		t.Fatalf("clear flags: %v", err)
	}

	got, err := store.GetDailyActivity(ctx, "g1", "u1", "2026-08-28")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.HadVcActiveRole {
		t.Fatalf("expected flag cleared when nobody qualifies")
	}
}
