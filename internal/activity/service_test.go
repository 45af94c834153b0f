package activity

import (
	"context"
	"testing"
	"time"

	"malluclub-leveling/internal/storage"

	"go.uber.org/zap"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func newTestService(t *testing.T) (*Service, *storage.Store, *fakeClock) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	svc := New(store, zap.NewNop(), 30)
	clock := &fakeClock{now: time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC)}
	svc.WithClock(clock)
	return svc, store, clock
}

func seedDay(t *testing.T, store *storage.Store, day string, minutes int) {
	t.Helper()
	if err := store.IncrementDailyActivity(context.Background(), "g1", "u1", "alice", day, minutes, minutes*2, 1); err != nil {
		t.Fatalf("seed %s: %v", day, err)
	}
}

func TestStreakConsecutiveDays(t *testing.T) {
	svc, store, _ := newTestService(t)

	seedDay(t, store, "2026-08-28", 45)
	seedDay(t, store, "2026-08-27", 30)
	seedDay(t, store, "2026-08-26", 90)
	// Gap on the 25th.
	seedDay(t, store, "2026-08-24", 60)

	streak, err := svc.Streak(context.Background(), "g1", "u1")
	if err != nil {
		t.Fatalf("streak: %v", err)
	}
	if streak != 3 {
		t.Fatalf("expected streak 3, got %d", streak)
	}
}

func TestStreakBrokenByShortDay(t *testing.T) {
	svc, store, _ := newTestService(t)

	seedDay(t, store, "2026-08-28", 45)
	seedDay(t, store, "2026-08-27", 10)
	seedDay(t, store, "2026-08-26", 90)

	streak, err := svc.Streak(context.Background(), "g1", "u1")
	if err != nil {
		t.Fatalf("streak: %v", err)
	}
	if streak != 1 {
		t.Fatalf("a sub-threshold day breaks the streak, got %d", streak)
	}
}

func TestStreakZeroWithoutToday(t *testing.T) {
	svc, store, _ := newTestService(t)

	seedDay(t, store, "2026-08-27", 45)
	seedDay(t, store, "2026-08-26", 45)

	streak, err := svc.Streak(context.Background(), "g1", "u1")
	if err != nil {
		t.Fatalf("streak: %v", err)
	}
	if streak != 0 {
		t.Fatalf("streak starts at today, got %d", streak)
	}
}

func TestRecordAndSessionSplit(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Record(ctx, "g1", "u1", "alice", 1, 2); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := svc.Record(ctx, "g1", "u1", "alice", 1, 2); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := svc.RecordSession(ctx, "g1", "u1", "alice"); err != nil {
		t.Fatalf("record session: %v", err)
	}

	got, err := svc.UserDay(ctx, "g1", "u1", svc.Today())
	if err != nil {
		t.Fatalf("user day: %v", err)
	}
	if got.VoiceMinutes != 2 || got.XPEarned != 4 || got.SessionsCount != 1 {
		t.Fatalf("expected (2m, 4xp, 1 session), got %+v", got)
	}
}

func TestTodayUsesUTC(t *testing.T) {
	svc, _, clock := newTestService(t)

	// 23:30 in UTC-5 is already the next UTC day.
	clock.now = time.Date(2026, 8, 28, 23, 30, 0, 0, time.FixedZone("UTC-5", -5*3600))
	if got := svc.Today(); got != "2026-08-29" {
		t.Fatalf("expected UTC day 2026-08-29, got %s", got)
	}
}
