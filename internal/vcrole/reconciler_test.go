package vcrole

import (
	"context"
	"sort"
	"testing"
	"time"

	"malluclub-leveling/internal/activity"
	"malluclub-leveling/internal/config"
	"malluclub-leveling/internal/storage"

	"go.uber.org/zap"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

type fakeRolePort struct {
	guilds  []string
	roleID  string
	holders map[string]bool
	adds    int
	removes int
}

func (f *fakeRolePort) Guilds() []string { return f.guilds }

func (f *fakeRolePort) EnsureRole(guildID string) (string, error) { return f.roleID, nil }

func (f *fakeRolePort) MembersWithRole(guildID, roleID string) ([]string, error) {
	var out []string
	for userID, holds := range f.holders {
		if holds {
			out = append(out, userID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeRolePort) AddRole(guildID, userID, roleID string) error {
	f.holders[userID] = true
	f.adds++
	return nil
}

func (f *fakeRolePort) RemoveRole(guildID, userID, roleID string) error {
	f.holders[userID] = false
	f.removes++
	return nil
}

func testVCActiveConfig() config.VCActiveConfig {
	return config.VCActiveConfig{
		RoleName:       "VC Active",
		TopCount:       3,
		MinimumMinutes: 30,
		StreakMinutes:  30,
		UpdateHoursUTC: []int{0, 6, 12, 18},
	}
}

func newTestReconciler(t *testing.T, port *fakeRolePort) (*Reconciler, *storage.Store, string) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	activitySvc := activity.New(store, zap.NewNop(), 30)
	clock := &fakeClock{now: time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)}
	activitySvc.WithClock(clock)

	r := NewReconciler(testVCActiveConfig(), port, activitySvc, store, zap.NewNop())
	return r, store, storage.Day(clock.now)
}

func TestReconcilerAssignsTopThree(t *testing.T) {
	port := &fakeRolePort{
		guilds:  []string{"g1"},
		roleID:  "r1",
		holders: map[string]bool{"u2": true, "u5": true},
	}
	r, store, day := newTestReconciler(t, port)
	ctx := context.Background()

	seed := []struct {
		user    string
		minutes int
	}{
		{"u1", 120},
		{"u2", 90},
		{"u3", 60},
		{"u4", 45},
		{"u5", 10},
	}
	for _, s := range seed {
		if err := store.IncrementDailyActivity(ctx, "g1", s.user, s.user, day, s.minutes, s.minutes*2, 1); err != nil {
			t.Fatalf("seed %s: %v", s.user, err)
		}
	}

	r.Run(ctx)

	for user, want := range map[string]bool{"u1": true, "u2": true, "u3": true, "u4": false, "u5": false} {
		if port.holders[user] != want {
			t.Fatalf("user %s holds role = %v, want %v", user, port.holders[user], want)
		}
	}
	if port.adds != 2 || port.removes != 1 {
		t.Fatalf("expected 2 adds and 1 remove, got %d adds %d removes", port.adds, port.removes)
	}

	for user, want := range map[string]bool{"u1": true, "u3": true, "u4": false} {
		got, err := store.GetDailyActivity(ctx, "g1", user, day)
		if err != nil {
			t.Fatalf("get %s: %v", user, err)
		}
		if got.HadVcActiveRole != want {
			t.Fatalf("user %s flag = %v, want %v", user, got.HadVcActiveRole, want)
		}
	}
}

func TestReconcilerMinimumMinutes(t *testing.T) {
	port := &fakeRolePort{
		guilds:  []string{"g1"},
		roleID:  "r1",
		holders: map[string]bool{},
	}
	r, store, day := newTestReconciler(t, port)
	ctx := context.Background()

	// Everyone in the top three is under the minimum.
	for _, s := range []struct {
		user    string
		minutes int
	}{{"u1", 25}, {"u2", 10}, {"u3", 5}} {
		if err := store.IncrementDailyActivity(ctx, "g1", s.user, s.user, day, s.minutes, 0, 1); err != nil {
			t.Fatalf("seed %s: %v", s.user, err)
		}
	}

	r.Run(ctx)
	if port.adds != 0 {
		t.Fatalf("nobody under the minimum qualifies, got %d adds", port.adds)
	}
}

func TestReconcilerIdempotent(t *testing.T) {
	port := &fakeRolePort{
		guilds:  []string{"g1"},
		roleID:  "r1",
		holders: map[string]bool{},
	}
	r, store, day := newTestReconciler(t, port)
	ctx := context.Background()

	for _, user := range []string{"u1", "u2"} {
		if err := store.IncrementDailyActivity(ctx, "g1", user, user, day, 60, 120, 1); err != nil {
			t.Fatalf("seed %s: %v", user, err)
		}
	}

	r.Run(ctx)
	adds, removes := port.adds, port.removes

	r.Run(ctx)
	if port.adds != adds || port.removes != removes {
		t.Fatalf("second run must not mutate roles, got %d adds %d removes", port.adds-adds, port.removes-removes)
	}
}
