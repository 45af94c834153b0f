package vcrole

import (
	"testing"
	"time"
)

func TestNextRun(t *testing.T) {
	hours := []int{0, 6, 12, 18}
	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			"mid morning",
			time.Date(2026, 8, 28, 9, 30, 0, 0, time.UTC),
			time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC),
		},
		{
			"exactly on a slot moves to the next",
			time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC),
			time.Date(2026, 8, 28, 18, 0, 0, 0, time.UTC),
		},
		{
			"late evening wraps to midnight",
			time.Date(2026, 8, 28, 23, 0, 0, 0, time.UTC),
			time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			"just after midnight",
			time.Date(2026, 8, 28, 0, 0, 1, 0, time.UTC),
			time.Date(2026, 8, 28, 6, 0, 0, 0, time.UTC),
		},
	}
	for _, tc := range cases {
		if got := NextRun(tc.now, hours); !got.Equal(tc.want) {
			t.Fatalf("%s: NextRun(%v) = %v, want %v", tc.name, tc.now, got, tc.want)
		}
	}
}

func TestNextRunLocalTimeInput(t *testing.T) {
	// 20:00 in UTC+8 is noon UTC, so the next slot is 18:00 UTC.
	now := time.Date(2026, 8, 28, 20, 0, 0, 0, time.FixedZone("UTC+8", 8*3600))
	want := time.Date(2026, 8, 28, 18, 0, 0, 0, time.UTC)
	if got := NextRun(now, []int{0, 6, 12, 18}); !got.Equal(want) {
		t.Fatalf("NextRun(%v) = %v, want %v", now, got, want)
	}
}
