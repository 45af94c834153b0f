package activity

import (
	"context"
	"time"

	"malluclub-leveling/internal/storage"

	"go.uber.org/zap"
)

// maxStreakDays caps the backward walk so a corrupt table cannot spin
// the loop forever.
const maxStreakDays = 365

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Service owns the per-day voice aggregates: upsert-increments on every
// tick or session end, top-N reads for the reconciler, and streaks.
type Service struct {
	store         *storage.Store
	logger        *zap.Logger
	clock         Clock
	streakMinutes int
}

func New(store *storage.Store, logger *zap.Logger, streakMinutes int) *Service {
	return &Service{
		store:         store,
		logger:        logger,
		clock:         realClock{},
		streakMinutes: streakMinutes,
	}
}

func (s *Service) WithClock(clock Clock) {
	s.clock = clock
}

func (s *Service) Today() string {
	return storage.Day(s.clock.Now())
}

// Record adds minutes and XP to today's aggregate. Sessions are counted
// separately via RecordSession so per-tick awards do not inflate the
// average session length.
func (s *Service) Record(ctx context.Context, guildID, userID, username string, minutes, xp int) error {
	return s.store.IncrementDailyActivity(ctx, guildID, userID, username, s.Today(), minutes, xp, 0)
}

// RecordSession marks the end of one voice session.
func (s *Service) RecordSession(ctx context.Context, guildID, userID, username string) error {
	return s.store.IncrementDailyActivity(ctx, guildID, userID, username, s.Today(), 0, 0, 1)
}

func (s *Service) TopUsers(ctx context.Context, guildID, day string, limit int) ([]storage.DailyActivity, error) {
	return s.store.TopVoiceUsers(ctx, guildID, day, limit)
}

func (s *Service) UserDay(ctx context.Context, guildID, userID, day string) (storage.DailyActivity, error) {
	return s.store.GetDailyActivity(ctx, guildID, userID, day)
}

// Streak counts consecutive qualifying days (>= streakMinutes voice
// minutes) walking backward from today. The walk stops at the first
// missing or non-qualifying day.
func (s *Service) Streak(ctx context.Context, guildID, userID string) (int, error) {
	rows, err := s.store.RecentActivity(ctx, guildID, userID, maxStreakDays+1)
	if err != nil {
		return 0, err
	}

	minutesByDay := make(map[string]int, len(rows))
	for _, row := range rows {
		minutesByDay[row.Day] = row.VoiceMinutes
	}

	streak := 0
	cursor := s.clock.Now().UTC()
	for i := 0; i < maxStreakDays; i++ {
		minutes, ok := minutesByDay[storage.Day(cursor)]
		if !ok || minutes < s.streakMinutes {
			break
		}
		streak++
		cursor = cursor.AddDate(0, 0, -1)
	}
	return streak, nil
}
