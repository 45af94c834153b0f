package leveling

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"malluclub-leveling/internal/config"
	"malluclub-leveling/internal/metrics"

	"go.uber.org/zap"
)

// Service is the single entry point for XP awards. Both the voice
// tracker and the chat handler go through it so the hourly budget and
// level-up notification behave the same for every source.
type Service struct {
	cfg      config.XPConfig
	store    Store
	activity ActivityRecorder
	limiter  *Limiter
	logger   *zap.Logger
	clock    Clock
	notify   func(guildID, userID string, newLevel int)

	chatMu   sync.Mutex
	chatSeen map[string]time.Time
}

func NewService(cfg config.XPConfig, store Store, activity ActivityRecorder, limiter *Limiter, logger *zap.Logger) *Service {
	return &Service{
		cfg:      cfg,
		store:    store,
		activity: activity,
		limiter:  limiter,
		logger:   logger,
		clock:    realClock{},
		chatSeen: make(map[string]time.Time),
	}
}

func (s *Service) WithClock(clock Clock) {
	s.clock = clock
}

// SetNotifier registers a callback invoked after any award that crossed
// a level boundary.
func (s *Service) SetNotifier(notify func(guildID, userID string, newLevel int)) {
	s.notify = notify
}

// AwardVoiceXP applies one voice-sourced award. Returns (nil, nil) when
// the hourly budget or the daily voice cap swallowed the award.
func (s *Service) AwardVoiceXP(ctx context.Context, guildID, userID, username string, amount, minutes int) (*AwardResult, error) {
	if amount <= 0 || minutes <= 0 {
		return nil, nil
	}
	if s.limiter.IsRateLimited(guildID, userID) {
		return nil, nil
	}

	result, err := s.store.AddXP(ctx, AddXPParams{
		GuildID:      guildID,
		UserID:       userID,
		Username:     username,
		Amount:       amount,
		VoiceMinutes: minutes,
		DailyCap:     s.cfg.DailyVoiceCap,
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	s.limiter.RecordAward(guildID, userID, result.XPGained)
	metrics.XPAwarded.WithLabelValues("voice").Add(float64(result.XPGained))

	if err := s.activity.Record(ctx, guildID, userID, username, minutes, result.XPGained); err != nil {
		s.logger.Warn("daily activity record failed",
			zap.String("guild_id", guildID),
			zap.String("user_id", userID),
			zap.Error(err))
	}

	s.announceLevelUp(guildID, userID, result)
	return result, nil
}

// AwardChatXP applies one message-sourced award with a per-user
// cooldown. Chat XP is not subject to the daily voice cap.
func (s *Service) AwardChatXP(ctx context.Context, guildID, userID, username string) (*AwardResult, error) {
	if !s.chatReady(guildID, userID) {
		return nil, nil
	}
	if s.limiter.IsRateLimited(guildID, userID) {
		return nil, nil
	}

	amount := s.cfg.ChatMin
	if spread := s.cfg.ChatMax - s.cfg.ChatMin; spread > 0 {
		amount += rand.Intn(spread + 1)
	}

	result, err := s.store.AddXP(ctx, AddXPParams{
		GuildID:  guildID,
		UserID:   userID,
		Username: username,
		Amount:   amount,
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	s.limiter.RecordAward(guildID, userID, result.XPGained)
	metrics.XPAwarded.WithLabelValues("chat").Add(float64(result.XPGained))
	s.announceLevelUp(guildID, userID, result)
	return result, nil
}

// Reset zeroes a user's lifetime record. Admin-only surface.
func (s *Service) Reset(ctx context.Context, guildID, userID string) error {
	return s.store.ResetUserXP(ctx, guildID, userID)
}

func (s *Service) chatReady(guildID, userID string) bool {
	cooldown := time.Duration(s.cfg.ChatCooldownSeconds) * time.Second
	if cooldown <= 0 {
		return true
	}
	key := guildID + ":" + userID
	now := s.clock.Now()

	s.chatMu.Lock()
	defer s.chatMu.Unlock()
	if last, ok := s.chatSeen[key]; ok && now.Sub(last) < cooldown {
		return false
	}
	s.chatSeen[key] = now
	return true
}

func (s *Service) announceLevelUp(guildID, userID string, result *AwardResult) {
	if result == nil || !result.LeveledUp {
		return
	}
	if s.notify != nil {
		s.notify(guildID, userID, result.NewLevel)
	}
}
