package voice

import (
	"context"
	"sync"
	"time"

	"malluclub-leveling/internal/config"
	"malluclub-leveling/internal/leveling"
	"malluclub-leveling/internal/metrics"

	"go.uber.org/zap"
)

// ChannelGuard answers whether a user may earn XP in a channel right
// now: not the AFK channel, user can speak, and enough non-bot members
// are present.
type ChannelGuard interface {
	CanEarn(guildID, channelID, userID string) bool
}

// Awarder applies one voice XP award. Implemented by leveling.Service.
type Awarder interface {
	AwardVoiceXP(ctx context.Context, guildID, userID, username string, amount, minutes int) (*leveling.AwardResult, error)
}

// SessionSink is told when a tracked session ends, for session counts.
type SessionSink interface {
	RecordSession(ctx context.Context, guildID, userID, username string) error
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type trackedUser struct {
	guildID   string
	userID    string
	username  string
	channelID string
	state     State
	startedAt time.Time
	lastTick  time.Time
}

// Tracker holds the in-memory table of users currently in voice. A
// single loop evaluates all entries once per second instead of one
// timer per user; an entry is due when its last tick is a full tick
// interval old. All state is lost on restart, which is accepted.
type Tracker struct {
	mu       sync.Mutex
	cfg      config.VoiceConfig
	guard    ChannelGuard
	awarder  Awarder
	sessions SessionSink
	logger   *zap.Logger
	clock    Clock
	entries  map[string]*trackedUser
	stop     chan struct{}
	done     chan struct{}
}

func NewTracker(cfg config.VoiceConfig, guard ChannelGuard, awarder Awarder, sessions SessionSink, logger *zap.Logger) *Tracker {
	return &Tracker{
		cfg:      cfg,
		guard:    guard,
		awarder:  awarder,
		sessions: sessions,
		logger:   logger,
		clock:    realClock{},
		entries:  make(map[string]*trackedUser),
	}
}

func (t *Tracker) WithClock(clock Clock) {
	t.clock = clock
}

func (t *Tracker) tickInterval() time.Duration {
	return time.Duration(t.cfg.TickSeconds) * time.Second
}

func (t *Tracker) minSession() time.Duration {
	return time.Duration(t.cfg.MinSessionSeconds) * time.Second
}

// Start launches the scheduler loop. Stop waits for it to drain.
func (t *Tracker) Start() {
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go func() {
		defer close(t.done)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case now := <-ticker.C:
				t.tick(now)
			}
		}
	}()
}

func (t *Tracker) Stop() {
	if t.stop == nil {
		return
	}
	close(t.stop)
	<-t.done
}

// StartTracking begins a session if the channel guard allows it.
// Guard failures are routine filtering and stay silent.
func (t *Tracker) StartTracking(guildID, userID, username, channelID string, flags Flags) {
	if !t.guard.CanEarn(guildID, channelID, userID) {
		return
	}

	now := t.clock.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	key := guildID + ":" + userID
	if _, exists := t.entries[key]; exists {
		return
	}
	t.entries[key] = &trackedUser{
		guildID:   guildID,
		userID:    userID,
		username:  username,
		channelID: channelID,
		state:     StateFromFlags(flags),
		startedAt: now,
		lastTick:  now,
	}
	metrics.TrackedUsers.Set(float64(len(t.entries)))
}

// UpdateVoiceState swaps the cached state without touching the tick
// schedule; the next tick earns at the new rate.
func (t *Tracker) UpdateVoiceState(guildID, userID string, flags Flags) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if entry, ok := t.entries[guildID+":"+userID]; ok {
		entry.state = StateFromFlags(flags)
	}
}

// Tracking reports whether a session is currently open.
func (t *Tracker) Tracking(guildID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[guildID+":"+userID]
	return ok
}

// StopTracking ends a session. Sessions shorter than the minimum earn
// nothing; anything longer gets a final lump of at least one tick's
// worth of minutes at the last known rate, on top of per-tick awards.
func (t *Tracker) StopTracking(ctx context.Context, guildID, userID string) {
	t.mu.Lock()
	key := guildID + ":" + userID
	entry, ok := t.entries[key]
	if !ok {
		t.mu.Unlock()
		return
	}
	delete(t.entries, key)
	metrics.TrackedUsers.Set(float64(len(t.entries)))
	t.mu.Unlock()

	now := t.clock.Now()
	elapsed := now.Sub(entry.startedAt)
	if elapsed < t.minSession() {
		return
	}

	minutes := int(elapsed / t.tickInterval())
	if minutes < 1 {
		minutes = 1
	}
	rate := Rate(t.cfg.Rates, entry.state)
	if rate > 0 {
		if _, err := t.awarder.AwardVoiceXP(ctx, entry.guildID, entry.userID, entry.username, rate*minutes, minutes); err != nil {
			t.logger.Warn("final voice award failed",
				zap.String("guild_id", entry.guildID),
				zap.String("user_id", entry.userID),
				zap.Error(err))
		}
	}
	if err := t.sessions.RecordSession(ctx, entry.guildID, entry.userID, entry.username); err != nil {
		t.logger.Warn("session record failed",
			zap.String("guild_id", entry.guildID),
			zap.String("user_id", entry.userID),
			zap.Error(err))
	}
}

// ClearAll drops every tracked session without final awards. Used on
// shutdown.
func (t *Tracker) ClearAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]*trackedUser)
	metrics.TrackedUsers.Set(0)
}

// tick evaluates every due entry: revalidate the channel, then award
// one minute at the current state's rate. Persistence failures are
// logged and the entry keeps ticking.
func (t *Tracker) tick(now time.Time) {
	interval := t.tickInterval()

	type due struct {
		guildID   string
		userID    string
		username  string
		channelID string
		rate      int
	}
	var dueEntries []due
	var dropped []string

	t.mu.Lock()
	for key, entry := range t.entries {
		if now.Sub(entry.lastTick) < interval {
			continue
		}
		if !t.guard.CanEarn(entry.guildID, entry.channelID, entry.userID) {
			// The channel stopped qualifying mid-session; the
			// in-progress partial minute is forfeited.
			dropped = append(dropped, key)
			continue
		}
		entry.lastTick = now
		dueEntries = append(dueEntries, due{
			guildID:   entry.guildID,
			userID:    entry.userID,
			username:  entry.username,
			channelID: entry.channelID,
			rate:      Rate(t.cfg.Rates, entry.state),
		})
	}
	for _, key := range dropped {
		delete(t.entries, key)
	}
	if len(dropped) > 0 {
		metrics.TrackedUsers.Set(float64(len(t.entries)))
	}
	t.mu.Unlock()

	ctx := context.Background()
	for _, entry := range dueEntries {
		if entry.rate <= 0 {
			continue
		}
		if _, err := t.awarder.AwardVoiceXP(ctx, entry.guildID, entry.userID, entry.username, entry.rate, 1); err != nil {
			t.logger.Warn("voice tick award failed",
				zap.String("guild_id", entry.guildID),
				zap.String("user_id", entry.userID),
				zap.Error(err))
			continue
		}
		metrics.VoiceTicks.Inc()
	}
}
