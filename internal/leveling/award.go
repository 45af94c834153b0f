package leveling

import "context"

// AddXPParams is one XP award against a user's lifetime record.
// VoiceMinutes > 0 marks the award as voice-sourced, which subjects it
// to the daily voice cap and feeds the daily activity aggregate.
type AddXPParams struct {
	GuildID      string
	UserID       string
	Username     string
	Amount       int
	VoiceMinutes int
	DailyCap     int
}

// AwardResult describes an applied award. A nil result with a nil error
// means the award was a no-op (daily cap already reached).
type AwardResult struct {
	XPGained  int
	TotalXP   int
	DailyXP   int
	OldLevel  int
	NewLevel  int
	LeveledUp bool
}

// Store is the persistence port the award service writes through.
type Store interface {
	AddXP(ctx context.Context, p AddXPParams) (*AwardResult, error)
	ResetUserXP(ctx context.Context, guildID, userID string) error
}

// ActivityRecorder receives per-day voice totals alongside the lifetime
// record.
type ActivityRecorder interface {
	Record(ctx context.Context, guildID, userID, username string, minutes, xp int) error
}
