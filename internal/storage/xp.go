package storage

import (
	"context"
	"database/sql"
	"errors"

	"malluclub-leveling/internal/leveling"
)

type UserXP struct {
	GuildID          string
	UserID           string
	Username         string
	TotalXP          int
	ChatXP           int
	VCXP             int
	Level            int
	VoiceTimeMinutes int
	DailyXP          int
	DailyXPResetDay  string
}

func (s *Store) GetUserXP(ctx context.Context, guildID, userID string) (UserXP, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT username, total_xp, chat_xp, vc_xp, level, voice_time_minutes,
		daily_xp, daily_xp_reset_day
		FROM user_xp WHERE guild_id = ? AND user_id = ?`, guildID, userID)

	result := UserXP{GuildID: guildID, UserID: userID}
	err := row.Scan(
		&result.Username,
		&result.TotalXP,
		&result.ChatXP,
		&result.VCXP,
		&result.Level,
		&result.VoiceTimeMinutes,
		&result.DailyXP,
		&result.DailyXPResetDay,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result, nil
		}
		return UserXP{}, err
	}
	return result, nil
}

// AddXP upserts the lifetime record for one award. The read-modify-write
// is transactional but retried once on failure, matching the low-contention
// expectations of a single bot process.
func (s *Store) AddXP(ctx context.Context, p leveling.AddXPParams) (*leveling.AwardResult, error) {
	result, err := s.addXPOnce(ctx, p)
	if err == nil {
		return result, nil
	}
	return s.addXPOnce(ctx, p)
}

func (s *Store) addXPOnce(ctx context.Context, p leveling.AddXPParams) (result *leveling.AwardResult, err error) {
	now := s.clock.Now()
	today := Day(now)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	current := UserXP{GuildID: p.GuildID, UserID: p.UserID}
	row := tx.QueryRowContext(ctx, `
		SELECT username, total_xp, chat_xp, vc_xp, level, voice_time_minutes,
		daily_xp, daily_xp_reset_day
		FROM user_xp WHERE guild_id = ? AND user_id = ?`, p.GuildID, p.UserID)
	scanErr := row.Scan(
		&current.Username,
		&current.TotalXP,
		&current.ChatXP,
		&current.VCXP,
		&current.Level,
		&current.VoiceTimeMinutes,
		&current.DailyXP,
		&current.DailyXPResetDay,
	)
	if scanErr != nil && !errors.Is(scanErr, sql.ErrNoRows) {
		err = scanErr
		return nil, err
	}

	if current.DailyXPResetDay != today {
		current.DailyXP = 0
	}

	amount := p.Amount
	voice := p.VoiceMinutes > 0
	if voice && p.DailyCap > 0 {
		remaining := p.DailyCap - current.DailyXP
		if remaining <= 0 {
			_ = tx.Rollback()
			return nil, nil
		}
		if amount > remaining {
			amount = remaining
		}
	}

	oldLevel := current.Level
	current.TotalXP += amount
	if voice {
		current.VCXP += amount
		current.DailyXP += amount
		current.VoiceTimeMinutes += p.VoiceMinutes
	} else {
		current.ChatXP += amount
	}
	newLevel := leveling.LevelForXP(current.TotalXP)

	username := p.Username
	if username == "" {
		username = current.Username
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_xp (
			guild_id, user_id, username, total_xp, chat_xp, vc_xp, level,
			voice_time_minutes, daily_xp, daily_xp_reset_day, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id, user_id) DO UPDATE SET
			username = excluded.username,
			total_xp = excluded.total_xp,
			chat_xp = excluded.chat_xp,
			vc_xp = excluded.vc_xp,
			level = excluded.level,
			voice_time_minutes = excluded.voice_time_minutes,
			daily_xp = excluded.daily_xp,
			daily_xp_reset_day = excluded.daily_xp_reset_day,
			updated_at = excluded.updated_at
	`,
		p.GuildID,
		p.UserID,
		username,
		current.TotalXP,
		current.ChatXP,
		current.VCXP,
		newLevel,
		current.VoiceTimeMinutes,
		current.DailyXP,
		today,
		now.Unix(),
		now.Unix(),
	)
	if err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}

	return &leveling.AwardResult{
		XPGained:  amount,
		TotalXP:   current.TotalXP,
		DailyXP:   current.DailyXP,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		LeveledUp: newLevel > oldLevel,
	}, nil
}

func (s *Store) ResetUserXP(ctx context.Context, guildID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE user_xp
		SET total_xp = 0, chat_xp = 0, vc_xp = 0, level = 0, daily_xp = 0,
		updated_at = ?
		WHERE guild_id = ? AND user_id = ?`,
		s.clock.Now().Unix(), guildID, userID)
	return err
}

func (s *Store) TopUsersByXP(ctx context.Context, guildID string, limit int) ([]UserXP, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, username, total_xp, chat_xp, vc_xp, level, voice_time_minutes
		FROM user_xp WHERE guild_id = ?
		ORDER BY total_xp DESC LIMIT ?`, guildID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []UserXP
	for rows.Next() {
		entry := UserXP{GuildID: guildID}
		if err := rows.Scan(&entry.UserID, &entry.Username, &entry.TotalXP, &entry.ChatXP, &entry.VCXP, &entry.Level, &entry.VoiceTimeMinutes); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
