package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// DailyActivity is one user's aggregate for one UTC calendar day.
type DailyActivity struct {
	GuildID         string
	UserID          string
	Username        string
	Day             string
	VoiceMinutes    int
	XPEarned        int
	SessionsCount   int
	HadVcActiveRole bool
}

// AverageSessionLength is derived, in whole minutes.
func (a DailyActivity) AverageSessionLength() int {
	if a.SessionsCount <= 0 {
		return 0
	}
	return a.VoiceMinutes / a.SessionsCount
}

// IncrementDailyActivity upsert-increments the (guild, user, day)
// aggregate. The additions happen in-database so concurrent ticks for
// different users cannot lose updates.
func (s *Store) IncrementDailyActivity(ctx context.Context, guildID, userID, username, day string, minutes, xp, sessions int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO voice_activity_daily (
			guild_id, user_id, username, day, voice_minutes, xp_earned, sessions_count, had_vc_active_role
		) VALUES (?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(guild_id, user_id, day) DO UPDATE SET
			username = excluded.username,
			voice_minutes = voice_minutes + excluded.voice_minutes,
			xp_earned = xp_earned + excluded.xp_earned,
			sessions_count = sessions_count + excluded.sessions_count
	`, guildID, userID, username, day, minutes, xp, sessions)
	return err
}

func (s *Store) GetDailyActivity(ctx context.Context, guildID, userID, day string) (DailyActivity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT username, voice_minutes, xp_earned, sessions_count, had_vc_active_role
		FROM voice_activity_daily
		WHERE guild_id = ? AND user_id = ? AND day = ?`, guildID, userID, day)

	result := DailyActivity{GuildID: guildID, UserID: userID, Day: day}
	var hadRole int
	err := row.Scan(&result.Username, &result.VoiceMinutes, &result.XPEarned, &result.SessionsCount, &hadRole)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result, nil
		}
		return DailyActivity{}, err
	}
	result.HadVcActiveRole = hadRole == 1
	return result, nil
}

// TopVoiceUsers returns the day's aggregates sorted by minutes, with XP
// as the tiebreaker.
func (s *Store) TopVoiceUsers(ctx context.Context, guildID, day string, limit int) ([]DailyActivity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, username, voice_minutes, xp_earned, sessions_count, had_vc_active_role
		FROM voice_activity_daily
		WHERE guild_id = ? AND day = ?
		ORDER BY voice_minutes DESC, xp_earned DESC
		LIMIT ?`, guildID, day, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []DailyActivity
	for rows.Next() {
		entry := DailyActivity{GuildID: guildID, Day: day}
		var hadRole int
		if err := rows.Scan(&entry.UserID, &entry.Username, &entry.VoiceMinutes, &entry.XPEarned, &entry.SessionsCount, &hadRole); err != nil {
			return nil, err
		}
		entry.HadVcActiveRole = hadRole == 1
		result = append(result, entry)
	}
	return result, rows.Err()
}

// RecentActivity returns a user's aggregates newest-first, for streak
// walks.
func (s *Store) RecentActivity(ctx context.Context, guildID, userID string, limit int) ([]DailyActivity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, day, voice_minutes, xp_earned, sessions_count, had_vc_active_role
		FROM voice_activity_daily
		WHERE guild_id = ? AND user_id = ?
		ORDER BY day DESC
		LIMIT ?`, guildID, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []DailyActivity
	for rows.Next() {
		entry := DailyActivity{GuildID: guildID, UserID: userID}
		var hadRole int
		if err := rows.Scan(&entry.Username, &entry.Day, &entry.VoiceMinutes, &entry.XPEarned, &entry.SessionsCount, &hadRole); err != nil {
			return nil, err
		}
		entry.HadVcActiveRole = hadRole == 1
		result = append(result, entry)
	}
	return result, rows.Err()
}

// SetVcActiveFlags clears the day's had_vc_active_role flags and marks
// the given users, in one transaction.
func (s *Store) SetVcActiveFlags(ctx context.Context, guildID, day string, userIDs []string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		UPDATE voice_activity_daily SET had_vc_active_role = 0
		WHERE guild_id = ? AND day = ?`, guildID, day)
	if err != nil {
		return err
	}

	if len(userIDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(userIDs)), ", ")
		args := []any{guildID, day}
		for _, id := range userIDs {
			args = append(args, id)
		}
		query := fmt.Sprintf(`
			UPDATE voice_activity_daily SET had_vc_active_role = 1
			WHERE guild_id = ? AND day = ? AND user_id IN (%s)`, placeholders)
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}

	return tx.Commit()
}
