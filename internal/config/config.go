package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken   string         `yaml:"discord_token"`
	DatabasePath   string         `yaml:"database_path"`
	LogLevel       string         `yaml:"log_level"`
	LevelUpChannel string         `yaml:"level_up_channel"`
	Health         HealthConfig   `yaml:"health"`
	XP             XPConfig       `yaml:"xp"`
	Voice          VoiceConfig    `yaml:"voice"`
	VCActive       VCActiveConfig `yaml:"vc_active"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type XPConfig struct {
	HourlyCap           int `yaml:"hourly_cap"`
	DailyVoiceCap       int `yaml:"daily_voice_cap"`
	ChatMin             int `yaml:"chat_min"`
	ChatMax             int `yaml:"chat_max"`
	ChatCooldownSeconds int `yaml:"chat_cooldown_seconds"`
}

type VoiceConfig struct {
	TickSeconds       int         `yaml:"tick_seconds"`
	MinSessionSeconds int         `yaml:"min_session_seconds"`
	MinUsersForXP     int         `yaml:"min_users_for_xp"`
	Rates             RatesConfig `yaml:"rates"`
}

// RatesConfig is XP per minute for each voice state. Deafened users
// always earn zero and have no configurable rate.
type RatesConfig struct {
	Muted     int `yaml:"muted"`
	Talking   int `yaml:"talking"`
	Streaming int `yaml:"streaming"`
	Camera    int `yaml:"camera"`
}

type VCActiveConfig struct {
	RoleID         string `yaml:"role_id"`
	RoleName       string `yaml:"role_name"`
	RoleColor      int    `yaml:"role_color"`
	TopCount       int    `yaml:"top_count"`
	MinimumMinutes int    `yaml:"minimum_minutes"`
	StreakMinutes  int    `yaml:"streak_minutes"`
	UpdateHoursUTC []int  `yaml:"update_hours_utc"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath: "/data/malluclub.db",
		LogLevel:     "info",
		Health:       HealthConfig{Enabled: false, Addr: ":8080"},
		XP: XPConfig{
			HourlyCap:           300,
			DailyVoiceCap:       1000,
			ChatMin:             15,
			ChatMax:             25,
			ChatCooldownSeconds: 60,
		},
		Voice: VoiceConfig{
			TickSeconds:       60,
			MinSessionSeconds: 30,
			MinUsersForXP:     2,
			Rates: RatesConfig{
				Muted:     0,
				Talking:   2,
				Streaming: 3,
				Camera:    4,
			},
		},
		VCActive: VCActiveConfig{
			RoleName:       "VC Active",
			RoleColor:      0x2ECC71,
			TopCount:       3,
			MinimumMinutes: 30,
			StreakMinutes:  30,
			UpdateHoursUTC: []int{0, 6, 12, 18},
		},
	}
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	if cfg.XP.ChatMax < cfg.XP.ChatMin {
		cfg.XP.ChatMax = cfg.XP.ChatMin
	}
	if cfg.Voice.TickSeconds <= 0 {
		cfg.Voice.TickSeconds = 60
	}
	if len(cfg.VCActive.UpdateHoursUTC) == 0 {
		cfg.VCActive.UpdateHoursUTC = []int{0, 6, 12, 18}
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.LevelUpChannel = envString("LEVEL_UP_CHANNEL", cfg.LevelUpChannel)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.XP.HourlyCap = envInt("XP_HOURLY_CAP", cfg.XP.HourlyCap)
	cfg.XP.DailyVoiceCap = envInt("XP_DAILY_VOICE_CAP", cfg.XP.DailyVoiceCap)
	cfg.XP.ChatMin = envInt("XP_CHAT_MIN", cfg.XP.ChatMin)
	cfg.XP.ChatMax = envInt("XP_CHAT_MAX", cfg.XP.ChatMax)
	cfg.XP.ChatCooldownSeconds = envInt("XP_CHAT_COOLDOWN_SECONDS", cfg.XP.ChatCooldownSeconds)
	cfg.Voice.TickSeconds = envInt("VOICE_TICK_SECONDS", cfg.Voice.TickSeconds)
	cfg.Voice.MinSessionSeconds = envInt("VOICE_MIN_SESSION_SECONDS", cfg.Voice.MinSessionSeconds)
	cfg.Voice.MinUsersForXP = envInt("VOICE_MIN_USERS_FOR_XP", cfg.Voice.MinUsersForXP)
	cfg.VCActive.RoleID = envString("VC_ACTIVE_ROLE_ID", cfg.VCActive.RoleID)
	cfg.VCActive.RoleName = envString("VC_ACTIVE_ROLE_NAME", cfg.VCActive.RoleName)
	cfg.VCActive.TopCount = envInt("VC_ACTIVE_TOP_COUNT", cfg.VCActive.TopCount)
	cfg.VCActive.MinimumMinutes = envInt("VC_ACTIVE_MINIMUM_MINUTES", cfg.VCActive.MinimumMinutes)
	cfg.VCActive.StreakMinutes = envInt("VC_ACTIVE_STREAK_MINUTES", cfg.VCActive.StreakMinutes)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
