package bot

import (
	"context"
	"fmt"
	"strings"

	"malluclub-leveling/internal/leveling"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	colorAction = 0x2ECC71
	colorError  = 0xEF4444
)

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}

	ctx := context.Background()
	data := interaction.ApplicationCommandData()
	switch data.Name {
	case "xp":
		b.handleXP(ctx, session, interaction, data.Options)
	case "voicestats":
		b.handleVoiceStats(ctx, session, interaction, data.Options)
	case "voiceleaderboard":
		b.handleLeaderboard(ctx, session, interaction, data.Options)
	case "voiceadmin":
		b.handleVoiceAdmin(ctx, session, interaction, data.Options)
	}
}

func (b *Bot) handleXP(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if interaction.GuildID == "" {
		b.respondEmbed(session, interaction, b.commandEmbed("XP", "This command only works in a server.", colorError, nil), true)
		return
	}
	userID := b.targetUser(session, interaction, options)
	if userID == "" {
		b.respondEmbed(session, interaction, b.commandEmbed("XP", "Could not resolve a user.", colorError, nil), true)
		return
	}

	record, err := b.store.GetUserXP(ctx, interaction.GuildID, userID)
	if err != nil {
		b.logger.Warn("xp lookup failed", zap.String("user_id", userID), zap.Error(err))
		b.respondEmbed(session, interaction, b.commandEmbed("XP", "Lookup failed.", colorError, nil), true)
		return
	}

	into, needed := leveling.Progress(record.TotalXP)
	fields := []*discordgo.MessageEmbedField{
		{Name: "Level", Value: fmt.Sprintf("%d", record.Level), Inline: true},
		{Name: "Total XP", Value: fmt.Sprintf("%d", record.TotalXP), Inline: true},
		{Name: "Voice time", Value: formatMinutes(record.VoiceTimeMinutes), Inline: true},
		{Name: "Chat XP", Value: fmt.Sprintf("%d", record.ChatXP), Inline: true},
		{Name: "Voice XP", Value: fmt.Sprintf("%d", record.VCXP), Inline: true},
		{Name: "Next level", Value: fmt.Sprintf("%s %d/%d", progressBar(into, needed), into, needed), Inline: false},
	}
	b.respondEmbed(session, interaction, b.commandEmbed(fmt.Sprintf("XP for <@%s>", userID), "", colorAction, fields), false)
}

func (b *Bot) handleVoiceStats(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if interaction.GuildID == "" {
		b.respondEmbed(session, interaction, b.commandEmbed("Voice stats", "This command only works in a server.", colorError, nil), true)
		return
	}
	userID := b.targetUser(session, interaction, options)
	if userID == "" {
		b.respondEmbed(session, interaction, b.commandEmbed("Voice stats", "Could not resolve a user.", colorError, nil), true)
		return
	}

	today, err := b.activity.UserDay(ctx, interaction.GuildID, userID, b.activity.Today())
	if err != nil {
		b.logger.Warn("voice stats lookup failed", zap.String("user_id", userID), zap.Error(err))
		b.respondEmbed(session, interaction, b.commandEmbed("Voice stats", "Lookup failed.", colorError, nil), true)
		return
	}
	streak, err := b.activity.Streak(ctx, interaction.GuildID, userID)
	if err != nil {
		b.logger.Warn("streak lookup failed", zap.String("user_id", userID), zap.Error(err))
	}

	role := "no"
	if today.HadVcActiveRole {
		role = "yes"
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Today", Value: formatMinutes(today.VoiceMinutes), Inline: true},
		{Name: "XP today", Value: fmt.Sprintf("%d", today.XPEarned), Inline: true},
		{Name: "Sessions", Value: fmt.Sprintf("%d", today.SessionsCount), Inline: true},
		{Name: "Avg session", Value: formatMinutes(today.AverageSessionLength()), Inline: true},
		{Name: "Streak", Value: fmt.Sprintf("%d days", streak), Inline: true},
		{Name: "VC Active", Value: role, Inline: true},
	}
	b.respondEmbed(session, interaction, b.commandEmbed(fmt.Sprintf("Voice stats for <@%s>", userID), "", colorAction, fields), false)
}

func (b *Bot) handleLeaderboard(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if interaction.GuildID == "" {
		b.respondEmbed(session, interaction, b.commandEmbed("Voice leaderboard", "This command only works in a server.", colorError, nil), true)
		return
	}

	scope := "today"
	if len(options) > 0 {
		scope = options[0].StringValue()
	}

	var lines []string
	var title string
	switch scope {
	case "alltime":
		title = "All-time leaderboard"
		top, err := b.store.TopUsersByXP(ctx, interaction.GuildID, 10)
		if err != nil {
			b.logger.Warn("leaderboard query failed", zap.Error(err))
			b.respondEmbed(session, interaction, b.commandEmbed(title, "Lookup failed.", colorError, nil), true)
			return
		}
		for i, entry := range top {
			lines = append(lines, fmt.Sprintf("%d. <@%s> — level %d, %d XP", i+1, entry.UserID, entry.Level, entry.TotalXP))
		}
	default:
		title = "Voice leaderboard — today"
		top, err := b.activity.TopUsers(ctx, interaction.GuildID, b.activity.Today(), 10)
		if err != nil {
			b.logger.Warn("leaderboard query failed", zap.Error(err))
			b.respondEmbed(session, interaction, b.commandEmbed(title, "Lookup failed.", colorError, nil), true)
			return
		}
		for i, entry := range top {
			lines = append(lines, fmt.Sprintf("%d. <@%s> — %s, %d XP", i+1, entry.UserID, formatMinutes(entry.VoiceMinutes), entry.XPEarned))
		}
	}

	body := strings.Join(lines, "\n")
	if body == "" {
		body = "No activity yet."
	}
	b.respondEmbed(session, interaction, b.commandEmbed(title, body, colorAction, nil), false)
}

func (b *Bot) handleVoiceAdmin(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if interaction.GuildID == "" || len(options) == 0 {
		b.respondEmbed(session, interaction, b.commandEmbed("Voice admin", "This command only works in a server.", colorError, nil), true)
		return
	}

	switch options[0].Name {
	case "reset":
		sub := options[0].Options
		if len(sub) == 0 || sub[0].Type != discordgo.ApplicationCommandOptionUser {
			b.respondEmbed(session, interaction, b.commandEmbed("Voice admin", "A user is required.", colorError, nil), true)
			return
		}
		userID := sub[0].UserValue(session).ID
		if err := b.xp.Reset(ctx, interaction.GuildID, userID); err != nil {
			b.logger.Warn("xp reset failed", zap.String("user_id", userID), zap.Error(err))
			b.respondEmbed(session, interaction, b.commandEmbed("Voice admin", "Reset failed.", colorError, nil), true)
			return
		}
		b.respondEmbed(session, interaction, b.commandEmbed("Voice admin", fmt.Sprintf("Reset XP for <@%s>.", userID), colorAction, nil), true)
	case "refreshroles":
		if b.reconciler == nil {
			b.respondEmbed(session, interaction, b.commandEmbed("Voice admin", "Reconciler not available.", colorError, nil), true)
			return
		}
		go b.reconciler.Run(context.Background())
		b.respondEmbed(session, interaction, b.commandEmbed("Voice admin", "Role reconciliation started.", colorAction, nil), true)
	default:
		b.respondEmbed(session, interaction, b.commandEmbed("Voice admin", "Unknown subcommand.", colorError, nil), true)
	}
}

func (b *Bot) targetUser(session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) string {
	for _, option := range options {
		if option.Type == discordgo.ApplicationCommandOptionUser {
			if user := option.UserValue(session); user != nil {
				return user.ID
			}
		}
	}
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User.ID
	}
	return ""
}

func (b *Bot) commandEmbed(title, description string, color int, fields []*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Fields:      fields,
	}
}

func (b *Bot) respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	})
}

func progressBar(into, needed int) string {
	const slots = 10
	filled := 0
	if needed > 0 {
		filled = into * slots / needed
	}
	if filled > slots {
		filled = slots
	}
	return strings.Repeat("▰", filled) + strings.Repeat("▱", slots-filled)
}

func formatMinutes(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}
