package bot

import (
	"context"
	"fmt"

	"malluclub-leveling/internal/activity"
	"malluclub-leveling/internal/config"
	"malluclub-leveling/internal/leveling"
	"malluclub-leveling/internal/storage"
	"malluclub-leveling/internal/vcrole"
	"malluclub-leveling/internal/voice"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type Bot struct {
	cfg        config.Config
	logger     *zap.Logger
	store      *storage.Store
	xp         *leveling.Service
	activity   *activity.Service
	tracker    *voice.Tracker
	reconciler *vcrole.Reconciler
	session    *discordgo.Session
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, xpService *leveling.Service, activitySvc *activity.Service) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildVoiceStates

	b := &Bot{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		xp:       xpService,
		activity: activitySvc,
		session:  session,
	}
	xpService.SetNotifier(b.announceLevelUp)
	return b, nil
}

// SetTracker and SetReconciler break the construction cycle: the
// tracker and reconciler both need the bot as their Discord-facing
// port.
func (b *Bot) SetTracker(tracker *voice.Tracker) {
	b.tracker = tracker
}

func (b *Bot) SetReconciler(reconciler *vcrole.Reconciler) {
	b.reconciler = reconciler
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onVoiceStateUpdate)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}
	return b.registerCommands()
}

func (b *Bot) Close(ctx context.Context) {
	_ = ctx
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username))
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot {
		return
	}
	if msg.GuildID == "" {
		return
	}

	ctx := context.Background()
	if _, err := b.xp.AwardChatXP(ctx, msg.GuildID, msg.Author.ID, msg.Author.Username); err != nil {
		b.logger.Warn("chat xp award failed",
			zap.String("guild_id", msg.GuildID),
			zap.String("user_id", msg.Author.ID),
			zap.Error(err))
	}
}

func (b *Bot) onVoiceStateUpdate(session *discordgo.Session, event *discordgo.VoiceStateUpdate) {
	if event.GuildID == "" || event.UserID == "" {
		return
	}
	member := b.memberForUser(event.GuildID, event.UserID)
	if member == nil || member.User == nil || member.User.Bot {
		return
	}

	ctx := context.Background()
	username := member.User.Username
	flags := voice.Flags{
		Deaf:      event.Deaf,
		Mute:      event.Mute,
		SelfDeaf:  event.SelfDeaf,
		SelfMute:  event.SelfMute,
		SelfVideo: event.SelfVideo,
		Streaming: event.SelfStream,
	}

	before := event.BeforeUpdate
	switch {
	case event.ChannelID == "":
		b.tracker.StopTracking(ctx, event.GuildID, event.UserID)
	case before == nil || before.ChannelID == "":
		b.tracker.StartTracking(event.GuildID, event.UserID, username, event.ChannelID, flags)
	case before.ChannelID != event.ChannelID:
		// A channel switch is a stop followed by a start.
		b.tracker.StopTracking(ctx, event.GuildID, event.UserID)
		b.tracker.StartTracking(event.GuildID, event.UserID, username, event.ChannelID, flags)
	default:
		if b.tracker.Tracking(event.GuildID, event.UserID) {
			b.tracker.UpdateVoiceState(event.GuildID, event.UserID, flags)
		} else {
			// The channel may have become eligible since the join,
			// e.g. a second member arrived.
			b.tracker.StartTracking(event.GuildID, event.UserID, username, event.ChannelID, flags)
		}
	}
}

// CanEarn implements voice.ChannelGuard: not the AFK channel, speak
// permission, and enough non-bot members present.
func (b *Bot) CanEarn(guildID, channelID, userID string) bool {
	guild, err := b.session.State.Guild(guildID)
	if err != nil || guild == nil {
		return false
	}
	if guild.AfkChannelID != "" && guild.AfkChannelID == channelID {
		return false
	}

	perms, err := b.session.State.UserChannelPermissions(userID, channelID)
	if err != nil || perms&discordgo.PermissionVoiceSpeak == 0 {
		return false
	}

	humans := 0
	for _, state := range guild.VoiceStates {
		if state == nil || state.ChannelID != channelID {
			continue
		}
		member := b.memberForUser(guildID, state.UserID)
		if member != nil && member.User != nil && member.User.Bot {
			continue
		}
		humans++
	}
	return humans >= b.cfg.Voice.MinUsersForXP
}

// Guilds implements vcrole.RolePort.
func (b *Bot) Guilds() []string {
	if b.session == nil || b.session.State == nil {
		return nil
	}
	ids := make([]string, 0, len(b.session.State.Guilds))
	for _, guild := range b.session.State.Guilds {
		if guild != nil {
			ids = append(ids, guild.ID)
		}
	}
	return ids
}

// EnsureRole resolves the VC Active role: configured ID first, then a
// name lookup, then lazy creation.
func (b *Bot) EnsureRole(guildID string) (string, error) {
	roles, err := b.session.GuildRoles(guildID)
	if err != nil {
		return "", fmt.Errorf("list roles: %w", err)
	}

	if b.cfg.VCActive.RoleID != "" {
		for _, role := range roles {
			if role.ID == b.cfg.VCActive.RoleID {
				return role.ID, nil
			}
		}
	}
	for _, role := range roles {
		if role.Name == b.cfg.VCActive.RoleName {
			return role.ID, nil
		}
	}

	color := b.cfg.VCActive.RoleColor
	hoist := true
	role, err := b.session.GuildRoleCreate(guildID, &discordgo.RoleParams{
		Name:  b.cfg.VCActive.RoleName,
		Color: &color,
		Hoist: &hoist,
	})
	if err != nil {
		return "", fmt.Errorf("create role: %w", err)
	}
	b.logger.Info("created vc active role",
		zap.String("guild_id", guildID),
		zap.String("role_id", role.ID))
	return role.ID, nil
}

func (b *Bot) MembersWithRole(guildID, roleID string) ([]string, error) {
	members, err := b.guildMembers(guildID)
	if err != nil {
		return nil, err
	}
	var holders []string
	for _, member := range members {
		if member == nil || member.User == nil {
			continue
		}
		for _, id := range member.Roles {
			if id == roleID {
				holders = append(holders, member.User.ID)
				break
			}
		}
	}
	return holders, nil
}

func (b *Bot) AddRole(guildID, userID, roleID string) error {
	return b.session.GuildMemberRoleAdd(guildID, userID, roleID)
}

func (b *Bot) RemoveRole(guildID, userID, roleID string) error {
	return b.session.GuildMemberRoleRemove(guildID, userID, roleID)
}

func (b *Bot) guildMembers(guildID string) ([]*discordgo.Member, error) {
	guild, err := b.session.State.Guild(guildID)
	if err == nil && guild != nil && len(guild.Members) > 0 {
		return guild.Members, nil
	}
	return b.session.GuildMembers(guildID, "", 1000)
}

func (b *Bot) memberForUser(guildID, userID string) *discordgo.Member {
	member, err := b.session.State.Member(guildID, userID)
	if err == nil && member != nil {
		return member
	}
	member, _ = b.session.GuildMember(guildID, userID)
	return member
}

func (b *Bot) announceLevelUp(guildID, userID string, newLevel int) {
	channelID := b.cfg.LevelUpChannel
	if channelID == "" {
		return
	}
	embed := &discordgo.MessageEmbed{
		Title:       "Level up!",
		Description: fmt.Sprintf("<@%s> reached level **%d**", userID, newLevel),
		Color:       colorAction,
	}
	if _, err := b.session.ChannelMessageSendEmbed(channelID, embed); err != nil {
		b.logger.Warn("level up announcement failed",
			zap.String("guild_id", guildID),
			zap.String("user_id", userID),
			zap.Error(err))
	}
}
