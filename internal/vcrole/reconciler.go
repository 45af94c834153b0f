package vcrole

import (
	"context"
	"sync/atomic"

	"malluclub-leveling/internal/activity"
	"malluclub-leveling/internal/config"
	"malluclub-leveling/internal/metrics"
	"malluclub-leveling/internal/storage"

	"go.uber.org/zap"
)

// RolePort is the guild-role surface the reconciler drives. Implemented
// over the Discord session by the bot package.
type RolePort interface {
	Guilds() []string
	EnsureRole(guildID string) (string, error)
	MembersWithRole(guildID, roleID string) ([]string, error)
	AddRole(guildID, userID, roleID string) error
	RemoveRole(guildID, userID, roleID string) error
}

// Reconciler aligns the VC Active role with today's top voice users.
// Every step is best-effort: a failing member or guild is logged and
// skipped, and the next scheduled run self-heals.
type Reconciler struct {
	cfg      config.VCActiveConfig
	roles    RolePort
	activity *activity.Service
	store    *storage.Store
	logger   *zap.Logger
	running  atomic.Bool
}

func NewReconciler(cfg config.VCActiveConfig, roles RolePort, activitySvc *activity.Service, store *storage.Store, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		cfg:      cfg,
		roles:    roles,
		activity: activitySvc,
		store:    store,
		logger:   logger,
	}
}

// Run reconciles every guild. Overlapping invocations are skipped, not
// queued.
func (r *Reconciler) Run(ctx context.Context) {
	if !r.running.CompareAndSwap(false, true) {
		r.logger.Info("role reconciliation already running, skipping")
		return
	}
	defer r.running.Store(false)

	metrics.ReconcileRuns.Inc()
	for _, guildID := range r.roles.Guilds() {
		if err := r.runGuild(ctx, guildID); err != nil {
			r.logger.Warn("role reconciliation failed for guild",
				zap.String("guild_id", guildID),
				zap.Error(err))
		}
	}
}

func (r *Reconciler) runGuild(ctx context.Context, guildID string) error {
	roleID, err := r.roles.EnsureRole(guildID)
	if err != nil {
		return err
	}

	day := r.activity.Today()
	top, err := r.activity.TopUsers(ctx, guildID, day, r.cfg.TopCount)
	if err != nil {
		return err
	}

	qualifying := make(map[string]struct{}, len(top))
	var qualifyingIDs []string
	for _, entry := range top {
		if entry.VoiceMinutes < r.cfg.MinimumMinutes {
			continue
		}
		qualifying[entry.UserID] = struct{}{}
		qualifyingIDs = append(qualifyingIDs, entry.UserID)
	}

	holders, err := r.roles.MembersWithRole(guildID, roleID)
	if err != nil {
		return err
	}

	holding := make(map[string]struct{}, len(holders))
	for _, userID := range holders {
		holding[userID] = struct{}{}
		if _, ok := qualifying[userID]; ok {
			continue
		}
		if err := r.roles.RemoveRole(guildID, userID, roleID); err != nil {
			r.logger.Warn("role remove failed",
				zap.String("guild_id", guildID),
				zap.String("user_id", userID),
				zap.Error(err))
			continue
		}
		metrics.RoleMutations.WithLabelValues("remove").Inc()
	}

	for _, userID := range qualifyingIDs {
		if _, ok := holding[userID]; ok {
			continue
		}
		if err := r.roles.AddRole(guildID, userID, roleID); err != nil {
			r.logger.Warn("role add failed",
				zap.String("guild_id", guildID),
				zap.String("user_id", userID),
				zap.Error(err))
			continue
		}
		metrics.RoleMutations.WithLabelValues("add").Inc()
	}

	if err := r.store.SetVcActiveFlags(ctx, guildID, day, qualifyingIDs); err != nil {
		return err
	}
	return nil
}
