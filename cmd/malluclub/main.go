package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"malluclub-leveling/internal/activity"
	"malluclub-leveling/internal/bot"
	"malluclub-leveling/internal/config"
	"malluclub-leveling/internal/leveling"
	"malluclub-leveling/internal/metrics"
	"malluclub-leveling/internal/storage"
	"malluclub-leveling/internal/vcrole"
	"malluclub-leveling/internal/voice"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	metrics.Register()

	limiter := leveling.NewLimiter(cfg.XP.HourlyCap)
	activitySvc := activity.New(store, logger, cfg.VCActive.StreakMinutes)
	xpService := leveling.NewService(cfg.XP, store, activitySvc, limiter, logger)

	botSvc, err := bot.New(cfg, logger, store, xpService, activitySvc)
	if err != nil {
		logger.Fatal("bot init failed", zap.Error(err))
	}

	tracker := voice.NewTracker(cfg.Voice, botSvc, xpService, activitySvc, logger)
	botSvc.SetTracker(tracker)

	reconciler := vcrole.NewReconciler(cfg.VCActive, botSvc, activitySvc, store, logger)
	botSvc.SetReconciler(reconciler)

	scheduler := vcrole.NewScheduler(cfg.VCActive.UpdateHoursUTC, func() {
		reconciler.Run(context.Background())
	}, logger)

	if err := botSvc.Start(); err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	tracker.Start()
	scheduler.Start()
	logger.Info("bot started")

	var server *http.Server
	if cfg.Health.Enabled {
		server = &http.Server{Addr: cfg.Health.Addr}
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		http.Handle("/metrics", metrics.Handler())
		go func() {
			logger.Info("health endpoint enabled", zap.String("addr", cfg.Health.Addr))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("health server error", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown requested")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scheduler.Stop()
	tracker.Stop()
	tracker.ClearAll()
	if server != nil {
		_ = server.Shutdown(ctx)
	}
	botSvc.Close(ctx)
}
