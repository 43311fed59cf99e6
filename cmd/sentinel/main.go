package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/minjaelee/kis-sentinel/internal/calendar"
	"github.com/minjaelee/kis-sentinel/internal/clients/kis"
	"github.com/minjaelee/kis-sentinel/internal/config"
	"github.com/minjaelee/kis-sentinel/internal/database"
	"github.com/minjaelee/kis-sentinel/internal/flows"
	"github.com/minjaelee/kis-sentinel/internal/holdings"
	"github.com/minjaelee/kis-sentinel/internal/notify"
	"github.com/minjaelee/kis-sentinel/internal/scheduler"
	"github.com/minjaelee/kis-sentinel/internal/server"
	"github.com/minjaelee/kis-sentinel/internal/store"
	"github.com/minjaelee/kis-sentinel/internal/trend"
	"github.com/minjaelee/kis-sentinel/pkg/logger"
)

func main() {
	log := logger.New(logger.Config{Level: "info", Pretty: true})

	log.Info().Msg("Starting KIS sentinel")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log = logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	st, err := store.New(cfg.RedisURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer st.Close()

	cano, prdt, err := cfg.AccountParts()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid account number")
	}

	kisClient := kis.NewClient(kis.Config{
		BaseURL:   cfg.KISBaseURL,
		AppKey:    cfg.KISAppKey,
		AppSecret: cfg.KISAppSecret,
		CANO:      cano,
		PRDT:      prdt,
		Timeout:   cfg.HTTPTimeout,
		Log:       log,
	})

	cal := calendar.NewKRX(log)
	tokens := store.NewTokenCache(st, kisClient, cfg.TokenMargin, log)
	dedup := store.NewDedup(st, log)
	differ := holdings.NewDiffer(log)
	snapshots := holdings.NewSnapshotRepository(db.Conn(), log)
	history := flows.NewHistoryRepository(db.Conn(), log)
	scorer := trend.NewScorer(history, log)
	notifier := notify.NewDiscord(cfg.DiscordWebhook, cfg.HTTPTimeout, log)

	pollJob := scheduler.NewPollJob(scheduler.PollJobConfig{
		Log:       log,
		Calendar:  cal,
		Tokens:    tokens,
		Balance:   kisClient,
		Differ:    differ,
		Snapshots: snapshots,
		Notifier:  notifier,
	})

	sched := scheduler.New(cal.Location(), log)
	if err := registerJobs(sched, pollJob, deps{
		log:       log,
		cfg:       cfg,
		calendar:  cal,
		tokens:    tokens,
		kis:       kisClient,
		differ:    differ,
		snapshots: snapshots,
		history:   history,
		scorer:    scorer,
		dedup:     dedup,
		notifier:  notifier,
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to register jobs")
	}
	sched.Start()
	defer sched.Stop()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
	notifier.SendBestEffort(startupCtx, "✅ KIS sentinel started")
	cancelStartup()

	srv := server.New(server.Config{
		Port:    cfg.Port,
		Log:     log,
		Poll:    pollJob,
		Scorer:  scorer,
		Store:   st,
		Window:  cfg.TrendWindowDays,
		TopN:    cfg.TrendTopN,
		DevMode: cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Sentinel running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	notifier.SendBestEffort(ctx, "🛑 KIS sentinel stopped")
	log.Info().Msg("Sentinel stopped")
}

// deps bundles the collaborators shared by the scheduled jobs.
type deps struct {
	log       zerolog.Logger
	cfg       *config.Config
	calendar  *calendar.KRX
	tokens    *store.TokenCache
	kis       *kis.Client
	differ    *holdings.Differ
	snapshots *holdings.SnapshotRepository
	history   *flows.HistoryRepository
	scorer    *trend.Scorer
	dedup     *store.Dedup
	notifier  *notify.Discord
}

func registerJobs(sched *scheduler.Scheduler, pollJob *scheduler.PollJob, d deps) error {
	if err := sched.AddJob("@every "+d.cfg.PollInterval.String(), pollJob); err != nil {
		return err
	}

	fillsJob := scheduler.NewFillsJob(scheduler.FillsJobConfig{
		Log:      d.log,
		Calendar: d.calendar,
		Tokens:   d.tokens,
		Fills:    d.kis,
		Dedup:    d.dedup,
		Notifier: d.notifier,
	})
	if err := sched.AddJob("@every 1m", fillsJob); err != nil {
		return err
	}

	flowJob := scheduler.NewFlowSnapshotJob(scheduler.FlowSnapshotJobConfig{
		Log:           d.log,
		Calendar:      d.calendar,
		Tokens:        d.tokens,
		Flow:          d.kis,
		Snapshots:     d.snapshots,
		History:       d.history,
		RetentionDays: d.cfg.RetentionDays,
	})
	// The exchange publishes investor flow after the 15:30 close
	if err := sched.AddJob("45 15 * * MON-FRI", flowJob); err != nil {
		return err
	}

	for _, slot := range []struct {
		label string
		spec  string
	}{
		{"09:00", "0 9 * * MON-FRI"},
		{"12:00", "0 12 * * MON-FRI"},
		{"16:00", "0 16 * * MON-FRI"},
	} {
		reportJob := scheduler.NewDailyReportJob(scheduler.DailyReportJobConfig{
			Log:      d.log,
			Calendar: d.calendar,
			Tokens:   d.tokens,
			Balance:  d.kis,
			Flow:     d.kis,
			Differ:   d.differ,
			Dedup:    d.dedup,
			Notifier: d.notifier,
			Slot:     slot.label,
		})
		if err := sched.AddJob(slot.spec, reportJob); err != nil {
			return err
		}
	}

	trendJob := scheduler.NewTrendReportJob(scheduler.TrendReportJobConfig{
		Log:        d.log,
		Calendar:   d.calendar,
		Scorer:     d.scorer,
		Dedup:      d.dedup,
		Notifier:   d.notifier,
		WindowDays: d.cfg.TrendWindowDays,
		TopN:       d.cfg.TrendTopN,
	})
	if err := sched.AddJob("10 16 * * FRI", trendJob); err != nil {
		return err
	}

	// First cycle right away so a restart re-establishes the baseline.
	// A failed cycle alerts on its own and retries on the next tick.
	sched.RunNow(pollJob)
	return nil
}
