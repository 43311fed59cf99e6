package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/minjaelee/kis-sentinel/internal/calendar"
	"github.com/minjaelee/kis-sentinel/internal/clients/kis"
	"github.com/minjaelee/kis-sentinel/internal/domain"
	"github.com/minjaelee/kis-sentinel/internal/holdings"
	"github.com/minjaelee/kis-sentinel/internal/store"
	"github.com/minjaelee/kis-sentinel/internal/trend"
)

// DailyReportJobConfig holds configuration for a scheduled P&L report
type DailyReportJobConfig struct {
	Log      zerolog.Logger
	Calendar *calendar.KRX
	Tokens   TokenSource
	Balance  BalanceProvider
	Flow     FlowProvider
	Differ   *holdings.Differ
	Dedup    *store.Dedup
	Notifier Notifier
	Slot     string // report time label, e.g. "09:00"
	Timeout  time.Duration
}

// DailyReportJob sends the full holdings P&L report at a fixed daily
// time, with each holding's investor flow attached. Each (date, slot)
// pair is delivered at most once.
type DailyReportJob struct {
	log      zerolog.Logger
	calendar *calendar.KRX
	tokens   TokenSource
	balance  BalanceProvider
	flow     FlowProvider
	differ   *holdings.Differ
	dedup    *store.Dedup
	notifier Notifier
	slot     string
	timeout  time.Duration
	now      func() time.Time
}

// NewDailyReportJob creates a new daily report job
func NewDailyReportJob(cfg DailyReportJobConfig) *DailyReportJob {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &DailyReportJob{
		log:      cfg.Log.With().Str("job", "daily_report").Str("slot", cfg.Slot).Logger(),
		calendar: cfg.Calendar,
		tokens:   cfg.Tokens,
		balance:  cfg.Balance,
		flow:     cfg.Flow,
		differ:   cfg.Differ,
		dedup:    cfg.Dedup,
		notifier: cfg.Notifier,
		slot:     cfg.Slot,
		timeout:  timeout,
		now:      time.Now,
	}
}

// Name returns the job name
func (j *DailyReportJob) Name() string {
	return "daily_report_" + j.slot
}

// Run fetches holdings and sends the report unless already sent today
func (j *DailyReportJob) Run() error {
	now := j.now()
	if !j.calendar.IsTradingDay(now) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	key := store.DailyKey("profit", now.In(j.calendar.Location()), j.slot)
	sent, err := j.dedup.AlreadySent(ctx, key)
	if err != nil {
		// Dedup store down: prefer a possible duplicate over a lost report
		j.log.Warn().Err(err).Msg("Dedup check failed, assuming not sent")
	}
	if sent {
		j.log.Debug().Str("key", key).Msg("Report already sent this slot")
		return nil
	}

	token, err := j.tokens.GetToken(ctx)
	if err != nil {
		return err
	}
	snapshot, err := j.balance.FetchHoldings(ctx, token)
	if err != nil {
		return err
	}

	// Diff against empty only to reuse valuation and ordering; the change
	// events are meaningless here and dropped
	result := j.differ.Diff(domain.Snapshot{}, snapshot)

	if err := j.notifier.Send(ctx, holdings.RenderReport(result, j.flowSummaries(ctx, token, result))); err != nil {
		j.log.Error().Err(err).Msg("Report delivery failed")
	}
	// Marked after the dispatch attempt; a silent downstream drop is not
	// observable here
	if err := j.dedup.MarkSent(ctx, key, store.DailyTTL); err != nil {
		j.log.Warn().Err(err).Msg("Failed to mark report sent")
	}

	return nil
}

// flowSummaries fetches today's investor flow per holding. An instrument
// whose figure is unavailable (or fails) is simply left out; the renderer
// falls back to the no-data line for it.
func (j *DailyReportJob) flowSummaries(ctx context.Context, token string, result holdings.DiffResult) map[string]holdings.FlowSummary {
	summaries := make(map[string]holdings.FlowSummary, len(result.Current.Lines))
	for _, line := range result.Current.Lines {
		flow, err := j.flow.FetchNetFlow(ctx, token, line.Code)
		if errors.Is(err, kis.ErrFlowUnavailable) {
			continue
		}
		if err != nil {
			j.log.Warn().Err(err).Str("code", line.Code).Msg("Flow fetch failed for report")
			continue
		}
		summaries[line.Code] = holdings.FlowSummary{
			Foreign:       flow.Foreign,
			Institutional: flow.Institutional,
		}
	}
	return summaries
}

// TrendReportJobConfig holds configuration for the weekly trend report
type TrendReportJobConfig struct {
	Log        zerolog.Logger
	Calendar   *calendar.KRX
	Scorer     *trend.Scorer
	Dedup      *store.Dedup
	Notifier   Notifier
	WindowDays int
	TopN       int
	Timeout    time.Duration
}

// TrendReportJob ranks the flow universe and sends the weekly trend
// report, at most once per ISO week.
type TrendReportJob struct {
	log      zerolog.Logger
	calendar *calendar.KRX
	scorer   *trend.Scorer
	dedup    *store.Dedup
	notifier Notifier
	window   int
	topN     int
	timeout  time.Duration
	now      func() time.Time
}

// NewTrendReportJob creates a new trend report job
func NewTrendReportJob(cfg TrendReportJobConfig) *TrendReportJob {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &TrendReportJob{
		log:      cfg.Log.With().Str("job", "trend_report").Logger(),
		calendar: cfg.Calendar,
		scorer:   cfg.Scorer,
		dedup:    cfg.Dedup,
		notifier: cfg.Notifier,
		window:   cfg.WindowDays,
		topN:     cfg.TopN,
		timeout:  timeout,
		now:      time.Now,
	}
}

// Name returns the job name
func (j *TrendReportJob) Name() string {
	return "trend_report"
}

// Run scores the universe and sends the ranking once per week
func (j *TrendReportJob) Run() error {
	now := j.now()
	if !j.calendar.IsTradingDay(now) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	key := store.WeeklyKey("trend", now.In(j.calendar.Location()), "all")
	sent, err := j.dedup.AlreadySent(ctx, key)
	if err != nil {
		j.log.Warn().Err(err).Msg("Dedup check failed, assuming not sent")
	}
	if sent {
		j.log.Debug().Str("key", key).Msg("Trend report already sent this week")
		return nil
	}

	text := ""
	candidates, err := j.scorer.Rank(j.window, j.topN)
	switch {
	case err == nil:
		text = trend.RenderRanking(candidates, j.window)
	case storeDegraded(err):
		j.log.Warn().Err(err).Msg("Flow history unavailable, sending degraded report")
		text = trend.UnavailableReport
	default:
		return err
	}

	if err := j.notifier.Send(ctx, text); err != nil {
		j.log.Error().Err(err).Msg("Trend report delivery failed")
	}
	if err := j.dedup.MarkSent(ctx, key, store.WeeklyTTL); err != nil {
		j.log.Warn().Err(err).Msg("Failed to mark trend report sent")
	}

	return nil
}
