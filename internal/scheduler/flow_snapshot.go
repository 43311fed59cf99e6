package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/minjaelee/kis-sentinel/internal/calendar"
	"github.com/minjaelee/kis-sentinel/internal/clients/kis"
	"github.com/minjaelee/kis-sentinel/internal/flows"
	"github.com/minjaelee/kis-sentinel/internal/holdings"
)

// FlowProvider returns today's net investor flow for one instrument
type FlowProvider interface {
	FetchNetFlow(ctx context.Context, token, code string) (kis.NetFlow, error)
}

// FlowSnapshotJobConfig holds configuration for the end-of-day flow capture
type FlowSnapshotJobConfig struct {
	Log           zerolog.Logger
	Calendar      *calendar.KRX
	Tokens        TokenSource
	Flow          FlowProvider
	Snapshots     *holdings.SnapshotRepository
	History       *flows.HistoryRepository
	RetentionDays int
	Timeout       time.Duration
}

// FlowSnapshotJob records one flow point per held instrument per trading
// day, after the close. Re-running the job for the same day overwrites
// the day's value, so a restart never double-counts.
type FlowSnapshotJob struct {
	log       zerolog.Logger
	calendar  *calendar.KRX
	tokens    TokenSource
	flow      FlowProvider
	snapshots *holdings.SnapshotRepository
	history   *flows.HistoryRepository
	retention int
	timeout   time.Duration
	now       func() time.Time
}

// NewFlowSnapshotJob creates a new flow snapshot job
func NewFlowSnapshotJob(cfg FlowSnapshotJobConfig) *FlowSnapshotJob {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	retention := cfg.RetentionDays
	if retention == 0 {
		retention = 120
	}
	return &FlowSnapshotJob{
		log:       cfg.Log.With().Str("job", "flow_snapshot").Logger(),
		calendar:  cfg.Calendar,
		tokens:    cfg.Tokens,
		flow:      cfg.Flow,
		snapshots: cfg.Snapshots,
		history:   cfg.History,
		retention: retention,
		timeout:   timeout,
		now:       time.Now,
	}
}

// Name returns the job name
func (j *FlowSnapshotJob) Name() string {
	return "flow_snapshot"
}

// Run captures today's flow for every held instrument
func (j *FlowSnapshotJob) Run() error {
	now := j.now()
	if !j.calendar.AfterClose(now) {
		// Flow figures are only published after the close
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	token, err := j.tokens.GetToken(ctx)
	if err != nil {
		return err
	}

	snapshot, err := j.snapshots.Load()
	if err != nil {
		return err
	}
	if snapshot.Empty() {
		j.log.Debug().Msg("No held instruments, nothing to record")
		return nil
	}

	day := now.In(j.calendar.Location()).Format("2006-01-02")
	recorded := 0
	for _, line := range snapshot.Lines {
		flow, err := j.flow.FetchNetFlow(ctx, token, line.Code)
		if errors.Is(err, kis.ErrFlowUnavailable) {
			j.log.Debug().Str("code", line.Code).Msg("Flow not yet published")
			continue
		}
		if err != nil {
			// One instrument failing does not abort the pass
			j.log.Warn().Err(err).Str("code", line.Code).Msg("Flow fetch failed")
			continue
		}

		if err := j.history.Append(line.Code, line.Name, day, flow.Total()); err != nil {
			j.log.Error().Err(err).Str("code", line.Code).Msg("Flow append failed")
			continue
		}
		recorded++
	}

	horizon := now.AddDate(0, 0, -j.retention).In(j.calendar.Location()).Format("2006-01-02")
	if _, err := j.history.Prune(horizon); err != nil {
		j.log.Warn().Err(err).Msg("Flow history prune failed")
	}

	j.log.Info().Int("recorded", recorded).Str("day", day).Msg("Flow snapshot completed")
	return nil
}
