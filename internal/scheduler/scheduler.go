package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/minjaelee/kis-sentinel/internal/domain"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// Notifier is the outbound alert channel shared by all jobs
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// TokenSource provides a valid access token for upstream calls
type TokenSource interface {
	GetToken(ctx context.Context) (string, error)
}

// Scheduler manages the monitor's background jobs. Jobs never kill the
// process: a failing run is logged (and alerted by the job itself) and
// the next tick proceeds.
type Scheduler struct {
	cron *cron.Cron
	loc  *time.Location
	log  zerolog.Logger
}

// New creates a new scheduler; cron expressions are evaluated in loc
func New(loc *time.Location, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithLocation(loc)),
		loc:  loc,
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish, so
// shutdown never interrupts a dispatch in flight
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a job with a cron schedule ("@every 5m", "0 16 * * MON-FRI", ...)
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.log.Debug().Str("job", job.Name()).Msg("Running job")

		if err := job.Run(); err != nil {
			s.log.Error().
				Err(err).
				Str("job", job.Name()).
				Str("kind", string(domain.KindOf(err))).
				Msg("Job failed")
		} else {
			s.log.Debug().Str("job", job.Name()).Msg("Job completed")
		}
	})
	if err != nil {
		return err
	}

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow executes a job immediately, outside its schedule. A failing run
// is logged exactly like a scheduled one; it never reaches the caller, so
// a bad first cycle at startup just waits for the next tick.
func (s *Scheduler) RunNow(job Job) {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")

	if err := job.Run(); err != nil {
		s.log.Error().
			Err(err).
			Str("job", job.Name()).
			Str("kind", string(domain.KindOf(err))).
			Msg("Job failed")
	}
}
