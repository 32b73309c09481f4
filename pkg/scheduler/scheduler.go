// Package scheduler drives enrollment processing: a poller enumerates
// active enrollments on an interval and dispatches each to a bounded
// worker pool, with at most one worker per enrollment at a time.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/loopmsg/journeyd/pkg/engine"
	"github.com/loopmsg/journeyd/pkg/models"
	"github.com/loopmsg/journeyd/pkg/persistence"
	"github.com/loopmsg/journeyd/pkg/providers/commerce"
)

const (
	DefaultInterval = 30 * time.Second
	DefaultWorkers  = 10
)

type Scheduler struct {
	engine      *engine.Engine
	persistence persistence.Persistence
	commerce    commerce.Provider
	logger      *slog.Logger
	interval    time.Duration
	now         func() time.Time

	sem      chan struct{}
	ticker   *time.Ticker
	done     chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	started  bool
	inflight map[string]struct{}
}

type Config struct {
	Engine      *engine.Engine
	Persistence persistence.Persistence
	Commerce    commerce.Provider
	Logger      *slog.Logger
	// Interval between scheduler passes. Zero means DefaultInterval.
	Interval time.Duration
	// Workers caps concurrent enrollment ticks. Zero means DefaultWorkers.
	Workers int
	// Now is injected by tests to control the clock.
	Now func() time.Time
}

func New(cfg Config) *Scheduler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Scheduler{
		engine:      cfg.Engine,
		persistence: cfg.Persistence,
		commerce:    cfg.Commerce,
		logger:      cfg.Logger.With("module", "scheduler"),
		interval:    interval,
		now:         now,
		sem:         make(chan struct{}, workers),
		inflight:    make(map[string]struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.ticker = time.NewTicker(s.interval)
	s.done = make(chan struct{})
	s.started = true

	go s.poll(ctx)

	s.logger.InfoContext(ctx, "Scheduler started", "interval", s.interval)

	return nil
}

// Stop halts the poller and waits for in-flight ticks to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()

	if s.started {
		s.ticker.Stop()
		close(s.done)
		s.started = false
	}

	s.mu.Unlock()

	s.wg.Wait()

	s.logger.InfoContext(ctx, "Scheduler stopped")

	return nil
}

func (s *Scheduler) poll(ctx context.Context) {
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-s.ticker.C:
			s.RunPass(ctx)
		}
	}
}

// RunPass executes one scheduler pass: due segment scans first, then a
// tick for every active enrollment. Exported so tests and CLI tooling
// can drive passes without the ticker.
func (s *Scheduler) RunPass(ctx context.Context) {
	s.processDueSchedules(ctx)
	s.processActiveEnrollments(ctx)
}

func (s *Scheduler) processActiveEnrollments(ctx context.Context) {
	enrollments, err := s.persistence.ActiveEnrollments(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list active enrollments", "error", err)

		return
	}

	for _, enrollment := range enrollments {
		if !s.acquire(enrollment.ID) {
			continue
		}

		s.sem <- struct{}{}
		s.wg.Add(1)

		go func(id string) {
			defer func() {
				<-s.sem
				s.release(id)
				s.wg.Done()
			}()

			if err := s.engine.ProcessEnrollment(ctx, id); err != nil {
				if errors.Is(err, models.ErrStaleEnrollment) {
					// Another writer advanced it; the next pass retries.
					s.logger.WarnContext(ctx, "Tick lost write race", "enrollment_id", id)

					return
				}

				s.logger.ErrorContext(ctx, "Tick failed", "enrollment_id", id, "error", err)
			}
		}(enrollment.ID)
	}
}

func (s *Scheduler) processDueSchedules(ctx context.Context) {
	now := s.now()

	schedules, err := s.persistence.DueSchedules(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list due schedules", "error", err)

		return
	}

	for _, schedule := range schedules {
		s.logger.InfoContext(ctx, "Running due segment scan",
			"schedule_id", schedule.ID, "journey_id", schedule.JourneyID, "due_at", schedule.NextDueAt)

		if err := s.enrollMatchingCustomers(ctx, schedule.JourneyID); err != nil {
			s.logger.ErrorContext(ctx, "Segment scan failed",
				"schedule_id", schedule.ID, "journey_id", schedule.JourneyID, "error", err)

			continue
		}

		if err := schedule.UpdateNextDueAt(); err != nil {
			s.logger.ErrorContext(ctx, "Failed to compute next due time",
				"schedule_id", schedule.ID, "error", err)

			continue
		}

		if err := s.persistence.SaveSchedule(ctx, schedule); err != nil {
			s.logger.ErrorContext(ctx, "Failed to save schedule",
				"schedule_id", schedule.ID, "error", err)
		}
	}
}

// enrollMatchingCustomers offers every customer to the journey's trigger.
// Blocked entries (rules, non-matching trigger) are the normal case and
// are skipped silently.
func (s *Scheduler) enrollMatchingCustomers(ctx context.Context, journeyID string) error {
	customers, err := s.commerce.ListCustomers(ctx)
	if err != nil {
		return err
	}

	enrolled := 0

	for _, customer := range customers {
		_, err := s.engine.EnrollCustomer(ctx, journeyID, customer.ID, nil)
		if err != nil {
			if errors.Is(err, models.ErrEntryBlocked) {
				continue
			}

			s.logger.ErrorContext(ctx, "Failed to enroll customer from scan",
				"journey_id", journeyID, "customer_id", customer.ID, "error", err)

			continue
		}

		enrolled++
	}

	if enrolled > 0 {
		s.logger.InfoContext(ctx, "Segment scan enrolled customers",
			"journey_id", journeyID, "count", enrolled)
	}

	return nil
}

func (s *Scheduler) acquire(enrollmentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inflight[enrollmentID]; busy {
		return false
	}

	s.inflight[enrollmentID] = struct{}{}

	return true
}

func (s *Scheduler) release(enrollmentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.inflight, enrollmentID)
}
