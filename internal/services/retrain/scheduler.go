package retrain

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
)

// pollInterval is how often the scheduler checks whether the next firing
// time has passed.
const pollInterval = 30 * time.Second

// ParseDailySchedule parses a five-field cron expression restricted to the
// daily form "M H * * *": a plain numeric minute and hour, with day, month
// and weekday unrestricted. Ranges, steps and wildcards in the first two
// fields are rejected.
func ParseDailySchedule(expr string) (cron.Schedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("schedule %q must have five fields", expr)
	}
	minute, err := strconv.Atoi(fields[0])
	if err != nil || minute < 0 || minute > 59 {
		return nil, fmt.Errorf("schedule %q must be daily: minute must be a number in [0,59]", expr)
	}
	hour, err := strconv.Atoi(fields[1])
	if err != nil || hour < 0 || hour > 23 {
		return nil, fmt.Errorf("schedule %q must be daily: hour must be a number in [0,23]", expr)
	}
	for i := 2; i < 5; i++ {
		if fields[i] != "*" {
			return nil, fmt.Errorf("schedule %q must be daily: fields beyond minute and hour must be *", expr)
		}
	}

	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return schedule, nil
}

// Scheduler fires the daily retrain of the active model.
type Scheduler struct {
	service  *Service
	schedule cron.Schedule
	logger   arbor.ILogger

	mu        sync.Mutex
	nextRunAt time.Time
	stop      chan struct{}
	done      chan struct{}
}

// NewScheduler creates a daily retrain scheduler.
func NewScheduler(service *Service, expr string, logger arbor.ILogger) (*Scheduler, error) {
	schedule, err := ParseDailySchedule(expr)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		service:   service,
		schedule:  schedule,
		logger:    logger,
		nextRunAt: schedule.Next(time.Now()),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

// NextRunAt returns the next scheduled firing time.
func (s *Scheduler) NextRunAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRunAt
}

// Start launches the polling loop.
func (s *Scheduler) Start() {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		if s.logger != nil {
			s.logger.Info().
				Str("next_run_at", s.NextRunAt().UTC().Format(time.RFC3339)).
				Msg("Retrain scheduler started")
		}

		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.TriggerIfDue(time.Now())
			}
		}
	}()
}

// Stop halts the polling loop and waits for it to exit.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

// TriggerIfDue fires the retrain when now has reached the scheduled time,
// then advances to the strictly-next firing. Returns whether it fired.
func (s *Scheduler) TriggerIfDue(now time.Time) bool {
	s.mu.Lock()
	if now.Before(s.nextRunAt) {
		s.mu.Unlock()
		return false
	}
	s.nextRunAt = s.schedule.Next(now)
	s.mu.Unlock()

	job, err := s.service.Run("scheduled")
	if err != nil {
		if s.logger != nil {
			s.logger.Warn().Err(err).Msg("Scheduled retrain did not complete")
		}
		return true
	}
	if s.logger != nil {
		s.logger.Info().
			Str("job_id", job.JobID).
			Str("model_id", job.ModelID).
			Str("status", job.Status).
			Msg("Scheduled retrain finished")
	}
	return true
}
