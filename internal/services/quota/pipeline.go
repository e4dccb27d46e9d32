package quota

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"

	"github.com/pjsousa/jobato-platform/internal/common"
	"github.com/pjsousa/jobato-platform/internal/storage/sqlite"
)

// Outcome statuses for a dispatch pass.
const (
	StatusCompleted = "completed"
	StatusPartial   = "partial"

	ReasonQuotaReached = "quota-reached"
)

// Outcome summarizes one dispatch pass over the run's inputs.
type Outcome struct {
	Status      string
	Reason      string
	IssuedCalls int
	Dropped     int
}

// Dispatcher admits provider calls against the daily budget. The ledger row
// is incremented before each call so a crash mid-call never under-counts.
type Dispatcher struct {
	config  Config
	storage *sqlite.QuotaStorage
	logger  arbor.ILogger
}

// NewDispatcher creates a quota dispatcher over the durable ledger.
func NewDispatcher(config Config, storage *sqlite.QuotaStorage, logger arbor.ILogger) *Dispatcher {
	return &Dispatcher{config: config, storage: storage, logger: logger}
}

// Remaining returns how many calls are left in today's budget.
func (d *Dispatcher) Remaining(now time.Time) (int, error) {
	used, err := d.storage.GetDailyUsage(d.config.DayFor(now))
	if err != nil {
		return 0, err
	}
	remaining := d.config.DailyLimit - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Dispatch runs fn for the first `remaining` inputs with bounded
// concurrency. Inputs past the budget are dropped and the pass is reported
// partial with reason "quota-reached". A single failing call aborts
// in-flight work and surfaces the error.
func Dispatch[T any](ctx context.Context, d *Dispatcher, runID string, inputs []T, fn func(ctx context.Context, input T) error) (Outcome, error) {
	now := time.Now()
	remaining, err := d.Remaining(now)
	if err != nil {
		return Outcome{}, err
	}

	admitted := inputs
	outcome := Outcome{Status: StatusCompleted}
	if len(inputs) > remaining {
		admitted = inputs[:remaining]
		outcome.Status = StatusPartial
		outcome.Reason = ReasonQuotaReached
		outcome.Dropped = len(inputs) - remaining
		if d.logger != nil {
			d.logger.Warn().
				Str("run_id", runID).
				Int("admitted", len(admitted)).
				Int("dropped", outcome.Dropped).
				Msg("Daily quota reached, dropping remaining inputs")
		}
	}

	if len(admitted) == 0 {
		return outcome, nil
	}

	day := d.config.DayFor(now)

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(d.config.ConcurrencyLimit)

	for _, input := range admitted {
		input := input
		group.Go(func() error {
			// Ledger first: an interrupted call still counts against the budget.
			if err := d.storage.IncrementUsage(day, runID, common.TimestampNow()); err != nil {
				return err
			}
			mu.Lock()
			outcome.IssuedCalls++
			mu.Unlock()

			return fn(groupCtx, input)
		})
	}

	if err := group.Wait(); err != nil {
		return outcome, err
	}
	return outcome, nil
}
