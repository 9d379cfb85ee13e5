// Package scheduler runs the polling loop that fires scheduled events
// when their next-fire time arrives.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/daybreak-labs/triggerd/internal/domain"
	"github.com/daybreak-labs/triggerd/internal/recurrence"
)

// Registry is the slice of the trigger registry the scheduler needs:
// a due snapshot, run-completion bookkeeping, and a single persist per
// tick.
type Registry interface {
	DueSchedules(now time.Time) []domain.ScheduledEvent
	CompleteRun(id string, ranAt, nextFire time.Time)
	FlushSchedules()
}

// Dispatcher hands a firing to the downstream executor.
type Dispatcher interface {
	Dispatch(ctx context.Context, assignee string, action domain.Action, contextText string, event domain.TriggerEvent) (string, error)
}

// MetricsSink records tick outcomes. Implementations must not block.
type MetricsSink interface {
	TickCompleted(duration time.Duration, fired int)
}

type Config struct {
	TickInterval time.Duration
}

type Scheduler struct {
	config     Config
	registry   Registry
	dispatcher Dispatcher
	metrics    MetricsSink
	clock      func() time.Time
}

func New(config Config, registry Registry, dispatcher Dispatcher) *Scheduler {
	if config.TickInterval <= 0 {
		config.TickInterval = 30 * time.Second
	}
	return &Scheduler{
		config:     config,
		registry:   registry,
		dispatcher: dispatcher,
		clock:      time.Now,
	}
}

// WithMetrics attaches a metrics sink to the scheduler.
func (s *Scheduler) WithMetrics(sink MetricsSink) *Scheduler {
	s.metrics = sink
	return s
}

// WithClock overrides the time source. Used in tests.
func (s *Scheduler) WithClock(clock func() time.Time) *Scheduler {
	s.clock = clock
	return s
}

// Run polls for due events until ctx is cancelled. Each tick is
// evaluated against the clock at tick time, so a tick that arrives
// late fires everything that came due in the meantime.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	log.Printf("scheduler: started, tick=%s", s.config.TickInterval)

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler: stopped")
			return ctx.Err()
		case <-ticker.C:
			s.processTick(ctx)
		}
	}
}

func (s *Scheduler) processTick(ctx context.Context) {
	started := s.clock()
	due := s.registry.DueSchedules(started)

	fired := 0
	for _, ev := range due {
		if ctx.Err() != nil {
			break
		}
		s.fireEvent(ctx, ev, started)
		fired++
	}

	if fired > 0 {
		s.registry.FlushSchedules()
	}
	if s.metrics != nil {
		s.metrics.TickCompleted(s.clock().Sub(started), fired)
	}
}

// fireEvent dispatches one due event and advances its next-fire time.
// A dispatch failure is logged and the event still advances; the
// firing is not replayed on the next tick.
func (s *Scheduler) fireEvent(ctx context.Context, ev domain.ScheduledEvent, now time.Time) {
	event := domain.NewTriggerEvent(domain.SourceScheduler, ev.ID, now)

	ref, err := s.dispatcher.Dispatch(ctx, ev.Assignee, domain.CreateTask{}, ev.Description, event)
	if err != nil {
		log.Printf("scheduler: event %s dispatch error: %v", ev.ID, err)
	} else {
		log.Printf("scheduler: fired event=%s ref=%s", ev.ID, ref)
	}

	next, err := recurrence.NextFire(ev.Recurrence, now)
	if err != nil {
		log.Printf("scheduler: event %s next fire: %v", ev.ID, err)
		return
	}
	s.registry.CompleteRun(ev.ID, now, next)
}
