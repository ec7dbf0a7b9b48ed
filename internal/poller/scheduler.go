package poller

import (
	"context"
	"sort"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
)

// DefaultTriggerMinutes fires a cycle on every quarter-hour boundary.
var DefaultTriggerMinutes = []int{0, 15, 30, 45}

// DefaultPollInterval is how often the scheduling loop wakes up to check
// for a due trigger.
const DefaultPollInterval = 5 * time.Second

// Scheduler fires a job at fixed minute marks within each hour, driven by
// a short polling loop. The trigger table and the clock are explicit so
// tests can drive cycles with a fake clock instead of waiting for wall
// time.
type Scheduler struct {
	job      func(context.Context)
	minutes  map[int]struct{}
	interval time.Duration
	now      func() time.Time

	lastFired time.Time
}

// SchedulerOption customises a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerClock injects the time source, for tests.
func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPollInterval overrides the wakeup interval.
func WithPollInterval(interval time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// NewScheduler builds a scheduler for the given trigger minutes. An empty
// trigger list falls back to the quarter-hour defaults.
func NewScheduler(job func(context.Context), minutes []int, opts ...SchedulerOption) *Scheduler {
	if len(minutes) == 0 {
		minutes = DefaultTriggerMinutes
	}
	set := make(map[int]struct{}, len(minutes))
	for _, minute := range minutes {
		set[minute] = struct{}{}
	}
	s := &Scheduler{
		job:      job,
		minutes:  set,
		interval: DefaultPollInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TriggerMinutes returns the configured trigger marks in sorted order.
func (s *Scheduler) TriggerMinutes() []int {
	out := make([]int, 0, len(s.minutes))
	for minute := range s.minutes {
		out = append(out, minute)
	}
	sort.Ints(out)
	return out
}

// Run polls until the context is cancelled, invoking the job at most once
// per trigger boundary.
func (s *Scheduler) Run(ctx context.Context) {
	logx.Infof("scheduler: running at minutes %v, polling every %s", s.TriggerMinutes(), s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		s.Tick(ctx)
		select {
		case <-ctx.Done():
			logx.Info("scheduler: stopped")
			return
		case <-ticker.C:
		}
	}
}

// Tick checks whether a trigger is due and fires the job if so. Exposed
// so tests can step the scheduler without the polling loop.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()
	trigger := now.Truncate(time.Minute)
	if _, due := s.minutes[trigger.Minute()]; !due {
		return
	}
	if trigger.Equal(s.lastFired) {
		return
	}
	s.lastFired = trigger
	s.job(ctx)
}
