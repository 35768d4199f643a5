package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"prom-markup/internal/domain"
	"prom-markup/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store persists automation rules
type Store interface {
	Create(ctx context.Context, automation *domain.Automation) error
	List(ctx context.Context) ([]*domain.Automation, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Runner executes the pipeline of a changes group when its automation fires
type Runner interface {
	RunAutomation(ctx context.Context, changesGroupID uuid.UUID) error
}

// Timer is a pending callback that can be cancelled
type Timer interface {
	Stop() bool
}

// Clock abstracts wall time so tests can drive timers deterministically
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Rule is an automation before it is persisted
type Rule struct {
	Frequency      string
	StartTime      string
	ChangesGroupID uuid.UUID
}

type Option func(*Scheduler)

func WithClock(clock Clock) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// WithLocation sets the time zone daily start times are read in
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) { s.location = loc }
}

type entry struct {
	automation domain.Automation
	schedule   Schedule
	timer      Timer
	nextAt     time.Time
	removed    bool
}

// Scheduler keeps one live timer per persisted automation. Each firing runs
// the automation's changes group and re-arms for the following occurrence,
// whether or not the run succeeded.
type Scheduler struct {
	store    Store
	runner   Runner
	logger   *zap.Logger
	clock    Clock
	location *time.Location

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[uuid.UUID]*entry
	loaded  bool
	stopped bool
	running sync.WaitGroup
}

func New(store Store, runner Runner, logger *zap.Logger, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		store:    store,
		runner:   runner,
		logger:   logger,
		clock:    realClock{},
		location: time.Local,
		ctx:      ctx,
		cancel:   cancel,
		entries:  make(map[uuid.UUID]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate checks that a rule can be scheduled without persisting anything
func (s *Scheduler) Validate(rule Rule) error {
	_, err := BuildSchedule(rule.Frequency, rule.StartTime, s.location)
	return err
}

// LoadAll arms every persisted automation. Calls after the first successful
// one do nothing. Rules that cannot be scheduled are skipped and reported in
// the returned error while the rest are armed.
func (s *Scheduler) LoadAll(ctx context.Context) error {
	s.mu.Lock()
	if s.loaded {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	automations, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load automations: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return nil
	}

	var errs []error
	for _, automation := range automations {
		if _, ok := s.entries[automation.ID]; ok {
			continue
		}

		schedule, err := BuildSchedule(automation.Frequency, automation.StartTime, s.location)
		if err != nil {
			s.logger.Warn("Skipping automation that cannot be scheduled",
				zap.String("automation_id", automation.ID.String()),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("automation %s: %w", automation.ID, err))
			continue
		}

		s.armLocked(&entry{automation: *automation, schedule: schedule})
	}

	s.loaded = true
	metrics.SetArmedAutomations(len(s.entries))
	s.logger.Info("Automations loaded", zap.Int("armed", len(s.entries)), zap.Int("skipped", len(errs)))

	return errors.Join(errs...)
}

// Add persists a new automation and arms it for its next occurrence.
// The start time is stored in its canonical "HH:MM" form.
// It never fires for an occurrence that is already in the past.
func (s *Scheduler) Add(ctx context.Context, rule Rule) (*domain.Automation, error) {
	schedule, err := BuildSchedule(rule.Frequency, rule.StartTime, s.location)
	if err != nil {
		return nil, err
	}

	startTime := rule.StartTime
	if daily, ok := schedule.(DailySchedule); ok {
		startTime = daily.StartTime()
	}

	automation := &domain.Automation{
		ID:             uuid.New(),
		Frequency:      rule.Frequency,
		StartTime:      startTime,
		ChangesGroupID: rule.ChangesGroupID,
		CreatedAt:      s.clock.Now(),
	}
	if err := s.store.Create(ctx, automation); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return automation, nil
	}
	s.armLocked(&entry{automation: *automation, schedule: schedule})
	metrics.SetArmedAutomations(len(s.entries))

	s.logger.Info("Automation scheduled",
		zap.String("automation_id", automation.ID.String()),
		zap.String("changes_group_id", automation.ChangesGroupID.String()),
		zap.Time("next_run", s.entries[automation.ID].nextAt),
	)

	return automation, nil
}

// Remove deletes the persisted rule and cancels its timer. Unknown ids are ignored.
func (s *Scheduler) Remove(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrAutomationNotFound) {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[id]; ok {
		e.removed = true
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(s.entries, id)
		metrics.SetArmedAutomations(len(s.entries))
		s.logger.Info("Automation removed", zap.String("automation_id", id.String()))
	}
	return nil
}

// Active lists the ids of automations with a live timer
func (s *Scheduler) Active() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]uuid.UUID, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// NextRun reports when the automation fires next
func (s *Scheduler) NextRun(id uuid.UUID) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return time.Time{}, false
	}
	return e.nextAt, true
}

// Stop cancels every timer and waits for running automations to finish.
// When ctx expires first the running automations are cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	for _, e := range s.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}

func (s *Scheduler) armLocked(e *entry) {
	now := s.clock.Now()
	from := now
	if e.nextAt.After(from) {
		from = e.nextAt
	}

	e.nextAt = e.schedule.Next(from)
	e.timer = s.clock.AfterFunc(e.nextAt.Sub(now), func() { s.fire(e) })
	s.entries[e.automation.ID] = e
}

func (s *Scheduler) fire(e *entry) {
	s.mu.Lock()
	if e.removed || s.stopped {
		s.mu.Unlock()
		return
	}
	s.running.Add(1)
	s.mu.Unlock()
	defer s.running.Done()

	s.run(e)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !e.removed && !s.stopped {
		s.armLocked(e)
	}
}

func (s *Scheduler) run(e *entry) {
	logger := s.logger.With(
		zap.String("automation_id", e.automation.ID.String()),
		zap.String("changes_group_id", e.automation.ChangesGroupID.String()),
	)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Automation panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	logger.Info("Running automation")
	if err := s.runner.RunAutomation(s.ctx, e.automation.ChangesGroupID); err != nil {
		logger.Error("Automation run failed", zap.Error(err))
		return
	}
	logger.Info("Automation run completed")
}
