package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"prom-markup/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTimer struct {
	clock   *fakeClock
	when    time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// fakeClock runs due callbacks synchronously from Advance, in time order
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, when: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.when.After(target) {
				continue
			}
			if next == nil || t.when.Before(next.when) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.fired = true
		c.now = next.when
		c.mu.Unlock()

		next.f()
	}
}

type memoryStore struct {
	mu          sync.Mutex
	automations map[uuid.UUID]*domain.Automation
	listCalls   int
	createErr   error
}

func newMemoryStore(automations ...*domain.Automation) *memoryStore {
	s := &memoryStore{automations: make(map[uuid.UUID]*domain.Automation)}
	for _, a := range automations {
		s.automations[a.ID] = a
	}
	return s
}

func (s *memoryStore) Create(ctx context.Context, automation *domain.Automation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.automations[automation.ID] = automation
	return nil
}

func (s *memoryStore) List(ctx context.Context) ([]*domain.Automation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	result := make([]*domain.Automation, 0, len(s.automations))
	for _, a := range s.automations {
		result = append(result, a)
	}
	return result, nil
}

func (s *memoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.automations[id]; !ok {
		return domain.ErrAutomationNotFound
	}
	delete(s.automations, id)
	return nil
}

type recordingRunner struct {
	mu    sync.Mutex
	calls []uuid.UUID
	err   error
	panic bool
}

func (r *recordingRunner) RunAutomation(ctx context.Context, changesGroupID uuid.UUID) error {
	r.mu.Lock()
	r.calls = append(r.calls, changesGroupID)
	r.mu.Unlock()
	if r.panic {
		panic("boom")
	}
	return r.err
}

func (r *recordingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

var startOfTest = time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)

func newTestScheduler(store Store, runner Runner) (*Scheduler, *fakeClock) {
	clock := newFakeClock(startOfTest)
	s := New(store, runner, zap.NewNop(), WithClock(clock), WithLocation(time.UTC))
	return s, clock
}

func TestScheduler_AddFiresDailyAndRearms(t *testing.T) {
	store := newMemoryStore()
	runner := &recordingRunner{}
	s, clock := newTestScheduler(store, runner)

	groupID := uuid.New()
	automation, err := s.Add(context.Background(), Rule{Frequency: domain.FrequencyDaily, StartTime: "11:30", ChangesGroupID: groupID})
	require.NoError(t, err)
	assert.Contains(t, store.automations, automation.ID)

	next, ok := s.NextRun(automation.ID)
	require.True(t, ok)
	assert.True(t, next.Equal(time.Date(2024, 3, 10, 11, 30, 0, 0, time.UTC)))

	clock.Advance(time.Hour)
	assert.Equal(t, 0, runner.count())

	clock.Advance(30 * time.Minute)
	assert.Equal(t, 1, runner.count())
	assert.Equal(t, groupID, runner.calls[0])

	next, ok = s.NextRun(automation.ID)
	require.True(t, ok)
	assert.True(t, next.Equal(time.Date(2024, 3, 11, 11, 30, 0, 0, time.UTC)))

	clock.Advance(3 * 24 * time.Hour)
	assert.Equal(t, 4, runner.count())
}

func TestScheduler_AddIsNotRetroactive(t *testing.T) {
	runner := &recordingRunner{}
	s, clock := newTestScheduler(newMemoryStore(), runner)

	_, err := s.Add(context.Background(), Rule{Frequency: domain.FrequencyDaily, StartTime: "09:00", ChangesGroupID: uuid.New()})
	require.NoError(t, err)

	clock.Advance(22 * time.Hour)
	assert.Equal(t, 0, runner.count())

	clock.Advance(time.Hour)
	assert.Equal(t, 1, runner.count())
}

func TestScheduler_AddRejectsInvalidRuleWithoutPersisting(t *testing.T) {
	store := newMemoryStore()
	s, _ := newTestScheduler(store, &recordingRunner{})

	_, err := s.Add(context.Background(), Rule{Frequency: "hourly", StartTime: "09:00", ChangesGroupID: uuid.New()})
	assert.True(t, errors.Is(err, domain.ErrUnsupportedFrequency))

	_, err = s.Add(context.Background(), Rule{Frequency: domain.FrequencyDaily, StartTime: "25:00", ChangesGroupID: uuid.New()})
	assert.True(t, errors.Is(err, domain.ErrInvalidStartTime))

	assert.Empty(t, store.automations)
	assert.Empty(t, s.Active())
}

func TestScheduler_AddStoresCanonicalStartTime(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "09:30", want: "09:30"},
		{input: " 09:30 ", want: "09:30"},
		{input: "9:30", want: "09:30"},
		{input: "\t23:05\n", want: "23:05"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			store := newMemoryStore()
			s, _ := newTestScheduler(store, &recordingRunner{})

			automation, err := s.Add(context.Background(), Rule{Frequency: domain.FrequencyDaily, StartTime: tt.input, ChangesGroupID: uuid.New()})
			require.NoError(t, err)

			assert.Equal(t, tt.want, automation.StartTime)
			assert.Equal(t, tt.want, store.automations[automation.ID].StartTime)
			assert.LessOrEqual(t, len(store.automations[automation.ID].StartTime), 5)
		})
	}
}

func TestScheduler_AddStoreFailureDoesNotArm(t *testing.T) {
	store := newMemoryStore()
	store.createErr = errors.New("db down")
	s, _ := newTestScheduler(store, &recordingRunner{})

	_, err := s.Add(context.Background(), Rule{Frequency: domain.FrequencyDaily, StartTime: "09:00", ChangesGroupID: uuid.New()})
	assert.Error(t, err)
	assert.Empty(t, s.Active())
}

func TestScheduler_FailingRunStaysArmed(t *testing.T) {
	runner := &recordingRunner{err: domain.ErrRemoteUpdateFailed}
	s, clock := newTestScheduler(newMemoryStore(), runner)

	automation, err := s.Add(context.Background(), Rule{Frequency: domain.FrequencyDaily, StartTime: "12:00", ChangesGroupID: uuid.New()})
	require.NoError(t, err)

	clock.Advance(2*24*time.Hour + 2*time.Hour)
	assert.Equal(t, 3, runner.count())
	assert.Equal(t, []uuid.UUID{automation.ID}, s.Active())
}

func TestScheduler_PanickingRunStaysArmed(t *testing.T) {
	runner := &recordingRunner{panic: true}
	s, clock := newTestScheduler(newMemoryStore(), runner)

	_, err := s.Add(context.Background(), Rule{Frequency: domain.FrequencyDaily, StartTime: "12:00", ChangesGroupID: uuid.New()})
	require.NoError(t, err)

	clock.Advance(24*time.Hour + 2*time.Hour)
	assert.Equal(t, 2, runner.count())
	assert.Len(t, s.Active(), 1)
}

func TestScheduler_Remove(t *testing.T) {
	store := newMemoryStore()
	runner := &recordingRunner{}
	s, clock := newTestScheduler(store, runner)

	automation, err := s.Add(context.Background(), Rule{Frequency: domain.FrequencyDaily, StartTime: "12:00", ChangesGroupID: uuid.New()})
	require.NoError(t, err)

	require.NoError(t, s.Remove(context.Background(), automation.ID))
	assert.Empty(t, s.Active())
	assert.NotContains(t, store.automations, automation.ID)

	clock.Advance(48 * time.Hour)
	assert.Equal(t, 0, runner.count())

	assert.NoError(t, s.Remove(context.Background(), uuid.New()))
}

func TestScheduler_LoadAll(t *testing.T) {
	valid1 := &domain.Automation{ID: uuid.New(), Frequency: domain.FrequencyDaily, StartTime: "11:00", ChangesGroupID: uuid.New()}
	valid2 := &domain.Automation{ID: uuid.New(), Frequency: domain.FrequencyDaily, StartTime: "13:00", ChangesGroupID: uuid.New()}
	weekly := &domain.Automation{ID: uuid.New(), Frequency: "weekly", StartTime: "13:00", ChangesGroupID: uuid.New()}

	store := newMemoryStore(valid1, valid2, weekly)
	runner := &recordingRunner{}
	s, clock := newTestScheduler(store, runner)

	err := s.LoadAll(context.Background())
	assert.True(t, errors.Is(err, domain.ErrUnsupportedFrequency))
	assert.Len(t, s.Active(), 2)

	require.NoError(t, s.LoadAll(context.Background()))
	assert.Equal(t, 1, store.listCalls)
	assert.Len(t, s.Active(), 2)

	clock.Advance(4 * time.Hour)
	assert.Equal(t, 2, runner.count())
}

func TestScheduler_StopDisarmsTimers(t *testing.T) {
	runner := &recordingRunner{}
	s, clock := newTestScheduler(newMemoryStore(), runner)

	_, err := s.Add(context.Background(), Rule{Frequency: domain.FrequencyDaily, StartTime: "12:00", ChangesGroupID: uuid.New()})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	clock.Advance(48 * time.Hour)
	assert.Equal(t, 0, runner.count())
}

func TestScheduler_RealClockFires(t *testing.T) {
	runner := &recordingRunner{}
	s := New(newMemoryStore(), runner, zap.NewNop(), WithLocation(time.UTC))

	next := time.Now().UTC().Add(time.Minute)
	_, err := s.Add(context.Background(), Rule{
		Frequency:      domain.FrequencyDaily,
		StartTime:      next.Format("15:04"),
		ChangesGroupID: uuid.New(),
	})
	require.NoError(t, err)
	assert.Len(t, s.Active(), 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.Equal(t, 0, runner.count())
}
