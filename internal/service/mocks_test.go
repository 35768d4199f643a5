package service

import (
	"context"
	"sync"

	"prom-markup/internal/domain"
	"prom-markup/internal/repository"
	"prom-markup/internal/scheduler"

	"github.com/google/uuid"
)

// Mock repositories for testing
type mockChangesRepository struct {
	mu        sync.Mutex
	groups    map[uuid.UUID]*domain.ChangesGroup
	logs      []*domain.ChangesLog
	createErr error
	findErr   error
}

func newMockChangesRepository() *mockChangesRepository {
	return &mockChangesRepository{groups: make(map[uuid.UUID]*domain.ChangesGroup)}
}

func (m *mockChangesRepository) CreateGroup(ctx context.Context, group *domain.ChangesGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.groups[group.ID] = group
	return nil
}

func (m *mockChangesRepository) FindGroupByID(ctx context.Context, id uuid.UUID) (*domain.ChangesGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	group, ok := m.groups[id]
	if !ok {
		return nil, domain.ErrChangesGroupNotFound
	}
	return group, nil
}

func (m *mockChangesRepository) DeleteGroup(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[id]; !ok {
		return domain.ErrChangesGroupNotFound
	}
	delete(m.groups, id)
	return nil
}

func (m *mockChangesRepository) CreateLog(ctx context.Context, log *domain.ChangesLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, log)
	return nil
}

func (m *mockChangesRepository) ListLogs(ctx context.Context, page, perPage int) ([]*domain.ChangesLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := []*domain.ChangesLogEntry{}
	for i := len(m.logs) - 1; i >= 0; i-- {
		entries = append(entries, &domain.ChangesLogEntry{ChangesLog: *m.logs[i]})
	}

	start := (page - 1) * perPage
	if start >= len(entries) {
		return []*domain.ChangesLogEntry{}, nil
	}
	end := start + perPage
	if end > len(entries) {
		end = len(entries)
	}
	return entries[start:end], nil
}

func (m *mockChangesRepository) CountLogs(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.logs), nil
}

func (m *mockChangesRepository) logCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.logs)
}

type mockAutomationRepository struct {
	automations map[uuid.UUID]*domain.Automation
}

func newMockAutomationRepository() *mockAutomationRepository {
	return &mockAutomationRepository{automations: make(map[uuid.UUID]*domain.Automation)}
}

func (m *mockAutomationRepository) Create(ctx context.Context, automation *domain.Automation) error {
	m.automations[automation.ID] = automation
	return nil
}

func (m *mockAutomationRepository) List(ctx context.Context) ([]*domain.Automation, error) {
	result := []*domain.Automation{}
	for _, a := range m.automations {
		result = append(result, a)
	}
	return result, nil
}

func (m *mockAutomationRepository) ListWithGroups(ctx context.Context) ([]*domain.AutomationEntry, error) {
	result := []*domain.AutomationEntry{}
	for _, a := range m.automations {
		result = append(result, &domain.AutomationEntry{Automation: *a, ChangesGroup: domain.ChangesGroup{ID: a.ChangesGroupID}})
	}
	return result, nil
}

func (m *mockAutomationRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Automation, error) {
	a, ok := m.automations[id]
	if !ok {
		return nil, domain.ErrAutomationNotFound
	}
	return a, nil
}

func (m *mockAutomationRepository) ListByChangesGroup(ctx context.Context, changesGroupID uuid.UUID) ([]*domain.Automation, error) {
	result := []*domain.Automation{}
	for _, a := range m.automations {
		if a.ChangesGroupID == changesGroupID {
			result = append(result, a)
		}
	}
	return result, nil
}

func (m *mockAutomationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.automations[id]; !ok {
		return domain.ErrAutomationNotFound
	}
	delete(m.automations, id)
	return nil
}

type mockSettingsRepository struct {
	values map[string]string
}

func newMockSettingsRepository() *mockSettingsRepository {
	return &mockSettingsRepository{values: make(map[string]string)}
}

func (m *mockSettingsRepository) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", repository.ErrSettingNotFound
	}
	return v, nil
}

func (m *mockSettingsRepository) Set(ctx context.Context, key, value string) error {
	m.values[key] = value
	return nil
}

type mockUpdater struct {
	mu       sync.Mutex
	calls    [][]domain.OfferChange
	rejected map[string]bool
	err      error
	hook     func()
}

func (m *mockUpdater) UpdateProducts(ctx context.Context, changes []domain.OfferChange) ([]domain.OfferChangeResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, changes)
	hook := m.hook
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	if m.err != nil {
		return nil, m.err
	}

	results := make([]domain.OfferChangeResult, len(changes))
	for i, c := range changes {
		results[i] = domain.OfferChangeResult{OfferID: c.OfferID, IsSuccess: !m.rejected[c.OfferID]}
	}
	return results, nil
}

func (m *mockUpdater) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// mockScheduler validates like the real scheduler and persists through the automation repository
type mockScheduler struct {
	repo    *mockAutomationRepository
	removed []uuid.UUID
	addErr  error
}

func (m *mockScheduler) Validate(rule scheduler.Rule) error {
	_, err := scheduler.BuildSchedule(rule.Frequency, rule.StartTime, nil)
	return err
}

func (m *mockScheduler) Add(ctx context.Context, rule scheduler.Rule) (*domain.Automation, error) {
	if err := m.Validate(rule); err != nil {
		return nil, err
	}
	if m.addErr != nil {
		return nil, m.addErr
	}
	a := &domain.Automation{
		ID:             uuid.New(),
		Frequency:      rule.Frequency,
		StartTime:      rule.StartTime,
		ChangesGroupID: rule.ChangesGroupID,
	}
	return a, m.repo.Create(ctx, a)
}

func (m *mockScheduler) Remove(ctx context.Context, id uuid.UUID) error {
	m.removed = append(m.removed, id)
	_ = m.repo.Delete(ctx, id)
	return nil
}

type mockFetcher struct {
	feeds map[string]*domain.CatalogSnapshot
	errs  map[string]error
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) (*domain.CatalogSnapshot, error) {
	if err, ok := m.errs[url]; ok {
		return nil, err
	}
	feed, ok := m.feeds[url]
	if !ok {
		return nil, domain.ErrInvalidFormat
	}
	copied := *feed
	copied.Categories = append([]domain.Category(nil), feed.Categories...)
	copied.Offers = append([]domain.Offer(nil), feed.Offers...)
	return &copied, nil
}

type mockChecker struct {
	err   error
	calls int
}

func (m *mockChecker) CheckCredential(ctx context.Context) error {
	m.calls++
	return m.err
}
