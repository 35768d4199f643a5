package service

import (
	"context"
	"fmt"
	"time"

	"prom-markup/internal/catalog"
	"prom-markup/internal/domain"
	"prom-markup/internal/markup"
	"prom-markup/internal/repository"
	"prom-markup/internal/scheduler"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultLogsPage    = 1
	DefaultLogsPerPage = 10
)

// AutomationScheduler is the part of the scheduler the services drive
type AutomationScheduler interface {
	Validate(rule scheduler.Rule) error
	Add(ctx context.Context, rule scheduler.Rule) (*domain.Automation, error)
	Remove(ctx context.Context, id uuid.UUID) error
}

type AutomationInput struct {
	Frequency string
	StartTime string
}

// RunMarkupInput describes one markup submission. With Automation set the
// resolved changes are scheduled instead of being sent right away.
type RunMarkupInput struct {
	CatalogURLs []string
	Settings    domain.MarkupSettings
	Automation  *AutomationInput
}

type RunMarkupResult struct {
	ChangesGroup                      *domain.ChangesGroup `json:"changesGroup"`
	Automation                        *domain.Automation   `json:"automation,omitempty"`
	NumberOfSuccessfullyChangedOffers *int                 `json:"numberOfSuccessfullyChangedOffers,omitempty"`
}

type LogsPage struct {
	Items   []*domain.ChangesLogEntry `json:"items"`
	Page    int                       `json:"page"`
	PerPage int                       `json:"perPage"`
	Total   int                       `json:"total"`
}

// MarkupService defines the interface for markup runs and their history
type MarkupService interface {
	Run(ctx context.Context, input RunMarkupInput) (*RunMarkupResult, error)
	ListLogs(ctx context.Context, page, perPage int) (*LogsPage, error)
	GetGroup(ctx context.Context, id uuid.UUID) (*domain.ChangesGroup, error)
	DeleteGroup(ctx context.Context, id uuid.UUID) error
}

type markupService struct {
	store          *catalog.Store
	changesRepo    repository.ChangesRepository
	automationRepo repository.AutomationRepository
	runner         *ChangesRunner
	scheduler      AutomationScheduler
	logger         *zap.Logger
}

// NewMarkupService creates a new instance of MarkupService
func NewMarkupService(
	store *catalog.Store,
	changesRepo repository.ChangesRepository,
	automationRepo repository.AutomationRepository,
	runner *ChangesRunner,
	sched AutomationScheduler,
	logger *zap.Logger,
) MarkupService {
	return &markupService{
		store:          store,
		changesRepo:    changesRepo,
		automationRepo: automationRepo,
		runner:         runner,
		scheduler:      sched,
		logger:         logger,
	}
}

// Run resolves the settings against the cached catalogs and stores the result
// as a new changes group. The automation rule is validated before anything is
// written, and the group is removed again when the rule cannot be stored, so a
// scheduling failure never leaves an orphaned group behind.
func (s *markupService) Run(ctx context.Context, input RunMarkupInput) (*RunMarkupResult, error) {
	if err := markup.ValidateSettings(input.Settings); err != nil {
		return nil, err
	}

	if input.Automation != nil {
		rule := scheduler.Rule{Frequency: input.Automation.Frequency, StartTime: input.Automation.StartTime}
		if err := s.scheduler.Validate(rule); err != nil {
			return nil, err
		}
	}

	categories, err := s.store.Categories(input.CatalogURLs, catalog.Query{})
	if err != nil {
		return nil, err
	}
	offers := s.store.Offers(input.CatalogURLs, catalog.Query{})

	changes, err := markup.Resolve(offers, categories, input.Settings)
	if err != nil {
		return nil, err
	}

	group := &domain.ChangesGroup{
		ID:                uuid.New(),
		CatalogURLs:       input.CatalogURLs,
		NumberOfAllOffers: len(offers),
		Changes:           changes,
		CreatedAt:         time.Now(),
	}
	if err := s.changesRepo.CreateGroup(ctx, group); err != nil {
		return nil, fmt.Errorf("failed to save changes group: %w", err)
	}
	group.NumberOfChanges = len(changes)

	s.logger.Info("Changes group created",
		zap.String("changes_group_id", group.ID.String()),
		zap.Strings("catalog_urls", group.CatalogURLs),
		zap.Int("offers", group.NumberOfAllOffers),
		zap.Int("changes", len(changes)),
	)

	result := &RunMarkupResult{ChangesGroup: group}

	if input.Automation != nil {
		automation, err := s.scheduler.Add(ctx, scheduler.Rule{
			Frequency:      input.Automation.Frequency,
			StartTime:      input.Automation.StartTime,
			ChangesGroupID: group.ID,
		})
		if err != nil {
			if delErr := s.changesRepo.DeleteGroup(context.WithoutCancel(ctx), group.ID); delErr != nil {
				s.logger.Error("Failed to remove unscheduled changes group",
					zap.String("changes_group_id", group.ID.String()),
					zap.Error(delErr),
				)
			}
			return nil, fmt.Errorf("failed to schedule automation: %w", err)
		}
		result.Automation = automation
		return result, nil
	}

	succeeded, err := s.runner.Execute(ctx, group.ID, changes, domain.ChangesLogTypeCustom)
	if err != nil {
		return result, err
	}
	result.NumberOfSuccessfullyChangedOffers = &succeeded

	return result, nil
}

// ListLogs returns a page of logs, newest first. Non-positive arguments fall back to page 1 of 10.
func (s *markupService) ListLogs(ctx context.Context, page, perPage int) (*LogsPage, error) {
	if page < 1 {
		page = DefaultLogsPage
	}
	if perPage < 1 {
		perPage = DefaultLogsPerPage
	}

	items, err := s.changesRepo.ListLogs(ctx, page, perPage)
	if err != nil {
		return nil, err
	}
	total, err := s.changesRepo.CountLogs(ctx)
	if err != nil {
		return nil, err
	}

	return &LogsPage{Items: items, Page: page, PerPage: perPage, Total: total}, nil
}

func (s *markupService) GetGroup(ctx context.Context, id uuid.UUID) (*domain.ChangesGroup, error) {
	return s.changesRepo.FindGroupByID(ctx, id)
}

// DeleteGroup disarms the group's automations before the cascade removes their rows
func (s *markupService) DeleteGroup(ctx context.Context, id uuid.UUID) error {
	automations, err := s.automationRepo.ListByChangesGroup(ctx, id)
	if err != nil {
		return err
	}

	for _, automation := range automations {
		if err := s.scheduler.Remove(ctx, automation.ID); err != nil {
			return fmt.Errorf("failed to remove automation %s: %w", automation.ID, err)
		}
	}

	if err := s.changesRepo.DeleteGroup(ctx, id); err != nil {
		return err
	}

	s.logger.Info("Changes group deleted",
		zap.String("changes_group_id", id.String()),
		zap.Int("automations", len(automations)),
	)
	return nil
}
