package service

import (
	"context"

	"prom-markup/internal/domain"
	"prom-markup/internal/repository"

	"github.com/google/uuid"
)

// AutomationService defines the interface for managing scheduled markups
type AutomationService interface {
	List(ctx context.Context) ([]*domain.AutomationEntry, error)
	Remove(ctx context.Context, id uuid.UUID) error
}

type automationService struct {
	automationRepo repository.AutomationRepository
	scheduler      AutomationScheduler
}

// NewAutomationService creates a new instance of AutomationService
func NewAutomationService(automationRepo repository.AutomationRepository, sched AutomationScheduler) AutomationService {
	return &automationService{
		automationRepo: automationRepo,
		scheduler:      sched,
	}
}

// List returns every automation joined with its changes group
func (s *automationService) List(ctx context.Context) ([]*domain.AutomationEntry, error) {
	return s.automationRepo.ListWithGroups(ctx)
}

// Remove deletes the automation and cancels its timer; unknown ids succeed
func (s *automationService) Remove(ctx context.Context, id uuid.UUID) error {
	return s.scheduler.Remove(ctx, id)
}
