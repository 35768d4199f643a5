package service

import (
	"context"
	"errors"
	"strings"

	"prom-markup/internal/domain"
	"prom-markup/internal/repository"

	"go.uber.org/zap"
)

// CredentialChecker probes the remote API with the stored key
type CredentialChecker interface {
	CheckCredential(ctx context.Context) error
}

type APIKeyStatus struct {
	PromAPIKey string `json:"promApiKey"`
	IsValid    bool   `json:"isValid"`
}

// SettingsService defines the interface for the remote API key
type SettingsService interface {
	GetAPIKey(ctx context.Context) (*APIKeyStatus, error)
	SaveAPIKey(ctx context.Context, key string) (*APIKeyStatus, error)
}

type settingsService struct {
	settingsRepo repository.SettingsRepository
	checker      CredentialChecker
	logger       *zap.Logger
}

// NewSettingsService creates a new instance of SettingsService
func NewSettingsService(settingsRepo repository.SettingsRepository, checker CredentialChecker, logger *zap.Logger) SettingsService {
	return &settingsService{
		settingsRepo: settingsRepo,
		checker:      checker,
		logger:       logger,
	}
}

// GetAPIKey returns the stored key. The remote API is probed only when a key exists.
func (s *settingsService) GetAPIKey(ctx context.Context) (*APIKeyStatus, error) {
	key, err := s.settingsRepo.Get(ctx, repository.SettingPromAPIKey)
	if err != nil && !errors.Is(err, repository.ErrSettingNotFound) {
		return nil, err
	}

	status := &APIKeyStatus{PromAPIKey: key}
	if key != "" {
		status.IsValid = s.check(ctx)
	}
	return status, nil
}

// SaveAPIKey stores the key first and then reports whether the remote API accepts it
func (s *settingsService) SaveAPIKey(ctx context.Context, key string) (*APIKeyStatus, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, domain.ErrCredentialMissing
	}

	if err := s.settingsRepo.Set(ctx, repository.SettingPromAPIKey, key); err != nil {
		return nil, err
	}

	return &APIKeyStatus{PromAPIKey: key, IsValid: s.check(ctx)}, nil
}

func (s *settingsService) check(ctx context.Context) bool {
	if err := s.checker.CheckCredential(ctx); err != nil {
		s.logger.Info("Prom API key rejected", zap.Error(err))
		return false
	}
	return true
}

// APIKeySource reads the bearer token for the remote API from the settings store
type APIKeySource struct {
	settingsRepo repository.SettingsRepository
}

func NewAPIKeySource(settingsRepo repository.SettingsRepository) *APIKeySource {
	return &APIKeySource{settingsRepo: settingsRepo}
}

// Token returns an empty token when no key was saved yet
func (s *APIKeySource) Token(ctx context.Context) (string, error) {
	key, err := s.settingsRepo.Get(ctx, repository.SettingPromAPIKey)
	if errors.Is(err, repository.ErrSettingNotFound) {
		return "", nil
	}
	return key, err
}
