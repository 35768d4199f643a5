package service

import (
	"context"
	"testing"

	"prom-markup/internal/domain"
	"prom-markup/internal/repository"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSettingsService_GetWithoutKey(t *testing.T) {
	checker := &mockChecker{}
	svc := NewSettingsService(newMockSettingsRepository(), checker, zap.NewNop())

	status, err := svc.GetAPIKey(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "", status.PromAPIKey)
	assert.False(t, status.IsValid)
	assert.Zero(t, checker.calls)
}

func TestSettingsService_SaveAndProbe(t *testing.T) {
	tests := []struct {
		name      string
		checkErr  error
		wantValid bool
	}{
		{name: "accepted", wantValid: true},
		{name: "rejected", checkErr: domain.ErrCredentialInvalid, wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockSettingsRepository()
			svc := NewSettingsService(repo, &mockChecker{err: tt.checkErr}, zap.NewNop())

			status, err := svc.SaveAPIKey(context.Background(), "  secret-key \n")

			require.NoError(t, err)
			assert.Equal(t, "secret-key", status.PromAPIKey)
			assert.Equal(t, tt.wantValid, status.IsValid)
			assert.Equal(t, "secret-key", repo.values[repository.SettingPromAPIKey])

			got, err := svc.GetAPIKey(context.Background())
			require.NoError(t, err)
			assert.Equal(t, status, got)
		})
	}
}

func TestSettingsService_SaveEmptyKey(t *testing.T) {
	repo := newMockSettingsRepository()
	repo.values[repository.SettingPromAPIKey] = "previous"
	checker := &mockChecker{}
	svc := NewSettingsService(repo, checker, zap.NewNop())

	_, err := svc.SaveAPIKey(context.Background(), "   ")

	assert.ErrorIs(t, err, domain.ErrCredentialMissing)
	assert.Equal(t, "previous", repo.values[repository.SettingPromAPIKey])
	assert.Zero(t, checker.calls)
}

func TestAPIKeySource_Token(t *testing.T) {
	repo := newMockSettingsRepository()
	source := NewAPIKeySource(repo)

	token, err := source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", token)

	repo.values[repository.SettingPromAPIKey] = "abc"
	token, err = source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
}

// Property: the last saved key is the one the API key source hands out
func TestProperty_LastSavedKeyWins(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("token source returns the last saved key", prop.ForAll(
		func(keys []string) bool {
			repo := newMockSettingsRepository()
			svc := NewSettingsService(repo, &mockChecker{}, zap.NewNop())
			source := NewAPIKeySource(repo)

			for _, k := range keys {
				if _, err := svc.SaveAPIKey(context.Background(), k); err != nil {
					return false
				}
			}

			token, err := source.Token(context.Background())
			return err == nil && token == keys[len(keys)-1]
		},
		gen.SliceOfN(5, gen.Identifier()),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
