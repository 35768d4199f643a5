package service

import (
	"context"
	"testing"

	"prom-markup/internal/domain"
	"prom-markup/internal/scheduler"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutomationService_ListAndRemove(t *testing.T) {
	repo := newMockAutomationRepository()
	sched := &mockScheduler{repo: repo}
	svc := NewAutomationService(repo, sched)
	ctx := context.Background()

	groupID := uuid.New()
	automation, err := sched.Add(ctx, scheduler.Rule{Frequency: domain.FrequencyDaily, StartTime: "12:00", ChangesGroupID: groupID})
	require.NoError(t, err)

	entries, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, groupID, entries[0].ChangesGroup.ID)

	require.NoError(t, svc.Remove(ctx, automation.ID))
	assert.Equal(t, []uuid.UUID{automation.ID}, sched.removed)

	entries, err = svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.NoError(t, svc.Remove(ctx, uuid.New()))
}
