package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prom-markup/internal/domain"
	"prom-markup/internal/metrics"
	"prom-markup/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PriceUpdater pushes resolved price changes to the remote platform
type PriceUpdater interface {
	UpdateProducts(ctx context.Context, changes []domain.OfferChange) ([]domain.OfferChangeResult, error)
}

// ChangesRunner executes the update step of the pipeline for a changes group
// and records exactly one changes log per execution. Runs for the same group
// never overlap.
type ChangesRunner struct {
	changesRepo repository.ChangesRepository
	updater     PriceUpdater
	locks       *GroupLocks
	logger      *zap.Logger
	now         func() time.Time
}

func NewChangesRunner(
	changesRepo repository.ChangesRepository,
	updater PriceUpdater,
	locks *GroupLocks,
	logger *zap.Logger,
) *ChangesRunner {
	return &ChangesRunner{
		changesRepo: changesRepo,
		updater:     updater,
		locks:       locks,
		logger:      logger,
		now:         time.Now,
	}
}

// Execute sends changes and logs the outcome under groupID. It returns the
// number of offers the remote platform accepted.
func (r *ChangesRunner) Execute(
	ctx context.Context,
	groupID uuid.UUID,
	changes []domain.OfferChange,
	logType domain.ChangesLogType,
) (int, error) {
	release, err := r.locks.Acquire(ctx, groupID)
	if err != nil {
		lockErr := fmt.Errorf("%w: failed to lock changes group: %w", domain.ErrRemoteUpdateFailed, err)
		r.logger.Warn("Changes group run abandoned before start",
			zap.String("changes_group_id", groupID.String()),
			zap.String("type", string(logType)),
			zap.Error(err),
		)
		metrics.RecordMarkupRun(string(logType), string(domain.ChangesLogStatusFailed))

		if err := r.writeLog(ctx, groupID, domain.ChangesLogStatusFailed, logType, nil); err != nil {
			return 0, errors.Join(lockErr, err)
		}
		return 0, lockErr
	}
	defer release()

	results, updateErr := r.updater.UpdateProducts(ctx, changes)
	if updateErr != nil {
		r.logger.Error("Failed to update prices",
			zap.String("changes_group_id", groupID.String()),
			zap.String("type", string(logType)),
			zap.Error(updateErr),
		)
		metrics.RecordMarkupRun(string(logType), string(domain.ChangesLogStatusFailed))

		if err := r.writeLog(ctx, groupID, domain.ChangesLogStatusFailed, logType, nil); err != nil {
			return 0, errors.Join(updateErr, err)
		}
		return 0, updateErr
	}

	succeeded := domain.CountSuccessful(results)
	metrics.RecordMarkupRun(string(logType), string(domain.ChangesLogStatusSuccess))
	r.logger.Info("Prices updated",
		zap.String("changes_group_id", groupID.String()),
		zap.String("type", string(logType)),
		zap.Int("changes", len(changes)),
		zap.Int("succeeded", succeeded),
	)

	if err := r.writeLog(ctx, groupID, domain.ChangesLogStatusSuccess, logType, &succeeded); err != nil {
		return succeeded, err
	}
	return succeeded, nil
}

// RunAutomation re-reads the group's stored changes and executes them as an automation run
func (r *ChangesRunner) RunAutomation(ctx context.Context, changesGroupID uuid.UUID) error {
	group, err := r.changesRepo.FindGroupByID(ctx, changesGroupID)
	if err != nil {
		if !errors.Is(err, domain.ErrChangesGroupNotFound) {
			if logErr := r.writeLog(ctx, changesGroupID, domain.ChangesLogStatusFailed, domain.ChangesLogTypeAutomation, nil); logErr != nil {
				return errors.Join(err, logErr)
			}
		}
		return err
	}

	_, err = r.Execute(ctx, group.ID, group.Changes, domain.ChangesLogTypeAutomation)
	return err
}

// writeLog outlives ctx cancellation so an interrupted run is still recorded
func (r *ChangesRunner) writeLog(
	ctx context.Context,
	groupID uuid.UUID,
	status domain.ChangesLogStatus,
	logType domain.ChangesLogType,
	succeeded *int,
) error {
	log := &domain.ChangesLog{
		ID:                                uuid.New(),
		ChangesGroupID:                    groupID,
		Status:                            status,
		Type:                              logType,
		NumberOfSuccessfullyChangedOffers: succeeded,
		CreatedAt:                         r.now(),
	}

	if err := r.changesRepo.CreateLog(context.WithoutCancel(ctx), log); err != nil {
		r.logger.Error("Failed to record changes log",
			zap.String("changes_group_id", groupID.String()),
			zap.Error(err),
		)
		return fmt.Errorf("failed to record changes log: %w", err)
	}
	return nil
}
