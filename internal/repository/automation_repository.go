package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"prom-markup/internal/domain"

	"github.com/google/uuid"
)

// AutomationRepository defines the interface for automation rule storage
type AutomationRepository interface {
	Create(ctx context.Context, automation *domain.Automation) error
	List(ctx context.Context) ([]*domain.Automation, error)
	ListWithGroups(ctx context.Context) ([]*domain.AutomationEntry, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Automation, error)
	ListByChangesGroup(ctx context.Context, changesGroupID uuid.UUID) ([]*domain.Automation, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type automationRepository struct {
	db *sql.DB
}

// NewAutomationRepository creates a new instance of AutomationRepository
func NewAutomationRepository(db *sql.DB) AutomationRepository {
	return &automationRepository{db: db}
}

func (r *automationRepository) Create(ctx context.Context, automation *domain.Automation) error {
	query := `
		INSERT INTO automations (id, frequency, start_time, changes_group_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		automation.ID,
		automation.Frequency,
		automation.StartTime,
		automation.ChangesGroupID,
		automation.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create automation: %w", err)
	}
	return nil
}

// List returns every persisted automation, oldest first
func (r *automationRepository) List(ctx context.Context) ([]*domain.Automation, error) {
	return r.query(ctx, `
		SELECT id, frequency, start_time, changes_group_id, created_at
		FROM automations
		ORDER BY created_at ASC, id ASC
	`)
}

func (r *automationRepository) ListByChangesGroup(ctx context.Context, changesGroupID uuid.UUID) ([]*domain.Automation, error) {
	return r.query(ctx, `
		SELECT id, frequency, start_time, changes_group_id, created_at
		FROM automations
		WHERE changes_group_id = $1
		ORDER BY created_at ASC, id ASC
	`, changesGroupID)
}

func (r *automationRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Automation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list automations: %w", err)
	}
	defer rows.Close()

	automations := []*domain.Automation{}
	for rows.Next() {
		automation := &domain.Automation{}
		err := rows.Scan(
			&automation.ID,
			&automation.Frequency,
			&automation.StartTime,
			&automation.ChangesGroupID,
			&automation.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan automation: %w", err)
		}
		automations = append(automations, automation)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating automations: %w", err)
	}

	return automations, nil
}

// ListWithGroups returns every automation joined with the group it re-runs
func (r *automationRepository) ListWithGroups(ctx context.Context) ([]*domain.AutomationEntry, error) {
	query := `
		SELECT a.id, a.frequency, a.start_time, a.changes_group_id, a.created_at,
		       g.id, g.catalog_urls, g.number_of_all_offers, g.created_at,
		       (SELECT COUNT(*) FROM price_markup_changes c WHERE c.changes_group_id = g.id)
		FROM automations a
		JOIN price_markup_changes_groups g ON g.id = a.changes_group_id
		ORDER BY a.created_at ASC, a.id ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list automations: %w", err)
	}
	defer rows.Close()

	entries := []*domain.AutomationEntry{}
	for rows.Next() {
		entry := &domain.AutomationEntry{}
		var urlsJSON []byte
		err := rows.Scan(
			&entry.ID,
			&entry.Frequency,
			&entry.StartTime,
			&entry.ChangesGroupID,
			&entry.CreatedAt,
			&entry.ChangesGroup.ID,
			&urlsJSON,
			&entry.ChangesGroup.NumberOfAllOffers,
			&entry.ChangesGroup.CreatedAt,
			&entry.ChangesGroup.NumberOfChanges,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan automation: %w", err)
		}
		if err := json.Unmarshal(urlsJSON, &entry.ChangesGroup.CatalogURLs); err != nil {
			return nil, fmt.Errorf("failed to decode catalog urls: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating automations: %w", err)
	}

	return entries, nil
}

func (r *automationRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Automation, error) {
	query := `
		SELECT id, frequency, start_time, changes_group_id, created_at
		FROM automations
		WHERE id = $1
	`

	automation := &domain.Automation{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&automation.ID,
		&automation.Frequency,
		&automation.StartTime,
		&automation.ChangesGroupID,
		&automation.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAutomationNotFound
		}
		return nil, fmt.Errorf("failed to find automation by ID: %w", err)
	}

	return automation, nil
}

// Delete removes the rule. A missing id yields ErrAutomationNotFound.
func (r *automationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM automations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete automation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrAutomationNotFound
	}
	return nil
}
