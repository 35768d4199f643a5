package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"prom-markup/internal/domain"

	"github.com/google/uuid"
)

// changesInsertChunk keeps multi-row inserts well below the PostgreSQL bind parameter limit
const changesInsertChunk = 1000

// ChangesRepository persists changes groups and their execution logs
type ChangesRepository interface {
	CreateGroup(ctx context.Context, group *domain.ChangesGroup) error
	FindGroupByID(ctx context.Context, id uuid.UUID) (*domain.ChangesGroup, error)
	DeleteGroup(ctx context.Context, id uuid.UUID) error
	CreateLog(ctx context.Context, log *domain.ChangesLog) error
	ListLogs(ctx context.Context, page, perPage int) ([]*domain.ChangesLogEntry, error)
	CountLogs(ctx context.Context) (int, error)
}

type changesRepository struct {
	db *sql.DB
}

// NewChangesRepository creates a new instance of ChangesRepository
func NewChangesRepository(db *sql.DB) ChangesRepository {
	return &changesRepository{db: db}
}

// CreateGroup stores the group and all of its changes in one transaction
func (r *changesRepository) CreateGroup(ctx context.Context, group *domain.ChangesGroup) error {
	urls := group.CatalogURLs
	if urls == nil {
		urls = []string{}
	}
	urlsJSON, err := json.Marshal(urls)
	if err != nil {
		return fmt.Errorf("failed to encode catalog urls: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO price_markup_changes_groups (id, catalog_urls, number_of_all_offers, created_at)
		VALUES ($1, $2::jsonb, $3, $4)
	`
	if _, err := tx.ExecContext(ctx, query, group.ID, string(urlsJSON), group.NumberOfAllOffers, group.CreatedAt); err != nil {
		return fmt.Errorf("failed to create changes group: %w", err)
	}

	for start := 0; start < len(group.Changes); start += changesInsertChunk {
		end := start + changesInsertChunk
		if end > len(group.Changes) {
			end = len(group.Changes)
		}
		if err := insertChanges(ctx, tx, group.ID, start, group.Changes[start:end]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit changes group: %w", err)
	}

	group.NumberOfChanges = len(group.Changes)
	return nil
}

func insertChanges(ctx context.Context, tx *sql.Tx, groupID uuid.UUID, offset int, changes []domain.OfferChange) error {
	var sb strings.Builder
	sb.WriteString("INSERT INTO price_markup_changes (changes_group_id, sort_order, offer_id, new_price, old_price) VALUES ")

	args := make([]any, 0, len(changes)*5)
	for i, change := range changes {
		if i > 0 {
			sb.WriteString(", ")
		}
		n := len(args)
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5)
		args = append(args, groupID, offset+i, change.OfferID, change.NewPrice, change.OldPrice)
	}

	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("failed to create offer changes: %w", err)
	}
	return nil
}

// FindGroupByID loads a group with its changes in their original order
func (r *changesRepository) FindGroupByID(ctx context.Context, id uuid.UUID) (*domain.ChangesGroup, error) {
	query := `
		SELECT id, catalog_urls, number_of_all_offers, created_at
		FROM price_markup_changes_groups
		WHERE id = $1
	`

	group := &domain.ChangesGroup{}
	var urlsJSON []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&group.ID,
		&urlsJSON,
		&group.NumberOfAllOffers,
		&group.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrChangesGroupNotFound
		}
		return nil, fmt.Errorf("failed to find changes group by ID: %w", err)
	}
	if err := json.Unmarshal(urlsJSON, &group.CatalogURLs); err != nil {
		return nil, fmt.Errorf("failed to decode catalog urls: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT offer_id, new_price, old_price
		FROM price_markup_changes
		WHERE changes_group_id = $1
		ORDER BY sort_order ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list offer changes: %w", err)
	}
	defer rows.Close()

	group.Changes = []domain.OfferChange{}
	for rows.Next() {
		var change domain.OfferChange
		var oldPrice sql.NullFloat64
		if err := rows.Scan(&change.OfferID, &change.NewPrice, &oldPrice); err != nil {
			return nil, fmt.Errorf("failed to scan offer change: %w", err)
		}
		if oldPrice.Valid {
			v := oldPrice.Float64
			change.OldPrice = &v
		}
		group.Changes = append(group.Changes, change)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating offer changes: %w", err)
	}

	group.NumberOfChanges = len(group.Changes)
	return group, nil
}

// DeleteGroup removes a group; changes, logs and automations go with it
func (r *changesRepository) DeleteGroup(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM price_markup_changes_groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete changes group: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrChangesGroupNotFound
	}
	return nil
}

func (r *changesRepository) CreateLog(ctx context.Context, log *domain.ChangesLog) error {
	query := `
		INSERT INTO price_markup_changes_logs (id, changes_group_id, status, type, number_of_successfully_changed_offers, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		log.ID,
		log.ChangesGroupID,
		string(log.Status),
		string(log.Type),
		log.NumberOfSuccessfullyChangedOffers,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create changes log: %w", err)
	}
	return nil
}

// ListLogs returns one page of logs, newest first, each joined with its group
func (r *changesRepository) ListLogs(ctx context.Context, page, perPage int) ([]*domain.ChangesLogEntry, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}

	query := `
		SELECT l.id, l.changes_group_id, l.status, l.type, l.number_of_successfully_changed_offers, l.created_at,
		       g.id, g.catalog_urls, g.number_of_all_offers, g.created_at,
		       (SELECT COUNT(*) FROM price_markup_changes c WHERE c.changes_group_id = g.id)
		FROM price_markup_changes_logs l
		JOIN price_markup_changes_groups g ON g.id = l.changes_group_id
		ORDER BY l.created_at DESC, l.id ASC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, perPage, (page-1)*perPage)
	if err != nil {
		return nil, fmt.Errorf("failed to list changes logs: %w", err)
	}
	defer rows.Close()

	entries := []*domain.ChangesLogEntry{}
	for rows.Next() {
		entry := &domain.ChangesLogEntry{}
		var (
			status, logType string
			succeeded       sql.NullInt64
			urlsJSON        []byte
		)
		err := rows.Scan(
			&entry.ID,
			&entry.ChangesGroupID,
			&status,
			&logType,
			&succeeded,
			&entry.CreatedAt,
			&entry.ChangesGroup.ID,
			&urlsJSON,
			&entry.ChangesGroup.NumberOfAllOffers,
			&entry.ChangesGroup.CreatedAt,
			&entry.ChangesGroup.NumberOfChanges,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan changes log: %w", err)
		}

		entry.Status = domain.ChangesLogStatus(status)
		entry.Type = domain.ChangesLogType(logType)
		if succeeded.Valid {
			n := int(succeeded.Int64)
			entry.NumberOfSuccessfullyChangedOffers = &n
		}
		if err := json.Unmarshal(urlsJSON, &entry.ChangesGroup.CatalogURLs); err != nil {
			return nil, fmt.Errorf("failed to decode catalog urls: %w", err)
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating changes logs: %w", err)
	}

	return entries, nil
}

func (r *changesRepository) CountLogs(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM price_markup_changes_logs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count changes logs: %w", err)
	}
	return count, nil
}
