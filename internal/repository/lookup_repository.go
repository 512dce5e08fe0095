package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/issueimport/internal/domain"
)

type lookupRepository struct {
	pool *pgxpool.Pool
}

// NewLookupRepository wires a lookup repository backed by pgxpool.
func NewLookupRepository(pool *pgxpool.Pool) LookupRepository {
	return &lookupRepository{pool: pool}
}

func (r *lookupRepository) TrackerByName(ctx context.Context, name string) (domain.Tracker, error) {
	var tracker domain.Tracker
	err := r.pool.QueryRow(ctx,
		`SELECT id, name FROM trackers WHERE name = $1`, name).
		Scan(&tracker.ID, &tracker.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Tracker{}, ErrNotFound
		}
		return domain.Tracker{}, fmt.Errorf("failed to get tracker: %w", err)
	}
	return tracker, nil
}

func (r *lookupRepository) StatusByName(ctx context.Context, name string) (domain.Status, error) {
	return r.scanStatus(r.pool.QueryRow(ctx,
		`SELECT id, name, is_closed FROM statuses WHERE name = $1`, name))
}

func (r *lookupRepository) StatusByID(ctx context.Context, id int64) (domain.Status, error) {
	return r.scanStatus(r.pool.QueryRow(ctx,
		`SELECT id, name, is_closed FROM statuses WHERE id = $1`, id))
}

func (r *lookupRepository) scanStatus(row pgx.Row) (domain.Status, error) {
	var status domain.Status
	err := row.Scan(&status.ID, &status.Name, &status.Closed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Status{}, ErrNotFound
		}
		return domain.Status{}, fmt.Errorf("failed to get status: %w", err)
	}
	return status, nil
}

func (r *lookupRepository) PriorityByName(ctx context.Context, name string) (domain.Priority, error) {
	var priority domain.Priority
	err := r.pool.QueryRow(ctx,
		`SELECT id, name FROM priorities WHERE name = $1`, name).
		Scan(&priority.ID, &priority.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Priority{}, ErrNotFound
		}
		return domain.Priority{}, fmt.Errorf("failed to get priority: %w", err)
	}
	return priority, nil
}

func (r *lookupRepository) ListCustomFields(ctx context.Context, projectID int64) ([]domain.CustomField, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT cf.id, cf.name, cf.format, cf.multiple
		 FROM custom_fields cf
		 WHERE cf.project_id IS NULL OR cf.project_id = $1
		 ORDER BY cf.id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list custom fields: %w", err)
	}
	defer rows.Close()

	fields := []domain.CustomField{}
	for rows.Next() {
		var field domain.CustomField
		if scanErr := rows.Scan(&field.ID, &field.Name, &field.Format, &field.Multiple); scanErr != nil {
			return nil, fmt.Errorf("failed to scan custom field: %w", scanErr)
		}
		fields = append(fields, field)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate custom fields: %w", rowsErr)
	}
	return fields, nil
}
