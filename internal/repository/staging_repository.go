package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/issueimport/internal/domain"
)

type stagingRepository struct {
	pool *pgxpool.Pool
}

// NewStagingRepository wires a staging repository backed by pgxpool.
func NewStagingRepository(pool *pgxpool.Pool) StagingRepository {
	return &stagingRepository{pool: pool}
}

func (r *stagingRepository) Replace(ctx context.Context, iip domain.ImportInProgress) (domain.ImportInProgress, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.ImportInProgress{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`DELETE FROM import_in_progress WHERE user_id = $1`, iip.UserID); err != nil {
		return domain.ImportInProgress{}, fmt.Errorf("failed to clear prior staging record: %w", err)
	}

	if iip.ID == uuid.Nil {
		iip.ID = uuid.New()
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO import_in_progress (id, user_id, file_name, encoding, delimiter, quote_char, data)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		iip.ID, iip.UserID, iip.FileName, iip.Encoding, string(iip.Delimiter), string(iip.Quote), iip.Data).
		Scan(&iip.CreatedAt)
	if err != nil {
		return domain.ImportInProgress{}, fmt.Errorf("failed to create staging record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.ImportInProgress{}, fmt.Errorf("failed to commit staging record: %w", err)
	}
	return iip, nil
}

func (r *stagingRepository) FindByUser(ctx context.Context, userID int64) (domain.ImportInProgress, error) {
	var (
		iip       domain.ImportInProgress
		delimiter string
		quote     string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, file_name, encoding, delimiter, quote_char, data, created_at
		 FROM import_in_progress
		 WHERE user_id = $1`, userID).
		Scan(&iip.ID, &iip.UserID, &iip.FileName, &iip.Encoding, &delimiter, &quote, &iip.Data, &iip.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ImportInProgress{}, ErrNotFound
		}
		return domain.ImportInProgress{}, fmt.Errorf("failed to find staging record: %w", err)
	}

	if delimiter != "" {
		iip.Delimiter = []rune(delimiter)[0]
	}
	if quote != "" {
		iip.Quote = []rune(quote)[0]
	}
	return iip, nil
}

func (r *stagingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM import_in_progress WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete staging record: %w", err)
	}
	return nil
}

func (r *stagingRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM import_in_progress WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge staging records: %w", err)
	}
	return tag.RowsAffected(), nil
}
