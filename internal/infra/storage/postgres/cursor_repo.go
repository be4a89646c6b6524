package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/withdrawal-watcher/internal/core/domain"
	"github.com/vietddude/withdrawal-watcher/internal/infra/storage"
)

// CursorRepo implements storage.CursorRepository using PostgreSQL.
type CursorRepo struct {
	db *DB
}

// NewCursorRepo creates a new PostgreSQL cursor repository.
func NewCursorRepo(db *DB) *CursorRepo {
	return &CursorRepo{db: db}
}

type cursorRow struct {
	ChainID     string    `db:"chain_id"`
	BlockNumber int64     `db:"block_number"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (c *cursorRow) toDomain() *domain.Cursor {
	return &domain.Cursor{
		ChainID:     c.ChainID,
		BlockNumber: uint64(c.BlockNumber),
		UpdatedAt:   c.UpdatedAt,
	}
}

// Save upserts a cursor.
func (r *CursorRepo) Save(ctx context.Context, cursor *domain.Cursor) error {
	query := `
		INSERT INTO scan_cursors (chain_id, block_number, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (chain_id) DO UPDATE SET
			block_number = EXCLUDED.block_number,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, cursor.ChainID, int64(cursor.BlockNumber)); err != nil {
		return fmt.Errorf("failed to save cursor: %w", err)
	}
	return nil
}

// Get retrieves a cursor by chain ID.
func (r *CursorRepo) Get(ctx context.Context, chainID string) (*domain.Cursor, error) {
	query := `SELECT chain_id, block_number, updated_at FROM scan_cursors WHERE chain_id = $1`

	var row cursorRow
	err := r.db.GetContext(ctx, &row, query, chainID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrCursorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cursor: %w", err)
	}
	return row.toDomain(), nil
}

// List returns every cursor ordered by chain.
func (r *CursorRepo) List(ctx context.Context) ([]*domain.Cursor, error) {
	query := `SELECT chain_id, block_number, updated_at FROM scan_cursors ORDER BY chain_id`

	var rows []cursorRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list cursors: %w", err)
	}

	cursors := make([]*domain.Cursor, 0, len(rows))
	for i := range rows {
		cursors = append(cursors, rows[i].toDomain())
	}
	return cursors, nil
}
