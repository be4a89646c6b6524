package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"
)

// ProcessedRepo implements storage.ProcessedRepository using PostgreSQL.
// The BIGSERIAL seq column carries insertion order.
type ProcessedRepo struct {
	db *DB
}

// NewProcessedRepo creates a new PostgreSQL processed hash repository.
func NewProcessedRepo(db *DB) *ProcessedRepo {
	return &ProcessedRepo{db: db}
}

// Load returns all hashes, oldest first.
func (r *ProcessedRepo) Load(ctx context.Context) ([]string, error) {
	var hashes []string
	if err := r.db.SelectContext(ctx, &hashes, `SELECT hash FROM processed_hashes ORDER BY seq`); err != nil {
		return nil, fmt.Errorf("failed to load processed hashes: %w", err)
	}
	return hashes, nil
}

// Append inserts hashes in slice order, skipping known ones.
func (r *ProcessedRepo) Append(ctx context.Context, hashes []string) error {
	if len(hashes) == 0 {
		return nil
	}
	query := `
		INSERT INTO processed_hashes (hash)
		SELECT h FROM unnest($1::text[]) WITH ORDINALITY AS t(h, ord)
		ORDER BY ord
		ON CONFLICT (hash) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, pq.Array(hashes)); err != nil {
		return fmt.Errorf("failed to append processed hashes: %w", err)
	}
	return nil
}

// DeleteOldest removes the n lowest-seq hashes.
func (r *ProcessedRepo) DeleteOldest(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	query := `
		DELETE FROM processed_hashes
		WHERE seq IN (SELECT seq FROM processed_hashes ORDER BY seq LIMIT $1)
	`
	if _, err := r.db.ExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("failed to evict processed hashes: %w", err)
	}
	return nil
}
