package database

import (
	"context"
	"fmt"
	"time"
)

var _ SeenStore = (*SeenRepository)(nil)

// SeenRepository is the SQLite-backed SeenStore.
type SeenRepository struct {
	db *DB
}

func NewSeenRepository(db *DB) *SeenRepository {
	return &SeenRepository{db: db}
}

func (r *SeenRepository) Exists(ctx context.Context, id, collection string) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM seen_posts WHERE collection = ? AND post_id = ?)
	`, collection, id).Scan(&exists)
	if err != nil {
		return false, unavailable(fmt.Sprintf("failed to check seen post %s in %s", id, collection), err)
	}

	return exists == 1, nil
}

func (r *SeenRepository) Insert(ctx context.Context, id, collection string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO seen_posts (collection, post_id, seen_at) VALUES (?, ?, ?)
	`, collection, id, time.Now().UTC())
	if err != nil {
		return unavailable(fmt.Sprintf("failed to insert seen post %s into %s", id, collection), err)
	}

	return nil
}

func (r *SeenRepository) Prune(ctx context.Context, collection string, maxSize int) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, unavailable("failed to begin prune transaction", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM seen_posts WHERE collection = ?`, collection).Scan(&count); err != nil {
		return 0, unavailable(fmt.Sprintf("failed to count %s", collection), err)
	}

	if count <= maxSize {
		return 0, nil
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM seen_posts WHERE collection = ?`, collection); err != nil {
		return 0, unavailable(fmt.Sprintf("failed to prune %s", collection), err)
	}

	if err := tx.Commit(); err != nil {
		return 0, unavailable(fmt.Sprintf("failed to commit prune of %s", collection), err)
	}

	return count, nil
}

func (r *SeenRepository) Count(ctx context.Context, collection string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM seen_posts WHERE collection = ?`, collection).Scan(&count)
	if err != nil {
		return 0, unavailable(fmt.Sprintf("failed to count %s", collection), err)
	}
	return count, nil
}

// Close is a no-op: the connection is shared with the delivery log and closed by its owner.
func (r *SeenRepository) Close() error {
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
