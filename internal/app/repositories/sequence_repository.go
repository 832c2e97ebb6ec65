package repositories

import (
	"context"
	"fmt"

	"github.com/sga/schoolhub/internal/db"
)

// ISequenceRepository serializes code generation per prefix
type ISequenceRepository interface {
	LockPrefix(ctx context.Context, prefix string) error
}

// SequenceRepository takes transaction-scoped advisory locks keyed by a code prefix
type SequenceRepository struct {
	db *db.PostgresDB
}

// NewSequenceRepository creates a new SequenceRepository
func NewSequenceRepository(pg *db.PostgresDB) *SequenceRepository {
	return &SequenceRepository{db: pg}
}

// LockPrefix blocks until no other transaction holds the lock for prefix.
// It must run inside WithTransaction: the lock is released at commit or rollback.
func (r *SequenceRepository) LockPrefix(ctx context.Context, prefix string) error {
	if _, ok := db.TxFromContext(ctx); !ok {
		return fmt.Errorf("sequence lock for %q requires a transaction", prefix)
	}
	if _, err := r.db.Conn(ctx).Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, prefix); err != nil {
		return fmt.Errorf("error locking sequence %q: %w", prefix, err)
	}
	return nil
}
