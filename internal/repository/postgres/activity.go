package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"teamdrive/internal/domain/repositories"
)

// PostgresActivityRepository implements the ActivityRepository interface
type PostgresActivityRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(config *RepositoryConfig) repositories.ActivityRepository {
	return &PostgresActivityRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// Insert appends one activity row
func (r *PostgresActivityRepository) Insert(ctx context.Context, entityID, userID, action string) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, entity_id, user_id, action, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, r.tables.Activity)

	exec := GetExecutor(ctx, r.pool)
	if _, err := exec.Exec(ctx, query, uuid.NewString(), entityID, userID, action, time.Now()); err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}

	return nil
}

// DeleteForEntities drops the log rows of purged entities
func (r *PostgresActivityRepository) DeleteForEntities(ctx context.Context, entityIDs []string) error {
	if len(entityIDs) == 0 {
		return nil
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE entity_id = ANY($1)`, r.tables.Activity)

	exec := GetExecutor(ctx, r.pool)
	if _, err := exec.Exec(ctx, query, entityIDs); err != nil {
		return fmt.Errorf("delete activity for entities: %w", err)
	}

	return nil
}
