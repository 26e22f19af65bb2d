package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"teamdrive/internal/domain"
	"teamdrive/internal/domain/models"
	"teamdrive/internal/domain/repositories"
)

// PostgresShortcutRepository implements the ShortcutRepository interface
type PostgresShortcutRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewShortcutRepository creates a new shortcut repository
func NewShortcutRepository(config *RepositoryConfig) repositories.ShortcutRepository {
	return &PostgresShortcutRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// Create inserts a new shortcut
func (r *PostgresShortcutRepository) Create(ctx context.Context, shortcut *models.Shortcut) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, target_id, owner_id, parent_id, is_active, is_favourite, title)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.tables.Shortcuts)

	exec := GetExecutor(ctx, r.pool)
	_, err := exec.Exec(ctx, query,
		shortcut.ID,
		shortcut.TargetID,
		shortcut.OwnerID,
		shortcut.ParentID,
		shortcut.IsActive,
		shortcut.IsFavourite,
		shortcut.Title,
	)
	if err != nil {
		if isPgDuplicateError(err) {
			return fmt.Errorf("shortcut %s: %w", shortcut.ID, domain.ErrConflict)
		}
		if isPgForeignKeyError(err) {
			return fmt.Errorf("shortcut target %s: %w", shortcut.TargetID, domain.ErrNotFound)
		}
		return fmt.Errorf("create shortcut: %w", err)
	}

	return nil
}

// GetByID retrieves a shortcut by ID
func (r *PostgresShortcutRepository) GetByID(ctx context.Context, id string) (*models.Shortcut, error) {
	query := fmt.Sprintf(`
		SELECT id, target_id, owner_id, parent_id, is_active, is_favourite, title
		FROM %s WHERE id = $1
	`, r.tables.Shortcuts)

	exec := GetExecutor(ctx, r.pool)
	var s models.Shortcut
	err := exec.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.TargetID, &s.OwnerID, &s.ParentID, &s.IsActive, &s.IsFavourite, &s.Title,
	)
	if err != nil {
		if isPgNoRowsError(err) {
			return nil, fmt.Errorf("shortcut %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get shortcut: %w", err)
	}

	return &s, nil
}

// Delete removes a shortcut; the target entity is never touched
func (r *PostgresShortcutRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Shortcuts)

	exec := GetExecutor(ctx, r.pool)
	result, err := exec.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete shortcut: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("shortcut %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// DeleteByTargets drops shortcuts pointing at purged entities
func (r *PostgresShortcutRepository) DeleteByTargets(ctx context.Context, targetIDs []string) error {
	if len(targetIDs) == 0 {
		return nil
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE target_id = ANY($1)`, r.tables.Shortcuts)

	exec := GetExecutor(ctx, r.pool)
	if _, err := exec.Exec(ctx, query, targetIDs); err != nil {
		return fmt.Errorf("delete shortcuts by target: %w", err)
	}

	return nil
}
