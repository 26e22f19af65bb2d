package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"teamdrive/internal/domain"
	"teamdrive/internal/domain/models"
	"teamdrive/internal/domain/repositories"
)

const entityColumns = `id, title, parent_id, team_id, owner_id, is_group, is_private, is_active, size, content_ref, mime_type, modified_by, modified_at, created_at`

// PostgresEntityRepository implements the EntityRepository interface
type PostgresEntityRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewEntityRepository creates a new entity repository
func NewEntityRepository(config *RepositoryConfig) repositories.EntityRepository {
	return &PostgresEntityRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

func scanEntity(row pgx.Row) (*models.Entity, error) {
	var e models.Entity
	var contentRef, mimeType *string
	err := row.Scan(
		&e.ID,
		&e.Title,
		&e.ParentID,
		&e.TeamID,
		&e.OwnerID,
		&e.IsGroup,
		&e.IsPrivate,
		&e.State,
		&e.Size,
		&contentRef,
		&mimeType,
		&e.ModifiedBy,
		&e.ModifiedAt,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if contentRef != nil {
		e.ContentRef = *contentRef
	}
	if mimeType != nil {
		e.MimeType = *mimeType
	}
	return &e, nil
}

// Create inserts a new entity row
func (r *PostgresEntityRepository) Create(ctx context.Context, entity *models.Entity) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, r.tables.Entities, entityColumns)

	exec := GetExecutor(ctx, r.pool)
	_, err := exec.Exec(ctx, query,
		entity.ID,
		entity.Title,
		entity.ParentID,
		entity.TeamID,
		entity.OwnerID,
		entity.IsGroup,
		entity.IsPrivate,
		entity.State,
		entity.Size,
		nullable(entity.ContentRef),
		nullable(entity.MimeType),
		entity.ModifiedBy,
		entity.ModifiedAt,
		entity.CreatedAt,
	)
	if err != nil {
		if isPgDuplicateError(err) {
			return fmt.Errorf("entity %s: %w", entity.ID, domain.ErrConflict)
		}
		return fmt.Errorf("create entity: %w", err)
	}

	return nil
}

// GetByID retrieves an entity by ID. Purged rows are gone; trashed rows
// are still visible to callers that gate on state themselves.
func (r *PostgresEntityRepository) GetByID(ctx context.Context, id string) (*models.Entity, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE id = $1
	`, entityColumns, r.tables.Entities)

	exec := GetExecutor(ctx, r.pool)
	entity, err := scanEntity(exec.QueryRow(ctx, query, id))
	if err != nil {
		if isPgNoRowsError(err) {
			return nil, fmt.Errorf("entity %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get entity: %w", err)
	}

	return entity, nil
}

// Update persists all mutable fields, guarded by the caller's last-known
// modified_at. A stale timestamp means another writer advanced the row;
// surfaced as ErrConflict for the optimistic retry loop.
func (r *PostgresEntityRepository) Update(ctx context.Context, entity *models.Entity, expectedModifiedAt time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET title = $1, parent_id = $2, team_id = $3, is_private = $4, is_active = $5,
		    size = $6, content_ref = $7, mime_type = $8, modified_by = $9, modified_at = $10
		WHERE id = $11 AND modified_at = $12
	`, r.tables.Entities)

	exec := GetExecutor(ctx, r.pool)
	result, err := exec.Exec(ctx, query,
		entity.Title,
		entity.ParentID,
		entity.TeamID,
		entity.IsPrivate,
		entity.State,
		entity.Size,
		nullable(entity.ContentRef),
		nullable(entity.MimeType),
		entity.ModifiedBy,
		entity.ModifiedAt,
		entity.ID,
		expectedModifiedAt,
	)
	if err != nil {
		return fmt.Errorf("update entity: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Row gone or timestamp advanced; disambiguate for the caller
		if _, getErr := r.GetByID(ctx, entity.ID); getErr != nil {
			return getErr
		}
		return fmt.Errorf("entity %s modified concurrently: %w", entity.ID, domain.ErrConflict)
	}

	return nil
}

// UpdateFields is the unguarded last-writer-wins fallback used only after
// optimistic retries are exhausted.
func (r *PostgresEntityRepository) UpdateFields(ctx context.Context, entity *models.Entity) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET title = $1, parent_id = $2, team_id = $3, is_private = $4, is_active = $5,
		    size = $6, content_ref = $7, mime_type = $8, modified_by = $9, modified_at = $10
		WHERE id = $11
	`, r.tables.Entities)

	exec := GetExecutor(ctx, r.pool)
	result, err := exec.Exec(ctx, query,
		entity.Title,
		entity.ParentID,
		entity.TeamID,
		entity.IsPrivate,
		entity.State,
		entity.Size,
		nullable(entity.ContentRef),
		nullable(entity.MimeType),
		entity.ModifiedBy,
		entity.ModifiedAt,
		entity.ID,
	)
	if err != nil {
		return fmt.Errorf("update entity fields: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("entity %s: %w", entity.ID, domain.ErrNotFound)
	}

	return nil
}

// ListChildren lists direct active children of a folder
func (r *PostgresEntityRepository) ListChildren(ctx context.Context, parentID string) ([]models.Entity, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE parent_id = $1 AND is_active = 1
		ORDER BY title ASC
	`, entityColumns, r.tables.Entities)

	exec := GetExecutor(ctx, r.pool)
	rows, err := exec.Query(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	var entities []models.Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		entities = append(entities, *entity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}

	return entities, nil
}

// DescendantIDs expands a subtree via recursive CTE, bounded by maxDepth
// levels below the root. The depth column guards against corrupted
// parent links ever looping the query.
func (r *PostgresEntityRepository) DescendantIDs(ctx context.Context, rootID string, includeSelf, includeTrashed bool, maxDepth int) ([]string, error) {
	stateFilter := "c.is_active = 1"
	if includeTrashed {
		stateFilter = "c.is_active >= 0"
	}

	query := fmt.Sprintf(`
		WITH RECURSIVE subtree AS (
			SELECT id, 0 AS depth
			FROM %s
			WHERE id = $1
			UNION ALL
			SELECT c.id, s.depth + 1
			FROM %s c
			JOIN subtree s ON c.parent_id = s.id
			WHERE s.depth < $2 AND %s
		)
		SELECT id, depth FROM subtree
	`, r.tables.Entities, r.tables.Entities, stateFilter)

	exec := GetExecutor(ctx, r.pool)
	rows, err := exec.Query(ctx, query, rootID, maxDepth)
	if err != nil {
		return nil, fmt.Errorf("expand descendants: %w", err)
	}
	defer rows.Close()

	var ids []string
	maxSeen := 0
	for rows.Next() {
		var id string
		var depth int
		if err := rows.Scan(&id, &depth); err != nil {
			return nil, fmt.Errorf("scan descendant: %w", err)
		}
		if depth > maxSeen {
			maxSeen = depth
		}
		if !includeSelf && id == rootID {
			continue
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate descendants: %w", err)
	}

	// Rows truncated exactly at the bound mean the subtree may continue
	// below it; refuse rather than silently operate on a partial set.
	if maxSeen >= maxDepth {
		return nil, fmt.Errorf("%w: subtree of %s exceeds depth %d", domain.ErrValidation, rootID, maxDepth)
	}

	return ids, nil
}

// StatesByIDs reports the current lifecycle state of each id that still exists
func (r *PostgresEntityRepository) StatesByIDs(ctx context.Context, ids []string) (map[string]models.EntityState, error) {
	if len(ids) == 0 {
		return map[string]models.EntityState{}, nil
	}

	query := fmt.Sprintf(`
		SELECT id, is_active FROM %s WHERE id = ANY($1)
	`, r.tables.Entities)

	exec := GetExecutor(ctx, r.pool)
	rows, err := exec.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("get entity states: %w", err)
	}
	defer rows.Close()

	states := make(map[string]models.EntityState, len(ids))
	for rows.Next() {
		var id string
		var state models.EntityState
		if err := rows.Scan(&id, &state); err != nil {
			return nil, fmt.Errorf("scan entity state: %w", err)
		}
		states[id] = state
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entity states: %w", err)
	}

	return states, nil
}

// ContentRefsByIDs returns the non-empty content locators of the given ids
func (r *PostgresEntityRepository) ContentRefsByIDs(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	query := fmt.Sprintf(`
		SELECT id, content_ref FROM %s
		WHERE id = ANY($1) AND content_ref IS NOT NULL AND content_ref <> ''
	`, r.tables.Entities)

	exec := GetExecutor(ctx, r.pool)
	rows, err := exec.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("get content refs: %w", err)
	}
	defer rows.Close()

	refs := make(map[string]string)
	for rows.Next() {
		var id, ref string
		if err := rows.Scan(&id, &ref); err != nil {
			return nil, fmt.Errorf("scan content ref: %w", err)
		}
		refs[id] = ref
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate content refs: %w", err)
	}

	return refs, nil
}

// SetTeamByIDs restamps the team on every id after a boundary-crossing move
func (r *PostgresEntityRepository) SetTeamByIDs(ctx context.Context, ids []string, teamID string) error {
	if len(ids) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		UPDATE %s SET team_id = $1 WHERE id = ANY($2)
	`, r.tables.Entities)

	exec := GetExecutor(ctx, r.pool)
	if _, err := exec.Exec(ctx, query, teamID, ids); err != nil {
		return fmt.Errorf("restamp team: %w", err)
	}

	return nil
}

// DeleteByIDs removes rows that are still trashed; a concurrently
// restored row fails the is_active predicate and is left alone. The
// returned ids are the ones actually deleted.
func (r *PostgresEntityRepository) DeleteByIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		DELETE FROM %s WHERE id = ANY($1) AND is_active = 0
		RETURNING id
	`, r.tables.Entities)

	exec := GetExecutor(ctx, r.pool)
	rows, err := exec.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("delete entities: %w", err)
	}
	defer rows.Close()

	var deleted []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan deleted id: %w", err)
		}
		deleted = append(deleted, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deleted ids: %w", err)
	}

	return deleted, nil
}

// DeleteSubtreeByIDs removes rows unconditionally. Descendants of a
// purged root are removed regardless of their own lifecycle state.
func (r *PostgresEntityRepository) DeleteSubtreeByIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		DELETE FROM %s WHERE id = ANY($1)
		RETURNING id
	`, r.tables.Entities)

	exec := GetExecutor(ctx, r.pool)
	rows, err := exec.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("delete subtree entities: %w", err)
	}
	defer rows.Close()

	var deleted []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan deleted id: %w", err)
		}
		deleted = append(deleted, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deleted ids: %w", err)
	}

	return deleted, nil
}

// AdjustSize adds delta to a folder's size rollup
func (r *PostgresEntityRepository) AdjustSize(ctx context.Context, id string, delta int64) error {
	query := fmt.Sprintf(`
		UPDATE %s SET size = size + $1 WHERE id = $2
	`, r.tables.Entities)

	exec := GetExecutor(ctx, r.pool)
	result, err := exec.Exec(ctx, query, delta, id)
	if err != nil {
		return fmt.Errorf("adjust size: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("entity %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// TeamRoot returns the root folder of a team
func (r *PostgresEntityRepository) TeamRoot(ctx context.Context, teamID string) (*models.Entity, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE team_id = $1 AND parent_id IS NULL AND is_private = false
	`, entityColumns, r.tables.Entities)

	exec := GetExecutor(ctx, r.pool)
	entity, err := scanEntity(exec.QueryRow(ctx, query, teamID))
	if err != nil {
		if isPgNoRowsError(err) {
			return nil, fmt.Errorf("team root for %s: %w", teamID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get team root: %w", err)
	}

	return entity, nil
}

// PersonalRoot returns a user's personal root folder
func (r *PostgresEntityRepository) PersonalRoot(ctx context.Context, userID string) (*models.Entity, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE owner_id = $1 AND parent_id IS NULL AND is_private = true
	`, entityColumns, r.tables.Entities)

	exec := GetExecutor(ctx, r.pool)
	entity, err := scanEntity(exec.QueryRow(ctx, query, userID))
	if err != nil {
		if isPgNoRowsError(err) {
			return nil, fmt.Errorf("personal root for %s: %w", userID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get personal root: %w", err)
	}

	return entity, nil
}

// nullable maps empty strings to NULL for optional text columns
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
