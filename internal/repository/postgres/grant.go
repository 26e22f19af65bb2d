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

const grantColumns = `entity_id, subject, read, write, comment, share, valid_until`

// PostgresGrantRepository implements the GrantRepository interface.
// Flag columns are nullable: NULL means the grant does not speak to that
// flag, which the resolver's field-level fold depends on.
type PostgresGrantRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewGrantRepository creates a new grant repository
func NewGrantRepository(config *RepositoryConfig) repositories.GrantRepository {
	return &PostgresGrantRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

func scanGrant(row pgx.Row) (*models.Grant, error) {
	var g models.Grant
	var subject string
	err := row.Scan(
		&g.EntityID,
		&subject,
		&g.Flags.Read,
		&g.Flags.Write,
		&g.Flags.Comment,
		&g.Flags.Share,
		&g.ValidUntil,
	)
	if err != nil {
		return nil, err
	}
	g.Subject = models.ParseSubject(subject)
	return &g, nil
}

// Get retrieves the grant for (entity, subject), or ErrNotFound
func (r *PostgresGrantRepository) Get(ctx context.Context, entityID string, subject models.Subject) (*models.Grant, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE entity_id = $1 AND subject = $2
	`, grantColumns, r.tables.Grants)

	exec := GetExecutor(ctx, r.pool)
	grant, err := scanGrant(exec.QueryRow(ctx, query, entityID, subject.Encode()))
	if err != nil {
		if isPgNoRowsError(err) {
			return nil, fmt.Errorf("grant on %s: %w", entityID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get grant: %w", err)
	}

	return grant, nil
}

// Upsert writes the grant row for (entity, subject), replacing flags and
// expiry if it already exists. The unique constraint resolves the
// duplicate-key upsert race on the database side.
func (r *PostgresGrantRepository) Upsert(ctx context.Context, grant *models.Grant) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (entity_id, subject)
		DO UPDATE SET read = $3, write = $4, comment = $5, share = $6, valid_until = $7
	`, r.tables.Grants, grantColumns)

	exec := GetExecutor(ctx, r.pool)
	_, err := exec.Exec(ctx, query,
		grant.EntityID,
		grant.Subject.Encode(),
		grant.Flags.Read,
		grant.Flags.Write,
		grant.Flags.Comment,
		grant.Flags.Share,
		grant.ValidUntil,
	)
	if err != nil {
		return fmt.Errorf("upsert grant: %w", err)
	}

	return nil
}

// Delete removes the grant row for (entity, subject)
func (r *PostgresGrantRepository) Delete(ctx context.Context, entityID string, subject models.Subject) error {
	query := fmt.Sprintf(`
		DELETE FROM %s WHERE entity_id = $1 AND subject = $2
	`, r.tables.Grants)

	exec := GetExecutor(ctx, r.pool)
	if _, err := exec.Exec(ctx, query, entityID, subject.Encode()); err != nil {
		return fmt.Errorf("delete grant: %w", err)
	}

	return nil
}

// ForEntities loads all grants on the given entities, keyed by entity id
func (r *PostgresGrantRepository) ForEntities(ctx context.Context, entityIDs []string) (map[string][]models.Grant, error) {
	if len(entityIDs) == 0 {
		return map[string][]models.Grant{}, nil
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE entity_id = ANY($1)
	`, grantColumns, r.tables.Grants)

	exec := GetExecutor(ctx, r.pool)
	rows, err := exec.Query(ctx, query, entityIDs)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	grants := make(map[string][]models.Grant)
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		grants[grant.EntityID] = append(grants[grant.EntityID], *grant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grants: %w", err)
	}

	return grants, nil
}

// EntitiesWithGrant reports which of the given entities already hold a
// grant row for the subject
func (r *PostgresGrantRepository) EntitiesWithGrant(ctx context.Context, entityIDs []string, subject models.Subject) ([]string, error) {
	if len(entityIDs) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT entity_id FROM %s
		WHERE entity_id = ANY($1) AND subject = $2
	`, r.tables.Grants)

	exec := GetExecutor(ctx, r.pool)
	rows, err := exec.Query(ctx, query, entityIDs, subject.Encode())
	if err != nil {
		return nil, fmt.Errorf("list granted entities: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan granted entity: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate granted entities: %w", err)
	}

	return ids, nil
}

// UpdateForEntities bulk-overwrites the subject's flags on existing rows
func (r *PostgresGrantRepository) UpdateForEntities(ctx context.Context, entityIDs []string, subject models.Subject, flags models.Flags, validUntil *time.Time) error {
	if len(entityIDs) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET read = $1, write = $2, comment = $3, share = $4, valid_until = $5
		WHERE entity_id = ANY($6) AND subject = $7
	`, r.tables.Grants)

	exec := GetExecutor(ctx, r.pool)
	_, err := exec.Exec(ctx, query,
		flags.Read, flags.Write, flags.Comment, flags.Share,
		validUntil, entityIDs, subject.Encode(),
	)
	if err != nil {
		return fmt.Errorf("bulk update grants: %w", err)
	}

	return nil
}

// InsertForEntities bulk-creates rows for entities without one
func (r *PostgresGrantRepository) InsertForEntities(ctx context.Context, entityIDs []string, subject models.Subject, flags models.Flags, validUntil *time.Time) error {
	if len(entityIDs) == 0 {
		return nil
	}

	// A row racing in between the split and this insert is absorbed by
	// the conflict clause instead of failing the whole chunk.
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		SELECT unnest($1::text[]), $2, $3, $4, $5, $6, $7
		ON CONFLICT (entity_id, subject)
		DO UPDATE SET read = $3, write = $4, comment = $5, share = $6, valid_until = $7
	`, r.tables.Grants, grantColumns)

	exec := GetExecutor(ctx, r.pool)
	_, err := exec.Exec(ctx, query,
		entityIDs, subject.Encode(),
		flags.Read, flags.Write, flags.Comment, flags.Share,
		validUntil,
	)
	if err != nil {
		return fmt.Errorf("bulk insert grants: %w", err)
	}

	return nil
}

// DeleteForEntities drops every grant row on the given entities
func (r *PostgresGrantRepository) DeleteForEntities(ctx context.Context, entityIDs []string) error {
	if len(entityIDs) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		DELETE FROM %s WHERE entity_id = ANY($1)
	`, r.tables.Grants)

	exec := GetExecutor(ctx, r.pool)
	if _, err := exec.Exec(ctx, query, entityIDs); err != nil {
		return fmt.Errorf("bulk delete grants: %w", err)
	}

	return nil
}
