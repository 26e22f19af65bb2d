package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"teamdrive/internal/domain/models"
	"teamdrive/internal/domain/repositories"
)

// PostgresTeamRepository implements the TeamRepository interface
type PostgresTeamRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewTeamRepository creates a new team repository
func NewTeamRepository(config *RepositoryConfig) repositories.TeamRepository {
	return &PostgresTeamRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// Membership returns the user's membership in the team, or nil if the
// user is not on the team
func (r *PostgresTeamRepository) Membership(ctx context.Context, teamID, userID string) (*models.Membership, error) {
	query := fmt.Sprintf(`
		SELECT team_id, user_id, access_level FROM %s
		WHERE team_id = $1 AND user_id = $2
	`, r.tables.Memberships)

	exec := GetExecutor(ctx, r.pool)
	var m models.Membership
	err := exec.QueryRow(ctx, query, teamID, userID).Scan(&m.TeamID, &m.UserID, &m.Level)
	if err != nil {
		if isPgNoRowsError(err) {
			return nil, nil // not a member, not an error
		}
		return nil, fmt.Errorf("get membership: %w", err)
	}

	return &m, nil
}

// MembershipsForUser returns every team the user belongs to
func (r *PostgresTeamRepository) MembershipsForUser(ctx context.Context, userID string) ([]models.Membership, error) {
	query := fmt.Sprintf(`
		SELECT team_id, user_id, access_level FROM %s
		WHERE user_id = $1
	`, r.tables.Memberships)

	exec := GetExecutor(ctx, r.pool)
	rows, err := exec.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []models.Membership
	for rows.Next() {
		var m models.Membership
		if err := rows.Scan(&m.TeamID, &m.UserID, &m.Level); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memberships: %w", err)
	}

	return memberships, nil
}
