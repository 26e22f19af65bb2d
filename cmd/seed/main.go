// Seed tool: creates the schema and loads a YAML fixture of teams,
// memberships, entities, and grants. Used for local development and
// integration test environments.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"teamdrive/internal/config"
	"teamdrive/internal/domain/models"
	"teamdrive/internal/repository/postgres"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

func main() {
	dropTables := flag.Bool("drop-tables", false, "Drop all tables before seeding (fresh start)")
	schemaOnly := flag.Bool("schema-only", false, "Only set up schema, don't load fixtures")
	fixturePath := flag.String("fixture", "", "YAML fixture file to load")
	flag.Parse()

	_ = godotenv.Load()

	cfg := config.Load()

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" && *dropTables {
		log.Fatalf("BLOCKED: cannot drop tables in production environment")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)

	if *dropTables {
		log.Println("Dropping all tables...")
		if err := dropAllTables(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
	}

	log.Println("Ensuring database schema is up to date...")
	if err := runSchema(ctx, pool, tables, cfg.TablePrefix); err != nil {
		log.Fatalf("Failed to run schema: %v", err)
	}
	log.Println("Schema ready")

	if *schemaOnly {
		return
	}

	if *fixturePath == "" {
		log.Println("No fixture given, done")
		return
	}

	fixture, err := loadFixture(*fixturePath)
	if err != nil {
		log.Fatalf("Failed to load fixture: %v", err)
	}

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	if err := applyFixture(ctx, pool, tables, repoConfig, fixture); err != nil {
		log.Fatalf("Failed to apply fixture: %v", err)
	}

	log.Printf("Seeding complete: %d memberships, %d entities, %d grants",
		countMemberships(fixture), len(fixture.Entities), len(fixture.Grants))
}

// Fixture is the YAML shape the seed tool consumes.
type Fixture struct {
	Teams    []FixtureTeam   `yaml:"teams"`
	Entities []FixtureEntity `yaml:"entities"`
	Grants   []FixtureGrant  `yaml:"grants"`
}

type FixtureTeam struct {
	ID      string          `yaml:"id"`
	Members []FixtureMember `yaml:"members"`
}

type FixtureMember struct {
	UserID string `yaml:"user_id"`
	Level  int    `yaml:"level"` // 0 guest, 1 member, 2 admin
}

type FixtureEntity struct {
	ID         string  `yaml:"id"`
	Title      string  `yaml:"title"`
	ParentID   *string `yaml:"parent_id"`
	TeamID     string  `yaml:"team_id"`
	OwnerID    string  `yaml:"owner_id"`
	IsGroup    bool    `yaml:"is_group"`
	IsPrivate  bool    `yaml:"is_private"`
	Size       int64   `yaml:"size"`
	ContentRef string  `yaml:"content_ref"`
	MimeType   string  `yaml:"mime_type"`
}

type FixtureGrant struct {
	EntityID   string     `yaml:"entity_id"`
	Subject    string     `yaml:"subject"` // user id, "" public, "$TEAM" team
	Read       *bool      `yaml:"read"`
	Write      *bool      `yaml:"write"`
	Comment    *bool      `yaml:"comment"`
	Share      *bool      `yaml:"share"`
	ValidUntil *time.Time `yaml:"valid_until"`
}

func loadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func applyFixture(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames, repoConfig *postgres.RepositoryConfig, f *Fixture) error {
	entityRepo := postgres.NewEntityRepository(repoConfig)
	grantRepo := postgres.NewGrantRepository(repoConfig)

	for _, team := range f.Teams {
		for _, m := range team.Members {
			query := `
				INSERT INTO ` + tables.Memberships + ` (team_id, user_id, access_level)
				VALUES ($1, $2, $3)
				ON CONFLICT (team_id, user_id) DO UPDATE SET access_level = EXCLUDED.access_level
			`
			if _, err := pool.Exec(ctx, query, team.ID, m.UserID, m.Level); err != nil {
				return err
			}
		}
	}

	now := time.Now().UTC()
	// Fixture order must be parents before children.
	for _, fe := range f.Entities {
		entity := &models.Entity{
			ID:         fe.ID,
			Title:      fe.Title,
			ParentID:   fe.ParentID,
			TeamID:     fe.TeamID,
			OwnerID:    fe.OwnerID,
			IsGroup:    fe.IsGroup,
			IsPrivate:  fe.IsPrivate,
			State:      models.StateActive,
			Size:       fe.Size,
			ContentRef: fe.ContentRef,
			MimeType:   fe.MimeType,
			ModifiedBy: fe.OwnerID,
			ModifiedAt: now,
			CreatedAt:  now,
		}
		if err := entityRepo.Create(ctx, entity); err != nil {
			return err
		}
	}

	for _, fg := range f.Grants {
		grant := &models.Grant{
			EntityID: fg.EntityID,
			Subject:  models.ParseSubject(fg.Subject),
			Flags: models.Flags{
				Read:    fg.Read,
				Write:   fg.Write,
				Comment: fg.Comment,
				Share:   fg.Share,
			},
			ValidUntil: fg.ValidUntil,
		}
		if err := grantRepo.Upsert(ctx, grant); err != nil {
			return err
		}
	}

	return nil
}

func countMemberships(f *Fixture) int {
	n := 0
	for _, t := range f.Teams {
		n += len(t.Members)
	}
	return n
}

// runSchema creates tables if they don't exist
func runSchema(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames, tablePrefix string) error {
	createEntities := `
		CREATE TABLE IF NOT EXISTS ` + tables.Entities + ` (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			parent_id TEXT REFERENCES ` + tables.Entities + `(id) ON DELETE CASCADE,
			team_id TEXT NOT NULL DEFAULT '',
			owner_id TEXT NOT NULL,
			is_group BOOLEAN NOT NULL DEFAULT FALSE,
			is_private BOOLEAN NOT NULL DEFAULT FALSE,
			is_active SMALLINT NOT NULL DEFAULT 1,
			size BIGINT NOT NULL DEFAULT 0,
			content_ref TEXT,
			mime_type TEXT,
			modified_by TEXT NOT NULL,
			modified_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := pool.Exec(ctx, createEntities); err != nil {
		return err
	}

	createGrants := `
		CREATE TABLE IF NOT EXISTS ` + tables.Grants + ` (
			entity_id TEXT NOT NULL REFERENCES ` + tables.Entities + `(id) ON DELETE CASCADE,
			subject TEXT NOT NULL,
			read BOOLEAN,
			write BOOLEAN,
			comment BOOLEAN,
			share BOOLEAN,
			valid_until TIMESTAMPTZ,
			UNIQUE (entity_id, subject)
		)
	`
	if _, err := pool.Exec(ctx, createGrants); err != nil {
		return err
	}

	createMemberships := `
		CREATE TABLE IF NOT EXISTS ` + tables.Memberships + ` (
			team_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			access_level SMALLINT NOT NULL DEFAULT 1,
			UNIQUE (team_id, user_id)
		)
	`
	if _, err := pool.Exec(ctx, createMemberships); err != nil {
		return err
	}

	createShortcuts := `
		CREATE TABLE IF NOT EXISTS ` + tables.Shortcuts + ` (
			id TEXT PRIMARY KEY,
			target_id TEXT NOT NULL REFERENCES ` + tables.Entities + `(id) ON DELETE CASCADE,
			owner_id TEXT NOT NULL,
			parent_id TEXT,
			is_active SMALLINT NOT NULL DEFAULT 1,
			is_favourite BOOLEAN NOT NULL DEFAULT FALSE,
			title TEXT NOT NULL
		)
	`
	if _, err := pool.Exec(ctx, createShortcuts); err != nil {
		return err
	}

	createActivity := `
		CREATE TABLE IF NOT EXISTS ` + tables.Activity + ` (
			id TEXT PRIMARY KEY,
			entity_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			action TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := pool.Exec(ctx, createActivity); err != nil {
		return err
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `entities_parent ON ` + tables.Entities + `(parent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `entities_team ON ` + tables.Entities + `(team_id) WHERE parent_id IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `entities_owner_private ON ` + tables.Entities + `(owner_id) WHERE parent_id IS NULL AND is_private`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `grants_entity ON ` + tables.Grants + `(entity_id)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `memberships_user ON ` + tables.Memberships + `(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `shortcuts_target ON ` + tables.Shortcuts + `(target_id)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `activity_entity ON ` + tables.Activity + `(entity_id)`,
	}

	for _, indexSQL := range indexes {
		if _, err := pool.Exec(ctx, indexSQL); err != nil {
			return err
		}
	}

	return nil
}

// dropAllTables drops every table, children first so foreign keys allow it
func dropAllTables(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	drops := []string{
		tables.Activity,
		tables.Shortcuts,
		tables.Grants,
		tables.Memberships,
		tables.Entities,
	}
	for _, table := range drops {
		if _, err := pool.Exec(ctx, `DROP TABLE IF EXISTS `+table+` CASCADE`); err != nil {
			return err
		}
	}
	return nil
}
