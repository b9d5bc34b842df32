package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Migration represents a single migration.
type Migration struct {
	Version    int
	Name       string
	UpScript   string
	DownScript string
}

// Migrator applies versioned SQL scripts and records them in a tracking
// table.
type Migrator struct {
	db         *SQLClient
	tableName  string
	migrations []Migration
}

// MigratorOption configures the migrator.
type MigratorOption func(*Migrator)

// WithTableName sets the migrations tracking table name.
func WithTableName(name string) MigratorOption {
	return func(m *Migrator) {
		m.tableName = name
	}
}

// NewMigrator creates a new migrator.
func NewMigrator(db *SQLClient, opts ...MigratorOption) *Migrator {
	m := &Migrator{
		db:        db,
		tableName: "_migrations",
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// LoadFromFS loads NNN_name.up.sql and NNN_name.down.sql scripts from dir,
// typically an embed.FS. Files that do not follow the pattern are skipped.
func (m *Migrator) LoadFromFS(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	byVersion := make(map[int]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, name, up, ok := parseMigrationFile(entry.Name())
		if !ok {
			continue
		}

		content, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", entry.Name(), err)
		}

		mig, seen := byVersion[version]
		if !seen {
			mig = &Migration{Version: version, Name: name}
			byVersion[version] = mig
		} else if mig.Name != name {
			return fmt.Errorf("migration %d has conflicting names %q and %q", version, mig.Name, name)
		}
		if up {
			mig.UpScript = string(content)
		} else {
			mig.DownScript = string(content)
		}
	}

	m.migrations = make([]Migration, 0, len(byVersion))
	for _, mig := range byVersion {
		m.migrations = append(m.migrations, *mig)
	}
	sortMigrations(m.migrations)
	return nil
}

// parseMigrationFile splits "001_create_users.up.sql" into its version, name
// and direction.
func parseMigrationFile(file string) (version int, name string, up bool, ok bool) {
	base, found := strings.CutSuffix(file, ".sql")
	if !found {
		return 0, "", false, false
	}
	switch {
	case strings.HasSuffix(base, ".up"):
		base, up = strings.TrimSuffix(base, ".up"), true
	case strings.HasSuffix(base, ".down"):
		base = strings.TrimSuffix(base, ".down")
	default:
		return 0, "", false, false
	}

	num, name, found := strings.Cut(base, "_")
	if !found || name == "" {
		return 0, "", false, false
	}
	version, err := strconv.Atoi(num)
	if err != nil || version <= 0 {
		return 0, "", false, false
	}
	return version, name, up, true
}

func sortMigrations(migrations []Migration) {
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
}

// AddMigration adds a migration programmatically.
func (m *Migrator) AddMigration(version int, name, up, down string) {
	m.migrations = append(m.migrations, Migration{
		Version:    version,
		Name:       name,
		UpScript:   up,
		DownScript: down,
	})
	sortMigrations(m.migrations)
}

// Initialize creates the migrations tracking table.
func (m *Migrator) Initialize(ctx context.Context) error {
	var query string
	switch m.db.Driver() {
	case DriverSQLServer:
		query = fmt.Sprintf(`
		IF NOT EXISTS (SELECT * FROM sysobjects WHERE name='%s' AND xtype='U')
		CREATE TABLE %s (
			version INT PRIMARY KEY,
			name NVARCHAR(255) NOT NULL,
			executed_at DATETIME2 NOT NULL DEFAULT GETUTCDATE()
		)
	`, m.tableName, m.tableName)
	default:
		query = fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			executed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`, m.tableName)
	}

	_, err := m.db.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	return nil
}

// Status returns the migration status.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	if err := m.Initialize(ctx); err != nil {
		return nil, err
	}

	// Get executed migrations
	executed := make(map[int]time.Time)
	query := fmt.Sprintf("SELECT version, executed_at FROM %s", m.tableName)
	rows, err := m.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get migration status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var version int
		var executedAt Timestamp
		if err := rows.Scan(&version, &executedAt); err != nil {
			return nil, err
		}
		executed[version] = executedAt.Time
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Build status list
	statuses := make([]MigrationStatus, len(m.migrations))
	for i, migration := range m.migrations {
		status := MigrationStatus{
			Version: migration.Version,
			Name:    migration.Name,
			Applied: false,
		}
		if t, ok := executed[migration.Version]; ok {
			status.Applied = true
			status.ExecutedAt = &t
		}
		statuses[i] = status
	}

	return statuses, nil
}

// MigrationStatus represents the status of a migration.
type MigrationStatus struct {
	Version    int
	Name       string
	Applied    bool
	ExecutedAt *time.Time
}

// Up runs all pending migrations.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	if err := m.Initialize(ctx); err != nil {
		return 0, err
	}

	statuses, err := m.Status(ctx)
	if err != nil {
		return 0, err
	}

	applied := 0
	for i, status := range statuses {
		if status.Applied {
			continue
		}

		migration := m.migrations[i]
		if migration.UpScript == "" {
			return applied, fmt.Errorf("migration %d has no up script", migration.Version)
		}

		if err := m.runMigration(ctx, migration, true); err != nil {
			return applied, fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		applied++
	}

	return applied, nil
}

// Down rolls back the last migration.
func (m *Migrator) Down(ctx context.Context) error {
	if err := m.Initialize(ctx); err != nil {
		return err
	}

	statuses, err := m.Status(ctx)
	if err != nil {
		return err
	}

	// Find last applied migration
	for i := len(statuses) - 1; i >= 0; i-- {
		if statuses[i].Applied {
			migration := m.migrations[i]
			if migration.DownScript == "" {
				return fmt.Errorf("migration %d has no down script", migration.Version)
			}

			return m.runMigration(ctx, migration, false)
		}
	}

	return nil // No migrations to roll back
}

// DownTo rolls back migrations down to but not including the specified version.
func (m *Migrator) DownTo(ctx context.Context, version int) (int, error) {
	if err := m.Initialize(ctx); err != nil {
		return 0, err
	}

	statuses, err := m.Status(ctx)
	if err != nil {
		return 0, err
	}

	rolledBack := 0
	for i := len(statuses) - 1; i >= 0; i-- {
		if !statuses[i].Applied || statuses[i].Version <= version {
			continue
		}

		migration := m.migrations[i]
		if err := m.runMigration(ctx, migration, false); err != nil {
			return rolledBack, fmt.Errorf("rollback of migration %d failed: %w", migration.Version, err)
		}

		rolledBack++
	}

	return rolledBack, nil
}

func (m *Migrator) runMigration(ctx context.Context, migration Migration, up bool) error {
	script, record, args := migration.DownScript,
		fmt.Sprintf("DELETE FROM %s WHERE version = ?", m.tableName),
		[]any{migration.Version}
	if up {
		script = migration.UpScript
		record = fmt.Sprintf("INSERT INTO %s (version, name) VALUES (?, ?)", m.tableName)
		args = append(args, migration.Name)
	}

	return m.db.WithTransaction(ctx, func(tx *Transaction) error {
		for _, stmt := range splitStatements(script) {
			if stmt = strings.TrimSpace(stmt); stmt == "" {
				continue
			}
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to execute statement: %w", err)
			}
		}

		if _, err := tx.Exec(ctx, m.db.Rebind(record), args...); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
		return nil
	})
}

// splitStatements splits SQL script by GO statements.
func splitStatements(script string) []string {
	lines := strings.Split(script, "\n")
	var statements []string
	var current strings.Builder

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.EqualFold(trimmed, "GO") {
			if current.Len() > 0 {
				statements = append(statements, current.String())
				current.Reset()
			}
		} else {
			current.WriteString(line)
			current.WriteString("\n")
		}
	}

	if current.Len() > 0 {
		statements = append(statements, current.String())
	}

	return statements
}

// Version returns the current migration version.
func (m *Migrator) Version(ctx context.Context) (int, error) {
	if err := m.Initialize(ctx); err != nil {
		return 0, err
	}

	query := fmt.Sprintf("SELECT MAX(version) FROM %s", m.tableName)
	row := m.db.QueryRow(ctx, query)

	var version sql.NullInt64
	if err := row.Scan(&version); err != nil {
		return 0, err
	}

	if !version.Valid {
		return 0, nil
	}

	return int(version.Int64), nil
}
