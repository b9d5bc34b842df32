package database

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"
	"time"
)

func newMemoryClient(t *testing.T) *SQLClient {
	t.Helper()
	cfg := DefaultSQLConfig()
	cfg.DSN = ":memory:"
	client, err := NewSQLClient(context.Background(), cfg)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestWithTableName(t *testing.T) {
	m := NewMigrator(&SQLClient{}, WithTableName("custom_migrations"))
	if m.tableName != "custom_migrations" {
		t.Errorf("expected tableName=custom_migrations, got %s", m.tableName)
	}
	if NewMigrator(&SQLClient{}).tableName != "_migrations" {
		t.Error("default table name should be _migrations")
	}
}

func TestMigrationOrdering(t *testing.T) {
	m := NewMigrator(&SQLClient{})

	m.AddMigration(5, "five", "up5", "down5")
	m.AddMigration(2, "two", "up2", "down2")
	m.AddMigration(8, "eight", "up8", "down8")
	m.AddMigration(1, "one", "up1", "down1")

	expected := []int{1, 2, 5, 8}
	for i, ver := range expected {
		if m.migrations[i].Version != ver {
			t.Errorf("expected migration at index %d to have version %d, got %d", i, ver, m.migrations[i].Version)
		}
	}
}

func TestLoadFromFS(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/001_create_users.up.sql":   {Data: []byte("CREATE TABLE users (id INTEGER PRIMARY KEY);")},
		"migrations/001_create_users.down.sql": {Data: []byte("DROP TABLE users;")},
		"migrations/002_add_index.up.sql":      {Data: []byte("CREATE INDEX idx_users_id ON users(id);")},
		"migrations/002_add_index.down.sql":    {Data: []byte("DROP INDEX idx_users_id;")},
		"migrations/README.md":                 {Data: []byte("ignored")},
		"migrations/nover_thing.up.sql":        {Data: []byte("ignored")},
	}

	m := NewMigrator(&SQLClient{})
	if err := m.LoadFromFS(fsys, "migrations"); err != nil {
		t.Fatalf("LoadFromFS() error = %v", err)
	}

	if len(m.migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(m.migrations))
	}
	if m.migrations[0].Name != "create_users" || m.migrations[1].Name != "add_index" {
		t.Errorf("unexpected names %q, %q", m.migrations[0].Name, m.migrations[1].Name)
	}
	if m.migrations[0].DownScript != "DROP TABLE users;" {
		t.Errorf("down script not loaded: %q", m.migrations[0].DownScript)
	}

	if err := m.LoadFromFS(fsys, "missing"); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestMigrator_UpDown(t *testing.T) {
	ctx := context.Background()
	client := newMemoryClient(t)

	m := NewMigrator(client)
	m.AddMigration(1, "create_users",
		"CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL)",
		"DROP TABLE users")
	m.AddMigration(2, "create_sessions",
		"CREATE TABLE sessions (id INTEGER PRIMARY KEY)\nGO\nCREATE INDEX idx_sessions_id ON sessions(id)",
		"DROP TABLE sessions")

	applied, err := m.Up(ctx)
	if err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	if applied != 2 {
		t.Errorf("expected 2 applied, got %d", applied)
	}

	version, err := m.Version(ctx)
	if err != nil || version != 2 {
		t.Fatalf("Version() = %d, %v; want 2", version, err)
	}

	statuses, err := m.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	for _, s := range statuses {
		if !s.Applied || s.ExecutedAt == nil {
			t.Errorf("migration %d should be applied with a timestamp", s.Version)
		}
	}

	applied, err = m.Up(ctx)
	if err != nil || applied != 0 {
		t.Errorf("second Up() = %d, %v; want 0, nil", applied, err)
	}

	if err := m.Down(ctx); err != nil {
		t.Fatalf("Down() error = %v", err)
	}
	if version, _ := m.Version(ctx); version != 1 {
		t.Errorf("expected version 1 after Down, got %d", version)
	}
	if _, err := client.Exec(ctx, "INSERT INTO sessions (id) VALUES (1)"); err == nil {
		t.Error("sessions table should be dropped")
	}

	rolledBack, err := m.DownTo(ctx, 0)
	if err != nil || rolledBack != 1 {
		t.Errorf("DownTo(0) = %d, %v; want 1, nil", rolledBack, err)
	}
	if version, _ := m.Version(ctx); version != 0 {
		t.Errorf("expected version 0, got %d", version)
	}
}

func TestMigrator_FailedMigrationRollsBack(t *testing.T) {
	ctx := context.Background()
	client := newMemoryClient(t)

	m := NewMigrator(client)
	m.AddMigration(1, "broken",
		"CREATE TABLE ok_table (id INTEGER)\nGO\nCREATE TABLE broken (",
		"")

	if _, err := m.Up(ctx); err == nil {
		t.Fatal("expected Up() to fail")
	}
	if version, _ := m.Version(ctx); version != 0 {
		t.Errorf("failed migration must not be recorded, version = %d", version)
	}
}

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name     string
		script   string
		expected int
	}{
		{"single statement", "CREATE TABLE users (id INT);", 1},
		{"multiple statements with GO", "CREATE TABLE users (id INT);\nGO\nCREATE TABLE posts (id INT);\nGO", 2},
		{"lowercase go", "CREATE TABLE users (id INT);\ngo\nCREATE TABLE posts (id INT);", 2},
		{"mixed case go", "CREATE TABLE a (id INT);\n  Go  \nCREATE TABLE b (id INT);\ngO", 2},
		{"empty script", "", 0},
		{"only GO", "GO\nGO\nGO", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nonEmpty := 0
			for _, stmt := range splitStatements(tt.script) {
				if strings.TrimSpace(stmt) != "" {
					nonEmpty++
				}
			}
			if nonEmpty != tt.expected {
				t.Errorf("expected %d statements, got %d", tt.expected, nonEmpty)
			}
		})
	}
}

func TestTimestampScan(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		zero    bool
		wantErr bool
	}{
		{"sqlite text", "2026-03-01 09:30:00", false, false},
		{"go time text", "2026-03-01 09:30:00.123456789+09:00", false, false},
		{"rfc3339 bytes", []byte("2026-03-01T09:30:00Z"), false, false},
		{"time value", time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC), false, false},
		{"null", nil, true, false},
		{"garbage", "yesterday", true, true},
		{"wrong type", 42, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			err := ts.Scan(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Scan() error = %v, wantErr %v", err, tt.wantErr)
			}
			if ts.IsZero() != tt.zero {
				t.Errorf("IsZero() = %v, want %v", ts.IsZero(), tt.zero)
			}
		})
	}
}

func TestParseMigrationFile(t *testing.T) {
	tests := []struct {
		file        string
		wantVersion int
		wantName    string
		wantUp      bool
		wantOK      bool
	}{
		{"001_create_users.up.sql", 1, "create_users", true, true},
		{"012_add_index.down.sql", 12, "add_index", false, true},
		{"001_create_users.sql", 0, "", false, false},
		{"abc_create_users.up.sql", 0, "", false, false},
		{"000_zero.up.sql", 0, "", false, false},
		{"001_.up.sql", 0, "", false, false},
		{"001_create_users.up.txt", 0, "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			version, name, up, ok := parseMigrationFile(tt.file)
			if ok != tt.wantOK || version != tt.wantVersion || name != tt.wantName || up != tt.wantUp {
				t.Errorf("parseMigrationFile(%q) = (%d, %q, %v, %v), want (%d, %q, %v, %v)",
					tt.file, version, name, up, ok, tt.wantVersion, tt.wantName, tt.wantUp, tt.wantOK)
			}
		})
	}
}

func TestLoadFromFS_ConflictingNames(t *testing.T) {
	fsys := fstest.MapFS{
		"m/001_create_users.up.sql":    {Data: []byte("CREATE TABLE users (id INTEGER);")},
		"m/001_create_people.down.sql": {Data: []byte("DROP TABLE people;")},
	}
	if err := NewMigrator(&SQLClient{}).LoadFromFS(fsys, "m"); err == nil {
		t.Error("expected error for conflicting names")
	}
}
