package account

import (
	"context"
	"embed"
	"fmt"

	"github.com/seoulsafe/sinkhole-api/database"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrate applies the users schema for the client's driver and returns the
// number of migrations run.
func Migrate(ctx context.Context, db *database.SQLClient) (int, error) {
	migrator := database.NewMigrator(db)
	if err := migrator.LoadFromFS(migrationsFS, "migrations/"+string(db.Driver())); err != nil {
		return 0, fmt.Errorf("load account migrations: %w", err)
	}
	return migrator.Up(ctx)
}
