package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	_ "github.com/lib/pq" // database/sql driver for goose
	"github.com/pressly/goose/v3"
)

// Migrate applies every pending goose migration found in dir of fsys.
func Migrate(ctx context.Context, url string, fsys fs.FS, dir string) error {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return fmt.Errorf("Postgres - Migrate - sql.Open: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(fsys)

	err = goose.SetDialect("postgres")
	if err != nil {
		return fmt.Errorf("Postgres - Migrate - goose.SetDialect: %w", err)
	}

	err = goose.UpContext(ctx, db, dir)
	if err != nil {
		return fmt.Errorf("Postgres - Migrate - goose.UpContext: %w", err)
	}

	return nil
}

// MigrateDown rolls back the latest applied migration.
func MigrateDown(ctx context.Context, url string, fsys fs.FS, dir string) error {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return fmt.Errorf("Postgres - MigrateDown - sql.Open: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(fsys)

	err = goose.SetDialect("postgres")
	if err != nil {
		return fmt.Errorf("Postgres - MigrateDown - goose.SetDialect: %w", err)
	}

	err = goose.DownContext(ctx, db, dir)
	if err != nil {
		return fmt.Errorf("Postgres - MigrateDown - goose.DownContext: %w", err)
	}

	return nil
}
