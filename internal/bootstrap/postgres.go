// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

// Package bootstrap wires every component of the ledger core into a
// runnable process: connect, migrate, build the component graph, run.
package bootstrap

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/nimbuspay/ledger-core/pkg/mlog"
)

// connectPostgres opens the primary Postgres connection and runs every
// pending migration in migrationsDir. There is no read/write split:
// internal/ledger/store.Store needs a concrete *sql.DB to BeginTx
// serializable transactions on, which a split pool does not expose.
func connectPostgres(dsn, migrationsDir string, logger mlog.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open postgres connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}

	absMigrations, err := filepath.Abs(migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: resolve migrations path: %w", err)
	}

	sourceURL := url.URL{Scheme: "file", Path: filepath.ToSlash(absMigrations)}

	driver, err := postgres.WithInstance(db, &postgres.Config{MultiStatementEnabled: true})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: build migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(sourceURL.String(), "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load migrations: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nil, fmt.Errorf("bootstrap: run migrations: %w", err)
	}

	logger.Infof("bootstrap: connected to postgres and migrations are up to date")

	return db, nil
}
