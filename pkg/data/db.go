// Package data is the event assembly layer: it imports closed pull requests
// from GitHub, classifies them into trust events, and caches them in a local
// sqlite file. Only raw events are stored; trust scores are computed on
// demand and never persisted.
package data

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "modernc.org/sqlite"
)

// DataFileName is the default sqlite file name under the app home dir.
const DataFileName = "trust.db"

var (
	//go:embed sql/*
	ddl embed.FS

	errDBNotInitialized = errors.New("database not initialized")
)

// Init creates the database file and schema if they do not exist yet.
// Safe to call repeatedly.
func Init(dbFilePath string) error {
	if dbFilePath == "" {
		return errors.New("dbFilePath not specified")
	}

	if _, err := os.Stat(dbFilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat database file %s: %w", dbFilePath, err)
	}

	db, err := GetDB(dbFilePath)
	if err != nil {
		return fmt.Errorf("opening database %s: %w", dbFilePath, err)
	}
	defer db.Close()

	slog.Debug("ensuring db schema", "path", dbFilePath)
	b, err := ddl.ReadFile("sql/ddl.sql")
	if err != nil {
		return fmt.Errorf("reading schema file: %w", err)
	}
	if _, err := db.Exec(string(b)); err != nil {
		return fmt.Errorf("creating database schema in %s: %w", dbFilePath, err)
	}

	return nil
}

// GetDB opens a connection to the sqlite file at path.
func GetDB(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	return conn, nil
}

func rollbackTransaction(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		slog.Warn("error rolling back transaction", "error", err)
	}
}
