package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/openx6100/catd/internal/domain"
)

const schemaVersion = 1

// bandSeed is the factory band plan, installed once on first open.
var bandSeed = []domain.Band{
	{ID: 1, Name: "160m", StartFreq: 1810000, StopFreq: 2000000, Type: 1},
	{ID: 2, Name: "80m", StartFreq: 3500000, StopFreq: 3800000, Type: 1},
	{ID: 3, Name: "40m", StartFreq: 7000000, StopFreq: 7200000, Type: 1},
	{ID: 4, Name: "30m", StartFreq: 10100000, StopFreq: 10150000, Type: 1},
	{ID: 5, Name: "20m", StartFreq: 14000000, StopFreq: 14350000, Type: 1},
	{ID: 6, Name: "17m", StartFreq: 18068000, StopFreq: 18168000, Type: 1},
	{ID: 7, Name: "15m", StartFreq: 21000000, StopFreq: 21450000, Type: 1},
	{ID: 8, Name: "12m", StartFreq: 24890000, StopFreq: 24990000, Type: 1},
	{ID: 9, Name: "10m", StartFreq: 28000000, StopFreq: 29700000, Type: 1},
	{ID: 10, Name: "6m", StartFreq: 50000000, StopFreq: 54000000, Type: 1},
}

func migrate(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version >= schemaVersion {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if version < 1 {
		if err := migrateV1(ctx, tx); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d;`, schemaVersion)); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

func migrateV1(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS params (
			name TEXT PRIMARY KEY,
			val  INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS bands (
			id         INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			start_freq INTEGER NOT NULL,
			stop_freq  INTEGER NOT NULL,
			type       INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS band_params (
			bands_id INTEGER NOT NULL REFERENCES bands(id),
			name     TEXT NOT NULL,
			val      INTEGER NOT NULL,
			UNIQUE (bands_id, name) ON CONFLICT REPLACE
		)`,
		`CREATE TABLE IF NOT EXISTS qso_log (
			ts                        TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			freq                      REAL CHECK (freq > 0),
			band                      TEXT NOT NULL,
			mode                      TEXT CHECK (mode IN ('SSB', 'CW', 'FT8', 'FT4', 'AM', 'FM', 'MFSK')),
			local_callsign            TEXT NOT NULL,
			remote_callsign           TEXT NOT NULL,
			canonized_remote_callsign TEXT NOT NULL,
			rsts                      INTEGER NOT NULL,
			rstr                      INTEGER NOT NULL,
			local_qth                 TEXT,
			remote_qth                TEXT,
			local_grid                TEXT,
			remote_grid               TEXT,
			op_name                   TEXT,
			comment                   TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS qso_log_canonized_remote_callsign_idx
			ON qso_log(canonized_remote_callsign COLLATE NOCASE)`,
		`CREATE INDEX IF NOT EXISTS qso_log_mode_idx ON qso_log(mode)`,
		`CREATE INDEX IF NOT EXISTS qso_log_ts_idx ON qso_log(ts)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS qso_log_ts_remote_callsign_idx
			ON qso_log(ts, remote_callsign)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	for _, b := range bandSeed {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO bands(id, name, start_freq, stop_freq, type)
			VALUES (?, ?, ?, ?, ?)
		`, b.ID, b.Name, b.StartFreq, b.StopFreq, b.Type); err != nil {
			return fmt.Errorf("seed band %s: %w", b.Name, err)
		}
	}
	return nil
}
