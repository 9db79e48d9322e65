package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/openx6100/catd/internal/domain"
)

// QSOLogStore persists the contact log.
type QSOLogStore struct {
	db *sql.DB
}

func NewQSOLogStore(db *sql.DB) *QSOLogStore {
	return &QSOLogStore{db: db}
}

// Insert adds one contact. Duplicates (same timestamp and remote
// callsign) are ignored; the return value reports whether a row was
// actually written.
func (s *QSOLogStore) Insert(ctx context.Context, q domain.QSO) (bool, error) {
	if q.LocalCallsign == "" || q.RemoteCallsign == "" {
		return false, fmt.Errorf("qso callsigns are required")
	}
	if q.Band == "" {
		return false, fmt.Errorf("qso band is required")
	}
	if !domain.ValidQSOMode(q.Mode) {
		return false, fmt.Errorf("unsupported qso mode: %q", q.Mode)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO qso_log (
			ts, freq, band, mode, local_callsign, remote_callsign,
			canonized_remote_callsign, rsts, rstr, local_grid, remote_grid, op_name, comment
		) VALUES (datetime(?, 'unixepoch'), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, q.At.Unix(), q.FreqMHz, q.Band, q.Mode, q.LocalCallsign, q.RemoteCallsign,
		domain.CanonizeCallsign(q.RemoteCallsign), q.RSTSent, q.RSTRecv,
		nullableString(q.LocalGrid), nullableString(q.RemoteGrid),
		nullableString(q.OpName), nullableString(q.Comment))
	if err != nil {
		return false, fmt.Errorf("insert qso: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert qso rows affected: %w", err)
	}
	return n > 0, nil
}

// SearchWorked reports whether a station was logged before, and whether
// any of those contacts match the given band and mode.
func (s *QSOLogStore) SearchWorked(ctx context.Context, callsign, mode, band string) (domain.Worked, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT band, mode FROM qso_log WHERE canonized_remote_callsign LIKE ?
	`, domain.CanonizeCallsign(callsign))
	if err != nil {
		return domain.WorkedNo, fmt.Errorf("search worked: %w", err)
	}
	defer rows.Close()

	worked := domain.WorkedNo
	for rows.Next() {
		var rowBand, rowMode string
		if err := rows.Scan(&rowBand, &rowMode); err != nil {
			return domain.WorkedNo, fmt.Errorf("scan worked row: %w", err)
		}
		worked = domain.WorkedYes
		if rowBand == band && rowMode == mode {
			worked = domain.WorkedSameMode
			break
		}
	}
	if err := rows.Err(); err != nil {
		return domain.WorkedNo, fmt.Errorf("iterate worked rows: %w", err)
	}
	return worked, nil
}

func (s *QSOLogStore) ListRecent(ctx context.Context, limit int) ([]domain.QSO, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT rowid, CAST(strftime('%s', ts) AS INTEGER), freq, band, mode,
			local_callsign, remote_callsign, rsts, rstr,
			local_grid, remote_grid, op_name, comment
		FROM qso_log
		ORDER BY ts DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list qsos: %w", err)
	}
	defer rows.Close()

	var out []domain.QSO
	for rows.Next() {
		var (
			q          domain.QSO
			unix       int64
			localGrid  sql.NullString
			remoteGrid sql.NullString
			opName     sql.NullString
			comment    sql.NullString
		)
		if err := rows.Scan(&q.ID, &unix, &q.FreqMHz, &q.Band, &q.Mode,
			&q.LocalCallsign, &q.RemoteCallsign, &q.RSTSent, &q.RSTRecv,
			&localGrid, &remoteGrid, &opName, &comment); err != nil {
			return nil, fmt.Errorf("scan qso: %w", err)
		}
		q.At = time.Unix(unix, 0).UTC()
		q.LocalGrid = localGrid.String
		q.RemoteGrid = remoteGrid.String
		q.OpName = opName.String
		q.Comment = comment.String
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate qsos: %w", err)
	}
	return out, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
