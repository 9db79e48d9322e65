package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/openx6100/catd/internal/domain"
)

// Keys used in the band_params table. One row per key per band.
const (
	keyActiveVFO = "vfo"
	keyVFOAFreq  = "vfoa_freq"
	keyVFOAMode  = "vfoa_mode"
	keyVFOBFreq  = "vfob_freq"
	keyVFOBMode  = "vfob_mode"
)

const keyCurrentBand = "band"

// ParamsStore persists the band plan, per-band tuning and the current
// band selection.
type ParamsStore struct {
	db *sql.DB
}

func NewParamsStore(db *sql.DB) *ParamsStore {
	return &ParamsStore{db: db}
}

func (s *ParamsStore) CurrentBandID(ctx context.Context) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT val FROM params WHERE name = ?`, keyCurrentBand).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read current band: %w", err)
	}
	return id, true, nil
}

func (s *ParamsStore) SaveCurrentBandID(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO params(name, val) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET val = excluded.val
	`, keyCurrentBand, id)
	if err != nil {
		return fmt.Errorf("save current band: %w", err)
	}
	return nil
}

func (s *ParamsStore) ListBands(ctx context.Context) ([]domain.Band, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, start_freq, stop_freq, type
		FROM bands
		ORDER BY start_freq
	`)
	if err != nil {
		return nil, fmt.Errorf("list bands: %w", err)
	}
	defer rows.Close()

	var out []domain.Band
	for rows.Next() {
		var b domain.Band
		if err := rows.Scan(&b.ID, &b.Name, &b.StartFreq, &b.StopFreq, &b.Type); err != nil {
			return nil, fmt.Errorf("scan band: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bands: %w", err)
	}
	return out, nil
}

func (s *ParamsStore) FindBand(ctx context.Context, hz uint64) (domain.Band, bool, error) {
	var b domain.Band
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, start_freq, stop_freq, type
		FROM bands
		WHERE start_freq <= ? AND stop_freq >= ?
		ORDER BY start_freq
		LIMIT 1
	`, hz, hz).Scan(&b.ID, &b.Name, &b.StartFreq, &b.StopFreq, &b.Type)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Band{}, false, nil
	}
	if err != nil {
		return domain.Band{}, false, fmt.Errorf("find band for %d: %w", hz, err)
	}
	return b, true, nil
}

// LoadBandParams reads one band's stored tuning, falling back to factory
// defaults for keys that were never saved.
func (s *ParamsStore) LoadBandParams(ctx context.Context, bandID int64) (domain.BandParams, error) {
	p := domain.DefaultBandParams(bandID)

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, val FROM band_params WHERE bands_id = ?
	`, bandID)
	if err != nil {
		return p, fmt.Errorf("load band params: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name string
			val  int64
		)
		if err := rows.Scan(&name, &val); err != nil {
			return p, fmt.Errorf("scan band param: %w", err)
		}
		switch name {
		case keyActiveVFO:
			if val == 1 {
				p.Active = domain.VFOB
			} else {
				p.Active = domain.VFOA
			}
		case keyVFOAFreq:
			p.VFO[domain.VFOA].Frequency = uint64(val)
		case keyVFOAMode:
			p.VFO[domain.VFOA].Mode = domain.Mode(val)
		case keyVFOBFreq:
			p.VFO[domain.VFOB].Frequency = uint64(val)
		case keyVFOBMode:
			p.VFO[domain.VFOB].Mode = domain.Mode(val)
		}
	}
	if err := rows.Err(); err != nil {
		return p, fmt.Errorf("iterate band params: %w", err)
	}
	return p, nil
}

// SaveBandParams upserts one band's tuning. The UNIQUE(bands_id, name)
// constraint replaces existing rows in place.
func (s *ParamsStore) SaveBandParams(ctx context.Context, p domain.BandParams) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin band params save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	active := int64(0)
	if p.Active == domain.VFOB {
		active = 1
	}
	entries := []struct {
		name string
		val  int64
	}{
		{keyActiveVFO, active},
		{keyVFOAFreq, int64(p.VFO[domain.VFOA].Frequency)},
		{keyVFOAMode, int64(p.VFO[domain.VFOA].Mode)},
		{keyVFOBFreq, int64(p.VFO[domain.VFOB].Frequency)},
		{keyVFOBMode, int64(p.VFO[domain.VFOB].Mode)},
	}
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO band_params(bands_id, name, val) VALUES (?, ?, ?)
		`, p.BandID, e.name, e.val); err != nil {
			return fmt.Errorf("save band param %s: %w", e.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit band params save: %w", err)
	}
	return nil
}
