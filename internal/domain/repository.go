package domain

import "context"

// ParamsRepository is the persistent radio-state store: global params,
// the band plan, and per-band VFO params.
type ParamsRepository interface {
	CurrentBandID(ctx context.Context) (int64, bool, error)
	SaveCurrentBandID(ctx context.Context, bandID int64) error
	ListBands(ctx context.Context) ([]Band, error)
	FindBand(ctx context.Context, hz uint64) (Band, bool, error)
	LoadBandParams(ctx context.Context, bandID int64) (BandParams, error)
	SaveBandParams(ctx context.Context, p BandParams) error
}

// QSORepository is the contact log store.
type QSORepository interface {
	Insert(ctx context.Context, q QSO) (bool, error)
	SearchWorked(ctx context.Context, callsign, mode, band string) (Worked, error)
	ListRecent(ctx context.Context, limit int) ([]QSO, error)
}
