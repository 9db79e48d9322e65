package radio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/openx6100/catd/internal/bus"
	"github.com/openx6100/catd/internal/domain"
)

// defaultBandName seeds the current band on a database that has never
// run before.
const defaultBandName = "20m"

// Bridge is the in-memory radio the protocol talks to. The whole band
// plan and every band's stored tuning are loaded up front, so command
// handlers never wait on the database; persistence happens off the
// state events the bridge publishes.
type Bridge struct {
	logger *slog.Logger
	bus    bus.MessageBus

	mu      sync.Mutex
	bands   []domain.Band
	perBand map[int64]domain.BandParams
	current domain.Band
	tx      domain.TransmitState
}

func NewBridge(logger *slog.Logger, b bus.MessageBus) *Bridge {
	return &Bridge{
		logger:  logger,
		bus:     b,
		perBand: make(map[int64]domain.BandParams),
	}
}

// Load pulls the band plan and per-band tuning from repo. Stored
// frequencies that fall outside their own band are reset to the band
// start, so the in-memory state always sits inside the plan.
func (b *Bridge) Load(ctx context.Context, repo domain.ParamsRepository) error {
	bands, err := repo.ListBands(ctx)
	if err != nil {
		return fmt.Errorf("load band plan: %w", err)
	}
	if len(bands) == 0 {
		return errors.New("band plan is empty")
	}

	perBand := make(map[int64]domain.BandParams, len(bands))
	for _, band := range bands {
		p, err := repo.LoadBandParams(ctx, band.ID)
		if err != nil {
			return fmt.Errorf("load %s tuning: %w", band.Name, err)
		}
		perBand[band.ID] = normalizeParams(p, band)
	}

	current := bands[0]
	currentID, ok, err := repo.CurrentBandID(ctx)
	if err != nil {
		return fmt.Errorf("load current band: %w", err)
	}
	resolved := false
	if ok {
		for _, band := range bands {
			if band.ID == currentID {
				current = band
				resolved = true
				break
			}
		}
	}
	if !resolved {
		for _, band := range bands {
			if band.Name == defaultBandName {
				current = band
				break
			}
		}
	}

	b.mu.Lock()
	b.bands = bands
	b.perBand = perBand
	b.current = current
	b.tx = domain.Receiving
	b.mu.Unlock()

	p := perBand[current.ID]
	b.logger.Info("radio state loaded",
		"bands", len(bands),
		"band", current.Name,
		"vfo", p.Active.String(),
		"freq", p.VFO[p.Active].Frequency,
		"mode", p.VFO[p.Active].Mode.String())
	return nil
}

// normalizeParams forces both slots inside the band edges. Bands with
// no stored tuning come back from the store with factory values that
// only fit 20m; bands below 10 MHz restart on LSB.
func normalizeParams(p domain.BandParams, band domain.Band) domain.BandParams {
	mode := domain.ModeUSB
	if band.StartFreq < 10000000 {
		mode = domain.ModeLSB
	}
	for i := range p.VFO {
		if !band.Contains(p.VFO[i].Frequency) {
			p.VFO[i] = domain.VFOState{Frequency: band.StartFreq, Mode: mode}
		}
	}
	return p
}

func (b *Bridge) ActiveVFO() domain.VFO {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.perBand[b.current.ID].Active
}

func (b *Bridge) SetActiveVFO(v domain.VFO) {
	b.mu.Lock()
	p := b.perBand[b.current.ID]
	p.Active = v
	b.perBand[b.current.ID] = p
	snap := b.snapshotLocked()
	b.mu.Unlock()

	b.logger.Debug("vfo selected", "vfo", v.String())
	b.bus.Publish(bus.TopicRadioState, snap)
}

func (b *Bridge) Frequency(v domain.VFO) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.perBand[b.current.ID].VFO[v].Frequency
}

// SetFrequency tunes the active VFO. A frequency in another band brings
// that band's stored tuning up with the commanded frequency on its
// active slot; a frequency outside the whole plan tunes in place.
func (b *Bridge) SetFrequency(hz uint64) {
	b.mu.Lock()
	cur := b.current

	var target domain.Band
	var switching bool
	if !cur.Contains(hz) {
		target, switching = b.bandForLocked(hz)
	}

	if !switching {
		p := b.perBand[cur.ID]
		p.VFO[p.Active].Frequency = hz
		b.perBand[cur.ID] = p
		snap := b.snapshotLocked()
		b.mu.Unlock()

		b.logger.Debug("tuned", "band", cur.Name, "freq", hz)
		b.bus.Publish(bus.TopicRadioState, snap)
		return
	}

	p := b.perBand[target.ID]
	p.VFO[p.Active].Frequency = hz
	b.perBand[target.ID] = p
	b.current = target
	change := domain.BandChange{From: cur, To: target, Timestamp: time.Now()}
	snap := b.snapshotLocked()
	b.mu.Unlock()

	b.logger.Info("band changed", "from", cur.Name, "to", target.Name, "freq", hz)
	b.bus.Publish(bus.TopicBandChange, change)
	b.bus.Publish(bus.TopicRadioState, snap)
}

func (b *Bridge) StoreFrequency(v domain.VFO, hz uint64) {
	b.mu.Lock()
	p := b.perBand[b.current.ID]
	p.VFO[v].Frequency = hz
	b.perBand[b.current.ID] = p
	snap := b.snapshotLocked()
	b.mu.Unlock()

	b.logger.Debug("frequency stored", "vfo", v.String(), "freq", hz)
	b.bus.Publish(bus.TopicRadioState, snap)
}

func (b *Bridge) Mode(v domain.VFO) domain.Mode {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.perBand[b.current.ID].VFO[v].Mode
}

func (b *Bridge) SetMode(v domain.VFO, m domain.Mode) {
	b.mu.Lock()
	p := b.perBand[b.current.ID]
	p.VFO[v].Mode = m
	b.perBand[b.current.ID] = p
	snap := b.snapshotLocked()
	b.mu.Unlock()

	b.logger.Debug("mode set", "vfo", v.String(), "mode", m.String())
	b.bus.Publish(bus.TopicRadioState, snap)
}

func (b *Bridge) TransmitState() domain.TransmitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tx
}

func (b *Bridge) SetPTT(on bool) {
	b.mu.Lock()
	next := domain.Receiving
	if on {
		next = domain.Transmitting
	}
	changed := b.tx != next
	b.tx = next
	snap := b.snapshotLocked()
	b.mu.Unlock()

	if changed {
		b.logger.Info("ptt", "state", next.String())
	}
	b.bus.Publish(bus.TopicRadioState, snap)
}

// Snapshot returns the current display state.
func (b *Bridge) Snapshot() domain.RadioState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

// CurrentBand returns the band the active VFO sits in.
func (b *Bridge) CurrentBand() domain.Band {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// LookupBand finds the band plan entry containing hz, if any.
func (b *Bridge) LookupBand(hz uint64) (domain.Band, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bandForLocked(hz)
}

// PublishState pushes the current snapshot onto the bus. The runtime
// calls it once after subscribers are wired so they all start from a
// known state.
func (b *Bridge) PublishState() {
	b.bus.Publish(bus.TopicRadioState, b.Snapshot())
}

func (b *Bridge) snapshotLocked() domain.RadioState {
	p := b.perBand[b.current.ID]
	return domain.RadioState{
		Active:    p.Active,
		VFO:       p.VFO,
		Transmit:  b.tx,
		BandID:    b.current.ID,
		BandName:  b.current.Name,
		Timestamp: time.Now(),
	}
}

func (b *Bridge) bandForLocked(hz uint64) (domain.Band, bool) {
	for _, band := range b.bands {
		if band.Contains(hz) {
			return band, true
		}
	}
	return domain.Band{}, false
}
