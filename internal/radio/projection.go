package radio

import (
	"context"
	"sync"
	"time"

	"github.com/openx6100/catd/internal/bus"
	"github.com/openx6100/catd/internal/domain"
)

// WriteQueue serializes persistence writes from async state events.
type WriteQueue interface {
	Enqueue(name string, fn func(context.Context) error)
}

const defaultFlushInterval = 3 * time.Second

// StartStateProjection persists tuning changes published on the bus.
// State snapshots are coalesced per band and flushed on an interval, so
// a tuning sweep costs one write per band instead of one per frame.
// Band changes persist the current-band pointer right away.
//
// The returned stop function absorbs whatever is already queued on the
// subscriptions, flushes, and only then returns. Call it before
// closing the write queue so the last tuning change reaches the
// database.
func StartStateProjection(ctx context.Context, b bus.MessageBus, queue WriteQueue, repo domain.ParamsRepository, flushEvery time.Duration) (stop func()) {
	if flushEvery <= 0 {
		flushEvery = defaultFlushInterval
	}
	stateSub := b.Subscribe(bus.TopicRadioState)
	changeSub := b.Subscribe(bus.TopicBandChange)

	quit := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)

		// only safe while the bus is still up; the closed-channel exits
		// below skip it
		detach := func() {
			b.Unsubscribe(stateSub, bus.TopicRadioState)
			b.Unsubscribe(changeSub, bus.TopicBandChange)
		}

		ticker := time.NewTicker(flushEvery)
		defer ticker.Stop()

		pending := make(map[int64]domain.BandParams)
		absorbState := func(raw any) {
			state, ok := raw.(domain.RadioState)
			if !ok {
				return
			}
			pending[state.BandID] = domain.BandParams{
				BandID: state.BandID,
				VFO:    state.VFO,
				Active: state.Active,
			}
		}
		absorbChange := func(raw any) {
			change, ok := raw.(domain.BandChange)
			if !ok {
				return
			}
			bandID := change.To.ID
			queue.Enqueue("save_current_band", func(writeCtx context.Context) error {
				return repo.SaveCurrentBandID(writeCtx, bandID)
			})
		}
		flush := func() {
			for _, p := range pending {
				params := p
				queue.Enqueue("save_band_params", func(writeCtx context.Context) error {
					return repo.SaveBandParams(writeCtx, params)
				})
			}
			clear(pending)
		}
		// events already buffered on the subscriptions still count at
		// shutdown; reports false when the subscriptions were closed
		// under us, meaning the bus is gone and must not be called back
		settle := func() bool {
			state, change := stateSub, changeSub
			closed := false
			for state != nil || change != nil {
				select {
				case raw, ok := <-state:
					if !ok {
						state, closed = nil, true
						continue
					}
					absorbState(raw)
				case raw, ok := <-change:
					if !ok {
						change, closed = nil, true
						continue
					}
					absorbChange(raw)
				default:
					flush()
					return !closed
				}
			}
			flush()
			return false
		}

		for {
			select {
			case <-quit:
				if settle() {
					detach()
				}
				return
			case <-ctx.Done():
				if settle() {
					detach()
				}
				return
			case raw, ok := <-stateSub:
				if !ok {
					flush()
					return
				}
				absorbState(raw)
			case raw, ok := <-changeSub:
				if !ok {
					flush()
					return
				}
				absorbChange(raw)
			case <-ticker.C:
				flush()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(quit) })
		<-done
	}
}
