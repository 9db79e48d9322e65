package cat

import (
	"context"
	"time"

	"github.com/openx6100/catd/internal/transport"
)

const defaultPollInterval = 10 * time.Millisecond

// Framer accumulates one terminator-delimited frame at a time from a
// byte transport. The receive buffer is reused across calls, so each
// frame must be consumed before the next ReadFrame. A Framer is owned
// by a single goroutine.
type Framer struct {
	tr   transport.Transport
	poll time.Duration
	buf  []byte
}

func NewFramer(tr transport.Transport, poll time.Duration) *Framer {
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &Framer{
		tr:   tr,
		poll: poll,
		buf:  make([]byte, 0, MaxFrameLen),
	}
}

// ReadFrame blocks until a terminator arrives, the buffer cap is hit,
// or ctx is cancelled. Hitting the cap discards the accumulated bytes
// and returns an empty frame, which callers skip.
func (f *Framer) ReadFrame(ctx context.Context) ([]byte, error) {
	f.buf = f.buf[:0]
	for {
		b, ok, err := f.tr.ReadByte(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			if !sleepWithContext(ctx, f.poll) {
				return nil, ctx.Err()
			}
			continue
		}

		f.buf = append(f.buf, b)
		if b == FrameEnd {
			return f.buf, nil
		}
		if len(f.buf) >= MaxFrameLen {
			return nil, nil
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
