package cat

import (
	"context"
	"sync"
)

type readEvent struct {
	b   byte
	ok  bool
	err error
}

// scriptedTransport serves a canned byte sequence and records writes.
// Once the script is drained every read reports idle.
type scriptedTransport struct {
	mu         sync.Mutex
	events     []readEvent
	writes     [][]byte
	werr       error
	connectErr error
	closes     int
}

func feedBytes(bs ...byte) []readEvent {
	events := make([]readEvent, len(bs))
	for i, b := range bs {
		events[i] = readEvent{b: b, ok: true}
	}
	return events
}

func (t *scriptedTransport) Name() string    { return "scripted" }
func (t *scriptedTransport) Connected() bool { return true }

func (t *scriptedTransport) Connect(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connectErr
}

func (t *scriptedTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closes++
	return nil
}

func (t *scriptedTransport) closeCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closes
}

func (t *scriptedTransport) ReadByte(ctx context.Context) (byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.events) == 0 {
		return 0, false, nil
	}
	ev := t.events[0]
	t.events = t.events[1:]
	return ev.b, ev.ok, ev.err
}

func (t *scriptedTransport) Write(_ context.Context, buf []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.werr != nil {
		return t.werr
	}
	cp := make([]byte, len(buf))
	copy(cp, buf)
	t.writes = append(t.writes, cp)
	return nil
}

func (t *scriptedTransport) written() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.writes))
	copy(out, t.writes)
	return out
}
