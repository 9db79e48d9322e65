package domain

import "time"

// LinkState describes the CAT link lifecycle on the bus.
type LinkState string

const (
	LinkStateDisconnected LinkState = "disconnected"
	LinkStateConnecting   LinkState = "connecting"
	LinkStateConnected    LinkState = "connected"
)

// LinkStatus is a bus event snapshot of the CAT transport state.
type LinkStatus struct {
	State         LinkState
	Err           string
	TransportName string
	Target        string
	Timestamp     time.Time
}

// RadioState is the screen-update event published after every mutation the
// protocol applies. The display process redraws from it; this side never
// waits for delivery.
type RadioState struct {
	Active    VFO
	VFO       [2]VFOState
	Transmit  TransmitState
	BandID    int64
	BandName  string
	Timestamp time.Time
}

// BandChange is published when a frequency change crosses a band edge.
type BandChange struct {
	From      Band
	To        Band
	Timestamp time.Time
}

// RawFrame carries CAT frame bytes for trace/debug subscribers.
type RawFrame struct {
	Hex string
	Len int
}
