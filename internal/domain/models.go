package domain

// VFO identifies one of the radio's two tunable slots.
type VFO int

const (
	VFOA VFO = iota
	VFOB
)

func (v VFO) String() string {
	switch v {
	case VFOA:
		return "A"
	case VFOB:
		return "B"
	}
	return "?"
}

// Other returns the opposite slot.
func (v VFO) Other() VFO {
	if v == VFOA {
		return VFOB
	}
	return VFOA
}

// Mode is an operating mode as the rest of the system sees it. Unlike the
// wire protocol, it distinguishes the digital (data) variants of LSB/USB.
// Values are stable: they are persisted in band_params.
type Mode int

const (
	ModeLSB Mode = iota
	ModeLSBDig
	ModeUSB
	ModeUSBDig
	ModeCW
	ModeCWR
	ModeAM
	ModeNFM
)

func (m Mode) String() string {
	switch m {
	case ModeLSB:
		return "LSB"
	case ModeLSBDig:
		return "LSB-D"
	case ModeUSB:
		return "USB"
	case ModeUSBDig:
		return "USB-D"
	case ModeCW:
		return "CW"
	case ModeCWR:
		return "CW-R"
	case ModeAM:
		return "AM"
	case ModeNFM:
		return "FM"
	}
	return "?"
}

// IsDigital reports whether m is a data variant.
func (m Mode) IsDigital() bool {
	return m == ModeLSBDig || m == ModeUSBDig
}

// TransmitState is the PTT state of the radio.
type TransmitState int

const (
	Receiving TransmitState = iota
	Transmitting
)

func (s TransmitState) String() string {
	if s == Transmitting {
		return "TX"
	}
	return "RX"
}

// VFOState is one slot's tuning.
type VFOState struct {
	Frequency uint64 // Hz
	Mode      Mode
}

// Band is one row of the band plan.
type Band struct {
	ID        int64
	Name      string
	StartFreq uint64 // Hz, inclusive
	StopFreq  uint64 // Hz, inclusive
	Type      int
}

// Contains reports whether hz falls inside the band edges.
func (b Band) Contains(hz uint64) bool {
	return hz >= b.StartFreq && hz <= b.StopFreq
}

// BandParams is the per-band slice of radio state kept in the database:
// both VFOs and which of them is selected.
type BandParams struct {
	BandID int64
	VFO    [2]VFOState
	Active VFO
}

// Factory tuning used when a band has no stored params yet.
func DefaultBandParams(bandID int64) BandParams {
	return BandParams{
		BandID: bandID,
		VFO: [2]VFOState{
			VFOA: {Frequency: 14000000, Mode: ModeUSB},
			VFOB: {Frequency: 14100000, Mode: ModeUSB},
		},
		Active: VFOA,
	}
}
