package cat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openx6100/catd/internal/domain"
)

// DefaultLocalAddress is the CI-V bus address this endpoint answers
// with, matching what the stock firmware reports.
const DefaultLocalAddress byte = 0xA4

const freqDigits = 10

// Rig is the radio-state surface the command set drives. Implementations
// must provide their own synchronization: the dispatcher mutates state
// from the protocol goroutine while the rest of the system reads it.
type Rig interface {
	ActiveVFO() domain.VFO
	SetActiveVFO(v domain.VFO)
	Frequency(v domain.VFO) uint64
	// SetFrequency tunes the active VFO, reselecting the band entry
	// when the frequency lands in a different band.
	SetFrequency(hz uint64)
	// StoreFrequency records a frequency on v without retuning.
	StoreFrequency(v domain.VFO, hz uint64)
	Mode(v domain.VFO) domain.Mode
	SetMode(v domain.VFO, m domain.Mode)
	TransmitState() domain.TransmitState
	SetPTT(on bool)
}

// Writer is the reply side of the wire.
type Writer interface {
	Write(ctx context.Context, buf []byte) error
}

// Dispatcher runs one request/response cycle per frame: echo the raw
// bytes back, then apply the command and answer. It keeps no state of
// its own between frames.
type Dispatcher struct {
	logger *slog.Logger
	rig    Rig
	local  byte
}

func NewDispatcher(logger *slog.Logger, rig Rig, local byte) *Dispatcher {
	return &Dispatcher{
		logger: logger,
		rig:    rig,
		local:  local,
	}
}

// Handle processes one raw frame. Malformed frames are dropped without
// an echo. Write failures are logged and swallowed; the protocol has no
// acknowledgment layer, so a lost reply looks the same as a controller
// that stopped listening.
func (d *Dispatcher) Handle(ctx context.Context, w Writer, raw []byte) {
	f, err := Parse(raw)
	if err != nil {
		d.logger.Debug("dropping malformed frame", "len", len(raw), "error", err)
		return
	}

	// Every command is echoed back verbatim before its answer.
	if err := w.Write(ctx, raw); err != nil {
		d.logger.Warn("echo write failed", "error", err)
	}

	reply := d.respond(f)
	if err := w.Write(ctx, reply); err != nil {
		d.logger.Warn("reply write failed", "opcode", hexByte(f.Opcode), "error", err)
	}
}

func (d *Dispatcher) respond(f Frame) []byte {
	switch f.Opcode {
	case CmdReadFreq:
		return d.readFreq(f)
	case CmdReadMode:
		return d.readMode(f)
	case CmdWriteFreq:
		return d.writeFreq(f)
	case CmdWriteMode:
		return d.writeMode(f)
	case CmdSelectVFO:
		return d.selectVFO(f)
	case CmdPTT:
		return d.ptt(f)
	case CmdVFOFreq:
		return d.vfoFreq(f)
	case CmdVFOMode:
		return d.vfoMode(f)
	}

	d.logger.Warn("unsupported opcode", "opcode", hexByte(f.Opcode), "payload_len", len(f.Payload))
	return f.NG(d.local)
}

func (d *Dispatcher) readFreq(f Frame) []byte {
	hz := d.rig.Frequency(d.rig.ActiveVFO())
	return f.Reply(d.local, EncodeBCD(hz, freqDigits)...)
}

func (d *Dispatcher) readMode(f Frame) []byte {
	code, err := ModeToWire(d.rig.Mode(d.rig.ActiveVFO()))
	if err != nil {
		d.logger.Warn("active mode has no wire code", "error", err)
		return f.NG(d.local)
	}
	// the mode byte doubles as the filter byte
	return f.Reply(d.local, code, code)
}

func (d *Dispatcher) writeFreq(f Frame) []byte {
	if len(f.Payload) != freqDigits/2 {
		d.logger.Debug("rejecting frequency write", "payload_len", len(f.Payload))
		return f.NG(d.local)
	}
	d.rig.SetFrequency(DecodeBCD(f.Payload))
	return f.OK(d.local)
}

func (d *Dispatcher) writeMode(f Frame) []byte {
	if len(f.Payload) == 0 {
		return f.NG(d.local)
	}
	m, err := WireToMode(f.Payload[0], false)
	if err != nil {
		d.logger.Debug("rejecting mode write", "code", hexByte(f.Payload[0]))
		return f.NG(d.local)
	}
	d.rig.SetMode(d.rig.ActiveVFO(), m)
	return f.OK(d.local)
}

func (d *Dispatcher) selectVFO(f Frame) []byte {
	if len(f.Payload) == 0 {
		return f.NG(d.local)
	}
	switch f.Payload[0] {
	case 0x00:
		d.rig.SetActiveVFO(domain.VFOA)
	case 0x01:
		d.rig.SetActiveVFO(domain.VFOB)
	default:
		d.logger.Debug("rejecting vfo select", "selector", hexByte(f.Payload[0]))
		return f.NG(d.local)
	}
	return f.OK(d.local)
}

func (d *Dispatcher) ptt(f Frame) []byte {
	if len(f.Payload) == 0 || f.Payload[0] != 0x00 {
		return f.NG(d.local)
	}
	if len(f.Payload) == 1 {
		state := byte(0x00)
		if d.rig.TransmitState() == domain.Transmitting {
			state = 0x01
		}
		return f.Reply(d.local, 0x00, state)
	}
	switch f.Payload[1] {
	case 0x00:
		d.rig.SetPTT(false)
	case 0x01:
		d.rig.SetPTT(true)
	default:
		d.logger.Debug("rejecting ptt write", "value", hexByte(f.Payload[1]))
		return f.NG(d.local)
	}
	return f.Reply(d.local, 0x00, CodeOK)
}

func (d *Dispatcher) vfoFreq(f Frame) []byte {
	if len(f.Payload) == 0 {
		return f.NG(d.local)
	}
	vfo := domain.VFOA
	if f.Payload[0] != 0x00 {
		vfo = domain.VFOB
	}

	if len(f.Payload) == 1 {
		payload := append([]byte{f.Payload[0]}, EncodeBCD(d.rig.Frequency(vfo), freqDigits)...)
		return f.Reply(d.local, payload...)
	}

	if len(f.Payload) != 1+freqDigits/2 {
		d.logger.Debug("rejecting vfo frequency write", "payload_len", len(f.Payload))
		return f.NG(d.local)
	}
	hz := DecodeBCD(f.Payload[1:])
	if vfo == d.rig.ActiveVFO() {
		d.rig.SetFrequency(hz)
	} else {
		d.rig.StoreFrequency(vfo, hz)
	}
	return f.OK(d.local)
}

func (d *Dispatcher) vfoMode(f Frame) []byte {
	if len(f.Payload) == 0 {
		return f.NG(d.local)
	}
	// selector is relative here: zero means the active VFO, anything
	// else the other one
	vfo := d.rig.ActiveVFO()
	if f.Payload[0] != 0x00 {
		vfo = vfo.Other()
	}

	if len(f.Payload) == 1 {
		code, err := ModeToWire(d.rig.Mode(vfo))
		if err != nil {
			d.logger.Warn("vfo mode has no wire code", "vfo", vfo.String(), "error", err)
			return f.NG(d.local)
		}
		data := byte(0x00)
		if d.rig.Mode(vfo).IsDigital() {
			data = 0x01
		}
		return f.Reply(d.local, f.Payload[0], code, data, CodeOK)
	}

	// the data flag is only present when a byte sits between the mode
	// and the terminator
	data := len(f.Payload) >= 3 && f.Payload[2] != 0x00
	m, err := WireToMode(f.Payload[1], data)
	if err != nil {
		d.logger.Debug("rejecting vfo mode write", "code", hexByte(f.Payload[1]))
		return f.NG(d.local)
	}
	d.rig.SetMode(vfo, m)
	return f.OK(d.local)
}

func hexByte(b byte) string {
	return fmt.Sprintf("0x%02X", b)
}
