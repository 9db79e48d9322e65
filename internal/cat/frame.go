package cat

import (
	"errors"
	"fmt"
)

// CI-V wire framing.
const (
	FramePreamble byte = 0xFE
	FrameEnd      byte = 0xFD

	CodeOK byte = 0xFB
	CodeNG byte = 0xFA

	// MaxFrameLen caps the receive buffer. A stream that reaches the cap
	// without a terminator is discarded wholesale.
	MaxFrameLen = 256

	// shortest valid frame: two preamble bytes, two addresses, an
	// opcode, a terminator
	minFrameLen = 6
)

// Command opcodes understood by the dispatcher.
const (
	CmdReadFreq  byte = 0x03
	CmdReadMode  byte = 0x04
	CmdWriteFreq byte = 0x05
	CmdWriteMode byte = 0x06
	CmdSelectVFO byte = 0x07
	CmdPTT       byte = 0x1C
	CmdVFOFreq   byte = 0x25
	CmdVFOMode   byte = 0x26
)

var (
	ErrFrameTooShort = errors.New("frame too short")
	ErrBadPreamble   = errors.New("bad frame preamble")
	ErrNoTerminator  = errors.New("missing frame terminator")
)

// Shape classifies an opcode's payload layout so the dispatcher decodes
// each request exactly once.
type Shape int

const (
	// ShapeQuery carries no payload and expects a data reply.
	ShapeQuery Shape = iota
	// ShapeWrite carries a fixed payload and expects OK or NG.
	ShapeWrite
	// ShapeDual is a query when the terminator follows the selector and
	// a write otherwise.
	ShapeDual
)

// CommandShape reports the payload layout of op. ok is false for
// opcodes this endpoint does not implement.
func CommandShape(op byte) (Shape, bool) {
	switch op {
	case CmdReadFreq, CmdReadMode:
		return ShapeQuery, true
	case CmdWriteFreq, CmdWriteMode, CmdSelectVFO:
		return ShapeWrite, true
	case CmdPTT, CmdVFOFreq, CmdVFOMode:
		return ShapeDual, true
	}

	return 0, false
}

// Frame is one decoded CI-V frame. Payload holds the bytes between the
// opcode and the terminator.
type Frame struct {
	Dst     byte
	Src     byte
	Opcode  byte
	Payload []byte
}

// Parse validates raw framing and splits the fixed-position fields. The
// payload aliases raw, so the frame is only valid as long as the caller
// keeps raw untouched.
func Parse(raw []byte) (Frame, error) {
	if len(raw) < minFrameLen {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrFrameTooShort, len(raw))
	}
	if raw[0] != FramePreamble || raw[1] != FramePreamble {
		return Frame{}, fmt.Errorf("%w: % 02x", ErrBadPreamble, raw[:2])
	}
	if raw[len(raw)-1] != FrameEnd {
		return Frame{}, ErrNoTerminator
	}

	return Frame{
		Dst:     raw[2],
		Src:     raw[3],
		Opcode:  raw[4],
		Payload: raw[5 : len(raw)-1],
	}, nil
}

// Build assembles a raw frame addressed to dst from src. Controllers use
// it to issue commands; the rig side answers through Reply.
func Build(dst, src, opcode byte, payload ...byte) []byte {
	out := make([]byte, 0, minFrameLen+len(payload))
	out = append(out, FramePreamble, FramePreamble, dst, src, opcode)
	out = append(out, payload...)

	return append(out, FrameEnd)
}

// Reply assembles an answer to f with the address rewrite every CI-V
// answer carries: the destination becomes the requester and the source
// this endpoint's own address.
func (f Frame) Reply(local byte, payload ...byte) []byte {
	out := make([]byte, 0, minFrameLen+len(payload))
	out = append(out, FramePreamble, FramePreamble, f.Src, local, f.Opcode)
	out = append(out, payload...)

	return append(out, FrameEnd)
}

// OK is the positive completion answer. The opcode is kept in the reply
// so controllers can correlate it with the request.
func (f Frame) OK(local byte) []byte {
	return f.Reply(local, CodeOK)
}

// NG is the negative completion answer.
func (f Frame) NG(local byte) []byte {
	return f.Reply(local, CodeNG)
}
