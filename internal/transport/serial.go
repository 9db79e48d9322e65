package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
)

// Short read timeout so an idle port hands control back to the polling
// loop instead of blocking it.
const defaultSerialReadTimeout = 50 * time.Millisecond

// SerialTransport carries CAT traffic over a local serial port, 8N1.
type SerialTransport struct {
	portName string
	baudRate int

	mu      sync.Mutex
	port    serial.Port
	writeMu sync.Mutex
}

func NewSerialTransport(portName string, baudRate int) *SerialTransport {
	return &SerialTransport{
		portName: portName,
		baudRate: baudRate,
	}
}

func (t *SerialTransport) Name() string {
	return "serial"
}

func (t *SerialTransport) StatusTarget() string {
	return t.portName
}

func (t *SerialTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port != nil
}

func (t *SerialTransport) Connect(ctx context.Context) error {
	if t.portName == "" {
		return errors.New("serial port is empty")
	}
	if t.baudRate <= 0 {
		return fmt.Errorf("invalid serial baud rate: %d", t.baudRate)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	mode := &serial.Mode{
		BaudRate: t.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(t.portName, mode)
	if err != nil {
		return fmt.Errorf("open serial port %q: %w", t.portName, err)
	}
	if err := port.SetReadTimeout(defaultSerialReadTimeout); err != nil {
		_ = port.Close()
		return fmt.Errorf("set serial read timeout: %w", err)
	}
	// the UART is shared with the radio firmware; whatever it held
	// before we attached is not ours to parse
	_ = port.ResetInputBuffer()
	t.port = port

	return nil
}

func (t *SerialTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	return err
}

// ReadByte reads a single byte. A port read timeout surfaces as ok=false
// with no error.
func (t *SerialTransport) ReadByte(ctx context.Context) (byte, bool, error) {
	t.mu.Lock()
	port := t.port
	t.mu.Unlock()
	if port == nil {
		return 0, false, errors.New("transport is not connected")
	}
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}

	var b [1]byte
	n, err := port.Read(b[:])
	if err != nil {
		return 0, false, fmt.Errorf("read serial: %w", err)
	}
	if n == 0 {
		return 0, false, nil
	}
	return b[0], true, nil
}

func (t *SerialTransport) Write(ctx context.Context, buf []byte) error {
	t.mu.Lock()
	port := t.port
	t.mu.Unlock()
	if port == nil {
		return errors.New("transport is not connected")
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := writeFull(ctx, port, buf); err != nil {
		return fmt.Errorf("write serial: %w", err)
	}
	return nil
}

// writeFull pushes all of buf through w, riding out short writes.
func writeFull(ctx context.Context, w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := w.Write(buf)
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}
