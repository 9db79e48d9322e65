package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"
)

const defaultTCPReadTimeout = 50 * time.Millisecond

// TCPServerTransport accepts CAT controllers over TCP. One controller is
// served at a time; a new connection replaces the previous one. A client
// hanging up is not an error, the listener just waits for the next one.
type TCPServerTransport struct {
	logger *slog.Logger
	addr   string

	mu       sync.Mutex
	listener net.Listener
	conn     net.Conn
	writeMu  sync.Mutex
}

func NewTCPServerTransport(logger *slog.Logger, addr string) *TCPServerTransport {
	return &TCPServerTransport{logger: logger, addr: addr}
}

func (t *TCPServerTransport) Name() string {
	return "tcp"
}

func (t *TCPServerTransport) StatusTarget() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener != nil {
		return t.listener.Addr().String()
	}
	return t.addr
}

func (t *TCPServerTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.listener != nil
}

func (t *TCPServerTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener != nil {
		return nil
	}
	if t.addr == "" {
		return errors.New("tcp listen address is empty")
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", t.addr)
	if err != nil {
		return fmt.Errorf("listen tcp %q: %w", t.addr, err)
	}
	t.listener = ln
	logger := t.logger.With("listen", ln.Addr().String())
	logger.Info("listening")
	go t.acceptLoop(ln, logger)

	return nil
}

func (t *TCPServerTransport) acceptLoop(ln net.Listener, logger *slog.Logger) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			logger.Debug("accept loop stopped", "error", err)
			return
		}
		logger.Info("controller connected", "remote", conn.RemoteAddr().String())

		t.mu.Lock()
		if t.conn != nil {
			_ = t.conn.Close()
		}
		t.conn = conn
		t.mu.Unlock()
	}
}

// ReadByte reads from the current controller. No controller, an idle
// one, or one that just disconnected all surface as ok=false.
func (t *TCPServerTransport) ReadByte(ctx context.Context) (byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	conn := t.currentConn()
	if conn == nil {
		return 0, false, nil
	}

	_ = conn.SetReadDeadline(time.Now().Add(defaultTCPReadTimeout))
	var b [1]byte
	n, err := conn.Read(b[:])
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, false, nil
		}
		t.dropConn(conn, err)
		return 0, false, nil
	}
	if n == 0 {
		return 0, false, nil
	}
	return b[0], true, nil
}

// Write sends to the current controller. With nobody connected the
// bytes are dropped.
func (t *TCPServerTransport) Write(ctx context.Context, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn := t.currentConn()
	if conn == nil {
		return nil
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := writeFull(ctx, conn, buf); err != nil {
		t.dropConn(conn, err)
		return fmt.Errorf("write tcp: %w", err)
	}
	return nil
}

func (t *TCPServerTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var err error
	if t.conn != nil {
		err = t.conn.Close()
		t.conn = nil
	}
	if t.listener != nil {
		if lerr := t.listener.Close(); err == nil {
			err = lerr
		}
		t.listener = nil
	}
	return err
}

func (t *TCPServerTransport) currentConn() net.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}

// TCPClientTransport dials a CAT endpoint over TCP, the controller-side
// counterpart of TCPServerTransport. Unlike the server it surfaces read
// errors instead of waiting for a reconnect; the caller owns retry
// policy.
type TCPClientTransport struct {
	addr string

	mu      sync.Mutex
	conn    net.Conn
	writeMu sync.Mutex
}

func NewTCPClientTransport(addr string) *TCPClientTransport {
	return &TCPClientTransport{addr: addr}
}

func (t *TCPClientTransport) Name() string {
	return "tcp"
}

func (t *TCPClientTransport) StatusTarget() string {
	return t.addr
}

func (t *TCPClientTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

func (t *TCPClientTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return nil
	}
	if t.addr == "" {
		return errors.New("tcp address is empty")
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return fmt.Errorf("dial tcp %q: %w", t.addr, err)
	}
	t.conn = conn

	return nil
}

func (t *TCPClientTransport) ReadByte(ctx context.Context) (byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return 0, false, errors.New("transport is not connected")
	}

	_ = conn.SetReadDeadline(time.Now().Add(defaultTCPReadTimeout))
	var b [1]byte
	n, err := conn.Read(b[:])
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read tcp: %w", err)
	}
	if n == 0 {
		return 0, false, nil
	}
	return b[0], true, nil
}

func (t *TCPClientTransport) Write(ctx context.Context, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return errors.New("transport is not connected")
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := writeFull(ctx, conn, buf); err != nil {
		return fmt.Errorf("write tcp: %w", err)
	}
	return nil
}

func (t *TCPClientTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

func (t *TCPServerTransport) dropConn(conn net.Conn, cause error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != conn {
		return
	}
	t.logger.Info("controller disconnected", "error", cause)
	_ = t.conn.Close()
	t.conn = nil
}
