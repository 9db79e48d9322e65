package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/openx6100/catd/internal/config"
)

var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// Manager owns the daemon logger configuration and the optional log
// file lifecycle. The console stream is stderr, keeping stdout free
// for shell pipelines.
type Manager struct {
	mu      sync.RWMutex
	console io.Writer
	logger  *slog.Logger
	file    *os.File
}

func NewManager() *Manager {
	m := &Manager{console: os.Stderr}
	m.logger = slog.New(slog.NewTextHandler(m.console, &slog.HandlerOptions{Level: slog.LevelInfo}))

	return m
}

// Configure rebuilds the logger from cfg and installs it as the slog
// default. With file logging enabled records go to both the console
// and filePath; a console write failing never takes the file sink
// down with it.
func (m *Manager) Configure(cfg config.LoggingConfig, filePath string) error {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.file != nil {
		_ = m.file.Close()
		m.file = nil
	}

	sink := m.console
	if cfg.LogToFile {
		cleanPath := filepath.Clean(filePath)
		// #nosec G304 -- path is resolved by the app runtime under its state dir.
		file, err := os.OpenFile(cleanPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		m.file = file
		sink = multiSink{m.console, file}
	}

	m.logger = slog.New(slog.NewTextHandler(sink, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(m.logger)

	return nil
}

// Logger returns the shared logger tagged with a component name.
func (m *Manager) Logger(component string) *slog.Logger {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.logger.With("component", component)
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.file == nil {
		return nil
	}
	err := m.file.Close()
	m.file = nil

	return err
}

func parseLevel(raw string) (slog.Level, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if name == "" {
		return slog.LevelInfo, nil
	}
	level, ok := levelNames[name]
	if !ok {
		return 0, fmt.Errorf("unsupported log level: %q", raw)
	}

	return level, nil
}

// multiSink writes each record to every destination, skipping the ones
// that fail. The write only errors when nobody took the record.
type multiSink []io.Writer

func (s multiSink) Write(p []byte) (int, error) {
	var (
		delivered int
		firstErr  error
	)
	for _, dst := range s {
		if dst == nil {
			continue
		}
		n, err := dst.Write(p)
		switch {
		case err != nil:
			if firstErr == nil {
				firstErr = err
			}
		case n < len(p):
			if firstErr == nil {
				firstErr = io.ErrShortWrite
			}
		default:
			delivered++
		}
	}
	if delivered == 0 && firstErr != nil {
		return 0, firstErr
	}

	return len(p), nil
}
