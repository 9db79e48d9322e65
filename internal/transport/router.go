package transport

import (
	"fmt"
	"log/slog"
	"os"
)

// Router points the radio's shared USB data lines at the CAT UART. On
// the device this is a GPIO pin that must be raised before the port is
// opened.
type Router interface {
	Route() error
}

// NopRouter is used off-device and in tests.
type NopRouter struct{}

func (NopRouter) Route() error { return nil }

// SysfsRouter drives a GPIO pin through the kernel sysfs interface.
type SysfsRouter struct {
	Logger *slog.Logger
	Path   string
	Value  string
}

func (r SysfsRouter) Route() error {
	if err := os.WriteFile(r.Path, []byte(r.Value), 0o644); err != nil {
		return fmt.Errorf("route gpio %s: %w", r.Path, err)
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("routed cat lines", "path", r.Path, "value", r.Value)

	return nil
}
