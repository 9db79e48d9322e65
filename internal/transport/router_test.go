package transport

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSysfsRouter_WritesValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "value")
	r := SysfsRouter{Logger: testLogger(), Path: path, Value: "1"}
	if err := r.Route(); err != nil {
		t.Fatalf("route: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "1" {
		t.Fatalf("got %q, want %q", data, "1")
	}
}

func TestSysfsRouter_ReportsMissingPin(t *testing.T) {
	r := SysfsRouter{Path: filepath.Join(t.TempDir(), "no", "such", "pin"), Value: "1"}
	if err := r.Route(); err == nil {
		t.Fatalf("expected route to fail")
	}
}

func TestNopRouter(t *testing.T) {
	if err := (NopRouter{}).Route(); err != nil {
		t.Fatalf("nop route: %v", err)
	}
}
