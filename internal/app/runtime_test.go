package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openx6100/catd/internal/domain"
	"github.com/openx6100/catd/internal/persistence"
	"github.com/openx6100/catd/internal/platform"
)

func writeTestConfig(t *testing.T, dir, extra string) string {
	t.Helper()
	content := `serial:
  device: ` + filepath.Join(dir, "no-such-uart") + `
  baud: 19200
db:
  path: ` + filepath.Join(dir, "catd.db") + `
logging:
  level: info
` + extra
	path := filepath.Join(dir, "catd.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestInitialize_SurvivesMissingSerialPort(t *testing.T) {
	dir := t.TempDir()
	rt, err := Initialize(context.Background(), writeTestConfig(t, dir, ""))
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	defer func() { _ = rt.Close() }()

	snap := rt.Bridge.Snapshot()
	if snap.BandName != "20m" {
		t.Fatalf("fresh daemon band: got %q, want 20m", snap.BandName)
	}
	if _, err := os.Stat(filepath.Join(dir, "catd.db")); err != nil {
		t.Fatalf("expected database file: %v", err)
	}
	if _, err := os.Stat(rt.Paths.PidFile); err != nil {
		t.Fatalf("expected pidfile: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		status, ok := rt.LinkStatus("serial")
		return ok && status.State == domain.LinkStateDisconnected
	})
}

func TestInitialize_RefusesSecondInstance(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, "")

	rt, err := Initialize(context.Background(), cfgPath)
	if err != nil {
		t.Fatalf("initialize first: %v", err)
	}
	defer func() { _ = rt.Close() }()

	if _, err := Initialize(context.Background(), cfgPath); !errors.Is(err, platform.ErrAlreadyRunning) {
		t.Fatalf("expected second instance to be refused, got %v", err)
	}
}

func TestInitialize_AnswersFrequencyQueryOverTCP(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, `tcp:
  enabled: true
  listen: 127.0.0.1:0
`)

	rt, err := Initialize(context.Background(), cfgPath)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	defer func() { _ = rt.Close() }()

	var target string
	waitFor(t, 2*time.Second, func() bool {
		status, ok := rt.LinkStatus("tcp")
		if ok && status.State == domain.LinkStateConnected {
			target = status.Target
			return true
		}
		return false
	})

	conn, err := net.Dial("tcp", target)
	if err != nil {
		t.Fatalf("dial cat listener: %v", err)
	}
	defer func() { _ = conn.Close() }()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	query := []byte{0xFE, 0xFE, 0xA4, 0x00, 0x03, 0xFD}
	if _, err := conn.Write(query); err != nil {
		t.Fatalf("write query: %v", err)
	}

	// echo (6 bytes) followed by the frequency answer (11 bytes)
	got := make([]byte, len(query)+11)
	if _, err := io.ReadFull(conn, got); err != nil {
		t.Fatalf("read echo and answer: %v", err)
	}
	if !bytes.Equal(got[:len(query)], query) {
		t.Fatalf("echo: got %x, want %x", got[:len(query)], query)
	}
	want := []byte{0xFE, 0xFE, 0x00, 0xA4, 0x03, 0x00, 0x00, 0x00, 0x14, 0x00, 0xFD}
	if !bytes.Equal(got[len(query):], want) {
		t.Fatalf("answer: got %x, want %x", got[len(query):], want)
	}
}

func TestClose_FlushesTunedStateToDatabase(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, `tcp:
  enabled: true
  listen: 127.0.0.1:0
`)

	rt, err := Initialize(context.Background(), cfgPath)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	defer func() { _ = rt.Close() }()

	var target string
	waitFor(t, 2*time.Second, func() bool {
		status, ok := rt.LinkStatus("tcp")
		if ok && status.State == domain.LinkStateConnected {
			target = status.Target
			return true
		}
		return false
	})

	conn, err := net.Dial("tcp", target)
	if err != nil {
		t.Fatalf("dial cat listener: %v", err)
	}
	defer func() { _ = conn.Close() }()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	// retune from the 20m default down to 7.074 MHz on 40m
	set := []byte{0xFE, 0xFE, 0xA4, 0x00, 0x05, 0x00, 0x40, 0x07, 0x07, 0x00, 0xFD}
	if _, err := conn.Write(set); err != nil {
		t.Fatalf("write set command: %v", err)
	}
	got := make([]byte, len(set)+7)
	if _, err := io.ReadFull(conn, got); err != nil {
		t.Fatalf("read echo and answer: %v", err)
	}
	wantOK := []byte{0xFE, 0xFE, 0x00, 0xA4, 0x05, 0xFB, 0xFD}
	if !bytes.Equal(got[len(set):], wantOK) {
		t.Fatalf("answer: got %x, want %x", got[len(set):], wantOK)
	}

	// close drains the projection and the write queue before the
	// database shuts, so the retune must be on disk afterwards
	_ = rt.Close()

	db, err := persistence.Open(context.Background(), filepath.Join(dir, "catd.db"))
	if err != nil {
		t.Fatalf("reopen database: %v", err)
	}
	defer func() { _ = db.Close() }()
	store := persistence.NewParamsStore(db)

	band, found, err := store.FindBand(context.Background(), 7074000)
	if err != nil || !found {
		t.Fatalf("find band for 7.074 MHz: found=%v err=%v", found, err)
	}
	currentID, ok, err := store.CurrentBandID(context.Background())
	if err != nil {
		t.Fatalf("current band: %v", err)
	}
	if !ok || currentID != band.ID {
		t.Fatalf("current band: got %d (ok=%v), want %d", currentID, ok, band.ID)
	}
	params, err := store.LoadBandParams(context.Background(), band.ID)
	if err != nil {
		t.Fatalf("load band params: %v", err)
	}
	if gotHz := params.VFO[domain.VFOA].Frequency; gotHz != 7074000 {
		t.Fatalf("persisted frequency: got %d, want 7074000", gotHz)
	}
}
