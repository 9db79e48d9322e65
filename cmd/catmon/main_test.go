package main

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/openx6100/catd/internal/cat"
	"github.com/openx6100/catd/internal/domain"
)

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    options
		wantErr bool
	}{
		{
			name: "defaults",
			args: nil,
			want: options{Addr: defaultAddr, Baud: defaultBaud, Controller: 0xE0, Rig: 0xA4, Timeout: 3 * time.Second, Every: time.Second, Command: "status"},
		},
		{
			name: "watch with interval",
			args: []string{"-every", "250ms", "watch"},
			want: options{Addr: defaultAddr, Baud: defaultBaud, Controller: 0xE0, Rig: 0xA4, Timeout: 3 * time.Second, Every: 250 * time.Millisecond, Command: "watch"},
		},
		{
			name: "serial device",
			args: []string{"-dev", "/dev/ttyUSB0", "-baud", "4800", "status"},
			want: options{Addr: defaultAddr, Device: "/dev/ttyUSB0", Baud: 4800, Controller: 0xE0, Rig: 0xA4, Timeout: 3 * time.Second, Every: time.Second, Command: "status"},
		},
		{
			name: "custom addresses",
			args: []string{"-ctl", "0xE6", "-rig", "0x70", "status"},
			want: options{Addr: defaultAddr, Baud: defaultBaud, Controller: 0xE6, Rig: 0x70, Timeout: 3 * time.Second, Every: time.Second, Command: "status"},
		},
		{
			name: "freq with value",
			args: []string{"freq", "14.074"},
			want: options{Addr: defaultAddr, Baud: defaultBaud, Controller: 0xE0, Rig: 0xA4, Timeout: 3 * time.Second, Every: time.Second, Command: "freq", Args: []string{"14.074"}},
		},
		{name: "unknown command", args: []string{"reboot"}, wantErr: true},
		{name: "freq without value", args: []string{"freq"}, wantErr: true},
		{name: "status with stray argument", args: []string{"status", "now"}, wantErr: true},
		{name: "bad controller address", args: []string{"-ctl", "zz", "status"}, wantErr: true},
	}

	for _, tc := range tests {
		got, err := parseOptions(tc.args)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error, got nil", tc.name)
			}

			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if len(got.Args) == 0 {
			got.Args = nil
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: expected %+v, got %+v", tc.name, tc.want, got)
		}
	}
}

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{in: "14074000", want: 14074000},
		{in: "14.074", want: 14074000},
		{in: "7.0", want: 7000000},
		{in: "0.5", want: 500000},
		{in: "0", wantErr: true},
		{in: "-7.1", wantErr: true},
		{in: "7,1", wantErr: true},
		{in: "seventy", wantErr: true},
	}

	for _, tc := range tests {
		got, err := parseFrequency(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error, got %d", tc.in, got)
			}

			continue
		}
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("%q: expected %d, got %d", tc.in, tc.want, got)
		}
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    domain.Mode
		wantErr bool
	}{
		{in: "usb", want: domain.ModeUSB},
		{in: "USB-D", want: domain.ModeUSBDig},
		{in: "lsbd", want: domain.ModeLSBDig},
		{in: "cw-r", want: domain.ModeCWR},
		{in: "nfm", want: domain.ModeNFM},
		{in: "rtty", wantErr: true},
	}

	for _, tc := range tests {
		got, err := parseMode(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error, got %v", tc.in, got)
			}

			continue
		}
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("%q: expected %v, got %v", tc.in, tc.want, got)
		}
	}
}

func TestParseVFOAndOnOff(t *testing.T) {
	if v, err := parseVFO("b"); err != nil || v != domain.VFOB {
		t.Fatalf("parseVFO(b): got %v, %v", v, err)
	}
	if _, err := parseVFO("c"); err == nil {
		t.Fatalf("parseVFO(c): expected error")
	}
	if on, err := parseOnOff("on"); err != nil || !on {
		t.Fatalf("parseOnOff(on): got %v, %v", on, err)
	}
	if on, err := parseOnOff("0"); err != nil || on {
		t.Fatalf("parseOnOff(0): got %v, %v", on, err)
	}
	if _, err := parseOnOff("maybe"); err == nil {
		t.Fatalf("parseOnOff(maybe): expected error")
	}
}

func TestFormatFrequency(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{in: 0, want: "0"},
		{in: 500, want: "500"},
		{in: 7000, want: "7.000"},
		{in: 14074000, want: "14.074.000"},
		{in: 145500000, want: "145.500.000"},
	}

	for _, tc := range tests {
		if got := formatFrequency(tc.in); got != tc.want {
			t.Fatalf("%d: expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

// fakeWire is a scripted transport: every frame the client writes is
// answered by respond, whose output is queued for the client to read.
type fakeWire struct {
	mu      sync.Mutex
	rx      []byte
	respond func(req []byte) [][]byte
}

func (f *fakeWire) Name() string                  { return "fake" }
func (f *fakeWire) Connect(context.Context) error { return nil }
func (f *fakeWire) Connected() bool               { return true }
func (f *fakeWire) Close() error                  { return nil }

func (f *fakeWire) ReadByte(ctx context.Context) (byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.rx) == 0 {
		return 0, false, nil
	}
	b := f.rx[0]
	f.rx = f.rx[1:]
	return b, true, nil
}

func (f *fakeWire) Write(ctx context.Context, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.respond != nil {
		for _, out := range f.respond(buf) {
			f.rx = append(f.rx, out...)
		}
	}
	return nil
}

func TestClientExchange_SkipsEchoAndForeignTraffic(t *testing.T) {
	wire := &fakeWire{
		respond: func(req []byte) [][]byte {
			f, err := cat.Parse(req)
			if err != nil {
				t.Errorf("rig got malformed request: %v", err)
				return nil
			}
			return [][]byte{
				req, // echo
				// an answer for a different controller must be ignored
				cat.Build(0x42, 0xA4, cat.CmdReadFreq, 0x00, 0x00, 0x00, 0x07, 0x00),
				f.Reply(0xA4, cat.EncodeBCD(14074000, freqDigits)...),
			}
		},
	}
	c := newClient(wire, 0xE0, 0xA4, 2*time.Second)

	f, err := c.exchange(cat.CmdReadFreq)
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if got := cat.DecodeBCD(f.Payload); got != 14074000 {
		t.Fatalf("frequency: got %d, want 14074000", got)
	}
}

func TestClientExchange_SurfacesNG(t *testing.T) {
	wire := &fakeWire{
		respond: func(req []byte) [][]byte {
			f, err := cat.Parse(req)
			if err != nil {
				return nil
			}
			return [][]byte{req, f.NG(0xA4)}
		},
	}
	c := newClient(wire, 0xE0, 0xA4, 2*time.Second)

	_, err := c.exchange(cat.CmdSelectVFO, 0x07)
	if !errors.Is(err, errRefused) {
		t.Fatalf("expected refusal, got %v", err)
	}
}

func TestClientExchange_TimesOutWithoutAnswer(t *testing.T) {
	wire := &fakeWire{
		respond: func(req []byte) [][]byte {
			return [][]byte{req} // echo only, then silence
		},
	}
	c := newClient(wire, 0xE0, 0xA4, 150*time.Millisecond)

	_, err := c.exchange(cat.CmdReadFreq)
	if err == nil {
		t.Fatalf("expected a timeout error")
	}
}

func TestClientReadStatus_AgainstScriptedRig(t *testing.T) {
	freqs := map[byte]uint64{0x00: 14074000, 0x01: 7100000}
	wire := &fakeWire{}
	wire.respond = func(req []byte) [][]byte {
		f, err := cat.Parse(req)
		if err != nil {
			return nil
		}
		var answer []byte
		switch f.Opcode {
		case cat.CmdReadFreq:
			answer = f.Reply(0xA4, cat.EncodeBCD(freqs[0x00], freqDigits)...)
		case cat.CmdVFOMode:
			answer = f.Reply(0xA4, f.Payload[0], 0x01, 0x01, cat.CodeOK) // USB-D
		case cat.CmdVFOFreq:
			sel := f.Payload[0]
			answer = f.Reply(0xA4, append([]byte{sel}, cat.EncodeBCD(freqs[sel], freqDigits)...)...)
		case cat.CmdPTT:
			answer = f.Reply(0xA4, 0x00, 0x01) // transmitting
		default:
			answer = f.NG(0xA4)
		}
		return [][]byte{req, answer}
	}
	c := newClient(wire, 0xE0, 0xA4, 2*time.Second)

	st, err := c.readStatus()
	if err != nil {
		t.Fatalf("read status: %v", err)
	}
	if st.Active != 14074000 {
		t.Fatalf("active frequency: got %d, want 14074000", st.Active)
	}
	if st.Mode != domain.ModeUSBDig {
		t.Fatalf("mode: got %v, want USB-D", st.Mode)
	}
	if st.VFOFreq[domain.VFOA] != 14074000 || st.VFOFreq[domain.VFOB] != 7100000 {
		t.Fatalf("vfo frequencies: got %v", st.VFOFreq)
	}
	if !st.Transmit {
		t.Fatalf("expected transmit state")
	}
}
