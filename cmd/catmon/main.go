package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/openx6100/catd/internal/cat"
	"github.com/openx6100/catd/internal/domain"
	"github.com/openx6100/catd/internal/transport"
)

const (
	defaultAddr       = "127.0.0.1:4532"
	defaultBaud       = 19200
	defaultController = "0xE0"
	defaultRig        = "0xA4"

	freqDigits = 10
)

// commandArity maps each command to the number of positional arguments
// it takes.
var commandArity = map[string]int{
	"status": 0,
	"watch":  0,
	"freq":   1,
	"mode":   1,
	"vfo":    1,
	"ptt":    1,
}

type options struct {
	Addr       string
	Device     string
	Baud       int
	Controller byte
	Rig        byte
	Timeout    time.Duration
	Every      time.Duration
	NoColor    bool
	Command    string
	Args       []string
}

func parseOptions(args []string) (options, error) {
	fs := flag.NewFlagSet("catmon", flag.ContinueOnError)
	addr := fs.String("addr", defaultAddr, "cat endpoint tcp address")
	dev := fs.String("dev", "", "serial device to use instead of tcp, e.g. /dev/ttyUSB0")
	baud := fs.Int("baud", defaultBaud, "serial baud rate")
	ctl := fs.String("ctl", defaultController, "controller bus address")
	rig := fs.String("rig", defaultRig, "rig bus address")
	timeout := fs.Duration("timeout", 3*time.Second, "per-exchange deadline")
	every := fs.Duration("every", time.Second, "watch interval")
	noColor := fs.Bool("no-color", false, "disable colored output")
	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintln(out, "usage: catmon [flags] [command]")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "commands:")
		fmt.Fprintln(out, "  status          print one state snapshot (default)")
		fmt.Fprintln(out, "  watch           print the state every interval")
		fmt.Fprintln(out, "  freq <value>    tune the active vfo, a dot means megahertz")
		fmt.Fprintln(out, "  mode <name>     set the active vfo mode (lsb usb lsb-d usb-d cw cw-r am fm)")
		fmt.Fprintln(out, "  vfo <a|b>       select the active vfo")
		fmt.Fprintln(out, "  ptt <on|off>    key or unkey the transmitter")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "flags:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts := options{
		Addr:    *addr,
		Device:  *dev,
		Baud:    *baud,
		Timeout: *timeout,
		Every:   *every,
		NoColor: *noColor,
	}
	var err error
	if opts.Controller, err = parseBusAddress(*ctl); err != nil {
		return options{}, fmt.Errorf("-ctl: %w", err)
	}
	if opts.Rig, err = parseBusAddress(*rig); err != nil {
		return options{}, fmt.Errorf("-rig: %w", err)
	}

	rest := fs.Args()
	if len(rest) == 0 {
		opts.Command = "status"
		return opts, nil
	}
	opts.Command = rest[0]
	opts.Args = rest[1:]
	want, ok := commandArity[opts.Command]
	if !ok {
		return options{}, fmt.Errorf("unknown command: %s", opts.Command)
	}
	if len(opts.Args) != want {
		return options{}, fmt.Errorf("command %s takes %d argument(s), got %d", opts.Command, want, len(opts.Args))
	}

	return opts, nil
}

func parseBusAddress(s string) (byte, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 8)
	if err != nil {
		return 0, fmt.Errorf("bad bus address %q", s)
	}

	return byte(v), nil
}

func main() {
	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "catmon:", err)
		os.Exit(2)
	}
	if opts.NoColor || !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, "catmon:", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	tr := pickTransport(opts)
	connectCtx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	err := tr.Connect(connectCtx)
	cancel()
	if err != nil {
		return err
	}
	defer tr.Close()

	c := newClient(tr, opts.Controller, opts.Rig, opts.Timeout)

	switch opts.Command {
	case "status":
		return printStatus(c)
	case "watch":
		return watch(c, opts.Every)
	case "freq":
		hz, err := parseFrequency(opts.Args[0])
		if err != nil {
			return err
		}
		if err := c.setFrequency(hz); err != nil {
			return err
		}
	case "mode":
		m, err := parseMode(opts.Args[0])
		if err != nil {
			return err
		}
		if err := c.setMode(m); err != nil {
			return err
		}
	case "vfo":
		v, err := parseVFO(opts.Args[0])
		if err != nil {
			return err
		}
		if err := c.selectVFO(v); err != nil {
			return err
		}
	case "ptt":
		on, err := parseOnOff(opts.Args[0])
		if err != nil {
			return err
		}
		if err := c.setPTT(on); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown command: %s", opts.Command)
	}

	// show what the rig settled on
	return printStatus(c)
}

func pickTransport(opts options) transport.Transport {
	if opts.Device != "" {
		return transport.NewSerialTransport(opts.Device, opts.Baud)
	}

	return transport.NewTCPClientTransport(opts.Addr)
}

var errRefused = errors.New("rig answered NG")

// client drives one CI-V conversation from the controller side.
type client struct {
	tr      transport.Transport
	fr      *cat.Framer
	ctl     byte
	rig     byte
	timeout time.Duration
}

func newClient(tr transport.Transport, ctl, rig byte, timeout time.Duration) *client {
	return &client{
		tr:      tr,
		fr:      cat.NewFramer(tr, 0),
		ctl:     ctl,
		rig:     rig,
		timeout: timeout,
	}
}

// exchange sends one command and returns the decoded answer. The rig
// echoes every command before answering it; the echo, bus noise and
// traffic addressed to other controllers are skipped.
func (c *client) exchange(opcode byte, payload ...byte) (cat.Frame, error) {
	req := cat.Build(c.rig, c.ctl, opcode, payload...)
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.tr.Write(ctx, req); err != nil {
		return cat.Frame{}, fmt.Errorf("send command 0x%02X: %w", opcode, err)
	}

	for {
		raw, err := c.fr.ReadFrame(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return cat.Frame{}, fmt.Errorf("no answer to 0x%02X within %s", opcode, c.timeout)
			}
			return cat.Frame{}, err
		}
		if len(raw) == 0 || bytes.Equal(raw, req) {
			continue
		}
		f, err := cat.Parse(raw)
		if err != nil {
			continue
		}
		if f.Dst != c.ctl || f.Opcode != opcode {
			continue
		}
		if len(f.Payload) == 1 && f.Payload[0] == cat.CodeNG {
			return cat.Frame{}, fmt.Errorf("%w: command 0x%02X", errRefused, opcode)
		}

		// the framer reuses its buffer across reads
		f.Payload = append([]byte(nil), f.Payload...)
		return f, nil
	}
}

// rigStatus is one polled snapshot of the remote radio.
type rigStatus struct {
	Active   uint64
	Mode     domain.Mode
	VFOFreq  [2]uint64
	Transmit bool
}

func (c *client) readStatus() (rigStatus, error) {
	var st rigStatus

	f, err := c.exchange(cat.CmdReadFreq)
	if err != nil {
		return st, err
	}
	st.Active = cat.DecodeBCD(f.Payload)

	// 0x26 instead of 0x04: its answer carries the data flag, so the
	// digital variants stay distinguishable
	f, err = c.exchange(cat.CmdVFOMode, 0x00)
	if err != nil {
		return st, err
	}
	if len(f.Payload) < 3 {
		return st, fmt.Errorf("short mode answer: % 02x", f.Payload)
	}
	if st.Mode, err = cat.WireToMode(f.Payload[1], f.Payload[2] != 0x00); err != nil {
		return st, err
	}

	for _, sel := range []byte{0x00, 0x01} {
		f, err = c.exchange(cat.CmdVFOFreq, sel)
		if err != nil {
			return st, err
		}
		if len(f.Payload) < 1+freqDigits/2 {
			return st, fmt.Errorf("short frequency answer: % 02x", f.Payload)
		}
		st.VFOFreq[sel] = cat.DecodeBCD(f.Payload[1:])
	}

	f, err = c.exchange(cat.CmdPTT, 0x00)
	if err != nil {
		return st, err
	}
	if len(f.Payload) < 2 {
		return st, fmt.Errorf("short ptt answer: % 02x", f.Payload)
	}
	st.Transmit = f.Payload[1] == 0x01

	return st, nil
}

func (c *client) setFrequency(hz uint64) error {
	_, err := c.exchange(cat.CmdWriteFreq, cat.EncodeBCD(hz, freqDigits)...)
	return err
}

func (c *client) setMode(m domain.Mode) error {
	code, err := cat.ModeToWire(m)
	if err != nil {
		return err
	}
	data := byte(0x00)
	if m.IsDigital() {
		data = 0x01
	}
	_, err = c.exchange(cat.CmdVFOMode, 0x00, code, data)

	return err
}

func (c *client) selectVFO(v domain.VFO) error {
	_, err := c.exchange(cat.CmdSelectVFO, byte(v))
	return err
}

func (c *client) setPTT(on bool) error {
	val := byte(0x00)
	if on {
		val = 0x01
	}
	_, err := c.exchange(cat.CmdPTT, 0x00, val)

	return err
}

var (
	labelColor = color.New(color.FgCyan)
	freqColor  = color.New(color.FgHiWhite, color.Bold)
	txColor    = color.New(color.FgHiWhite, color.BgRed)
	rxColor    = color.New(color.FgGreen)
)

func printStatus(c *client) error {
	st, err := c.readStatus()
	if err != nil {
		return err
	}

	fmt.Printf("%s %14s Hz  %s\n", labelColor.Sprintf("%-9s", "frequency"), freqColor.Sprint(formatFrequency(st.Active)), st.Mode)
	fmt.Printf("%s %14s Hz\n", labelColor.Sprintf("%-9s", "vfo a"), formatFrequency(st.VFOFreq[domain.VFOA]))
	fmt.Printf("%s %14s Hz\n", labelColor.Sprintf("%-9s", "vfo b"), formatFrequency(st.VFOFreq[domain.VFOB]))
	fmt.Printf("%s %s\n", labelColor.Sprintf("%-9s", "ptt"), transmitBadge(st.Transmit))

	return nil
}

func watch(c *client, every time.Duration) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		st, err := c.readStatus()
		if err != nil {
			return err
		}
		fmt.Printf("%s  %14s Hz  %-5s  %s\n",
			time.Now().Format("15:04:05"), formatFrequency(st.Active), st.Mode, transmitBadge(st.Transmit))

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func transmitBadge(tx bool) string {
	if tx {
		return txColor.Sprint(" TX ")
	}

	return rxColor.Sprint(" RX ")
}

// formatFrequency groups digits in threes the way rig displays do:
// 14074000 becomes 14.074.000.
func formatFrequency(hz uint64) string {
	s := strconv.FormatUint(hz, 10)
	if len(s) <= 3 {
		return s
	}

	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s[i : i+3])
	}

	return b.String()
}

// parseFrequency reads a frequency argument. Plain digits are hertz, a
// value with a decimal dot is megahertz.
func parseFrequency(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ".") {
		mhz, err := strconv.ParseFloat(s, 64)
		if err != nil || mhz <= 0 {
			return 0, fmt.Errorf("bad frequency: %s", s)
		}

		return uint64(math.Round(mhz * 1e6)), nil
	}
	hz, err := strconv.ParseUint(s, 10, 64)
	if err != nil || hz == 0 {
		return 0, fmt.Errorf("bad frequency: %s", s)
	}

	return hz, nil
}

func parseMode(s string) (domain.Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LSB":
		return domain.ModeLSB, nil
	case "LSB-D", "LSBD":
		return domain.ModeLSBDig, nil
	case "USB":
		return domain.ModeUSB, nil
	case "USB-D", "USBD":
		return domain.ModeUSBDig, nil
	case "CW":
		return domain.ModeCW, nil
	case "CW-R", "CWR":
		return domain.ModeCWR, nil
	case "AM":
		return domain.ModeAM, nil
	case "FM", "NFM":
		return domain.ModeNFM, nil
	}

	return 0, fmt.Errorf("unknown mode: %s", s)
}

func parseVFO(s string) (domain.VFO, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A":
		return domain.VFOA, nil
	case "B":
		return domain.VFOB, nil
	}

	return 0, fmt.Errorf("unknown vfo: %s", s)
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "1":
		return true, nil
	case "off", "0":
		return false, nil
	}

	return false, fmt.Errorf("want on or off, got: %s", s)
}
