package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/openx6100/catd/internal/domain"
)

// ADIFImporter folds contact logs exported by digital-mode software
// into the QSO log. Imported files are renamed with a .bak suffix so a
// sweep never processes the same file twice.
type ADIFImporter struct {
	logger *slog.Logger
	log    domain.QSORepository
}

func NewADIFImporter(logger *slog.Logger, log domain.QSORepository) *ADIFImporter {
	return &ADIFImporter{
		logger: logger,
		log:    log,
	}
}

// Sweep imports every .adi/.adif file found in dir. Errors are logged
// per file; one bad file does not stop the sweep.
func (i *ADIFImporter) Sweep(ctx context.Context, dir string) {
	var files []string
	for _, pattern := range []string{"*.adi", "*.adif"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			i.logger.Warn("adif spool glob failed", "dir", dir, "error", err)
			return
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		i.logger.Debug("no adif files to import", "dir", dir)
		return
	}

	for _, path := range files {
		imported, total, err := i.ImportFile(ctx, path)
		if err != nil {
			i.logger.Error("adif import failed", "file", path, "error", err)
			continue
		}
		i.logger.Info("adif import done", "file", path, "imported", imported, "records", total)
	}
}

// ImportFile parses one ADIF file, inserts its contacts and renames the
// file out of the way. Records the log schema cannot represent are
// skipped, not fatal.
func (i *ADIFImporter) ImportFile(ctx context.Context, path string) (imported, total int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, fmt.Errorf("read adif file: %w", err)
	}

	records := splitADIFRecords(string(data))
	for _, rec := range records {
		total++
		qso, ok := adifRecordQSO(rec)
		if !ok {
			i.logger.Debug("skipping adif record", "call", rec["CALL"], "mode", rec["MODE"])
			continue
		}
		inserted, err := i.log.Insert(ctx, qso)
		if err != nil {
			i.logger.Warn("adif record insert failed", "call", qso.RemoteCallsign, "error", err)
			continue
		}
		if inserted {
			imported++
		}
	}

	if err := os.Rename(path, path+".bak"); err != nil {
		return imported, total, fmt.Errorf("rename imported file: %w", err)
	}
	return imported, total, nil
}

// splitADIFRecords walks `<name:len>value` fields, collecting them into
// one map per <eor>. Anything before <eoh> is header and ignored.
func splitADIFRecords(text string) []map[string]string {
	if idx := strings.Index(strings.ToLower(text), "<eoh>"); idx >= 0 {
		text = text[idx+len("<eoh>"):]
	}

	var records []map[string]string
	fields := map[string]string{}
	for {
		start := strings.IndexByte(text, '<')
		if start < 0 {
			break
		}
		end := strings.IndexByte(text[start:], '>')
		if end < 0 {
			break
		}
		tag := text[start+1 : start+end]
		rest := text[start+end+1:]

		if strings.EqualFold(tag, "eor") {
			if len(fields) > 0 {
				records = append(records, fields)
				fields = map[string]string{}
			}
			text = rest
			continue
		}

		parts := strings.SplitN(tag, ":", 3)
		if len(parts) < 2 {
			text = rest
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || n < 0 || n > len(rest) {
			text = rest
			continue
		}
		fields[strings.ToUpper(strings.TrimSpace(parts[0]))] = rest[:n]
		text = rest[n:]
	}
	return records
}

func adifRecordQSO(rec map[string]string) (domain.QSO, bool) {
	call := strings.TrimSpace(rec["CALL"])
	if call == "" {
		return domain.QSO{}, false
	}
	local := strings.TrimSpace(rec["STATION_CALLSIGN"])
	if local == "" {
		local = strings.TrimSpace(rec["OPERATOR"])
	}
	if local == "" {
		return domain.QSO{}, false
	}
	mode, ok := adifMode(rec["MODE"], rec["SUBMODE"])
	if !ok {
		return domain.QSO{}, false
	}
	at, ok := adifTime(rec["QSO_DATE"], rec["TIME_ON"])
	if !ok {
		return domain.QSO{}, false
	}

	freq, _ := strconv.ParseFloat(strings.TrimSpace(rec["FREQ"]), 64)
	band := strings.ToLower(strings.TrimSpace(rec["BAND"]))
	if band == "" {
		band = adifBandFor(freq)
	}
	if band == "" {
		return domain.QSO{}, false
	}

	rsts, _ := strconv.Atoi(strings.TrimSpace(rec["RST_SENT"]))
	rstr, _ := strconv.Atoi(strings.TrimSpace(rec["RST_RCVD"]))

	return domain.QSO{
		At:             at,
		FreqMHz:        freq,
		Band:           band,
		Mode:           mode,
		LocalCallsign:  local,
		RemoteCallsign: call,
		RSTSent:        rsts,
		RSTRecv:        rstr,
		LocalGrid:      strings.TrimSpace(rec["MY_GRIDSQUARE"]),
		RemoteGrid:     strings.TrimSpace(rec["GRIDSQUARE"]),
		OpName:         strings.TrimSpace(rec["NAME"]),
		Comment:        strings.TrimSpace(rec["COMMENT"]),
	}, true
}

// adifMode collapses ADIF mode/submode pairs onto the closed set the
// log schema accepts.
func adifMode(mode, submode string) (string, bool) {
	mode = strings.ToUpper(strings.TrimSpace(mode))
	submode = strings.ToUpper(strings.TrimSpace(submode))
	switch mode {
	case "SSB", "USB", "LSB":
		return "SSB", true
	case "CW":
		return "CW", true
	case "FT8":
		return "FT8", true
	case "FT4":
		return "FT4", true
	case "MFSK":
		if submode == "FT4" {
			return "FT4", true
		}
		return "MFSK", true
	case "AM":
		return "AM", true
	case "FM":
		return "FM", true
	}
	return "", false
}

func adifTime(date, tm string) (time.Time, bool) {
	date = strings.TrimSpace(date)
	tm = strings.TrimSpace(tm)
	if len(date) != 8 {
		return time.Time{}, false
	}
	switch len(tm) {
	case 0:
		tm = "000000"
	case 4:
		tm += "00"
	case 6:
	default:
		return time.Time{}, false
	}
	t, err := time.Parse("20060102150405", date+tm)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

var adifBands = []struct {
	name      string
	low, high float64 // MHz
}{
	{"160m", 1.8, 2.0},
	{"80m", 3.5, 4.0},
	{"60m", 5.06, 5.45},
	{"40m", 7.0, 7.3},
	{"30m", 10.1, 10.15},
	{"20m", 14.0, 14.35},
	{"17m", 18.068, 18.168},
	{"15m", 21.0, 21.45},
	{"12m", 24.89, 24.99},
	{"10m", 28.0, 29.7},
	{"6m", 50.0, 54.0},
}

func adifBandFor(freqMHz float64) string {
	for _, b := range adifBands {
		if freqMHz >= b.low && freqMHz <= b.high {
			return b.name
		}
	}
	return ""
}
