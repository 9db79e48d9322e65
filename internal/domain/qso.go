package domain

import (
	"strings"
	"time"
)

// QSO is one contact-log entry.
type QSO struct {
	ID             int64
	At             time.Time
	FreqMHz        float64
	Band           string
	Mode           string
	LocalCallsign  string
	RemoteCallsign string
	RSTSent        int
	RSTRecv        int
	LocalGrid      string
	RemoteGrid     string
	OpName         string
	Comment        string
}

// QSOModes is the closed set of modulation labels the log accepts.
var QSOModes = []string{"SSB", "CW", "FT8", "FT4", "AM", "FM", "MFSK"}

// ValidQSOMode reports whether mode is one of QSOModes.
func ValidQSOMode(mode string) bool {
	for _, m := range QSOModes {
		if m == mode {
			return true
		}
	}
	return false
}

// Worked classifies whether a station was contacted before.
type Worked int

const (
	WorkedNo Worked = iota
	WorkedYes
	WorkedSameMode
)

func (w Worked) String() string {
	switch w {
	case WorkedYes:
		return "worked"
	case WorkedSameMode:
		return "worked same mode"
	}
	return "new"
}

// CanonizeCallsign reduces a callsign with portable prefixes or suffixes to
// its base form for worked-before matching: the result is the longest
// "/"-separated part that contains a digit, uppercased. A callsign with no
// such part is returned uppercased as a whole.
func CanonizeCallsign(callsign string) string {
	callsign = strings.ToUpper(strings.TrimSpace(callsign))
	if !strings.Contains(callsign, "/") {
		return callsign
	}

	best := ""
	for _, part := range strings.Split(callsign, "/") {
		if !strings.ContainsAny(part, "0123456789") {
			continue
		}
		if len(part) > len(best) {
			best = part
		}
	}
	if best == "" {
		return callsign
	}
	return best
}
