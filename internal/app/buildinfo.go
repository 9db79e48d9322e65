package app

import (
	"fmt"
	"runtime/debug"
	"strings"
	"time"
)

// Stamped by ldflags in release builds. Source builds fall back to the
// commit hash the Go toolchain embeds, when there is one.
var (
	Version   = "dev"
	BuildDate = ""
)

func BuildVersion() string {
	version := strings.TrimSpace(Version)
	switch version {
	case "":
		version = "dev"
	case "dev":
	default:
		return version
	}
	if rev := vcsRevision(); rev != "" {
		return version + "+" + rev
	}

	return version
}

// BuildDateYMD reduces the stamped build timestamp to a bare date.
// Build scripts have shipped both RFC3339 timestamps and plain dates;
// anything else passes through untouched.
func BuildDateYMD() string {
	raw := strings.TrimSpace(BuildDate)
	if raw == "" {
		return ""
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.Format("2006-01-02")
		}
	}

	return raw
}

func BuildVersionWithDate() string {
	version := BuildVersion()
	if date := BuildDateYMD(); date != "" {
		return fmt.Sprintf("%s (%s)", version, date)
	}

	return version
}

// vcsRevision digs the short commit hash out of the binary's embedded
// build info.
func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	var revision, modified string
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			modified = setting.Value
		}
	}
	if revision == "" {
		return ""
	}
	if len(revision) > 12 {
		revision = revision[:12]
	}
	if modified == "true" {
		revision += "-dirty"
	}

	return revision
}
