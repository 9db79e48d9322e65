package app

import (
	"strings"
	"testing"
)

func TestBuildVersion_FallsBackToDev(t *testing.T) {
	t.Cleanup(func() { Version = "dev" })

	// unstamped builds report dev, suffixed with a commit hash when the
	// toolchain embedded one
	Version = "  "
	if got := BuildVersion(); got != "dev" && !strings.HasPrefix(got, "dev+") {
		t.Fatalf("blank version: got %q, want dev", got)
	}
	Version = "1.4.0"
	if got := BuildVersion(); got != "1.4.0" {
		t.Fatalf("set version: got %q", got)
	}
}

func TestBuildDateYMD_AcceptsCommonFormats(t *testing.T) {
	t.Cleanup(func() { BuildDate = "" })

	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"empty", "", ""},
		{"rfc3339", "2025-08-21T12:34:56Z", "2025-08-21"},
		{"bare date", "2025-08-21", "2025-08-21"},
		{"unparseable passes through", "yesterday", "yesterday"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			BuildDate = tc.raw
			if got := BuildDateYMD(); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBuildVersionWithDate_CombinesBoth(t *testing.T) {
	t.Cleanup(func() {
		Version = "dev"
		BuildDate = ""
	})

	Version = "1.4.0"
	BuildDate = "2025-08-21T12:34:56Z"
	if got := BuildVersionWithDate(); got != "1.4.0 (2025-08-21)" {
		t.Fatalf("got %q", got)
	}

	BuildDate = ""
	if got := BuildVersionWithDate(); got != "1.4.0" {
		t.Fatalf("date-less build: got %q", got)
	}
}
