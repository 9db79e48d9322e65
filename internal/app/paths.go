package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths stores resolved runtime file locations.
type Paths struct {
	DataDir string
	DBFile  string
	LogFile string
	PidFile string
}

// ResolvePaths picks where state lives. A configured database path wins
// and pulls the log and pidfile into its directory, which keeps ad-hoc
// runs self-contained. Otherwise root gets the system layout and
// everyone else the per-user config dir.
func ResolvePaths(dbOverride string) (Paths, error) {
	if dbOverride != "" {
		dir := filepath.Dir(dbOverride)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return Paths{}, fmt.Errorf("create data dir: %w", err)
		}
		return Paths{
			DataDir: dir,
			DBFile:  dbOverride,
			LogFile: filepath.Join(dir, LogFilename),
			PidFile: filepath.Join(dir, PidFilename),
		}, nil
	}

	if os.Geteuid() == 0 {
		dataDir := filepath.Join("/var/lib", Name)
		if err := os.MkdirAll(dataDir, 0o750); err != nil {
			return Paths{}, fmt.Errorf("create data dir: %w", err)
		}
		return Paths{
			DataDir: dataDir,
			DBFile:  filepath.Join(dataDir, DBFilename),
			LogFile: filepath.Join(dataDir, LogFilename),
			PidFile: filepath.Join("/run", Name, PidFilename),
		}, nil
	}

	cfgRoot, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("resolve config dir: %w", err)
	}
	dataDir := filepath.Join(cfgRoot, Name)
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return Paths{}, fmt.Errorf("create data dir: %w", err)
	}
	return Paths{
		DataDir: dataDir,
		DBFile:  filepath.Join(dataDir, DBFilename),
		LogFile: filepath.Join(dataDir, LogFilename),
		PidFile: filepath.Join(dataDir, PidFilename),
	}, nil
}
