// Package config resolves the keystore's data directory. Flag parsing
// itself lives in cmd/lair-keystore/main.go; this package only states the
// resolution rule: an explicit flag value overrides the LAIR_DIR
// environment variable.
package config

import (
	"os"
	"path/filepath"

	"github.com/Connoropolous/lair-keystore/lairerr"
)

// EnvDataDir is the environment variable consulted when no flag value is
// given.
const EnvDataDir = "LAIR_DIR"

// SocketFileName is the Unix domain socket file created inside the data
// directory.
const SocketFileName = "socket"

// ResolveDataDir returns flagValue if non-empty, otherwise the value of
// LAIR_DIR, otherwise an error: the keystore has no sensible default data
// directory to fall back to.
func ResolveDataDir(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if env := os.Getenv(EnvDataDir); env != "" {
		return env, nil
	}
	return "", lairerr.New(lairerr.BadInput, "no data directory given: pass --lair-dir or set LAIR_DIR")
}

// SocketPath returns the path of the Unix domain socket inside dataDir.
func SocketPath(dataDir string) string {
	return filepath.Join(dataDir, SocketFileName)
}

// EnsureDataDir creates dataDir (and any missing parents) with owner-only
// permissions if it does not already exist.
func EnsureDataDir(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return lairerr.Wrap(lairerr.StoreWriteFailed, "creating data directory", err)
	}
	return nil
}
