// Package config handles loading, saving and validating the client
// configuration from a simple key=value file.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config holds the client configuration. Secrets (the pinning service
// credentials) are read from the environment, not from this file.
type Config struct {
	// DataDir is the root directory for the keystore, the embedded
	// ledger and the local blob store.
	DataDir string

	// Backend selects the blob store: "pinata" (remote pinning
	// service) or "local" (filesystem, for offline use).
	Backend string

	// Gateway overrides the IPFS gateway used for fetches. Empty
	// means the pinning client's default.
	Gateway string

	// LedgerURL points at a remote ledger node. Empty means the
	// embedded ledger at DataDir.
	LedgerURL string

	// History selects the pointer model: "single" (one live pointer
	// per owner, re-uploads orphan the previous blob) or "keep"
	// (append-only pointer log).
	History string

	// UnpinReplaced makes a successful upload unpin the blob the
	// previous pointer referenced. Only meaningful with History
	// "single".
	UnpinReplaced bool

	LogLevel string
	LogFile  string
}

// DefaultDataDir returns the default data directory (~/.prism).
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".prism"
	}
	return filepath.Join(home, ".prism")
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DataDir:  DefaultDataDir(),
		Backend:  "local",
		History:  "single",
		LogLevel: "info",
	}
}

// ConfigPath returns the path of the config file inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config")
}

// KeystorePath returns the path of the encrypted keystore inside dataDir.
func KeystorePath(dataDir string) string {
	return filepath.Join(dataDir, "keystore.json")
}

// LedgerPath returns the path of the embedded ledger inside dataDir.
func LedgerPath(dataDir string) string {
	return filepath.Join(dataDir, "ledger.db")
}

// BlobDir returns the local blob store directory inside dataDir.
func BlobDir(dataDir string) string {
	return filepath.Join(dataDir, "blobs")
}

// LoadConfig reads a config file, applying file values over defaults.
// Blank lines and lines starting with '#' are skipped; unknown keys
// are ignored for forward compatibility.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, fmt.Errorf("config: open: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return cfg, fmt.Errorf("%w: line %d: %q", ErrInvalidConfigLine, lineNo, line)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "datadir":
			cfg.DataDir = value
		case "backend":
			cfg.Backend = value
		case "gateway":
			cfg.Gateway = value
		case "ledgerurl":
			cfg.LedgerURL = value
		case "history":
			cfg.History = value
		case "unpinreplaced":
			cfg.UnpinReplaced = value == "true" || value == "1"
		case "loglevel":
			cfg.LogLevel = value
		case "logfile":
			cfg.LogFile = value
		}
	}
	if err := scanner.Err(); err != nil {
		return cfg, fmt.Errorf("config: read: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes cfg to path in key=value form, creating parent
// directories as needed.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# prism client configuration\n")
	fmt.Fprintf(&b, "datadir = %s\n", cfg.DataDir)
	fmt.Fprintf(&b, "backend = %s\n", cfg.Backend)
	fmt.Fprintf(&b, "gateway = %s\n", cfg.Gateway)
	fmt.Fprintf(&b, "ledgerurl = %s\n", cfg.LedgerURL)
	fmt.Fprintf(&b, "history = %s\n", cfg.History)
	fmt.Fprintf(&b, "unpinreplaced = %t\n", cfg.UnpinReplaced)
	fmt.Fprintf(&b, "loglevel = %s\n", cfg.LogLevel)
	fmt.Fprintf(&b, "logfile = %s\n", cfg.LogFile)

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("config: write: %w", err)
	}
	return nil
}
