package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// DefaultConfig tests
// ---------------------------------------------------------------------------

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"Backend", cfg.Backend, "local"},
		{"History", cfg.History, "single"},
		{"LogLevel", cfg.LogLevel, "info"},
		{"LedgerURL", cfg.LedgerURL, ""},
		{"UnpinReplaced", cfg.UnpinReplaced, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("got %v, want %v", tc.got, tc.want)
			}
		})
	}

	// DataDir should end with .prism (we don't assert the full path
	// since it depends on the home directory).
	if cfg.DataDir == "" {
		t.Error("DataDir should not be empty")
	}
}

func TestDefaultDataDir_EndsWith_DotPrism(t *testing.T) {
	dir := DefaultDataDir()
	if !strings.HasSuffix(dir, ".prism") {
		t.Errorf("DefaultDataDir() = %q, want suffix %q", dir, ".prism")
	}
}

// ---------------------------------------------------------------------------
// SaveConfig / LoadConfig round-trip tests
// ---------------------------------------------------------------------------

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")

	original := Config{
		DataDir:       "/tmp/test-prism",
		Backend:       "pinata",
		Gateway:       "https://gw.example/ipfs/",
		LedgerURL:     "https://ledger.example:8332",
		History:       "keep",
		UnpinReplaced: true,
		LogLevel:      "debug",
		LogFile:       "/tmp/prism.log",
	}

	if err := SaveConfig(path, original); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if loaded != original {
		t.Errorf("round trip: got %+v, want %+v", loaded, original)
	}
}

func TestSaveConfigCreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subdir", "config")

	cfg := DefaultConfig()
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig should create parent dirs: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("Config file not created: %v", err)
	}
}

// ---------------------------------------------------------------------------
// LoadConfig error tests
// ---------------------------------------------------------------------------

func TestLoadConfigNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/config")
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("LoadConfig nonexistent: got %v, want ErrConfigNotFound", err)
	}
}

func TestLoadConfigInvalidLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")

	content := "this-is-not-key-value\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := LoadConfig(path)
	if !errors.Is(err, ErrInvalidConfigLine) {
		t.Errorf("LoadConfig bad line: got %v, want ErrInvalidConfigLine", err)
	}
}

func TestLoadConfigCommentsAndBlanks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")

	content := `# This is a comment
backend = pinata

# Another comment
loglevel = debug
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Backend != "pinata" {
		t.Errorf("Backend = %q, want %q", cfg.Backend, "pinata")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	// Unset fields should retain defaults.
	if cfg.History != "single" {
		t.Errorf("History = %q, want default %q", cfg.History, "single")
	}
}

func TestLoadConfigUnknownKeysIgnored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")

	content := "futurekey = futurevalue\nbackend = pinata\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig with unknown key: %v", err)
	}
	if cfg.Backend != "pinata" {
		t.Errorf("Backend = %q, want %q", cfg.Backend, "pinata")
	}
}

func TestLoadConfig_EmptyValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")

	content := "gateway=\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Gateway != "" {
		t.Errorf("Gateway = %q, want empty string", cfg.Gateway)
	}
}

func TestLoadConfigBoolValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")

	for _, tc := range []struct {
		value string
		want  bool
	}{
		{"true", true},
		{"1", true},
		{"false", false},
		{"no", false},
	} {
		content := "unpinreplaced = " + tc.value + "\n"
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig: %v", err)
		}
		if cfg.UnpinReplaced != tc.want {
			t.Errorf("unpinreplaced=%q: got %v, want %v", tc.value, cfg.UnpinReplaced, tc.want)
		}
	}
}

// ---------------------------------------------------------------------------
// ValidateConfig tests
// ---------------------------------------------------------------------------

func TestValidateConfigDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if err := ValidateConfig(cfg); err != nil {
		t.Errorf("ValidateConfig(DefaultConfig()) = %v, want nil", err)
	}
}

func TestValidateConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{
			name:    "empty_datadir",
			modify:  func(c *Config) { c.DataDir = "" },
			wantErr: ErrEmptyDataDir,
		},
		{
			name:    "bad_backend",
			modify:  func(c *Config) { c.Backend = "s3" },
			wantErr: ErrInvalidBackend,
		},
		{
			name:    "bad_history",
			modify:  func(c *Config) { c.History = "forever" },
			wantErr: ErrInvalidHistory,
		},
		{
			name:    "bad_ledger_url_scheme",
			modify:  func(c *Config) { c.LedgerURL = "ftp://ledger.example" },
			wantErr: ErrInvalidLedgerURL,
		},
		{
			name:    "bad_loglevel",
			modify:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: ErrInvalidLogLevel,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(&cfg)
			err := ValidateConfig(cfg)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("ValidateConfig: got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestValidateConfigValidBackends(t *testing.T) {
	for _, backend := range []string{"pinata", "local"} {
		cfg := DefaultConfig()
		cfg.Backend = backend
		if err := ValidateConfig(cfg); err != nil {
			t.Errorf("ValidateConfig with backend %q: %v", backend, err)
		}
	}
}

func TestValidateConfigValidLogLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := DefaultConfig()
		cfg.LogLevel = level
		if err := ValidateConfig(cfg); err != nil {
			t.Errorf("ValidateConfig with loglevel %q: %v", level, err)
		}
	}
}

// ---------------------------------------------------------------------------
// Path helper tests
// ---------------------------------------------------------------------------

func TestPathHelpers(t *testing.T) {
	dataDir := "/home/user/.prism"
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"ConfigPath", ConfigPath(dataDir), filepath.Join(dataDir, "config")},
		{"KeystorePath", KeystorePath(dataDir), filepath.Join(dataDir, "keystore.json")},
		{"LedgerPath", LedgerPath(dataDir), filepath.Join(dataDir, "ledger.db")},
		{"BlobDir", BlobDir(dataDir), filepath.Join(dataDir, "blobs")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("got %q, want %q", tc.got, tc.want)
			}
		})
	}
}
