package reachscan

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if len(cfg.Ranges) != 35 {
		t.Errorf("Expected 35 default ranges, got %d", len(cfg.Ranges))
	}
	if len(cfg.Ports) != 11 || cfg.Ports[0] != 80 || cfg.Ports[10] != 2375 {
		t.Errorf("unexpected default ports %v", cfg.Ports)
	}
	if cfg.ProbeTimeout() != 500*time.Millisecond {
		t.Errorf("Expected 500ms timeout, got %v", cfg.ProbeTimeout())
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}

	// Callers must not be able to mutate the package defaults.
	cfg.Ranges[0] = "changed"
	if DefaultRanges[0] == "changed" {
		t.Error("DefaultConfig shares its slice with DefaultRanges")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"no ranges", func(c *Config) { c.Ranges = nil }, "ranges"},
		{"bad cidr", func(c *Config) { c.Ranges = []string{"10.0.0.0/8", "10.0.0.300/24"} }, "ranges"},
		{"host bits", func(c *Config) { c.Ranges = []string{"10.0.0.1/24"} }, "ranges"},
		{"no ports", func(c *Config) { c.Ports = []int{} }, "ports"},
		{"port zero", func(c *Config) { c.Ports = []int{80, 0} }, "ports"},
		{"port too high", func(c *Config) { c.Ports = []int{65536} }, "ports"},
		{"samples", func(c *Config) { c.MaxSamplesPerRange = 0 }, "maxSamplesPerRange"},
		{"concurrency", func(c *Config) { c.ConcurrencyLimit = -1 }, "concurrencyLimit"},
		{"timeout", func(c *Config) { c.ProbeTimeoutSeconds = 0 }, "probeTimeoutSeconds"},
		{"timeout truncates to zero", func(c *Config) { c.ProbeTimeoutSeconds = 1e-10 }, "probeTimeoutSeconds"},
		{"batch", func(c *Config) { c.BatchSize = 0 }, "batchSize"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Expected *ConfigError, got %v", err)
			}
			if cfgErr.Field != tt.wantField {
				t.Errorf("Field = %q, expected %q", cfgErr.Field, tt.wantField)
			}
		})
	}
}

func TestConfig_ValidateWrapsRangeError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Ranges = []string{"not-a-cidr"}
	var rangeErr *InvalidRangeError
	if !errors.As(cfg.Validate(), &rangeErr) {
		t.Fatal("Expected the config error to wrap *InvalidRangeError")
	}
	if rangeErr.CIDR != "not-a-cidr" {
		t.Errorf("CIDR = %q", rangeErr.CIDR)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.yaml")
	data := []byte("ranges:\n  - 10.0.0.0/30\nports: [9999, 80]\nconcurrencyLimit: 4\nprobeTimeoutSeconds: 0.25\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if len(cfg.Ranges) != 1 || cfg.Ranges[0] != "10.0.0.0/30" {
		t.Errorf("Ranges = %v", cfg.Ranges)
	}
	if len(cfg.Ports) != 2 || cfg.Ports[0] != 9999 {
		t.Errorf("Ports = %v", cfg.Ports)
	}
	if cfg.ConcurrencyLimit != 4 {
		t.Errorf("ConcurrencyLimit = %d", cfg.ConcurrencyLimit)
	}
	if cfg.ProbeTimeout() != 250*time.Millisecond {
		t.Errorf("ProbeTimeout = %v", cfg.ProbeTimeout())
	}
	// Keys not in the file keep their defaults.
	if cfg.MaxSamplesPerRange != DefaultMaxSamplesPerRange || cfg.BatchSize != DefaultBatchSize {
		t.Errorf("defaults not kept: %+v", cfg)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}

	unknown := filepath.Join(dir, "unknown.yaml")
	if err := os.WriteFile(unknown, []byte("concurrency: 5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadConfig(unknown)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("Expected *ConfigError for unknown key, got %v", err)
	}
}

func TestDecodeConfig_Empty(t *testing.T) {
	cfg := DefaultConfig()
	if err := DecodeConfig(nil, &cfg); err != nil {
		t.Fatalf("empty document: %v", err)
	}
	if len(cfg.Ranges) != len(DefaultRanges) {
		t.Error("empty document should keep defaults")
	}
}
