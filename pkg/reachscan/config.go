// Package reachscan: Scan configuration.
package reachscan

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/marcuoli/go-reachscan/pkg/reachscan/network"
)

// DefaultRanges are the public ranges scanned when no configuration is given.
var DefaultRanges = []string{
	"8.8.8.0/24",       // Google DNS
	"1.1.1.0/24",       // Cloudflare DNS
	"172.217.0.0/16",   // Google
	"104.16.0.0/12",    // Cloudflare
	"192.30.252.0/22",  // GitHub
	"13.32.0.0/15",     // Amazon AWS
	"157.240.0.0/16",   // Facebook
	"151.101.0.0/16",   // Fastly CDN
	"198.41.128.0/17",  // Cloudflare
	"35.190.0.0/17",    // Google Cloud
	"52.0.0.0/11",      // Amazon AWS
	"34.0.0.0/8",       // Google Cloud Platform
	"199.232.0.0/16",   // GitHub Pages
	"140.82.112.0/20",  // GitHub
	"185.199.108.0/22", // GitHub Pages
	"20.0.0.0/8",       // Microsoft Azure
	"40.64.0.0/10",     // Microsoft Azure
	"104.244.40.0/21",  // Twitter
	"69.171.250.0/24",  // Facebook
	"31.13.64.0/18",    // Facebook
	"66.220.144.0/20",  // Facebook
	"208.80.152.0/22",  // Wikimedia
	"91.198.174.0/24",  // Wikimedia
	"103.102.166.0/24", // Cloudflare
	"173.245.48.0/20",  // Cloudflare
	"190.93.240.0/20",  // Cloudflare
	"205.251.192.0/18", // Amazon CloudFront
	"54.230.0.0/16",    // Amazon CloudFront
	"99.84.0.0/16",     // Amazon CloudFront
	"204.79.197.0/24",  // Microsoft
	"23.0.0.0/8",       // Akamai
	"96.16.0.0/15",     // Akamai
	"72.21.0.0/16",     // Amazon
	"74.125.0.0/16",    // Google
	"216.58.192.0/19",  // Google
}

// DefaultPorts are probed in this order; earlier ports take precedence.
var DefaultPorts = []int{80, 443, 22, 21, 8080, 8443, 53, 25, 23, 8000, 2375}

const (
	DefaultMaxSamplesPerRange  = 200
	DefaultConcurrencyLimit    = 1000
	DefaultProbeTimeoutSeconds = 0.5
	DefaultBatchSize           = 1000
)

// Config is the scan configuration.
type Config struct {
	// Ranges are IPv4 CIDRs with no host bits set.
	Ranges []string `yaml:"ranges"`
	// Ports are tried per host in order, 1..65535.
	Ports               []int   `yaml:"ports"`
	MaxSamplesPerRange  int     `yaml:"maxSamplesPerRange"`
	ConcurrencyLimit    int     `yaml:"concurrencyLimit"`
	ProbeTimeoutSeconds float64 `yaml:"probeTimeoutSeconds"`
	// BatchSize only affects progress reporting.
	BatchSize int `yaml:"batchSize"`
}

// DefaultConfig returns the compiled-in configuration.
func DefaultConfig() Config {
	return Config{
		Ranges:              append([]string(nil), DefaultRanges...),
		Ports:               append([]int(nil), DefaultPorts...),
		MaxSamplesPerRange:  DefaultMaxSamplesPerRange,
		ConcurrencyLimit:    DefaultConcurrencyLimit,
		ProbeTimeoutSeconds: DefaultProbeTimeoutSeconds,
		BatchSize:           DefaultBatchSize,
	}
}

// ConfigError reports an invalid configuration value. It is always returned
// before any scanning starts.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "invalid config: " + e.Field + ": " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Validate checks every field and returns the first problem as a *ConfigError.
// A malformed range wraps a *network.InvalidRangeError.
func (c Config) Validate() error {
	_, err := c.parse()
	return err
}

// ProbeTimeout returns the per-probe timeout as a duration.
func (c Config) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSeconds * float64(time.Second))
}

// parsed holds validated, typed configuration values.
type parsed struct {
	ranges []network.Range
	ports  []uint16
}

func (c Config) parse() (*parsed, error) {
	if len(c.Ranges) == 0 {
		return nil, &ConfigError{Field: "ranges", Err: errors.New("no ranges configured")}
	}
	ranges, err := network.ParseRanges(c.Ranges)
	if err != nil {
		return nil, &ConfigError{Field: "ranges", Err: err}
	}

	if len(c.Ports) == 0 {
		return nil, &ConfigError{Field: "ports", Err: errors.New("no ports configured")}
	}
	ports := make([]uint16, 0, len(c.Ports))
	for _, p := range c.Ports {
		if p < 1 || p > 65535 {
			return nil, &ConfigError{Field: "ports", Err: errors.Errorf("port %d out of range 1-65535", p)}
		}
		ports = append(ports, uint16(p))
	}

	for _, f := range []struct {
		name  string
		value float64
	}{
		{"maxSamplesPerRange", float64(c.MaxSamplesPerRange)},
		{"concurrencyLimit", float64(c.ConcurrencyLimit)},
		{"probeTimeoutSeconds", c.ProbeTimeoutSeconds},
		{"batchSize", float64(c.BatchSize)},
	} {
		if f.value <= 0 {
			return nil, &ConfigError{Field: f.name, Err: errors.Errorf("must be positive, got %v", f.value)}
		}
	}

	if c.ProbeTimeout() <= 0 {
		return nil, &ConfigError{Field: "probeTimeoutSeconds", Err: errors.Errorf("%v is below 1ns", c.ProbeTimeoutSeconds)}
	}

	return &parsed{ranges: ranges, ports: ports}, nil
}

// LoadConfig reads a YAML file on top of DefaultConfig. Keys missing from the
// file keep their default value; unknown keys are rejected. The result is not
// validated.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := DecodeConfig(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// DecodeConfig decodes YAML into cfg, overriding only the keys present.
func DecodeConfig(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		// An empty document leaves the defaults in place.
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &ConfigError{Field: "file", Err: err}
	}
	return nil
}
