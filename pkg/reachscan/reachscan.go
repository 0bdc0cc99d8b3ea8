// Package reachscan samples IPv4 ranges, checks each sampled address for TCP
// reachability on an ordered port list under a global concurrency ceiling,
// and pairs reachable addresses whose octets add up to the same value.
//
// Reachability means a TCP connect completed before the probe timeout. The
// first port that answers is recorded for an address; later ports are not
// tried. No raw sockets or elevated privileges are needed.
package reachscan

import (
	"context"
	"net/netip"
	"time"

	"github.com/marcuoli/go-reachscan/pkg/reachscan/fingerprint"
	"github.com/marcuoli/go-reachscan/pkg/reachscan/network"
	"github.com/marcuoli/go-reachscan/pkg/reachscan/probe"
	"github.com/marcuoli/go-reachscan/pkg/reachscan/scheduler"
)

// Report is the outcome of a scan run.
type Report struct {
	// Generated is the number of sampled addresses.
	Generated int
	// Records holds reachable addresses in sample order.
	Records []Record
	// Missed is the number of addresses where no port answered.
	Missed int
	// Pairs holds every pair of records sharing a fingerprint.
	Pairs        []Pair
	PeakInFlight int
	Elapsed      time.Duration
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithProber replaces the TCP prober, mainly for tests.
func WithProber(p Prober) Option {
	return func(s *Scanner) { s.prober = p }
}

// WithBatchCallback sets a callback invoked once per completed batch.
func WithBatchCallback(fn func(BatchProgress)) Option {
	return func(s *Scanner) { s.onBatch = fn }
}

// Scanner runs a configured scan.
type Scanner struct {
	cfg     Config
	ranges  []network.Range
	ports   []uint16
	prober  Prober
	onBatch func(BatchProgress)
}

// New validates cfg and returns a scanner. Invalid configuration is reported
// as a *ConfigError before anything is probed.
func New(cfg Config, opts ...Option) (*Scanner, error) {
	p, err := cfg.parse()
	if err != nil {
		debugLog(ComponentScan, "config rejected: %v", err)
		return nil, err
	}
	s := &Scanner{
		cfg:    cfg,
		ranges: p.ranges,
		ports:  p.ports,
		prober: probe.NewTCPProber(cfg.ProbeTimeout()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Config returns the configuration the scanner was built with.
func (s *Scanner) Config() Config {
	return s.cfg
}

// Addresses returns the sampled address set in scan order.
func (s *Scanner) Addresses() []netip.Addr {
	return network.SampleRanges(s.ranges, s.cfg.MaxSamplesPerRange)
}

// Run samples, scans and aggregates. Probe failures never surface as errors;
// the only error is ctx ending early, returned with the partial report.
func (s *Scanner) Run(ctx context.Context) (*Report, error) {
	addrs := s.Addresses()
	debugLog(ComponentScan, "sampled %d addresses from %d ranges", len(addrs), len(s.ranges))

	sched := scheduler.New(s.prober, s.ports, s.cfg.ConcurrencyLimit)
	sched.BatchSize = s.cfg.BatchSize
	sched.OnBatch = s.onBatch
	res, err := sched.Schedule(ctx, addrs)

	report := &Report{
		Generated:    len(addrs),
		Records:      res.Records,
		Missed:       res.Missed,
		Pairs:        fingerprint.Aggregate(res.Records),
		PeakInFlight: res.PeakInFlight,
		Elapsed:      res.Elapsed,
	}
	debugLog(ComponentScan, "%d reachable, %d pairs, %v", len(report.Records), len(report.Pairs), report.Elapsed)
	return report, err
}
