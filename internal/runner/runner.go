package runner

import (
	"context"
	stderrors "errors"
	"net/netip"
	"time"

	"github.com/pkg/errors"
	"github.com/projectdiscovery/gologger"

	"github.com/marcuoli/go-reachscan/internal/output"
	"github.com/marcuoli/go-reachscan/pkg/reachscan"
	"github.com/marcuoli/go-reachscan/pkg/reachscan/dns"
)

// minConcurrency is the floor applied when clamping to the descriptor limit.
const minConcurrency = 8

// Runner contains the internal logic of the program
type Runner struct {
	options  *Options
	config   reachscan.Config
	scanner  *reachscan.Scanner
	resolver *dns.Resolver
}

// NewRunner builds the scan configuration and the scanner. Configuration
// errors are returned before anything is probed.
func NewRunner(options *Options) (*Runner, error) {
	return newRunner(options, fdSoftLimit())
}

func newRunner(options *Options, fdLimit uint64, opts ...reachscan.Option) (*Runner, error) {
	cfg, err := options.Config()
	if err != nil {
		return nil, err
	}

	if limit, clamped := clampConcurrency(cfg.ConcurrencyLimit, fdLimit); clamped {
		gologger.Warning().Msgf("concurrency %d exceeds a quarter of the open file limit (%d), using %d", cfg.ConcurrencyLimit, fdLimit, limit)
		cfg.ConcurrencyLimit = limit
	}

	r := &Runner{options: options, config: cfg}
	opts = append([]reachscan.Option{reachscan.WithBatchCallback(r.onBatch)}, opts...)
	r.scanner, err = reachscan.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if options.Resolve {
		r.resolver = dns.NewResolver(options.Resolver)
	}
	return r, nil
}

// clampConcurrency caps requested at a quarter of the descriptor soft limit,
// never going below minConcurrency. A zero limit means unknown.
func clampConcurrency(requested int, fdLimit uint64) (int, bool) {
	if fdLimit == 0 {
		return requested, false
	}
	limit := fdLimit / 4
	if limit < minConcurrency {
		limit = minConcurrency
	}
	if uint64(requested) <= limit {
		return requested, false
	}
	return int(limit), true
}

// Run scans, reports and persists. Scan results are always written, even
// when ctx ended early; every sink is attempted before an error is returned.
func (r *Runner) Run(ctx context.Context) error {
	gologger.Info().Msgf("Generating addresses from %d ranges", len(r.config.Ranges))
	gologger.Info().Msgf("Probing %d ports with concurrency %d and timeout %v",
		len(r.config.Ports), r.config.ConcurrencyLimit, r.config.ProbeTimeout())

	report, scanErr := r.scanner.Run(ctx)
	if scanErr != nil {
		gologger.Warning().Msgf("scan interrupted: %v", scanErr)
	}

	gologger.Info().Msgf("Generated %s addresses, %s reachable in %s",
		au.Bold(report.Generated), au.Green(len(report.Records)), au.Bold(report.Elapsed.Round(time.Millisecond)))
	gologger.Info().Msgf("Found %s pairs with equal octet sums", au.Bold(len(report.Pairs)))
	gologger.Verbose().Msgf("peak in-flight hosts: %d", report.PeakInFlight)

	hostnames := r.resolve(ctx, report.Records)

	if err := r.persist(report, hostnames); err != nil {
		return err
	}
	return errors.Wrap(scanErr, "scan")
}

func (r *Runner) onBatch(p reachscan.BatchProgress) {
	gologger.Info().Msgf("batch %d/%d: %d reachable", p.Index+1, p.Total, p.Found)
}

// resolve returns PTR names index-aligned with records, or nil when
// resolution is disabled.
func (r *Runner) resolve(ctx context.Context, records []reachscan.Record) []string {
	if r.resolver == nil {
		return nil
	}
	addrs := make([]netip.Addr, len(records))
	for i, rec := range records {
		addrs[i] = rec.Addr
	}
	gologger.Info().Msgf("Resolving %d addresses via %s", len(addrs), r.resolver.Server)

	hostnames := make([]string, len(records))
	resolved := 0
	for i, res := range r.resolver.LookupMultiple(ctx, addrs) {
		if res == nil {
			continue
		}
		hostnames[i] = res.Hostname
		if res.Hostname != "" {
			resolved++
		}
	}
	gologger.Info().Msgf("Resolved %d/%d addresses", resolved, len(addrs))
	return hostnames
}

// persist writes every configured sink and joins their errors.
func (r *Runner) persist(report *reachscan.Report, hostnames []string) error {
	var errs []error

	if err := output.WritePairs(r.options.PairsOutput, report.Pairs); err != nil {
		gologger.Error().Msgf("%s", err)
		errs = append(errs, err)
	} else {
		gologger.Info().Msgf("Pairs saved to %s", r.options.PairsOutput)
	}

	if err := output.WriteReachable(r.options.ReachableOutput, report.Records, hostnames); err != nil {
		gologger.Error().Msgf("%s", err)
		errs = append(errs, err)
	} else {
		gologger.Info().Msgf("Reachable addresses saved to %s", r.options.ReachableOutput)
	}

	if r.options.XLSXOutput != "" {
		err := output.WriteWorkbook(r.options.XLSXOutput,
			output.PairsTable(report.Pairs),
			output.ReachableTable(report.Records, hostnames),
		)
		if err != nil {
			gologger.Error().Msgf("%s", err)
			errs = append(errs, err)
		} else {
			gologger.Info().Msgf("Workbook saved to %s", r.options.XLSXOutput)
		}
	}

	return stderrors.Join(errs...)
}
