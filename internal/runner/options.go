package runner

import (
	"os"
	"strconv"
	"time"

	"github.com/logrusorgru/aurora/v4"
	"github.com/pkg/errors"
	"github.com/projectdiscovery/goflags"
	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/gologger/formatter"
	"github.com/projectdiscovery/gologger/levels"
	fileutil "github.com/projectdiscovery/utils/file"

	"github.com/marcuoli/go-reachscan/internal/output"
	"github.com/marcuoli/go-reachscan/pkg/reachscan"
)

var au *aurora.Aurora

func init() {
	au = aurora.New(aurora.WithColors(true))
}

// Options contains the command line options. Zero values mean "not set" and
// leave the config file or compiled-in value in place.
type Options struct {
	ConfigFile string

	Ranges      goflags.StringSlice
	Ports       goflags.StringSlice
	MaxSamples  int
	Concurrency int
	Timeout     time.Duration
	BatchSize   int

	Resolve  bool
	Resolver string

	PairsOutput     string
	ReachableOutput string
	XLSXOutput      string

	Silent  bool
	Verbose bool
	Debug   bool
	NoColor bool
	Version bool
}

// ParseOptions parses the command line flags provided by a user
func ParseOptions() *Options {
	options := &Options{}
	flagSet := goflags.NewFlagSet()

	flagSet.SetDescription(`reachscan samples public IPv4 ranges, finds hosts that accept TCP connections and pairs them by octet sum`)

	flagSet.CreateGroup("input", "Input",
		flagSet.StringVar(&options.ConfigFile, "config", "", "yaml scan configuration file"),
		flagSet.StringSliceVarP(&options.Ranges, "range", "r", nil, "ipv4 ranges to sample (comma separated cidrs)", goflags.CommaSeparatedStringSliceOptions),
		flagSet.StringSliceVarP(&options.Ports, "port", "p", nil, "ports to probe in order (comma separated)", goflags.CommaSeparatedStringSliceOptions),
		flagSet.IntVarP(&options.MaxSamples, "max-samples", "ms", 0, "maximum addresses sampled per range"),
	)

	flagSet.CreateGroup("scan", "Scan",
		flagSet.IntVarP(&options.Concurrency, "concurrency", "c", 0, "maximum hosts probed at once"),
		flagSet.DurationVarP(&options.Timeout, "timeout", "t", 0, "timeout per connect attempt (e.g. 500ms)"),
		flagSet.IntVarP(&options.BatchSize, "batch-size", "bs", 0, "addresses per progress report"),
		flagSet.BoolVar(&options.Resolve, "resolve", false, "resolve ptr names for reachable addresses"),
		flagSet.StringVar(&options.Resolver, "resolver", "", "dns server used with -resolve (host[:port])"),
	)

	flagSet.CreateGroup("output", "Output",
		flagSet.StringVarP(&options.PairsOutput, "pairs-output", "po", output.DefaultPairsFile, "csv file for address pairs"),
		flagSet.StringVarP(&options.ReachableOutput, "reachable-output", "ro", output.DefaultReachableFile, "csv file for reachable addresses"),
		flagSet.StringVar(&options.XLSXOutput, "xlsx", "", "also write both tables to an excel workbook"),
	)

	flagSet.CreateGroup("debug", "Debug",
		flagSet.BoolVar(&options.Version, "version", false, "show version of the project"),
		flagSet.BoolVar(&options.Silent, "silent", false, "show only errors"),
		flagSet.BoolVarP(&options.Verbose, "verbose", "v", false, "show verbose output"),
		flagSet.BoolVar(&options.Debug, "debug", false, "show every probe and lookup"),
		flagSet.BoolVarP(&options.NoColor, "no-color", "nc", false, "disable output content coloring (ANSI escape codes)"),
	)

	if err := flagSet.Parse(); err != nil {
		gologger.Fatal().Msgf("%s\n", err)
	}

	options.configureOutput()

	showBanner()

	if options.Version {
		gologger.Info().Msgf("Current Version: %s\n", reachscan.Version)
		os.Exit(0)
	}

	return options
}

// configureOutput configures the output on the screen
func (options *Options) configureOutput() {
	if options.Verbose {
		gologger.DefaultLogger.SetMaxLevel(levels.LevelVerbose)
		reachscan.SetDebugLevel(reachscan.DebugBasic)
	}
	if options.Debug {
		gologger.DefaultLogger.SetMaxLevel(levels.LevelDebug)
		reachscan.SetDebugLevel(reachscan.DebugVerbose)
	}
	if options.NoColor {
		gologger.DefaultLogger.SetFormatter(formatter.NewCLI(true))
		au = aurora.New(aurora.WithColors(false))
	}
	if options.Silent {
		gologger.DefaultLogger.SetMaxLevel(levels.LevelSilent)
		reachscan.SetDebugLevel(reachscan.DebugOff)
	}
	reachscan.SetDebugLogger(func(component reachscan.Component, format string, args ...interface{}) {
		if options.Debug {
			gologger.Debug().Label(reachscan.ComponentToPrefix(component)).Msgf(format, args...)
			return
		}
		gologger.Verbose().Label(reachscan.ComponentToPrefix(component)).Msgf(format, args...)
	})
}

// Config builds the scan configuration: compiled-in defaults, then the config
// file, then flags. The result is validated.
func (options *Options) Config() (reachscan.Config, error) {
	cfg := reachscan.DefaultConfig()

	if options.ConfigFile != "" {
		if !fileutil.FileExists(options.ConfigFile) {
			return cfg, &reachscan.ConfigError{Field: "config", Err: errors.Errorf("%s does not exist", options.ConfigFile)}
		}
		loaded, err := reachscan.LoadConfig(options.ConfigFile)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if len(options.Ranges) > 0 {
		cfg.Ranges = append([]string(nil), options.Ranges...)
	}
	if len(options.Ports) > 0 {
		ports := make([]int, 0, len(options.Ports))
		for _, p := range options.Ports {
			n, err := strconv.Atoi(p)
			if err != nil {
				return cfg, &reachscan.ConfigError{Field: "ports", Err: errors.Wrapf(err, "port %q", p)}
			}
			ports = append(ports, n)
		}
		cfg.Ports = ports
	}
	if options.MaxSamples > 0 {
		cfg.MaxSamplesPerRange = options.MaxSamples
	}
	if options.Concurrency > 0 {
		cfg.ConcurrencyLimit = options.Concurrency
	}
	if options.Timeout > 0 {
		cfg.ProbeTimeoutSeconds = options.Timeout.Seconds()
	}
	if options.BatchSize > 0 {
		cfg.BatchSize = options.BatchSize
	}

	return cfg, cfg.Validate()
}
