package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"

	"dvbscan/dvbfile"
	"dvbscan/scan"
	"dvbscan/store"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func usage() {
	fmt.Fprintf(
		os.Stderr,
		"Usage: %s [OPTION] INITIAL-FILE\nOptions:\n",
		filepath.Base(os.Args[0]),
	)
	flag.PrintDefaults()
	os.Exit(1)
}

// -v counter, can be repeated
type verbosity int

func (v *verbosity) String() string { return strconv.Itoa(int(*v)) }

func (v *verbosity) Set(s string) error {
	inc, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	if inc {
		*v++
	}
	return nil
}

func (v *verbosity) IsBoolFlag() bool { return true }

type options struct {
	config    ScanConfig
	verbose   int
	input     string
	configSet map[string]bool
}

func parseFlags(fs *flag.FlagSet, args []string) (*options, error) {
	opts := new(options)
	var verbose verbosity

	adapter := fs.Int("a", 0, "adapter number")
	frontend := fs.Int("f", 0, "frontend number")
	demux := fs.Int("d", 0, "demux number")
	fs.Var(&verbose, "v", "verbose, repeat for more details")
	legacy := fs.Bool(
		"O", false,
		"input file uses the old channel format",
	)
	zapFormat := fs.Bool(
		"z", false,
		"input file uses the zap format",
	)
	informat := fs.String(
		"I", "DVBV5",
		"input file format: CHANNEL, ZAP or DVBV5",
	)
	delsys := fs.String(
		"s", "",
		"delivery system for input formats without one per line",
	)
	output := fs.String(
		"o", scan.DefaultOutput,
		"output file",
	)
	configFile := fs.String("c", "", "YAML configuration file")
	timeout := fs.Int(
		"t", scan.DefaultLockTimeout,
		"lock timeout in seconds",
	)
	getDetected := fs.Bool(
		"G", false,
		"read the tuning parameters back from the frontend",
	)
	followNIT := fs.Bool(
		"N", false,
		"add the transponders announced in the NIT",
	)
	database := fs.String(
		"D", "",
		"SQLite database receiving the channels found",
	)
	metrics := fs.String(
		"m", "",
		"address serving prometheus metrics during the scan",
	)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		return nil, errors.New("exactly one initial file is required")
	}
	opts.input = fs.Arg(0)
	opts.verbose = int(verbose)

	if *configFile != "" {
		if err := opts.config.ReadConfig(*configFile); err != nil {
			return nil, fmt.Errorf("reading %s: %w", *configFile, err)
		}
	}

	// command line wins over the configuration file
	opts.configSet = map[string]bool{}
	fs.Visit(func(f *flag.Flag) { opts.configSet[f.Name] = true })
	set := func(name string, apply func()) {
		if opts.configSet[name] || *configFile == "" {
			apply()
		}
	}
	set("a", func() { opts.config.Adapter = *adapter })
	set("f", func() { opts.config.Frontend = *frontend })
	set("d", func() { opts.config.Demux = *demux })
	set("I", func() { opts.config.InputFormat = *informat })
	set("s", func() { opts.config.DeliverySystem = *delsys })
	set("o", func() { opts.config.Output = *output })
	set("t", func() { opts.config.LockTimeout = *timeout })
	set("G", func() { opts.config.GetDetected = *getDetected })
	set("N", func() { opts.config.FollowNIT = *followNIT })
	set("D", func() { opts.config.Database = *database })
	set("m", func() { opts.config.MetricsListen = *metrics })
	if *legacy {
		opts.config.InputFormat = dvbfile.FormatLegacy.String()
	}
	if *zapFormat {
		opts.config.InputFormat = dvbfile.FormatZap.String()
	}
	opts.config.applyDefaults()

	return opts, nil
}

func newLogger(verbose int) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if verbose > 0 {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.DisableStacktrace = verbose < 2

	return cfg.Build()
}

// open the configured tuners and scan opts.input
func run(ctx context.Context, opts *options, logger *zap.Logger) (*dvbfile.File, error) {
	config := &opts.config
	if logger == nil {
		logger = zap.NewNop()
	}

	format := dvbfile.ParseFormat(config.InputFormat)
	if format == dvbfile.FormatUnknown {
		return nil, fmt.Errorf("unknown input format %q", config.InputFormat)
	}
	sys := dvbfile.SysUndefined
	if config.DeliverySystem != "" {
		var ok bool
		if sys, ok = dvbfile.ParseDeliverySystem(config.DeliverySystem); !ok {
			return nil, fmt.Errorf("unknown delivery system %q", config.DeliverySystem)
		}
	}

	input, err := dvbfile.ReadFileFormat(opts.input, format, sys)
	if err != nil {
		return nil, err
	}
	logger.Info("initial file read", zap.String("file", opts.input),
		zap.Stringer("format", format), zap.Int("entries", input.Len()))

	tm := NewTunerManager("dvbscan", logger)
	defer tm.CloseAll() //nolint: errcheck
	for _, tc := range config.Tuners {
		vt, err := NewVirtualTuner(tc, logger)
		if err != nil {
			return nil, err
		}
		if err := tm.AttachTuner(tc.Adapter, tc.Frontend, vt); err != nil {
			return nil, err
		}
		if err := tm.AttachDemux(tc.Adapter, tc.Demux, vt); err != nil {
			return nil, err
		}
	}
	tuner, err := tm.Open(config.Adapter, config.Frontend)
	if err != nil {
		return nil, err
	}
	dmx, err := tm.OpenDemux(config.Adapter, config.Demux)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	scanner := scan.NewScanner(tuner, dmx, logger)
	scanner.LockTimeout = config.LockTimeout
	scanner.Metrics = scan.NewMetrics(reg)
	scanner.Extractor.IncludeLive = config.GetDetected
	scanner.Extractor.ResolveTransponders = config.FollowNIT

	if config.MetricsListen != "" {
		svr := startMetricsServer(config.MetricsListen, reg, logger)
		defer stopMetricsServer(svr, logger)
	}

	found, err := scanner.Run(ctx, input, config.Output)
	if err != nil {
		return found, err
	}

	if config.Database != "" {
		db, err := store.Open(config.Database)
		if err != nil {
			return found, err
		}
		defer db.Close() //nolint: errcheck
		if err := db.SaveFile(found); err != nil {
			return found, fmt.Errorf("exporting to %s: %w", config.Database, err)
		}
		logger.Info("channels exported", zap.String("database", config.Database), zap.Int("entries", found.Len()))
	}

	return found, nil
}

func main() {
	flag.Usage = usage
	opts, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		usage()
	}

	logger, err := newLogger(opts.verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint: errcheck
	dvbfile.SetLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if _, err := run(ctx, opts, logger); err != nil {
		logger.Error("scan failed", zap.Error(err))
		stop()
		logger.Sync() //nolint: errcheck
		os.Exit(1)
	}
}
