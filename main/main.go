package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	sp "github.com/phil-mansfield/simplepart"
	"github.com/phil-mansfield/simplepart/io"
	"github.com/phil-mansfield/simplepart/metrics"
	"github.com/phil-mansfield/simplepart/rfi"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Syntax: %s [flags] [config.cfg]\n", os.Args[0])
	fmt.Fprintln(os.Stderr,
		"  The config file can be omitted if the force calculator sends "+
			"the configuration as its 'content' variable.")
	flag.PrintDefaults()
}

func main() {
	var (
		debug, exampleConfig bool
		metricsAddr          string
	)

	flag.BoolVar(&debug, "debug", false, "Log at debug level to the console.")
	flag.StringVar(
		&metricsAddr, "metrics", "",
		"Serve Prometheus metrics at this address, e.g. ':9100'.",
	)
	flag.BoolVar(
		&exampleConfig, "ExampleConfig", false,
		"Prints an example configuration file to stdout.",
	)
	flag.Usage = usage
	flag.Parse()

	if exampleConfig {
		fmt.Print(io.ExampleConfig)
		return
	}
	if flag.NArg() > 1 {
		flag.Usage()
		os.Exit(1)
	}

	logger, err := newLogger(debug)
	if err != nil {
		log.Fatal(err.Error())
	}

	if err := run(flag.Arg(0), metricsAddr, logger); err != nil {
		logger.Fatal("simplepart failed", zap.Error(err))
	}
	_ = logger.Sync()
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// run connects to the calculator and moves the configured particles until
// the calculator is done.
func run(fname, metricsAddr string, logger *zap.Logger) (err error) {
	if err := rfi.CheckSingleRank(); err != nil {
		return err
	}
	rcfg, err := rfi.ReadConfig()
	if err != nil {
		return err
	}
	client, err := rfi.Dial(rcfg, logger)
	if err != nil {
		return err
	}

	cfg, err := io.LoadConfig(fname, client, logger)
	if err != nil {
		return multierr.Append(err, client.Close())
	}
	logger.Info("loaded configuration",
		zap.Int("particles", len(cfg.Particles)),
		zap.Strings("names", cfg.Names),
		zap.Bools("periodic", cfg.Domain.Periodic[:]),
	)

	opts := []sp.Option{sp.WithLogger(logger)}
	if cfg.Log != nil {
		rec, err := io.NewLogger(cfg.Log, cfg.Particles, logger)
		if err != nil {
			return multierr.Append(err, client.Close())
		}
		opts = append(opts, sp.WithRecorder(rec))
	}
	if metricsAddr != "" {
		m := metrics.New(nil)
		srv := metrics.Serve(metricsAddr, m, logger)
		defer func() { err = multierr.Append(err, srv.Close()) }()
		opts = append(opts, sp.WithMetrics(m))
	}

	d := sp.NewDriver(client, &cfg.Domain, &cfg.Integrator, cfg.Particles, opts...)
	defer func() { err = multierr.Append(err, d.Close()) }()
	return d.Run()
}
