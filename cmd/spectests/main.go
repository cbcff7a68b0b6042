package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/specmerge/errors"
	"github.com/wippyai/specmerge/merge"
	"github.com/wippyai/specmerge/spectest"
	"github.com/wippyai/specmerge/toolchain"
	"github.com/wippyai/specmerge/verify"
	"github.com/wippyai/specmerge/wast"
)

func main() {
	var (
		configFile  = flag.String("config", "", "YAML configuration file")
		wasmDir     = flag.String("wasm-dir", "", "Directory with spec test descriptions and binaries")
		outDir      = flag.String("out-dir", "", "Directory for generated cases")
		installDir  = flag.String("install-dir", "", "Directory to install merged tests into")
		generator   = flag.String("generator", "", "Path to eosio_test_generator")
		workers     = flag.Int("workers", 0, "Number of cases processed in parallel")
		verifyBins  = flag.Bool("verify", false, "Validate merged binaries with wazero")
		logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error)")
		metricsFile = flag.String("metrics", "", "Write Prometheus metrics to this file")
		eosioDir    = flag.String("eosio-dir", "", "EOSIO source tree whose unit_test runs each merged case")
		interactive = flag.Bool("i", false, "Interactive progress view")
	)
	flag.Parse()

	cfg := spectest.DefaultConfig()
	if *configFile != "" {
		var err error
		if cfg, err = spectest.LoadConfig(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	// flags given on the command line win over the file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "wasm-dir":
			cfg.WasmDir = *wasmDir
		case "out-dir":
			cfg.OutDir = *outDir
		case "install-dir":
			cfg.InstallDir = *installDir
		case "generator":
			cfg.Generator = *generator
		case "workers":
			cfg.Workers = *workers
		case "verify":
			cfg.Verify = *verifyBins
		case "log-level":
			cfg.Log.Level = *logLevel
		case "metrics":
			cfg.MetricsFile = *metricsFile
		case "eosio-dir":
			cfg.Backend = spectest.EOSIOBackend(*eosioDir)
		}
	})

	if cfg.WasmDir == "" || cfg.OutDir == "" {
		fmt.Fprintln(os.Stderr, "Usage: spectests -wasm-dir <dir> -out-dir <dir> [-install-dir <dir>] [-generator path] [-eosio-dir <dir>]")
		fmt.Fprintln(os.Stderr, "       spectests -config specmerge.yaml [flags]")
		fmt.Fprintln(os.Stderr, "       spectests ... -i  (interactive mode)")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	tui := *interactive && term.IsTerminal(int(os.Stdout.Fd()))
	if err := run(ctx, cfg, tui); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *spectest.Config, tui bool) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := zap.NewNop()
	if !tui {
		var err error
		if logger, err = cfg.Log.Build(); err != nil {
			return err
		}
	}
	defer logger.Sync()
	wast.SetLogger(logger)
	merge.SetLogger(logger)
	toolchain.SetLogger(logger)
	spectest.SetLogger(logger)

	tc, err := toolchain.New(cfg.ToolchainOptions())
	if err != nil {
		return err
	}

	var opts []spectest.Option
	if cfg.Verify {
		v := verify.New(ctx)
		defer v.Close(ctx)
		opts = append(opts, spectest.WithVerifier(v))
	}

	var sum *spectest.Summary
	if tui {
		events := make(chan spectest.Event, 64)
		b := spectest.New(cfg, tc, append(opts, spectest.WithEvents(events))...)
		sum, err = runInteractive(ctx, b, events)
	} else {
		sum, err = spectest.New(cfg, tc, opts...).Run(ctx)
	}

	if sum != nil {
		fmt.Printf("%d suite(s), %d case(s), %d failed in %s\n",
			sum.Suites, sum.Cases, len(sum.Failures), sum.Elapsed.Round(time.Millisecond))
	}
	var cf *errors.CaseFailuresError
	if errors.As(err, &cf) {
		fmt.Fprintln(os.Stderr, cf.Error())
		return fmt.Errorf("see %s/%s for details", cfg.OutDir, spectest.FailuresDir)
	}
	return err
}
