package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/wippyai/specmerge"
	"github.com/wippyai/specmerge/merge"
	"github.com/wippyai/specmerge/spectest"
	"github.com/wippyai/specmerge/toolchain"
	"github.com/wippyai/specmerge/verify"
	"github.com/wippyai/specmerge/wast"
)

func main() {
	var (
		harnessBin  = flag.String("harness", "", "Harness module binary")
		testBin     = flag.String("test", "", "Spec test module binary")
		harnessWast = flag.String("harness-wast", "", "Harness module text")
		testWast    = flag.String("test-wast", "", "Spec test module text")
		outFile     = flag.String("o", "", "Write merged text to file (default stdout)")
		assemble    = flag.String("assemble", "", "Also assemble the merged text to this binary")
		verifyBin   = flag.Bool("verify", false, "Validate the assembled binary with wazero (needs -assemble)")
		symbols     = flag.Bool("symbols", false, "Print the symbol table to stderr")
		logLevel    = flag.String("log-level", "warn", "Log level (debug, info, warn, error)")
	)
	flag.Parse()

	harness, harnessText := pick(*harnessBin, *harnessWast)
	test, testText := pick(*testBin, *testWast)
	if harness == "" || test == "" || (*verifyBin && *assemble == "") {
		fmt.Fprintln(os.Stderr, "Usage: merge (-harness <file.wasm> | -harness-wast <file.wast>)")
		fmt.Fprintln(os.Stderr, "             (-test <file.wasm> | -test-wast <file.wast>)")
		fmt.Fprintln(os.Stderr, "             [-o merged.wast] [-assemble merged.wasm [-verify]] [-symbols]")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := options{
		harness:     harness,
		test:        test,
		harnessText: harnessText,
		testText:    testText,
		out:         *outFile,
		assemble:    *assemble,
		verify:      *verifyBin,
		symbols:     *symbols,
		logLevel:    *logLevel,
	}
	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// pick returns the one path given and whether it is a text module
func pick(bin, text string) (string, bool) {
	switch {
	case bin != "" && text != "":
		return "", false
	case text != "":
		return text, true
	}
	return bin, false
}

type options struct {
	harness, test         string
	harnessText, testText bool
	out, assemble         string
	verify, symbols       bool
	logLevel              string
}

// fileSource reads text modules as they are and disassembles binaries
type fileSource struct {
	tc   *toolchain.Toolchain
	text map[string]bool
}

func (s fileSource) Disassemble(ctx context.Context, path string) (string, error) {
	if s.text[path] {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		return string(data), nil
	}
	return s.tc.Disassemble(ctx, path)
}

func run(ctx context.Context, opts options) error {
	logger, err := spectest.LogConfig{Level: opts.logLevel, Format: "console"}.Build()
	if err != nil {
		return err
	}
	defer logger.Sync()
	wast.SetLogger(logger)
	merge.SetLogger(logger)
	toolchain.SetLogger(logger)

	tc, err := toolchain.New(toolchain.Options{})
	if err != nil {
		return err
	}

	src := fileSource{tc: tc, text: map[string]bool{}}
	if opts.harnessText {
		src.text[opts.harness] = true
	}
	if opts.testText {
		src.text[opts.test] = true
	}

	res, err := specmerge.Merge(ctx, src, opts.harness, opts.test)
	if err != nil {
		return err
	}

	if opts.symbols {
		for _, k := range res.Symbols.Sorted() {
			fmt.Fprintf(os.Stderr, "placeholder %d -> test function %d\n", k, res.Symbols[k])
		}
		fmt.Fprintf(os.Stderr, "apply -> %d, check -> %d\n", res.ApplyIndex, res.CheckIndex)
	}

	textPath := opts.out
	switch {
	case textPath != "":
		if err := os.WriteFile(textPath, []byte(res.Text), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", textPath, err)
		}
	case opts.assemble != "":
		dir, err := os.MkdirTemp("", "specmerge-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)
		textPath = filepath.Join(dir, "merged.wast")
		if err := os.WriteFile(textPath, []byte(res.Text), 0o644); err != nil {
			return err
		}
	default:
		fmt.Print(res.Text)
	}

	if opts.assemble == "" {
		return nil
	}
	if err := tc.Assemble(ctx, textPath, opts.assemble); err != nil {
		return err
	}
	logger.Info("assembled merged module",
		zap.String("out", opts.assemble),
		zap.Int("apply", res.ApplyIndex),
	)

	if !opts.verify {
		return nil
	}
	v := verify.New(ctx)
	defer v.Close(ctx)
	return v.File(ctx, opts.assemble, res.ApplyIndex)
}
