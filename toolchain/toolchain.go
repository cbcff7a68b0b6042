package toolchain

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/specmerge/errors"
)

// Tools names the executables of each stage. Names without a path are
// looked up in PATH.
type Tools struct {
	Compiler     string `yaml:"compiler"`
	Linker       string `yaml:"linker"`
	Disassembler string `yaml:"disassembler"`
	Assembler    string `yaml:"assembler"`
}

// DefaultTools returns the EOSIO CDT tool names
func DefaultTools() Tools {
	return Tools{
		Compiler:     "eosio-cpp",
		Linker:       "eosio-ld",
		Disassembler: "eosio-wasm2wast",
		Assembler:    "eosio-wast2wasm",
	}
}

// withDefaults fills empty fields from DefaultTools
func (t Tools) withDefaults() Tools {
	d := DefaultTools()
	if t.Compiler == "" {
		t.Compiler = d.Compiler
	}
	if t.Linker == "" {
		t.Linker = d.Linker
	}
	if t.Disassembler == "" {
		t.Disassembler = d.Disassembler
	}
	if t.Assembler == "" {
		t.Assembler = d.Assembler
	}
	return t
}

// Options configures a Toolchain
type Options struct {
	Tools     Tools
	CacheSize int // disassembly cache entries, 0 for DefaultCacheSize
	Breaker   BreakerSettings
}

// Toolchain runs the compile, link, disassemble and assemble stages
type Toolchain struct {
	tools  Tools
	runner *Runner
	cache  *textCache
}

// New creates a toolchain
func New(opts Options) (*Toolchain, error) {
	cache, err := newTextCache(opts.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Toolchain{
		tools:  opts.Tools.withDefaults(),
		runner: NewRunner(opts.Breaker),
		cache:  cache,
	}, nil
}

// Tools returns the resolved tool names
func (tc *Toolchain) Tools() Tools {
	return tc.tools
}

// Runner returns the runner used for every launch
func (tc *Toolchain) Runner() *Runner {
	return tc.runner
}

// Compile compiles a C++ source to an unlinked object
func (tc *Toolchain) Compile(ctx context.Context, src, out string) error {
	_, err := tc.runner.Run(ctx, errors.PhaseCompile, Command{
		Name: tc.tools.Compiler,
		Args: []string{"-O0", "-c", src, "-o", out},
	})
	return err
}

// Link links an object into a module binary
func (tc *Toolchain) Link(ctx context.Context, in, out string) error {
	_, err := tc.runner.Run(ctx, errors.PhaseLink, Command{
		Name: tc.tools.Linker,
		Args: []string{in, "-o", out},
	})
	return err
}

// Build compiles and links src into out. The intermediate object is
// written next to out and removed afterwards, also on failure.
func (tc *Toolchain) Build(ctx context.Context, src, out string) error {
	base := filepath.Base(src)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	intermediate := filepath.Join(filepath.Dir(out), base+"-intermediate.wasm")
	defer os.Remove(intermediate)

	if err := tc.Compile(ctx, src, intermediate); err != nil {
		return err
	}
	if err := tc.Link(ctx, intermediate, out); err != nil {
		return err
	}

	Logger().Debug("built harness", zap.String("src", src), zap.String("out", out))
	return nil
}

// Disassemble converts a module binary to its text form. Results are
// cached by content, so converting the same bytes twice runs the tool once.
func (tc *Toolchain) Disassemble(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.New(errors.PhaseDisassemble, errors.KindInvalidInput).
			Cause(err).
			Detail("read %s", path).
			Build()
	}

	return tc.cache.get(data, func() (string, error) {
		out, err := tc.runner.Run(ctx, errors.PhaseDisassemble, Command{
			Name: tc.tools.Disassembler,
			Args: []string{path},
		})
		if err != nil {
			return "", err
		}
		return string(out), nil
	})
}

// Assemble converts a text module to a binary
func (tc *Toolchain) Assemble(ctx context.Context, wast, out string) error {
	_, err := tc.runner.Run(ctx, errors.PhaseAssemble, Command{
		Name: tc.tools.Assembler,
		Args: []string{wast, "-o", out},
	})
	return err
}

// CacheHits returns how many disassembly requests were served from cache
func (tc *Toolchain) CacheHits() uint64 {
	return tc.cache.hits.Load()
}
