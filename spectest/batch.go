package spectest

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/specmerge/errors"
	"github.com/wippyai/specmerge/merge"
	"github.com/wippyai/specmerge/toolchain"
	"github.com/wippyai/specmerge/verify"
)

// FailuresDir is the out_dir subdirectory holding one report per failure
const FailuresDir = "_FAILURES"

// Stage names a step of the per-case pipeline
type Stage string

const (
	StageGenerate    Stage = "generate"
	StageBuild       Stage = "build"
	StageDisassemble Stage = "disassemble"
	StageMerge       Stage = "merge"
	StageAssemble    Stage = "assemble"
	StageVerify      Stage = "verify"
	StageExecute     Stage = "execute"
	StageInstall     Stage = "install"
	StageDone        Stage = "done"
)

// Event reports progress. Err is set on the event that ends a failed case.
type Event struct {
	Err   error
	Case  string
	Stage Stage
}

// Summary is the outcome of a batch run
type Summary struct {
	Failures []errors.CaseFailure
	Suites   int
	Cases    int
	Elapsed  time.Duration
}

// Batch generates, builds and merges every spec test case of a wasm_dir
type Batch struct {
	cfg      *Config
	tc       *toolchain.Toolchain
	verifier *verify.Verifier
	backend  *backend
	metrics  *Metrics
	events   chan<- Event

	mu       sync.Mutex
	failures []errors.CaseFailure
}

// Option configures a Batch
type Option func(*Batch)

// WithEvents publishes progress on ch. Run closes ch when it returns.
func WithEvents(ch chan<- Event) Option {
	return func(b *Batch) { b.events = ch }
}

// WithMetrics records into m instead of a batch-private instance
func WithMetrics(m *Metrics) Option {
	return func(b *Batch) { b.metrics = m }
}

// WithVerifier validates every assembled module with v
func WithVerifier(v *verify.Verifier) Option {
	return func(b *Batch) { b.verifier = v }
}

// New creates a batch. cfg must have passed Validate.
func New(cfg *Config, tc *toolchain.Toolchain, opts ...Option) *Batch {
	b := &Batch{cfg: cfg, tc: tc}
	for _, opt := range opts {
		opt(b)
	}
	if b.metrics == nil {
		b.metrics = NewMetrics(tc.CacheHits)
	}
	if cfg.Backend.Enabled() {
		b.backend = newBackend(cfg.Backend, tc.Runner())
	}
	return b
}

// Metrics returns the metrics the batch records into
func (b *Batch) Metrics() *Metrics {
	return b.metrics
}

// Run processes every suite. A failing case or suite is recorded and the
// run continues; when anything failed the summary is returned together
// with a *errors.CaseFailuresError. Each failure is also written to
// out_dir/_FAILURES/<case>.
func (b *Batch) Run(ctx context.Context) (*Summary, error) {
	if b.events != nil {
		defer close(b.events)
	}
	start := time.Now()
	b.failures = nil

	files, err := ListSuites(b.cfg.WasmDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(b.cfg.OutDir, 0o755); err != nil {
		return nil, errors.Wrap(errors.PhaseBatch, errors.KindInvalidInput, err, "create "+b.cfg.OutDir)
	}

	sum := &Summary{Suites: len(files)}
	var cases []Case
	for _, f := range files {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		cs, err := b.prepare(ctx, f)
		if err != nil {
			b.fail(ctx, SuiteName(f), StageGenerate, err)
			continue
		}
		cases = append(cases, cs...)
	}
	// suites and cases that failed before reaching the pool count too
	sum.Cases = len(cases) + len(b.failures)

	Logger().Info("running cases",
		zap.Int("suites", sum.Suites),
		zap.Int("cases", sum.Cases),
		zap.Int("workers", b.cfg.Workers),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(b.cfg.Workers, 1))
	for _, c := range cases {
		c := c // per-iteration copy; go.mod targets go 1.21 loop semantics
		g.Go(func() error {
			stage, err := b.runCase(gctx, c)
			b.metrics.countCase(err)
			if err != nil {
				b.fail(gctx, c.Name(), stage, err)
				return nil
			}
			b.emit(gctx, Event{Case: c.Name(), Stage: StageDone})
			return nil
		})
	}
	_ = g.Wait()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if err := b.writeFailures(); err != nil {
		return nil, err
	}
	if b.cfg.MetricsFile != "" {
		if err := b.metrics.WriteFile(b.cfg.MetricsFile); err != nil {
			return nil, err
		}
	}

	sum.Failures = b.failures
	sum.Elapsed = time.Since(start)
	Logger().Info("batch finished",
		zap.Int("cases", sum.Cases),
		zap.Int("failed", len(sum.Failures)),
		zap.Duration("elapsed", sum.Elapsed),
	)

	if len(sum.Failures) > 0 {
		fe := errors.NewCaseFailuresError(sum.Cases, sum.Failures)
		sum.Failures = fe.Failures
		return sum, fe
	}
	return sum, nil
}

// prepare generates one suite and lays out its cases
func (b *Batch) prepare(ctx context.Context, file string) ([]Case, error) {
	suite := SuiteName(file)
	suiteDir := filepath.Join(b.cfg.OutDir, suite)
	b.emit(ctx, Event{Case: suite, Stage: StageGenerate})

	t := time.Now()
	err := Generate(ctx, b.tc.Runner(), b.cfg.Generator, filepath.Join(b.cfg.WasmDir, file), suiteDir)
	b.metrics.observeStage(StageGenerate, time.Since(t))
	if err != nil {
		return nil, err
	}

	cases, err := Group(suite, suiteDir)
	if err != nil {
		return nil, err
	}

	// a case without its spec binary cannot run; report it and keep the rest
	ready := cases[:0]
	for _, c := range cases {
		if err := CopyTest(b.cfg.WasmDir, c); err != nil {
			b.metrics.countCase(err)
			b.fail(ctx, c.Name(), StageGenerate, err)
			continue
		}
		ready = append(ready, c)
	}
	return ready, nil
}

// runCase takes one case from harness source to merged binary. On
// failure it also returns the stage that failed.
func (b *Batch) runCase(ctx context.Context, c Case) (Stage, error) {
	var current Stage
	stage := func(s Stage, fn func() error) error {
		current = s
		if err := ctx.Err(); err != nil {
			return err
		}
		b.emit(ctx, Event{Case: c.Name(), Stage: s})
		t := time.Now()
		err := fn()
		b.metrics.observeStage(s, time.Since(t))
		return err
	}

	if err := stage(StageBuild, func() error {
		return b.tc.Build(ctx, c.HarnessSource(), c.HarnessBinary())
	}); err != nil {
		return current, err
	}

	var harness, test string
	if err := stage(StageDisassemble, func() error {
		var err error
		if harness, err = b.tc.Disassemble(ctx, c.HarnessBinary()); err != nil {
			return err
		}
		test, err = b.tc.Disassemble(ctx, c.TestBinary())
		return err
	}); err != nil {
		return current, err
	}

	var res *merge.Result
	if err := stage(StageMerge, func() error {
		var err error
		if res, err = merge.Merge(harness, test); err != nil {
			return err
		}
		if err := os.WriteFile(c.MergedText(), []byte(res.Text), 0o644); err != nil {
			return errors.Wrap(errors.PhaseBatch, errors.KindInvalidInput, err, "write "+c.MergedText())
		}
		return nil
	}); err != nil {
		return current, err
	}

	if err := stage(StageAssemble, func() error {
		return b.tc.Assemble(ctx, c.MergedText(), c.MergedBinary())
	}); err != nil {
		return current, err
	}

	if b.verifier != nil {
		if err := stage(StageVerify, func() error {
			return b.verifier.File(ctx, c.MergedBinary(), res.ApplyIndex)
		}); err != nil {
			return current, err
		}
	}

	if b.backend != nil {
		if err := stage(StageExecute, func() error {
			return b.backend.run(ctx, c.Name(), c.MergedBinary())
		}); err != nil {
			return current, err
		}
	}

	if b.cfg.InstallDir != "" {
		if err := stage(StageInstall, func() error { return b.install(c) }); err != nil {
			return current, err
		}
	}

	Logger().Debug("case merged",
		zap.String("case", c.Name()),
		zap.Int("funcs", res.FuncCount),
		zap.Int("apply", res.ApplyIndex),
	)
	return StageDone, nil
}

// install copies the test action and the merged binary into install_dir
func (b *Batch) install(c Case) error {
	wasms := filepath.Join(b.cfg.InstallDir, "wasms")
	if err := os.MkdirAll(wasms, 0o755); err != nil {
		return errors.Wrap(errors.PhaseBatch, errors.KindInvalidInput, err, "create "+wasms)
	}
	if err := copyFile(c.ActionSource(), filepath.Join(b.cfg.InstallDir, filepath.Base(c.ActionSource()))); err != nil {
		return err
	}
	return copyFile(c.MergedBinary(), filepath.Join(wasms, filepath.Base(c.MergedBinary())))
}

func (b *Batch) fail(ctx context.Context, name string, stage Stage, err error) {
	b.mu.Lock()
	b.failures = append(b.failures, errors.CaseFailure{Case: name, Err: err})
	b.mu.Unlock()

	Logger().Warn("case failed",
		zap.String("case", name),
		zap.String("stage", string(stage)),
		zap.Error(err),
	)
	b.emit(ctx, Event{Case: name, Stage: stage, Err: err})
}

func (b *Batch) emit(ctx context.Context, ev Event) {
	if b.events == nil {
		return
	}
	select {
	case b.events <- ev:
	case <-ctx.Done():
	}
}

// writeFailures writes one report per failure; the directory is always
// created so an empty one means a clean run. A failed tool's stderr follows
// the error line in full.
func (b *Batch) writeFailures() error {
	dir := filepath.Join(b.cfg.OutDir, FailuresDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(errors.PhaseBatch, errors.KindInvalidInput, err, "create "+dir)
	}
	for _, f := range b.failures {
		path := filepath.Join(dir, f.Case)
		report := f.Err.Error() + "\n"
		var se *errors.Error
		if errors.As(f.Err, &se) {
			if exit, ok := se.Value.(errors.ToolExit); ok && exit.Stderr != "" {
				report += "\n" + exit.Stderr
			}
		}
		if err := os.WriteFile(path, []byte(report), 0o644); err != nil {
			return errors.Wrap(errors.PhaseBatch, errors.KindInvalidInput, err, "write "+path)
		}
	}
	return nil
}
