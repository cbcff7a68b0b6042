package spectest

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/specmerge/errors"
	"github.com/wippyai/specmerge/toolchain"
)

// Case is one generated test case: a harness source plus the spec test
// binary it exercises, laid out under out_dir/<suite>/<n>.
type Case struct {
	Suite string
	N     string
	Dir   string
}

// Name returns "<suite>.<n>", the prefix of every file the case owns
func (c Case) Name() string {
	return c.Suite + "." + c.N
}

func (c Case) path(suffix string) string {
	return filepath.Join(c.Dir, c.Name()+suffix)
}

// HarnessSource is the generated harness C++ file
func (c Case) HarnessSource() string { return c.path(".wasm.cpp") }

// HarnessBinary is the compiled and linked harness
func (c Case) HarnessBinary() string { return c.path("-int.wasm") }

// ActionSource is the generated C++ test action installed next to the wasm
func (c Case) ActionSource() string { return c.path(".cpp") }

// TestBinary is the spec test module copied from wasm_dir
func (c Case) TestBinary() string { return filepath.Join(c.Dir, "test.wasm") }

// MergedText is the merged text module
func (c Case) MergedText() string { return c.path(".wast") }

// MergedBinary is the assembled merge result
func (c Case) MergedBinary() string { return c.path(".wasm") }

// ListSuites returns the suite descriptions in dir, sorted by file name.
// A suite is named by the part of its file name before the first dot.
func ListSuites(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseBatch, errors.KindInvalidInput, err, "list "+dir)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// SuiteName strips everything from the first dot of a suite file name
func SuiteName(file string) string {
	name, _, _ := strings.Cut(file, ".")
	return name
}

// Generate runs the test generator on a suite description. The generator
// writes its output into the current directory, so it runs inside suiteDir.
func Generate(ctx context.Context, r *toolchain.Runner, generator, jsonPath, suiteDir string) error {
	if err := os.MkdirAll(suiteDir, 0o755); err != nil {
		return errors.Wrap(errors.PhaseGenerate, errors.KindInvalidInput, err, "create "+suiteDir)
	}
	abs, err := filepath.Abs(jsonPath)
	if err != nil {
		return errors.Wrap(errors.PhaseGenerate, errors.KindInvalidInput, err, jsonPath)
	}
	_, err = r.Run(ctx, errors.PhaseGenerate, toolchain.Command{
		Dir:  suiteDir,
		Name: generator,
		Args: []string{abs},
	})
	return err
}

// Group moves every generated "<suite>.<n>.*" file of suiteDir into a
// subdirectory named <n> and returns the resulting cases, ordered by n.
func Group(suite, suiteDir string) ([]Case, error) {
	entries, err := os.ReadDir(suiteDir)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseBatch, errors.KindInvalidInput, err, "list "+suiteDir)
	}

	seen := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		parts := strings.SplitN(e.Name(), ".", 3)
		if len(parts) < 3 || parts[0] != suite || parts[1] == "" {
			Logger().Debug("skipping unrecognized generator output",
				zap.String("suite", suite),
				zap.String("file", e.Name()),
			)
			continue
		}

		n := parts[1]
		dir := filepath.Join(suiteDir, n)
		if !seen[n] {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.Wrap(errors.PhaseBatch, errors.KindInvalidInput, err, "create "+dir)
			}
			seen[n] = true
		}
		if err := os.Rename(filepath.Join(suiteDir, e.Name()), filepath.Join(dir, e.Name())); err != nil {
			return nil, errors.Wrap(errors.PhaseBatch, errors.KindInvalidInput, err, "move "+e.Name())
		}
	}

	cases := make([]Case, 0, len(seen))
	for n := range seen {
		cases = append(cases, Case{Suite: suite, N: n, Dir: filepath.Join(suiteDir, n)})
	}
	sort.Slice(cases, func(i, j int) bool {
		a, errA := strconv.Atoi(cases[i].N)
		b, errB := strconv.Atoi(cases[j].N)
		if errA == nil && errB == nil {
			return a < b
		}
		return cases[i].N < cases[j].N
	})
	return cases, nil
}

// CopyTest copies wasm_dir/<suite>.<n>.wasm to the case's test.wasm
func CopyTest(wasmDir string, c Case) error {
	src := filepath.Join(wasmDir, c.Name()+".wasm")
	if _, err := os.Stat(src); err != nil {
		return errors.New(errors.PhaseBatch, errors.KindNotFound).
			Cause(err).
			Detail("spec test binary %s", src).
			Build()
	}
	return copyFile(src, c.TestBinary())
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(errors.PhaseBatch, errors.KindInvalidInput, err, "open "+src)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrap(errors.PhaseBatch, errors.KindInvalidInput, err, "create "+dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrap(errors.PhaseBatch, errors.KindInvalidInput, err, "copy "+src)
	}
	if err := out.Close(); err != nil {
		return errors.Wrap(errors.PhaseBatch, errors.KindInvalidInput, err, "close "+dst)
	}
	return nil
}
