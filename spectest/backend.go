package spectest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/specmerge/errors"
	"github.com/wippyai/specmerge/toolchain"
)

// BackendConfig names the execution backend that runs each merged binary.
// The backend reads one fixed contract path, so cases run on it one at a
// time.
type BackendConfig struct {
	// Command is the backend argv, e.g.
	// ["./unittests/unit_test", "--run_test=api_tests/wasm_spec", "--", "--verbose"].
	Command []string `yaml:"command"`
	// Dir is the working directory; a relative Command[0] resolves against it.
	Dir string `yaml:"dir"`
	// Contract is where the merged binary is copied before each run,
	// relative to Dir unless absolute.
	Contract string `yaml:"contract"`
}

// Enabled reports whether a backend command is configured
func (c BackendConfig) Enabled() bool {
	return len(c.Command) > 0
}

// EOSIOBackend runs the wasm_spec unit test of an EOSIO build tree
func EOSIOBackend(eosioDir string) BackendConfig {
	return BackendConfig{
		Command:  []string{"./unittests/unit_test", "--run_test=api_tests/wasm_spec", "--", "--verbose"},
		Dir:      filepath.Join(eosioDir, "build"),
		Contract: filepath.Join("unittests", "spec-contracts", "wasm_spec", "wasm_spec.wasm"),
	}
}

// failureMarkers are the exception names the backend prints to stderr when a
// spec test fails
var failureMarkers = []string{
	"wasm_execution_error",
	"eosio_assert_message_exception",
	"wasm_serialization_error",
}

type backend struct {
	cfg    BackendConfig
	runner *toolchain.Runner

	mu sync.Mutex
}

func newBackend(cfg BackendConfig, runner *toolchain.Runner) *backend {
	return &backend{cfg: cfg, runner: runner}
}

func (b *backend) contract() string {
	if filepath.IsAbs(b.cfg.Contract) {
		return b.cfg.Contract
	}
	return filepath.Join(b.cfg.Dir, b.cfg.Contract)
}

// run installs wasm as the backend contract and executes the backend. A
// failure marker on stderr is an execution_failure; a non-zero exit without
// one is a tool_failure. Both carry the full stderr.
func (b *backend) run(ctx context.Context, name, wasm string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	contract := b.contract()
	if err := os.MkdirAll(filepath.Dir(contract), 0o755); err != nil {
		return errors.Wrap(errors.PhaseExecute, errors.KindInvalidInput, err, "create "+filepath.Dir(contract))
	}
	if err := os.Remove(contract); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.PhaseExecute, errors.KindInvalidInput, err, "remove "+contract)
	}
	if err := copyFile(wasm, contract); err != nil {
		return err
	}

	tool := b.cfg.Command[0]
	out, err := b.runner.Exec(ctx, errors.PhaseExecute, toolchain.Command{
		Dir:  b.cfg.Dir,
		Name: tool,
		Args: b.cfg.Command[1:],
	})
	if err != nil {
		return err
	}

	stderr := string(out.Stderr)
	for _, marker := range failureMarkers {
		if strings.Contains(stderr, marker) {
			Logger().Debug("backend failure",
				zap.String("case", name),
				zap.String("marker", marker),
				zap.Int("code", out.Code),
			)
			return errors.ExecutionFailure(filepath.Base(tool), marker, out.Code, stderr)
		}
	}
	if out.Code != 0 {
		return errors.ToolFailure(errors.PhaseExecute, filepath.Base(tool), out.Code, stderr, nil)
	}
	return nil
}
