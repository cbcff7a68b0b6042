// Package verify validates assembled merge output with wazero.
package verify

import (
	"context"
	"os"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/specmerge/errors"
)

// ApplyExport is the export name the EOSIO host calls
const ApplyExport = "apply"

// Verifier compiles binaries without instantiating them. Compilation
// runs full validation, so imports need not be satisfied.
type Verifier struct {
	runtime wazero.Runtime
}

// New creates a verifier backed by the wazero interpreter
func New(ctx context.Context) *Verifier {
	cfg := wazero.NewRuntimeConfigInterpreter().
		WithCoreFeatures(api.CoreFeaturesV2)
	return &Verifier{runtime: wazero.NewRuntimeWithConfig(ctx, cfg)}
}

// Close releases the runtime
func (v *Verifier) Close(ctx context.Context) error {
	return v.runtime.Close(ctx)
}

// Module validates bin and checks that it exports apply at applyIndex
// with parameters (i64, i64, i64).
func (v *Verifier) Module(ctx context.Context, bin []byte, applyIndex int) error {
	compiled, err := v.runtime.CompileModule(ctx, bin)
	if err != nil {
		return errors.New(errors.PhaseVerify, errors.KindStructuralMismatch).
			Cause(err).
			Detail("module does not validate").
			Build()
	}
	defer compiled.Close(ctx)

	def, ok := compiled.ExportedFunctions()[ApplyExport]
	if !ok {
		return errors.NotFound(errors.PhaseVerify, "function export", ApplyExport)
	}

	if got := int(def.Index()); got != applyIndex {
		return errors.New(errors.PhaseVerify, errors.KindStructuralMismatch).
			Record("export " + ApplyExport).
			Value(got).
			Detail("apply is function %d, want %d", got, applyIndex).
			Build()
	}

	params := def.ParamTypes()
	if len(params) != 3 || params[0] != api.ValueTypeI64 || params[1] != api.ValueTypeI64 || params[2] != api.ValueTypeI64 {
		return errors.New(errors.PhaseVerify, errors.KindAmbiguousSignature).
			Record("export " + ApplyExport).
			Detail("apply has %d parameters, want (i64, i64, i64)", len(params)).
			Build()
	}
	return nil
}

// File reads path and verifies it with Module
func (v *Verifier) File(ctx context.Context, path string, applyIndex int) error {
	bin, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(errors.PhaseVerify, errors.KindInvalidInput, err, "read "+path)
	}
	return v.Module(ctx, bin, applyIndex)
}
