package merge

import (
	"go.uber.org/zap"

	"github.com/wippyai/specmerge/errors"
	"github.com/wippyai/specmerge/wast"
)

// Harness is module A split into its roles
type Harness struct {
	Module *wast.Module

	// Base holds function records below ABIStubs, kept verbatim.
	Base []*wast.Record

	// Targets are the placeholder functions correlated with test exports.
	Targets []*wast.Record

	Apply *wast.Record
	Check *wast.Record // nil when the harness has no check helper

	applyIndex int
	checkIndex int
}

// SplitHarness detaches apply and check from the function list of mod.
//
// The last function must have the apply signature; anything else is an
// ambiguous_signature error. If the function before it has the check
// signature it is detached as well, otherwise the harness has no check.
func SplitHarness(mod *wast.Module) (*Harness, error) {
	h := &Harness{Module: mod, applyIndex: -1, checkIndex: -1}

	funcs := mod.Funcs
	for len(funcs) > 0 && funcs[0].Index < ABIStubs {
		h.Base = append(h.Base, funcs[0])
		funcs = funcs[1:]
	}

	if stubs := len(mod.FuncImports()) + len(h.Base); stubs != ABIStubs {
		return nil, errors.New(errors.PhaseRelocate, errors.KindStructuralMismatch).
			Module(mod.Name).
			Value(stubs).
			Detail("found %d ABI stub functions, want %d", stubs, ABIStubs).
			Build()
	}

	if len(funcs) == 0 {
		return nil, errors.AmbiguousSignature(mod.Name, "no function after ABI stubs", sigString(applyParams))
	}

	last := funcs[len(funcs)-1]
	if sig := last.Signature(); !sig.Matches(applyParams...) {
		err := errors.AmbiguousSignature(mod.Name, last.Label(), sigString(applyParams))
		err.Value = sig.String()
		return nil, err
	}
	h.Apply, h.applyIndex = last, last.Index
	funcs = funcs[:len(funcs)-1]

	if n := len(funcs); n > 0 {
		if prev := funcs[n-1]; prev.Signature().Matches(checkParams...) {
			h.Check, h.checkIndex = prev, prev.Index
			funcs = funcs[:n-1]
		} else {
			Logger().Debug("harness has no check function",
				zap.String("trailing", prev.Label()),
				zap.String("signature", prev.Signature().String()),
			)
		}
	}

	h.Targets = funcs
	return h, nil
}

func sigString(params []string) string {
	return wast.Signature{Params: params}.String()
}
