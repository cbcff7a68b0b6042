package merge

import (
	"go.uber.org/zap"

	"github.com/wippyai/specmerge/wast"
)

// Result is a merged module and where its entrypoints ended up
type Result struct {
	Symbols    SymbolTable
	Text       string
	ApplyIndex int
	CheckIndex int // -1 when the harness has no check function
	FuncCount  int // size of the merged function index space
	TypeCount  int
}

// Merge reads both module texts and merges them. See MergeModules.
func Merge(harnessSrc, testSrc string) (*Result, error) {
	harness, err := wast.Read("harness", harnessSrc)
	if err != nil {
		return nil, err
	}
	test, err := wast.Read("test", testSrc)
	if err != nil {
		return nil, err
	}
	return MergeModules(harness, test)
}

// MergeModules runs shift, correlate, relocate and compose in sequence.
// Neither input module is modified.
func MergeModules(harness, test *wast.Module) (*Result, error) {
	h, err := SplitHarness(harness)
	if err != nil {
		return nil, err
	}

	st := newState(harness.MaxType())

	shifted, _, err := shift(test, st)
	if err != nil {
		return nil, err
	}

	syms, err := BuildSymbols(h, shifted)
	if err != nil {
		return nil, err
	}

	ep, err := relocate(h, st, syms)
	if err != nil {
		return nil, err
	}

	text, err := Compose(h, ep, shifted)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Text:       text,
		Symbols:    syms,
		ApplyIndex: ep.ApplyIndex,
		CheckIndex: ep.CheckIndex,
		FuncCount:  st.maxFunc + 1,
		TypeCount:  len(harness.Types) + len(shifted.Types),
	}

	Logger().Debug("merged modules",
		zap.Int("funcs", res.FuncCount),
		zap.Int("types", res.TypeCount),
		zap.Int("apply", res.ApplyIndex),
		zap.Int("check", res.CheckIndex),
		zap.Int("symbols", len(syms)),
	)
	return res, nil
}
