package merge

import (
	"sort"

	"github.com/wippyai/specmerge/errors"
	"github.com/wippyai/specmerge/wast"
)

// SymbolTable maps a harness placeholder function index to the renumbered
// test function that replaces it
type SymbolTable map[int]int

// Sorted returns the placeholder indices in ascending order
func (s SymbolTable) Sorted() []int {
	keys := make([]int, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// BuildSymbols pairs the Nth harness placeholder with the Nth function
// export of the already shifted test module. The generator emits both in
// the same order, so the counts must agree; a mismatch is an
// out_of_bounds error rather than a partial table.
func BuildSymbols(h *Harness, test *wast.Module) (SymbolTable, error) {
	exports := test.FuncExports()
	if len(h.Targets) != len(exports) {
		n := min(len(h.Targets), len(exports))
		return nil, errors.New(errors.PhaseCorrelate, errors.KindOutOfBounds).
			Module(test.Name).
			Value(n).
			Detail("harness has %d placeholder functions but test module exports %d functions; no pair for position %d",
				len(h.Targets), len(exports), n).
			Build()
	}

	syms := make(SymbolTable, len(exports))
	for i, target := range h.Targets {
		idx, _ := exports[i].ExportFunc()
		if prev, dup := syms[target.Index]; dup {
			return nil, errors.New(errors.PhaseCorrelate, errors.KindStructuralMismatch).
				Module(h.Module.Name).
				Record(target.Label()).
				Detail("placeholder already paired with test function %d", prev).
				Build()
		}
		syms[target.Index] = idx
	}
	return syms, nil
}
