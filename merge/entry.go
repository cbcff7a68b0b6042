package merge

import (
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/specmerge/errors"
	"github.com/wippyai/specmerge/wast"
)

// Entrypoints is the outcome of relocating apply and check
type Entrypoints struct {
	Apply      *wast.Record
	Check      *wast.Record
	Exports    []*wast.Record // harness exports with apply retargeted
	ApplyIndex int
	CheckIndex int // -1 without check
}

// relocate moves apply (and check) behind the last test function and
// rewires the calls inside apply:
//
//   - a call to apply's or check's old index goes to its new index;
//   - a call to any other index >= ABIStubs that is neither apply nor check
//     goes to the test function the symbol table pairs it with.
//
// Every harness export whose name contains "apply" is retargeted to apply's
// new index.
func relocate(h *Harness, st *state, syms SymbolTable) (*Entrypoints, error) {
	ep := &Entrypoints{CheckIndex: -1}
	oldApply, oldCheck := h.applyIndex, h.checkIndex

	ep.ApplyIndex = st.next()
	if h.Check != nil {
		ep.CheckIndex = st.next()
		ep.Check = h.Check.Rewrite(func(ref wast.Ref) int {
			if ref.Kind == wast.RefIndex {
				return ep.CheckIndex
			}
			return ref.Value
		})
	}

	var err error
	ep.Apply = h.Apply.Rewrite(func(ref wast.Ref) int {
		switch ref.Kind {
		case wast.RefIndex:
			return ep.ApplyIndex
		case wast.RefCall:
			v := ref.Value
			switch {
			case v == oldApply:
				return ep.ApplyIndex
			case h.Check != nil && v == oldCheck:
				return ep.CheckIndex
			case v < ABIStubs:
				return v
			}
			n, ok := syms[v]
			if !ok {
				if err == nil {
					err = errors.New(errors.PhaseRelocate, errors.KindNotFound).
						Module(h.Module.Name).
						Record(h.Apply.Label()).
						Value(v).
						Detail("line %d: call %d has no test function in the symbol table", ref.Line, v).
						Build()
				}
				return v
			}
			return n
		}
		return ref.Value
	})
	if err != nil {
		return nil, err
	}

	ep.Exports = make([]*wast.Record, len(h.Module.Exports))
	for i, e := range h.Module.Exports {
		if _, ok := e.ExportFunc(); ok && strings.Contains(e.ExportName(), "apply") {
			e = e.Rewrite(func(ref wast.Ref) int {
				if ref.Kind == wast.RefExportFunc {
					return ep.ApplyIndex
				}
				return ref.Value
			})
		}
		ep.Exports[i] = e
	}

	Logger().Debug("relocated entrypoints",
		zap.Int("apply_from", oldApply),
		zap.Int("apply_to", ep.ApplyIndex),
		zap.Int("check_from", oldCheck),
		zap.Int("check_to", ep.CheckIndex),
	)
	return ep, nil
}
