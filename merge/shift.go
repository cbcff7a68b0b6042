package merge

import (
	"go.uber.org/zap"

	"github.com/wippyai/specmerge/errors"
	"github.com/wippyai/specmerge/wast"
)

// IndexMap maps a test module type index to its index after the merge
type IndexMap map[int]int

// Shift renumbers the test module so it can follow the harness:
//
//   - declared type indices move by harness max type + 1, and every
//     "(type N)" in function and import headers follows the resulting map;
//   - "call_indirect (type N)" moves by the same type offset;
//   - declared function indices, "call N", function exports, elem segment
//     entries and the start function move by ABIStubs.
//
// Shift returns a new module; mod is left untouched.
func Shift(mod *wast.Module, harnessMaxType int) (*wast.Module, IndexMap, error) {
	return shift(mod, newState(harnessMaxType))
}

func shift(mod *wast.Module, st *state) (*wast.Module, IndexMap, error) {
	out := *mod
	types := make(IndexMap, len(mod.Types))

	out.Types = make([]*wast.Record, len(mod.Types))
	for i, t := range mod.Types {
		types[t.Index] = t.Index + st.typeOffset
		out.Types[i] = t.Rewrite(func(ref wast.Ref) int {
			if ref.Kind == wast.RefIndex {
				return types[ref.Value]
			}
			return ref.Value
		})
	}

	var err error
	rewrite := func(recs []*wast.Record) []*wast.Record {
		res := make([]*wast.Record, len(recs))
		for i, r := range recs {
			isFunc := r.Kind == wast.KindFunc || r.ImportKind() == "func"
			res[i] = r.Rewrite(func(ref wast.Ref) int {
				switch ref.Kind {
				case wast.RefIndex:
					if isFunc {
						return ref.Value + ABIStubs
					}
				case wast.RefTypeUse:
					n, ok := types[ref.Value]
					if !ok && err == nil {
						err = errors.New(errors.PhaseShift, errors.KindNotFound).
							Module(mod.Name).
							Record(r.Label()).
							Value(ref.Value).
							Detail("line %d: type %d is not declared", ref.Line, ref.Value).
							Build()
					}
					if ok {
						return n
					}
				case wast.RefIndirectType:
					return ref.Value + st.typeOffset
				case wast.RefCall, wast.RefExportFunc, wast.RefElemFunc, wast.RefStart:
					return ref.Value + ABIStubs
				}
				return ref.Value
			})
		}
		return res
	}

	out.Imports = rewrite(mod.Imports)
	out.Funcs = rewrite(mod.Funcs)
	out.Exports = rewrite(mod.Exports)
	out.Elems = rewrite(mod.Elems)
	out.Starts = rewrite(mod.Starts)
	if err != nil {
		return nil, nil, err
	}

	for _, f := range append(out.FuncImports(), out.Funcs...) {
		st.observe(f.Index)
	}

	Logger().Debug("shifted test module",
		zap.String("module", mod.Name),
		zap.Int("type_offset", st.typeOffset),
		zap.Int("func_offset", ABIStubs),
		zap.Int("max_func", st.maxFunc),
	)
	return &out, types, nil
}
