package merge

import (
	"strings"

	"github.com/wippyai/specmerge/errors"
	"github.com/wippyai/specmerge/wast"
)

// Compose serializes the merged module. Section order:
//
//	types      harness, test
//	imports    harness, test
//	funcs      harness base, test, apply, check
//	table      test only
//	memory     harness only
//	globals    harness, test
//	exports    test, harness
//	start      test, harness
//	data       harness, test
//	elems      test, harness
//
// The test module is authoritative for the table because its elem segments
// index it; the harness is authoritative for memory.
func Compose(h *Harness, ep *Entrypoints, test *wast.Module) (string, error) {
	funcs := make([]*wast.Record, 0, len(h.Base)+len(test.Funcs)+2)
	funcs = append(funcs, h.Base...)
	funcs = append(funcs, test.Funcs...)
	funcs = append(funcs, ep.Apply)
	if ep.Check != nil {
		funcs = append(funcs, ep.Check)
	}

	a := h.Module
	sections := [][]*wast.Record{
		a.Types, test.Types,
		a.Imports, test.Imports,
		funcs,
		test.Tables,
		a.Memory,
		a.Globals, test.Globals,
		test.Exports, ep.Exports,
		test.Starts, a.Starts,
		a.Data, test.Data,
		test.Elems, a.Elems,
	}

	if err := checkIndexSpaces(concat(a.Types, test.Types), concat(a.Imports, test.Imports), funcs); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("(module\n")
	for _, recs := range sections {
		for _, r := range recs {
			b.WriteString(r.Text)
			b.WriteByte('\n')
		}
	}
	b.WriteString(")\n")
	return b.String(), nil
}

// checkIndexSpaces verifies that the merged type indices and function
// indices (function imports first, then definitions) are exactly [0, N).
func checkIndexSpaces(types, imports, funcs []*wast.Record) error {
	for i, t := range types {
		if t.Index != i {
			return gapError("type", i, t)
		}
	}

	pos := 0
	for _, imp := range imports {
		if imp.ImportKind() != "func" {
			continue
		}
		if imp.Index != pos {
			return gapError("function", pos, imp)
		}
		pos++
	}
	for _, f := range funcs {
		if f.Index != pos {
			return gapError("function", pos, f)
		}
		pos++
	}
	return nil
}

func gapError(space string, pos int, r *wast.Record) error {
	return errors.New(errors.PhaseCompose, errors.KindStructuralMismatch).
		Record(r.Label()).
		Value(pos).
		Detail("merged %s index space expects %d at this position", space, pos).
		Build()
}

func concat(a, b []*wast.Record) []*wast.Record {
	out := make([]*wast.Record, 0, len(a)+len(b))
	return append(append(out, a...), b...)
}
