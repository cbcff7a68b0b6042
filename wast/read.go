package wast

import (
	"fmt"

	"github.com/wippyai/specmerge/errors"
	"github.com/wippyai/specmerge/wast/internal/token"
)

// Read parses the text of one module. name is used in diagnostics only
// ("harness", "test").
//
// The source must be a single "(module ...)" form whose direct children are
// section records. Type indices and the function index space (function
// imports, then function records) must be contiguous from zero.
func Read(name, src string) (*Module, error) {
	toks := token.Tokenize(src)
	mod := &Module{Name: name}

	if len(toks) < 2 || toks[0].Type != token.LParen || toks[1].Value != "module" {
		return nil, errors.StructuralMismatch(errors.PhaseRead, name, "expected '(module' at start of input")
	}
	i := 2
	if i < len(toks) && toks[i].Type == token.Ident && toks[i].Value[0] == '$' {
		i++
	}

	closed := false
	for i < len(toks) && !closed {
		t := toks[i]
		switch t.Type {
		case token.RParen:
			closed = true
			i++
		case token.LParen:
			if i+1 >= len(toks) || toks[i+1].Type != token.Ident {
				return nil, mismatchAt(name, t, "expected section keyword after '('")
			}
			kind, ok := kindOf(toks[i+1].Value)
			if !ok {
				return nil, mismatchAt(name, t, fmt.Sprintf("unknown section %q", toks[i+1].Value))
			}
			end := matchParen(toks, i)
			if end < 0 {
				return nil, mismatchAt(name, t, fmt.Sprintf("unterminated %s record", kind))
			}
			sec := mod.section(kind)
			*sec = append(*sec, newRecord(kind, src[lineStart(src, t.Pos):toks[end].End]))
			i = end + 1
		default:
			return nil, mismatchAt(name, t, fmt.Sprintf("unexpected %s %q at module level", t.Type, t.Value))
		}
	}

	if !closed {
		return nil, errors.StructuralMismatch(errors.PhaseRead, name, "missing closing ')' of module")
	}
	if i < len(toks) {
		return nil, mismatchAt(name, toks[i], "unexpected input after module")
	}
	if err := checkContiguous(mod); err != nil {
		return nil, err
	}

	Logger().Debug("read module",
		zapModule(mod)...,
	)
	return mod, nil
}

// matchParen returns the token index of the RParen closing toks[open], or -1
func matchParen(toks []token.Token, open int) int {
	depth := 0
	for j := open; j < len(toks); j++ {
		switch toks[j].Type {
		case token.LParen:
			depth++
		case token.RParen:
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

// lineStart extends pos back over indentation when only whitespace precedes
// it on its line.
func lineStart(src string, pos int) int {
	k := pos
	for k > 0 && (src[k-1] == ' ' || src[k-1] == '\t') {
		k--
	}
	if k == 0 || src[k-1] == '\n' {
		return k
	}
	return pos
}

func checkContiguous(mod *Module) error {
	for i, t := range mod.Types {
		if t.Index != i {
			return errors.New(errors.PhaseRead, errors.KindStructuralMismatch).
				Module(mod.Name).
				Record(t.Label()).
				Detail("type at position %d declares index %d", i, t.Index).
				Build()
		}
	}

	pos := 0
	for _, f := range append(mod.FuncImports(), mod.Funcs...) {
		if f.Index != pos {
			return errors.New(errors.PhaseRead, errors.KindStructuralMismatch).
				Module(mod.Name).
				Record(f.Label()).
				Detail("function at position %d declares index %d", pos, f.Index).
				Build()
		}
		pos++
	}
	return nil
}

func mismatchAt(name string, t token.Token, detail string) *errors.Error {
	return errors.New(errors.PhaseRead, errors.KindStructuralMismatch).
		Module(name).
		Value(t.Line).
		Detail("line %d: %s", t.Line, detail).
		Build()
}
