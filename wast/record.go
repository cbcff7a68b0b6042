package wast

import (
	"strconv"
	"strings"

	"github.com/wippyai/specmerge/wast/internal/token"
)

// RefKind classifies a numeric index reference inside a record
type RefKind int

const (
	RefIndex        RefKind = iota // declared "(;N;)" index of the record itself
	RefTypeUse                     // "(type N)" in a function or import header
	RefIndirectType                // "call_indirect (type N)" or "call_indirect N"
	RefCall                        // "call N"
	RefExportFunc                  // "(export "name" (func N))"
	RefElemFunc                    // function index listed in an elem segment
	RefStart                       // "(start N)"
)

func (k RefKind) String() string {
	switch k {
	case RefIndex:
		return "index"
	case RefTypeUse:
		return "type"
	case RefIndirectType:
		return "call_indirect"
	case RefCall:
		return "call"
	case RefExportFunc:
		return "export"
	case RefElemFunc:
		return "elem"
	case RefStart:
		return "start"
	}
	return "unknown"
}

// Ref is one index reference inside a record
type Ref struct {
	Kind  RefKind
	Value int
	Line  int // 1-based, relative to the record text
	tok   int
}

// Record is a single top-level form of a module
type Record struct {
	Text  string
	Kind  Kind
	Index int // declared index, -1 when the record has none
	toks  []token.Token
	refs  []Ref
}

func newRecord(kind Kind, text string) *Record {
	r := &Record{Kind: kind, Text: text, toks: token.Tokenize(text)}
	r.refs = r.scanRefs()
	r.Index = -1
	for _, ref := range r.refs {
		if ref.Kind == RefIndex {
			r.Index = ref.Value
			break
		}
	}
	return r
}

// NewRecord builds a record from text, e.g. for synthesized exports
func NewRecord(kind Kind, text string) *Record {
	return newRecord(kind, text)
}

// Label names the record for diagnostics, e.g. "func 7"
func (r *Record) Label() string {
	if r.Index < 0 {
		return r.Kind.String()
	}
	return r.Kind.String() + " " + strconv.Itoa(r.Index)
}

// Refs returns the index references in source order
func (r *Record) Refs() []Ref {
	return r.refs
}

// Rewrite returns a copy of the record with every reference replaced by
// fn(ref). Only the digits of changed references are touched.
func (r *Record) Rewrite(fn func(Ref) int) *Record {
	var b strings.Builder
	last := 0
	changed := false
	for _, ref := range r.refs {
		v := fn(ref)
		if v == ref.Value {
			continue
		}
		changed = true
		t := r.toks[ref.tok]
		b.WriteString(r.Text[last:t.Pos])
		if t.Type == token.Annot {
			b.WriteString("(;" + strconv.Itoa(v) + ";)")
		} else {
			b.WriteString(strconv.Itoa(v))
		}
		last = t.End
	}
	if !changed {
		return r
	}
	b.WriteString(r.Text[last:])
	return newRecord(r.Kind, b.String())
}

// scanRefs walks the token stream once. Depth 1 is inside the record's own
// parens.
func (r *Record) scanRefs() []Ref {
	var refs []Ref
	toks := r.toks
	depth := 0
	seenIndex := false
	add := func(kind RefKind, i int) {
		if v, ok := toks[i].Uint(); ok {
			refs = append(refs, Ref{Kind: kind, Value: v, Line: toks[i].Line, tok: i})
		}
	}

	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch t.Type {
		case token.LParen:
			depth++
			// (type N) and (func N) forms
			if i+3 < len(toks) && toks[i+1].Type == token.Ident &&
				toks[i+2].Type == token.Number && toks[i+3].Type == token.RParen {
				switch {
				case toks[i+1].Value == "type" && i > 0 && toks[i-1].Value == "call_indirect":
					add(RefIndirectType, i+2)
				case toks[i+1].Value == "type":
					add(RefTypeUse, i+2)
				case toks[i+1].Value == "func" && r.Kind == KindExport:
					add(RefExportFunc, i+2)
				}
			}
		case token.RParen:
			depth--
		case token.Annot:
			if !seenIndex {
				seenIndex = true
				add(RefIndex, i)
			}
		case token.Ident:
			if i+1 >= len(toks) || toks[i+1].Type != token.Number {
				continue
			}
			switch t.Value {
			case "call":
				add(RefCall, i+1)
				i++
			case "call_indirect":
				// legacy form: call_indirect N names type N
				add(RefIndirectType, i+1)
				i++
			}
		case token.Number:
			if depth != 1 {
				continue
			}
			switch r.Kind {
			case KindElem:
				add(RefElemFunc, i)
			case KindStart:
				add(RefStart, i)
			}
		}
	}
	return refs
}

// Signature is the parameter and result value types of a function header
type Signature struct {
	Params  []string
	Results []string
}

// Matches reports whether the parameters equal params exactly
func (s Signature) Matches(params ...string) bool {
	if len(s.Params) != len(params) {
		return false
	}
	for i := range params {
		if s.Params[i] != params[i] {
			return false
		}
	}
	return true
}

func (s Signature) String() string {
	var b strings.Builder
	b.WriteString("(param")
	for _, p := range s.Params {
		b.WriteByte(' ')
		b.WriteString(p)
	}
	b.WriteByte(')')
	if len(s.Results) > 0 {
		b.WriteString(" (result")
		for _, p := range s.Results {
			b.WriteByte(' ')
			b.WriteString(p)
		}
		b.WriteByte(')')
	}
	return b.String()
}

// Signature returns the inline param/result declarations of a func record.
// Named params ("(param $x i32)") contribute only their type.
func (r *Record) Signature() Signature {
	var sig Signature
	if r.Kind != KindFunc {
		return sig
	}
	toks := r.toks
	// header groups live at depth 2, directly after "(func"
	for i := 2; i < len(toks); i++ {
		if toks[i].Type != token.LParen {
			if toks[i].Type == token.Annot ||
				(toks[i].Type == token.Ident && strings.HasPrefix(toks[i].Value, "$")) {
				continue
			}
			break
		}
		if i+1 >= len(toks) || toks[i+1].Type != token.Ident {
			break
		}
		var dst *[]string
		switch toks[i+1].Value {
		case "param":
			dst = &sig.Params
		case "result":
			dst = &sig.Results
		case "type", "export", "import":
			dst = nil
		default:
			return sig
		}
		j := i + 2
		for ; j < len(toks) && toks[j].Type != token.RParen; j++ {
			if dst != nil && toks[j].Type == token.Ident && !strings.HasPrefix(toks[j].Value, "$") {
				*dst = append(*dst, toks[j].Value)
			}
		}
		i = j
	}
	return sig
}

// TypeUse returns N of the header's "(type N)", or -1
func (r *Record) TypeUse() int {
	for _, ref := range r.refs {
		if ref.Kind == RefTypeUse {
			return ref.Value
		}
	}
	return -1
}

// ImportKind returns the descriptor keyword of an import record ("func",
// "memory", "table", "global"), or "" for other records.
func (r *Record) ImportKind() string {
	if r.Kind != KindImport {
		return ""
	}
	for i := 1; i+1 < len(r.toks); i++ {
		if r.toks[i].Type == token.LParen && r.toks[i+1].Type == token.Ident {
			return r.toks[i+1].Value
		}
	}
	return ""
}

// ExportName returns the exported name of an export record
func (r *Record) ExportName() string {
	if r.Kind != KindExport {
		return ""
	}
	for _, t := range r.toks {
		if t.Type == token.String {
			return t.Value
		}
	}
	return ""
}

// ExportFunc returns the target function index of a function export
func (r *Record) ExportFunc() (int, bool) {
	for _, ref := range r.refs {
		if ref.Kind == RefExportFunc {
			return ref.Value, true
		}
	}
	return 0, false
}
