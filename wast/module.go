package wast

import "strings"

// Kind is the section a top-level record belongs to
type Kind int

const (
	KindType Kind = iota
	KindImport
	KindFunc
	KindTable
	KindMemory
	KindGlobal
	KindExport
	KindStart
	KindData
	KindElem
)

var kindNames = [...]string{
	KindType:   "type",
	KindImport: "import",
	KindFunc:   "func",
	KindTable:  "table",
	KindMemory: "memory",
	KindGlobal: "global",
	KindExport: "export",
	KindStart:  "start",
	KindData:   "data",
	KindElem:   "elem",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

func kindOf(keyword string) (Kind, bool) {
	for k, name := range kindNames {
		if name == keyword {
			return Kind(k), true
		}
	}
	return 0, false
}

// Module is one text module split into its sections. Each slice keeps the
// records in the order they appeared in the source.
type Module struct {
	Name    string
	Types   []*Record
	Imports []*Record
	Funcs   []*Record
	Tables  []*Record
	Memory  []*Record
	Globals []*Record
	Exports []*Record
	Starts  []*Record
	Data    []*Record
	Elems   []*Record
}

func (m *Module) section(k Kind) *[]*Record {
	switch k {
	case KindType:
		return &m.Types
	case KindImport:
		return &m.Imports
	case KindFunc:
		return &m.Funcs
	case KindTable:
		return &m.Tables
	case KindMemory:
		return &m.Memory
	case KindGlobal:
		return &m.Globals
	case KindExport:
		return &m.Exports
	case KindStart:
		return &m.Starts
	case KindData:
		return &m.Data
	case KindElem:
		return &m.Elems
	}
	return nil
}

// Section returns the records of kind k
func (m *Module) Section(k Kind) []*Record {
	if s := m.section(k); s != nil {
		return *s
	}
	return nil
}

// MaxType returns the highest declared type index, or -1 when the module
// has no types.
func (m *Module) MaxType() int {
	highest := -1
	for _, t := range m.Types {
		if t.Index > highest {
			highest = t.Index
		}
	}
	return highest
}

// FuncImports returns the imports that occupy the function index space
func (m *Module) FuncImports() []*Record {
	var out []*Record
	for _, imp := range m.Imports {
		if imp.ImportKind() == "func" {
			out = append(out, imp)
		}
	}
	return out
}

// FuncSpace returns the size of the function index space
func (m *Module) FuncSpace() int {
	return len(m.FuncImports()) + len(m.Funcs)
}

// FuncExports returns the exports whose target is a function
func (m *Module) FuncExports() []*Record {
	var out []*Record
	for _, e := range m.Exports {
		if _, ok := e.ExportFunc(); ok {
			out = append(out, e)
		}
	}
	return out
}

// String renders the module in canonical section order
func (m *Module) String() string {
	var b strings.Builder
	b.WriteString("(module\n")
	for k := KindType; k <= KindElem; k++ {
		for _, r := range m.Section(k) {
			b.WriteString(r.Text)
			b.WriteByte('\n')
		}
	}
	b.WriteString(")\n")
	return b.String()
}
