package merge

import (
	"fmt"
	"strings"
)

type harnessSpec struct {
	stubsAsImports bool
	placeholders   int
	check          bool
	applyBody      []string
	applyParams    string
}

// harnessText renders a harness module the way eosio-wasm2wast prints one
func harnessText(s harnessSpec) string {
	var b strings.Builder
	b.WriteString("(module\n")
	b.WriteString("  (type (;0;) (func (param i32 i32)))\n")
	b.WriteString("  (type (;1;) (func (param i64 i64 i64)))\n")
	b.WriteString("  (type (;2;) (func))\n")
	b.WriteString("  (type (;3;) (func (param i32) (result i32)))\n")
	b.WriteString("  (type (;4;) (func (result i32)))\n")

	if s.stubsAsImports {
		for i := 0; i < ABIStubs; i++ {
			fmt.Fprintf(&b, "  (import \"env\" \"stub%d\" (func (;%d;) (type 2)))\n", i, i)
		}
	} else {
		for i := 0; i < ABIStubs; i++ {
			fmt.Fprintf(&b, "  (func (;%d;) (type 2)\n    nop)\n", i)
		}
	}

	idx := ABIStubs
	for i := 0; i < s.placeholders; i++ {
		fmt.Fprintf(&b, "  (func (;%d;) (type 4) (result i32)\n    i32.const 0)\n", idx)
		idx++
	}
	if s.check {
		fmt.Fprintf(&b, "  (func (;%d;) (type 0) (param i32 i32)\n    get_local 0\n    get_local 1\n    call 0)\n", idx)
		idx++
	}
	params := s.applyParams
	if params == "" {
		params = "i64 i64 i64"
	}
	fmt.Fprintf(&b, "  (func (;%d;) (type 1) (param %s)\n", idx, params)
	for i, line := range s.applyBody {
		b.WriteString("    " + line)
		if i == len(s.applyBody)-1 {
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	b.WriteString("  (table (;0;) 1 1 anyfunc)\n")
	b.WriteString("  (memory (;0;) 1)\n")
	b.WriteString("  (global (;0;) (mut i32) (i32.const 8192))\n")
	b.WriteString("  (export \"memory\" (memory 0))\n")
	fmt.Fprintf(&b, "  (export \"apply\" (func %d))\n", idx)
	b.WriteString("  (data (i32.const 4) \"harness\"))\n")
	return b.String()
}

// testModuleText has three functions exported out of declaration order:
// c -> 2, a -> 0, b -> 1.
const testModuleText = `(module
  (type (;0;) (func (result i32)))
  (type (;1;) (func (param i32) (result i32)))
  (type (;2;) (func (param i32 i32) (result i32)))
  (func (;0;) (type 0) (result i32)
    i32.const 1
    call 1)
  (func (;1;) (type 1) (param i32) (result i32)
    get_local 0
    get_local 0
    i32.const 0
    call_indirect (type 2))
  (func (;2;) (type 2) (param i32 i32) (result i32)
    block  ;; label = @1
      get_local 0
      call 1
      drop
    end
    get_local 1)
  (table (;0;) 2 2 anyfunc)
  (memory (;0;) 1)
  (export "c" (func 2))
  (export "a" (func 0))
  (export "mem" (memory 0))
  (export "b" (func 1))
  (elem (;0;) (i32.const 0) 1 2))
`
