package merge

import (
	"strings"
	"testing"

	"github.com/wippyai/specmerge/errors"
	"github.com/wippyai/specmerge/wast"
)

var scenarioApply = []string{
	"get_local 2",
	"i64.const 0",
	"i64.eq",
	"if  ;; label = @1",
	"  call 7",
	"  drop",
	"end",
	"call 5",
	"drop",
	"i32.const 0",
	"call 0",
}

func mustRead(t *testing.T, name, src string) *wast.Module {
	t.Helper()
	mod, err := wast.Read(name, src)
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return mod
}

func funcByIndex(t *testing.T, mod *wast.Module, idx int) *wast.Record {
	t.Helper()
	for _, f := range mod.Funcs {
		if f.Index == idx {
			return f
		}
	}
	t.Fatalf("no func %d", idx)
	return nil
}

func calls(r *wast.Record) []int {
	var out []int
	for _, ref := range r.Refs() {
		if ref.Kind == wast.RefCall {
			out = append(out, ref.Value)
		}
	}
	return out
}

func exportTarget(t *testing.T, mod *wast.Module, name string) int {
	t.Helper()
	for _, e := range mod.Exports {
		if e.ExportName() == name {
			idx, ok := e.ExportFunc()
			if !ok {
				t.Fatalf("export %q is not a function", name)
			}
			return idx
		}
	}
	t.Fatalf("no export %q", name)
	return -1
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestMergeApplyOnly(t *testing.T) {
	for _, imports := range []bool{false, true} {
		name := "stub_funcs"
		if imports {
			name = "stub_imports"
		}
		t.Run(name, func(t *testing.T) {
			harness := harnessText(harnessSpec{stubsAsImports: imports, placeholders: 3, applyBody: scenarioApply})
			res, err := Merge(harness, testModuleText)
			if err != nil {
				t.Fatalf("Merge failed: %v", err)
			}

			if res.FuncCount != 9 {
				t.Errorf("FuncCount = %d, want 9", res.FuncCount)
			}
			if res.ApplyIndex != 8 || res.CheckIndex != -1 {
				t.Errorf("apply at %d, check at %d; want 8, -1", res.ApplyIndex, res.CheckIndex)
			}

			// c -> 7, a -> 5, b -> 6 after the +5 shift
			want := SymbolTable{5: 7, 6: 5, 7: 6}
			for k, v := range want {
				if res.Symbols[k] != v {
					t.Errorf("Symbols[%d] = %d, want %d", k, res.Symbols[k], v)
				}
			}

			merged := mustRead(t, "merged", res.Text)
			if merged.FuncSpace() != 9 {
				t.Errorf("merged function space = %d, want 9", merged.FuncSpace())
			}
			apply := funcByIndex(t, merged, 8)
			if got := calls(apply); !equalInts(got, []int{6, 7, 0}) {
				t.Errorf("apply calls = %v, want [6 7 0]", got)
			}
			if got := exportTarget(t, merged, "apply"); got != 8 {
				t.Errorf("apply export = %d, want 8", got)
			}
			if got := exportTarget(t, merged, "c"); got != 7 {
				t.Errorf("test export c = %d, want 7", got)
			}
		})
	}
}

func TestMergeWithCheck(t *testing.T) {
	body := append([]string{"i32.const 1", "i32.const 1", "call 8"}, scenarioApply...)
	harness := harnessText(harnessSpec{placeholders: 3, check: true, applyBody: body})

	res, err := Merge(harness, testModuleText)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	if res.FuncCount != 10 {
		t.Errorf("FuncCount = %d, want 10", res.FuncCount)
	}
	if res.ApplyIndex != res.FuncCount-2 || res.CheckIndex != res.FuncCount-1 {
		t.Errorf("apply at %d, check at %d; want %d, %d", res.ApplyIndex, res.CheckIndex, res.FuncCount-2, res.FuncCount-1)
	}

	merged := mustRead(t, "merged", res.Text)
	apply := funcByIndex(t, merged, 8)
	if !apply.Signature().Matches("i64", "i64", "i64") {
		t.Fatalf("func 8 is not apply: %s", apply.Text)
	}
	if got := calls(apply); !equalInts(got, []int{9, 6, 7, 0}) {
		t.Errorf("apply calls = %v, want [9 6 7 0]", got)
	}
	check := funcByIndex(t, merged, 9)
	if !check.Signature().Matches("i32", "i32") {
		t.Errorf("func 9 is not check: %s", check.Text)
	}
	if got := calls(check); !equalInts(got, []int{0}) {
		t.Errorf("check calls = %v, want [0]", got)
	}
	if got := exportTarget(t, merged, "apply"); got != 8 {
		t.Errorf("apply export = %d, want 8", got)
	}
}

func TestShiftTypes(t *testing.T) {
	test := mustRead(t, "test", testModuleText)
	shifted, types, err := Shift(test, 4)
	if err != nil {
		t.Fatalf("Shift failed: %v", err)
	}

	for orig, want := range map[int]int{0: 5, 1: 6, 2: 7} {
		if types[orig] != want {
			t.Errorf("type %d -> %d, want %d", orig, types[orig], want)
		}
	}
	for i, tr := range shifted.Types {
		if tr.Index != test.Types[i].Index+5 {
			t.Errorf("type record %d declares %d", i, tr.Index)
		}
	}

	wantTypes := []int{5, 6, 7}
	for i, f := range shifted.Funcs {
		if f.Index != test.Funcs[i].Index+ABIStubs {
			t.Errorf("func %d index = %d, want %d", i, f.Index, test.Funcs[i].Index+ABIStubs)
		}
		if f.TypeUse() != wantTypes[i] {
			t.Errorf("func %d type = %d, want %d", i, f.TypeUse(), wantTypes[i])
		}
	}
	if got := calls(shifted.Funcs[0]); !equalInts(got, []int{6}) {
		t.Errorf("func 0 calls = %v, want [6]", got)
	}
	if !strings.Contains(shifted.Funcs[1].Text, "call_indirect (type 7)") {
		t.Errorf("call_indirect not shifted:\n%s", shifted.Funcs[1].Text)
	}
	if !strings.Contains(shifted.Funcs[2].Text, "block  ;; label = @1") {
		t.Errorf("body formatting lost:\n%s", shifted.Funcs[2].Text)
	}
	if got := shifted.Elems[0].Text; got != "  (elem (;0;) (i32.const 0) 6 7)" {
		t.Errorf("elem = %q", got)
	}

	if test.Funcs[0].TypeUse() != 0 {
		t.Error("Shift modified its input")
	}
}

func TestShiftCallIndirectWithoutTypeGroup(t *testing.T) {
	src := "(module\n  (type (;0;) (func))\n  (func (;0;) (type 0)\n    i32.const 0\n    call_indirect 0))\n"
	shifted, _, err := Shift(mustRead(t, "test", src), 4)
	if err != nil {
		t.Fatalf("Shift failed: %v", err)
	}
	if !strings.Contains(shifted.Funcs[0].Text, "call_indirect 5)") {
		t.Errorf("call_indirect not shifted:\n%s", shifted.Funcs[0].Text)
	}
}

func TestShiftNoHarnessTypes(t *testing.T) {
	test := mustRead(t, "test", testModuleText)
	shifted, _, err := Shift(test, -1)
	if err != nil {
		t.Fatalf("Shift failed: %v", err)
	}
	if shifted.Types[0].Index != 0 {
		t.Errorf("type offset with empty harness = %d, want 0", shifted.Types[0].Index)
	}
}

func TestShiftUndeclaredType(t *testing.T) {
	src := "(module\n  (type (;0;) (func))\n  (func (;0;) (type 3)\n    nop))\n"
	_, _, err := Shift(mustRead(t, "test", src), 4)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, &errors.Error{Phase: errors.PhaseShift, Kind: errors.KindNotFound}) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMergeRecursiveApply(t *testing.T) {
	// func 0 is not exported, so the test module fills more indices than
	// the harness has placeholders
	test := `(module
  (type (;0;) (func (result i32)))
  (func (;0;) (type 0) (result i32)
    i32.const 1)
  (func (;1;) (type 0) (result i32)
    call 0)
  (export "f" (func 1)))
`
	harness := harnessText(harnessSpec{
		stubsAsImports: true,
		placeholders:   1,
		applyBody:      []string{"call 5", "drop", "get_local 0", "get_local 1", "get_local 2", "call 6"},
	})

	res, err := Merge(harness, test)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if res.ApplyIndex != 7 {
		t.Fatalf("apply at %d, want 7", res.ApplyIndex)
	}

	merged := mustRead(t, "merged", res.Text)
	if got := calls(funcByIndex(t, merged, 7)); !equalInts(got, []int{6, 7}) {
		t.Errorf("apply calls = %v, want [6 7]", got)
	}
	if got := calls(funcByIndex(t, merged, 6)); !equalInts(got, []int{5}) {
		t.Errorf("test func 6 calls = %v, want [5]", got)
	}
}

func TestMergeSymbolCountMismatch(t *testing.T) {
	harness := harnessText(harnessSpec{placeholders: 2, applyBody: []string{"call 5", "drop"}})
	_, err := Merge(harness, testModuleText)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, &errors.Error{Phase: errors.PhaseCorrelate, Kind: errors.KindOutOfBounds}) {
		t.Errorf("unexpected error: %v", err)
	}
	if !strings.Contains(err.Error(), "2 placeholder functions but test module exports 3") {
		t.Errorf("error lacks counts: %v", err)
	}
}

func TestMergeUnknownCallTarget(t *testing.T) {
	harness := harnessText(harnessSpec{placeholders: 3, applyBody: []string{"call 42", "drop"}})
	_, err := Merge(harness, testModuleText)
	if !errors.Is(err, &errors.Error{Phase: errors.PhaseRelocate, Kind: errors.KindNotFound}) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSplitHarness(t *testing.T) {
	t.Run("trailing_function_not_apply", func(t *testing.T) {
		mod := mustRead(t, "harness", harnessText(harnessSpec{placeholders: 1, applyParams: "i32", applyBody: []string{"nop"}}))
		_, err := SplitHarness(mod)
		if !errors.Is(err, &errors.Error{Kind: errors.KindAmbiguousSignature}) {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(err.Error(), "func 6") {
			t.Errorf("error should name the function: %v", err)
		}
	})

	t.Run("no_check", func(t *testing.T) {
		mod := mustRead(t, "harness", harnessText(harnessSpec{placeholders: 2, applyBody: []string{"nop"}}))
		h, err := SplitHarness(mod)
		if err != nil {
			t.Fatalf("SplitHarness failed: %v", err)
		}
		if h.Check != nil || h.Apply.Index != 7 || len(h.Targets) != 2 || len(h.Base) != ABIStubs {
			t.Errorf("split = base %d targets %d apply %d check %v", len(h.Base), len(h.Targets), h.Apply.Index, h.Check)
		}
	})

	t.Run("check", func(t *testing.T) {
		mod := mustRead(t, "harness", harnessText(harnessSpec{stubsAsImports: true, placeholders: 2, check: true, applyBody: []string{"nop"}}))
		h, err := SplitHarness(mod)
		if err != nil {
			t.Fatalf("SplitHarness failed: %v", err)
		}
		if h.Check == nil || h.Check.Index != 7 || h.Apply.Index != 8 || len(h.Base) != 0 {
			t.Errorf("split = base %d apply %d check %v", len(h.Base), h.Apply.Index, h.Check)
		}
	})

	t.Run("only_stubs", func(t *testing.T) {
		src := "(module\n  (type (;0;) (func))\n" +
			"  (func (;0;) (type 0))\n  (func (;1;) (type 0))\n  (func (;2;) (type 0))\n" +
			"  (func (;3;) (type 0))\n  (func (;4;) (type 0)))\n"
		_, err := SplitHarness(mustRead(t, "harness", src))
		if !errors.Is(err, &errors.Error{Kind: errors.KindAmbiguousSignature}) {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("wrong_stub_count", func(t *testing.T) {
		src := "(module\n  (type (;0;) (func (param i64 i64 i64)))\n" +
			"  (func (;0;) (type 0) (param i64 i64 i64)))\n"
		_, err := SplitHarness(mustRead(t, "harness", src))
		if !errors.Is(err, &errors.Error{Kind: errors.KindStructuralMismatch}) {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestComposeOrder(t *testing.T) {
	harness := harnessText(harnessSpec{placeholders: 3, applyBody: scenarioApply})
	res, err := Merge(harness, testModuleText)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	lines := strings.Split(strings.TrimSuffix(res.Text, "\n"), "\n")
	if lines[0] != "(module" || lines[len(lines)-1] != ")" {
		t.Fatalf("module wrapper missing:\n%s", res.Text)
	}

	order := []string{
		`(type (;4;)`,
		`(type (;5;)`,
		`(func (;4;) (type 2)`,
		`(func (;5;) (type 5)`,
		`(func (;8;) (type 1)`,
		`(table (;0;) 2 2 anyfunc)`,
		`(memory (;0;) 1)`,
		`(global (;0;)`,
		`(export "c" (func 7))`,
		`(export "apply" (func 8))`,
		`(data (i32.const 4) "harness")`,
		`(elem (;0;) (i32.const 0) 6 7)`,
	}
	last := -1
	for _, marker := range order {
		pos := strings.Index(res.Text, marker)
		if pos < 0 {
			t.Errorf("missing %q", marker)
			continue
		}
		if pos < last {
			t.Errorf("%q out of order", marker)
		}
		last = pos
	}

	if strings.Contains(res.Text, "(table (;0;) 1 1 anyfunc)") {
		t.Error("harness table must be dropped")
	}
	if strings.Count(res.Text, "(memory (;0;) 1)") != 1 {
		t.Error("exactly one memory section expected")
	}
	if strings.Contains(res.Text, "(func (;5;) (type 4)") {
		t.Error("harness placeholders must be dropped")
	}
}

func TestComposeRejectsGaps(t *testing.T) {
	harness := mustRead(t, "harness", harnessText(harnessSpec{placeholders: 3, applyBody: scenarioApply}))
	test := mustRead(t, "test", testModuleText)
	h, err := SplitHarness(harness)
	if err != nil {
		t.Fatal(err)
	}
	st := newState(harness.MaxType())
	shifted, _, err := shift(test, st)
	if err != nil {
		t.Fatal(err)
	}
	syms, err := BuildSymbols(h, shifted)
	if err != nil {
		t.Fatal(err)
	}
	st.next() // leave a hole before apply
	ep, err := relocate(h, st, syms)
	if err != nil {
		t.Fatal(err)
	}
	_, err = Compose(h, ep, shifted)
	if !errors.Is(err, &errors.Error{Phase: errors.PhaseCompose, Kind: errors.KindStructuralMismatch}) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	harness := mustRead(t, "harness", harnessText(harnessSpec{placeholders: 3, check: true, applyBody: []string{"call 8"}}))
	test := mustRead(t, "test", testModuleText)
	before := harness.String() + test.String()

	first, err := MergeModules(harness, test)
	if err != nil {
		t.Fatalf("MergeModules failed: %v", err)
	}
	second, err := MergeModules(harness, test)
	if err != nil {
		t.Fatalf("second MergeModules failed: %v", err)
	}
	if first.Text != second.Text {
		t.Error("merging twice gave different output")
	}
	if harness.String()+test.String() != before {
		t.Error("inputs were modified")
	}
}

func TestSymbolTableSorted(t *testing.T) {
	syms := SymbolTable{9: 1, 5: 3, 7: 2}
	if got := syms.Sorted(); !equalInts(got, []int{5, 7, 9}) {
		t.Errorf("Sorted = %v", got)
	}
}
