package errors

import (
	"fmt"
	"sort"
	"strings"
)

// Phase indicates which stage of a merge or batch run failed
type Phase string

const (
	PhaseRead        Phase = "read"        // text -> module
	PhaseShift       Phase = "shift"       // index renumbering of the test module
	PhaseCorrelate   Phase = "correlate"   // symbol table construction
	PhaseRelocate    Phase = "relocate"    // apply/check relocation
	PhaseCompose     Phase = "compose"     // module -> text
	PhaseCompile     Phase = "compile"     // source -> intermediate binary
	PhaseLink        Phase = "link"        // intermediate -> final binary
	PhaseDisassemble Phase = "disassemble" // binary -> text
	PhaseAssemble    Phase = "assemble"    // text -> binary
	PhaseVerify      Phase = "verify"      // binary validation
	PhaseGenerate    Phase = "generate"    // harness sources from a spec test description
	PhaseExecute     Phase = "execute"     // merged binary on the execution backend
	PhaseConfig      Phase = "config"      // configuration loading
	PhaseBatch       Phase = "batch"       // batch orchestration
)

// Kind categorizes the error
type Kind string

const (
	KindStructuralMismatch Kind = "structural_mismatch"
	KindOutOfBounds        Kind = "out_of_bounds"
	KindNotFound           Kind = "not_found"
	KindAmbiguousSignature Kind = "ambiguous_signature"
	KindToolFailure        Kind = "tool_failure"
	KindInvalidInput       Kind = "invalid_input"
	KindUnavailable        Kind = "unavailable"
	KindExecutionFailure   Kind = "execution_failure"
)

// Error is the structured error type used throughout specmerge
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Module string
	Record string
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Module != "" || e.Record != "" {
		b.WriteString(" in ")
		switch {
		case e.Module != "" && e.Record != "":
			b.WriteString(e.Module)
			b.WriteString(" module, ")
			b.WriteString(e.Record)
		case e.Module != "":
			b.WriteString(e.Module)
			b.WriteString(" module")
		default:
			b.WriteString(e.Record)
		}
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A zero Phase in target matches any phase.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return (t.Phase == "" || e.Phase == t.Phase) && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Module sets the module role ("harness" or "test")
func (b *Builder) Module(role string) *Builder {
	b.err.Module = role
	return b
}

// Record sets the offending record, e.g. "func 7"
func (b *Builder) Record(rec string) *Builder {
	b.err.Record = rec
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// StructuralMismatch creates an error for input that does not follow the
// expected section grammar
func StructuralMismatch(phase Phase, module, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindStructuralMismatch,
		Module: module,
		Detail: detail,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, module string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Module: module,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// AmbiguousSignature creates an error for an entrypoint whose parameter
// signature matches neither apply nor check
func AmbiguousSignature(module, record, want string) *Error {
	return &Error{
		Phase:  PhaseRelocate,
		Kind:   KindAmbiguousSignature,
		Module: module,
		Record: record,
		Detail: fmt.Sprintf("trailing function does not have signature %s", want),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// ToolExit describes a non-zero exit of an external tool
type ToolExit struct {
	Tool     string
	Stderr   string
	ExitCode int
}

// ToolFailure creates an error for an external tool that exited non-zero
// or could not be started. exitCode is -1 when the tool never ran.
func ToolFailure(phase Phase, tool string, exitCode int, stderr string, cause error) *Error {
	detail := fmt.Sprintf("%s exited with code %d", tool, exitCode)
	if exitCode < 0 {
		detail = fmt.Sprintf("%s could not be started", tool)
	}
	if s := strings.TrimSpace(stderr); s != "" {
		detail += ": " + firstLines(s, 5)
	}
	return &Error{
		Phase:  phase,
		Kind:   KindToolFailure,
		Detail: detail,
		Cause:  cause,
		Value:  ToolExit{Tool: tool, ExitCode: exitCode, Stderr: stderr},
	}
}

// ExecutionFailure creates an error for a backend run whose stderr carries
// a failure marker. The full stderr is kept in the ToolExit value.
func ExecutionFailure(tool, marker string, exitCode int, stderr string) *Error {
	return &Error{
		Phase:  PhaseExecute,
		Kind:   KindExecutionFailure,
		Detail: fmt.Sprintf("%s reported %s", tool, marker),
		Value:  ToolExit{Tool: tool, ExitCode: exitCode, Stderr: stderr},
	}
}

func firstLines(s string, n int) string {
	lines := strings.SplitN(s, "\n", n+1)
	if len(lines) > n {
		lines = append(lines[:n], "...")
	}
	return strings.Join(lines, "\n")
}

// CaseFailure is a single failed case of a batch run
type CaseFailure struct {
	Err  error
	Case string
}

// CaseFailuresError aggregates the failures of a batch run
type CaseFailuresError struct {
	Failures []CaseFailure
	Total    int
}

// NewCaseFailuresError sorts failures by case name
func NewCaseFailuresError(total int, failures []CaseFailure) *CaseFailuresError {
	sorted := append([]CaseFailure(nil), failures...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Case < sorted[j].Case })
	return &CaseFailuresError{Total: total, Failures: sorted}
}

func (e *CaseFailuresError) Error() string {
	if len(e.Failures) == 0 {
		return "[batch] no failures recorded"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d case(s) failed:\n", len(e.Failures), e.Total)

	// Group by phase so one broken tool reads as one block
	byPhase := make(map[string][]string)
	var order []string
	for _, f := range e.Failures {
		phase := "unknown"
		var se *Error
		if As(f.Err, &se) {
			phase = string(se.Phase)
		}
		if _, ok := byPhase[phase]; !ok {
			order = append(order, phase)
		}
		byPhase[phase] = append(byPhase[phase], f.Case)
	}

	for _, phase := range order {
		b.WriteString("\n  ")
		b.WriteString(phase)
		b.WriteString(":\n")
		for _, c := range byPhase[phase] {
			b.WriteString("    - ")
			b.WriteString(c)
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type
func (e *CaseFailuresError) Is(target error) bool {
	_, ok := target.(*CaseFailuresError)
	return ok
}
