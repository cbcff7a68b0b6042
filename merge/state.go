package merge

// ABIStubs is the number of leading harness functions that are fixed ABI
// stubs. They are never correlated or relocated, and test functions are
// numbered right after them.
const ABIStubs = 5

var (
	applyParams = []string{"i64", "i64", "i64"}
	checkParams = []string{"i32", "i32"}
)

// state is the bookkeeping threaded through one merge. It is created per
// call to Merge and never shared.
type state struct {
	typeOffset int // harness max type index + 1
	maxFunc    int // highest function index assigned so far
}

func newState(harnessMaxType int) *state {
	return &state{
		typeOffset: harnessMaxType + 1,
		maxFunc:    ABIStubs - 1,
	}
}

// next assigns the next free function index
func (s *state) next() int {
	s.maxFunc++
	return s.maxFunc
}

func (s *state) observe(idx int) {
	if idx > s.maxFunc {
		s.maxFunc = idx
	}
}
