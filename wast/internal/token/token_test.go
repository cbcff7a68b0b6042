package token

import (
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []Token
	}{
		{
			"empty",
			"",
			nil,
		},
		{
			"parens",
			"()",
			[]Token{{"(", LParen, 1, 0, 1}, {")", RParen, 1, 1, 2}},
		},
		{
			"module",
			"(module)",
			[]Token{{"(", LParen, 1, 0, 1}, {"module", Ident, 1, 1, 7}, {")", RParen, 1, 7, 8}},
		},
		{
			"newlines",
			"(\nmodule\n)",
			[]Token{{"(", LParen, 1, 0, 1}, {"module", Ident, 2, 2, 8}, {")", RParen, 3, 9, 10}},
		},
		{
			"annotation",
			"(;12;)",
			[]Token{{"12", Annot, 1, 0, 6}},
		},
		{
			"spaced_annotation",
			"(; 3 ;)",
			[]Token{{"3", Annot, 1, 0, 7}},
		},
		{
			"non_numeric_block_comment",
			"(;=1.5;) x",
			[]Token{{"x", Ident, 1, 9, 10}},
		},
		{
			"line_comment",
			"block ;; label = @1\nend",
			[]Token{{"block", Ident, 1, 0, 5}, {"end", Ident, 2, 20, 23}},
		},
		{
			"string_with_paren",
			`"a)b"`,
			[]Token{{"a)b", String, 1, 0, 5}},
		},
		{
			"string_with_escape",
			`"\")"`,
			[]Token{{`\")`, String, 1, 0, 5}},
		},
		{
			"number",
			"42",
			[]Token{{"42", Number, 1, 0, 2}},
		},
		{
			"negative_number",
			"-7",
			[]Token{{"-7", Number, 1, 0, 2}},
		},
		{
			"hex_float",
			"0x1p+0",
			[]Token{{"0x1p+0", Number, 1, 0, 6}},
		},
		{
			"memarg",
			"offset=8",
			[]Token{{"offset=8", Ident, 1, 0, 8}},
		},
		{
			"nan_payload",
			"-nan:0x200000",
			[]Token{{"-nan:0x200000", Ident, 1, 0, 13}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.input)
			if len(got) != len(tt.expected) {
				t.Fatalf("got %d tokens %v, want %d", len(got), got, len(tt.expected))
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("token %d: got %+v, want %+v", i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestTokenizeConverterLine(t *testing.T) {
	src := `  (func (;5;) (type 3) (param i64 i64 i64)
    call 7)`
	got := Tokenize(src)

	var values []string
	for _, tok := range got {
		values = append(values, tok.Value)
	}
	want := []string{"(", "func", "5", "(", "type", "3", ")", "(", "param", "i64", "i64", "i64", ")", "call", "7", ")"}
	if len(values) != len(want) {
		t.Fatalf("got %v, want %v", values, want)
	}
	for i := range want {
		if values[i] != want[i] {
			t.Errorf("token %d = %q, want %q", i, values[i], want[i])
		}
	}

	call := got[14]
	if call.Line != 2 || src[call.Pos:call.End] != "7" {
		t.Errorf("call target token = %+v", call)
	}
	if got[2].Type != Annot {
		t.Errorf("index token type = %v, want annotation", got[2].Type)
	}
}

func TestTokenizeUnterminatedComment(t *testing.T) {
	got := Tokenize("x (; never closed")
	if len(got) != 1 || got[0].Value != "x" {
		t.Errorf("got %v", got)
	}
}

func TestUint(t *testing.T) {
	tests := []struct {
		tok  Token
		want int
		ok   bool
	}{
		{Token{Value: "17", Type: Number}, 17, true},
		{Token{Value: "4", Type: Annot}, 4, true},
		{Token{Value: "-1", Type: Number}, 0, false},
		{Token{Value: "0x10", Type: Number}, 0, false},
		{Token{Value: "17", Type: Ident}, 0, false},
	}
	for _, tt := range tests {
		got, ok := tt.tok.Uint()
		if got != tt.want || ok != tt.ok {
			t.Errorf("Uint(%+v) = %d, %v; want %d, %v", tt.tok, got, ok, tt.want, tt.ok)
		}
	}
}

func TestTypeString(t *testing.T) {
	tests := []struct {
		typ  Type
		want string
	}{
		{LParen, "'('"},
		{RParen, "')'"},
		{Ident, "identifier"},
		{String, "string"},
		{Number, "number"},
		{Annot, "annotation"},
		{Type(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.typ, got, tt.want)
		}
	}
}
