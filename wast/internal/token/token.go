package token

import (
	"strings"
)

type Type int

const (
	LParen Type = iota
	RParen
	Ident
	String
	Number
	Annot
)

func (t Type) String() string {
	switch t {
	case LParen:
		return "'('"
	case RParen:
		return "')'"
	case Ident:
		return "identifier"
	case String:
		return "string"
	case Number:
		return "number"
	case Annot:
		return "annotation"
	}
	return "unknown"
}

// Token is a lexical element of a text module. Pos and End are byte offsets
// into the source; for String tokens they include the quotes.
type Token struct {
	Value string
	Type  Type
	Line  int
	Pos   int
	End   int
}

// Tokenize splits a text module into tokens. Line comments and block
// comments are dropped, except block comments holding only a decimal
// number, which converters emit as index annotations: "(;7;)" becomes an
// Annot token with value "7".
func Tokenize(input string) []Token {
	var tokens []Token
	line := 1

	for i := 0; i < len(input); i++ {
		c := input[i]

		if c == '\n' {
			line++
			continue
		}
		if isSpace(c) {
			continue
		}

		// Line comment
		if c == ';' && i+1 < len(input) && input[i+1] == ';' {
			for i < len(input) && input[i] != '\n' {
				i++
			}
			line++
			continue
		}

		// Block comment, annotation or left paren
		if c == '(' {
			if i+1 < len(input) && input[i+1] == ';' {
				start, startLine := i, line
				depth := 1
				i += 2
				for i < len(input) && depth > 0 {
					if input[i] == '(' && i+1 < len(input) && input[i+1] == ';' {
						depth++
						i++
					} else if input[i] == ';' && i+1 < len(input) && input[i+1] == ')' {
						depth--
						i++
					} else if input[i] == '\n' {
						line++
					}
					i++
				}
				if depth > 0 {
					break
				}
				if inner, ok := annotation(input[start:i]); ok {
					tokens = append(tokens, Token{inner, Annot, startLine, start, i})
				}
				i--
				continue
			}
			tokens = append(tokens, Token{"(", LParen, line, i, i + 1})
			continue
		}

		if c == ')' {
			tokens = append(tokens, Token{")", RParen, line, i, i + 1})
			continue
		}

		// String literal, value excludes the quotes
		if c == '"' {
			start := i
			i++
			for i < len(input) && input[i] != '"' {
				if input[i] == '\\' {
					i++
				} else if input[i] == '\n' {
					line++
				}
				i++
			}
			end := min(i+1, len(input))
			tokens = append(tokens, Token{input[start+1 : min(i, len(input))], String, line, start, end})
			continue
		}

		// Everything else runs to the next delimiter
		start := i
		for i < len(input) && !isDelimiter(input, i) {
			i++
		}
		word := input[start:i]
		typ := Ident
		if isNumber(word) {
			typ = Number
		}
		tokens = append(tokens, Token{word, typ, line, start, i})
		i--
	}

	return tokens
}

// Uint returns the value of a plain decimal Number or Annot token.
func (t Token) Uint() (int, bool) {
	if t.Type != Number && t.Type != Annot {
		return 0, false
	}
	return parseDecimal(t.Value)
}

func annotation(comment string) (string, bool) {
	inner := strings.TrimSpace(comment[2 : len(comment)-2])
	if _, ok := parseDecimal(inner); !ok {
		return "", false
	}
	return inner, true
}

func parseDecimal(s string) (int, bool) {
	if s == "" || len(s) > 9 {
		return 0, false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
		n = n*10 + int(s[i]-'0')
	}
	return n, true
}

func isNumber(word string) bool {
	if word == "" {
		return false
	}
	c := word[0]
	if c == '+' || c == '-' {
		if len(word) == 1 {
			return false
		}
		c = word[1]
	}
	return c >= '0' && c <= '9'
}

func isDelimiter(input string, i int) bool {
	switch c := input[i]; {
	case isSpace(c), c == '(', c == ')', c == '"':
		return true
	case c == ';':
		return i+1 < len(input) && input[i+1] == ';'
	}
	return false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
