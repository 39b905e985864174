package expr

import (
	"strconv"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokLParen
	tokRParen
	tokComma
	tokGt
	tokGte
	tokLt
	tokLte
	tokEq
	tokAnd
	tokOr
	tokNot
)

var tokenNames = [...]string{
	tokEOF:    "end of input",
	tokNumber: "number",
	tokString: "string",
	tokIdent:  "identifier",
	tokLParen: "'('",
	tokRParen: "')'",
	tokComma:  "','",
	tokGt:     "'>'",
	tokGte:    "'>='",
	tokLt:     "'<'",
	tokLte:    "'<='",
	tokEq:     "'=='",
	tokAnd:    "'and'",
	tokOr:     "'or'",
	tokNot:    "'not'",
}

func (k tokenKind) String() string { return tokenNames[k] }

type token struct {
	kind   tokenKind
	offset int
	text   string // identifier name or string literal contents
	number uint64
}

// keywords are case-sensitive; "And" lexes as an identifier.
var keywords = map[string]tokenKind{
	"and": tokAnd,
	"or":  tokOr,
	"not": tokNot,
}

// lex splits source into tokens, always terminated by tokEOF.
func lex(source string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(source) {
		r, width := utf8.DecodeRuneInString(source[i:])
		switch {
		case unicode.IsSpace(r):
			i += width
		case r == '(':
			tokens = append(tokens, token{kind: tokLParen, offset: i})
			i++
		case r == ')':
			tokens = append(tokens, token{kind: tokRParen, offset: i})
			i++
		case r == ',':
			tokens = append(tokens, token{kind: tokComma, offset: i})
			i++
		case r == '>' || r == '<':
			kind := tokGt
			if r == '<' {
				kind = tokLt
			}
			if i+1 < len(source) && source[i+1] == '=' {
				kind++ // tokGte / tokLte follow tokGt / tokLt
				tokens = append(tokens, token{kind: kind, offset: i})
				i += 2
				continue
			}
			tokens = append(tokens, token{kind: kind, offset: i})
			i++
		case r == '=':
			if i+1 >= len(source) || source[i+1] != '=' {
				return nil, &ParseError{Offset: i, Message: "expected '==', found single '='"}
			}
			tokens = append(tokens, token{kind: tokEq, offset: i})
			i += 2
		case r == '"':
			end := i + 1
			for end < len(source) && source[end] != '"' {
				end++
			}
			if end >= len(source) {
				return nil, &ParseError{Offset: i, Message: "unterminated string literal"}
			}
			tokens = append(tokens, token{kind: tokString, offset: i, text: source[i+1 : end]})
			i = end + 1
		case r >= '0' && r <= '9':
			end := i
			for end < len(source) && source[end] >= '0' && source[end] <= '9' {
				end++
			}
			n, err := strconv.ParseUint(source[i:end], 10, 64)
			if err != nil {
				return nil, &ParseError{Offset: i, Message: "number out of range: " + source[i:end]}
			}
			tokens = append(tokens, token{kind: tokNumber, offset: i, number: n})
			i = end
		case r == '_' || unicode.IsLetter(r):
			end := i + width
			for end < len(source) {
				next, w := utf8.DecodeRuneInString(source[end:])
				if next != '_' && !unicode.IsLetter(next) && !unicode.IsDigit(next) {
					break
				}
				end += w
			}
			word := source[i:end]
			if kind, ok := keywords[word]; ok {
				tokens = append(tokens, token{kind: kind, offset: i})
			} else {
				tokens = append(tokens, token{kind: tokIdent, offset: i, text: word})
			}
			i = end
		default:
			return nil, &ParseError{Offset: i, Message: "unexpected character " + strconv.QuoteRune(r)}
		}
	}
	tokens = append(tokens, token{kind: tokEOF, offset: len(source)})
	return tokens, nil
}
