// internal/expr/parse.go
package expr

import (
	"fmt"
	"strings"

	"github.com/solatis/rolebind/internal/types"
)

/*
 * Recursive-descent parser for bind expressions.
 *
 * Grammar (whitespace insignificant between tokens):
 *
 *   operation     := unit (("and" | "or" | comparator) unit)*
 *   unit          := "not" unit
 *                  | term comparator term
 *                  | "(" operation ")"
 *                  | term
 *   term          := function_call | atom
 *   function_call := identifier "(" (operation ("," operation)*)? ")"
 *   atom          := number | '"' chars '"'
 *   comparator    := ">" | ">=" | "<" | "<=" | "=="
 *
 * All binary operators share one level and fold left:
 *   a and b and c  ->  Operation(and, Operation(and, a, b), c)
 * A term-to-term comparison and "not" bind tighter than the fold:
 *   x and GetRank(1) >= 5  ->  Operation(and, x, Operation(>=, GetRank(1), 5))
 *
 * The whole input must be consumed. Nesting depth (brackets, negations and
 * call arguments) is bounded by Limits.MaxDepth so adversarial input cannot
 * exhaust the stack; source length is bounded by Limits.MaxLength.
 */

// Limits bounds parser resource usage.
type Limits struct {
	MaxDepth  int
	MaxLength int
}

// DefaultLimits applies the package-wide resource limits.
var DefaultLimits = Limits{
	MaxDepth:  types.MaxExpressionDepth,
	MaxLength: types.MaxExpressionLength,
}

// Parse parses source into an AST using DefaultLimits.
func Parse(source string) (Expression, error) {
	return ParseWithLimits(source, DefaultLimits)
}

// ParseWithLimits parses source into an AST. Non-positive limits disable the guard.
func ParseWithLimits(source string, limits Limits) (Expression, error) {
	if limits.MaxLength > 0 && len(source) > limits.MaxLength {
		return nil, &ParseError{
			Offset:  limits.MaxLength,
			Message: fmt.Sprintf("source is %d bytes, limit is %d", len(source), limits.MaxLength),
			Limit:   types.ErrExpressionTooLong,
		}
	}
	if strings.TrimSpace(source) == "" {
		return nil, &ParseError{Offset: 0, Message: "empty expression"}
	}

	tokens, err := lex(source)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens, maxDepth: limits.MaxDepth}
	root, err := p.parseOperation()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, &ParseError{Offset: tok.offset, Message: "unexpected trailing " + tok.kind.String()}
	}
	return root, nil
}

type parser struct {
	tokens   []token
	pos      int
	depth    int
	maxDepth int
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+n]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) expect(kind tokenKind, context string) (token, error) {
	tok := p.next()
	if tok.kind != kind {
		return tok, &ParseError{
			Offset:  tok.offset,
			Message: fmt.Sprintf("expected %s %s, found %s", kind, context, tok.kind),
		}
	}
	return tok, nil
}

func (p *parser) enter(offset int) error {
	p.depth++
	if p.maxDepth > 0 && p.depth > p.maxDepth {
		return &ParseError{
			Offset:  offset,
			Message: fmt.Sprintf("nesting deeper than %d", p.maxDepth),
			Limit:   types.ErrExpressionTooDeep,
		}
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

func (p *parser) parseOperation() (Expression, error) {
	left, err := p.parseUnit()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := binaryOperator(p.peek().kind)
		if !ok {
			return left, nil
		}
		p.next()
		right, err := p.parseUnit()
		if err != nil {
			return nil, err
		}
		left = &Operation{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseUnit() (Expression, error) {
	tok := p.peek()
	if err := p.enter(tok.offset); err != nil {
		return nil, err
	}
	defer p.leave()

	switch tok.kind {
	case tokNot:
		p.next()
		operand, err := p.parseUnit()
		if err != nil {
			return nil, err
		}
		return &Operation{Op: OpNot, Left: operand}, nil

	case tokLParen:
		p.next()
		inner, err := p.parseOperation()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "to close '('"); err != nil {
			return nil, err
		}
		return inner, nil

	case tokNumber, tokString, tokIdent:
		left, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		op, ok := comparisonOperator(p.peek().kind)
		if !ok || !isTermStart(p.peekAt(1).kind) {
			return left, nil
		}
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		return &Operation{Op: op, Left: left, Right: right}, nil

	case tokEOF:
		return nil, &ParseError{Offset: tok.offset, Message: "unexpected end of input, expected expression"}

	default:
		return nil, &ParseError{Offset: tok.offset, Message: "unexpected " + tok.kind.String() + ", expected expression"}
	}
}

func (p *parser) parseTerm() (Expression, error) {
	tok := p.next()
	switch tok.kind {
	case tokNumber:
		return &Constant{Value: NumberAtom(tok.number)}, nil
	case tokString:
		return &Constant{Value: StringAtom(tok.text)}, nil
	case tokIdent:
		return p.parseCall(tok)
	default:
		return nil, &ParseError{Offset: tok.offset, Message: "expected number, string or function call, found " + tok.kind.String()}
	}
}

func (p *parser) parseCall(name token) (Expression, error) {
	if _, err := p.expect(tokLParen, "after function name "+name.text); err != nil {
		return nil, err
	}
	fn := &Function{Name: name.text}
	if p.peek().kind == tokRParen {
		p.next()
		return fn, nil
	}
	for {
		if len(fn.Args) == types.MaxFunctionArgs {
			return nil, &ParseError{
				Offset:  p.peek().offset,
				Message: fmt.Sprintf("%s takes more than %d arguments", name.text, types.MaxFunctionArgs),
			}
		}
		arg, err := p.parseOperation()
		if err != nil {
			return nil, err
		}
		fn.Args = append(fn.Args, arg)

		tok := p.next()
		switch tok.kind {
		case tokComma:
			continue
		case tokRParen:
			return fn, nil
		default:
			return nil, &ParseError{
				Offset:  tok.offset,
				Message: fmt.Sprintf("expected ',' or ')' in call to %s, found %s", name.text, tok.kind),
			}
		}
	}
}

func binaryOperator(kind tokenKind) (Operator, bool) {
	switch kind {
	case tokAnd:
		return OpAnd, true
	case tokOr:
		return OpOr, true
	default:
		return comparisonOperator(kind)
	}
}

func comparisonOperator(kind tokenKind) (Operator, bool) {
	switch kind {
	case tokGt:
		return OpGt, true
	case tokGte:
		return OpGte, true
	case tokLt:
		return OpLt, true
	case tokLte:
		return OpLte, true
	case tokEq:
		return OpEq, true
	default:
		return 0, false
	}
}

// isTermStart reports whether kind can begin a term (function call or atom).
func isTermStart(kind tokenKind) bool {
	return kind == tokNumber || kind == tokString || kind == tokIdent
}
