// Package expr implements the bind expression language: a recursive-descent
// parser producing an AST and a pure evaluator over a read-only Context.
//
// Custom binds and custom deny-list entries store source text such as
//
//	HasRank(1000, 25) and not HasRank(2000, 25)
//	IsInGroup(1000) or WithString("builder")
//
// Parsing is purely syntactic: unknown function names are accepted and only
// rejected at evaluation time, so a bind referencing a function that is not
// supported yet can still be stored.
//
// ASTs are immutable once built and safe to share between goroutines.
package expr

import (
	"strconv"
	"strings"
)

// AtomKind distinguishes the two leaf value kinds.
type AtomKind int

const (
	AtomNumber AtomKind = iota
	AtomString
)

// Atom is a leaf value: an unsigned 64-bit number or a quoted string literal.
type Atom struct {
	Kind   AtomKind
	Number uint64
	Text   string
}

// NumberAtom returns a numeric atom.
func NumberAtom(n uint64) Atom { return Atom{Kind: AtomNumber, Number: n} }

// StringAtom returns a string literal atom.
func StringAtom(s string) Atom { return Atom{Kind: AtomString, Text: s} }

func (a Atom) String() string {
	if a.Kind == AtomString {
		return `"` + a.Text + `"`
	}
	return strconv.FormatUint(a.Number, 10)
}

// Operator is a binary comparison/logical operator, or unary not.
type Operator int

const (
	OpGt Operator = iota
	OpGte
	OpLt
	OpLte
	OpEq
	OpAnd
	OpOr
	OpNot
)

var operatorSymbols = [...]string{
	OpGt:  ">",
	OpGte: ">=",
	OpLt:  "<",
	OpLte: "<=",
	OpEq:  "==",
	OpAnd: "and",
	OpOr:  "or",
	OpNot: "not",
}

func (op Operator) String() string {
	if op >= 0 && int(op) < len(operatorSymbols) {
		return operatorSymbols[op]
	}
	return "Operator(" + strconv.Itoa(int(op)) + ")"
}

// IsComparison reports whether op compares two numeric operands.
func (op Operator) IsComparison() bool {
	return op >= OpGt && op <= OpEq
}

// Expression is an AST node: *Constant, *Function or *Operation.
type Expression interface {
	// String returns the canonical source form. Parsing it yields an equal tree.
	String() string
	expression()
}

// Constant is a literal leaf.
type Constant struct {
	Value Atom
}

// Function is a call to a builtin by name. The name is not validated by the parser.
type Function struct {
	Name string
	Args []Expression
}

// Operation applies Op to Left and Right. Right is nil only for OpNot.
type Operation struct {
	Op    Operator
	Left  Expression
	Right Expression
}

func (*Constant) expression()  {}
func (*Function) expression()  {}
func (*Operation) expression() {}

func (c *Constant) String() string { return c.Value.String() }

func (f *Function) String() string {
	var b strings.Builder
	b.WriteString(f.Name)
	b.WriteByte('(')
	for i, arg := range f.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(nodeString(arg))
	}
	b.WriteByte(')')
	return b.String()
}

// String parenthesizes every binary operation so the printed form re-parses
// to the same tree regardless of operator folding. A leaf under not is
// bracketed too, otherwise "not 5 > 3" would capture the comparison.
func (o *Operation) String() string {
	if o.Op == OpNot {
		if inner, ok := o.Left.(*Operation); ok {
			return "not " + inner.String()
		}
		return "not (" + nodeString(o.Left) + ")"
	}
	return "(" + nodeString(o.Left) + " " + o.Op.String() + " " + nodeString(o.Right) + ")"
}

func nodeString(e Expression) string {
	if e == nil {
		return "<nil>"
	}
	return e.String()
}

// Num is shorthand for a numeric constant node.
func Num(n uint64) *Constant { return &Constant{Value: NumberAtom(n)} }

// Str is shorthand for a string constant node.
func Str(s string) *Constant { return &Constant{Value: StringAtom(s)} }

// Call is shorthand for a function node.
func Call(name string, args ...Expression) *Function {
	return &Function{Name: name, Args: args}
}

// Binary is shorthand for a binary operation node.
func Binary(op Operator, left, right Expression) *Operation {
	return &Operation{Op: op, Left: left, Right: right}
}

// Not is shorthand for a negation node.
func Not(operand Expression) *Operation {
	return &Operation{Op: OpNot, Left: operand}
}

// Depth returns the height of the tree rooted at e (a leaf has depth 1).
func Depth(e Expression) int {
	switch n := e.(type) {
	case *Constant:
		return 1
	case *Function:
		deepest := 0
		for _, arg := range n.Args {
			if d := Depth(arg); d > deepest {
				deepest = d
			}
		}
		return deepest + 1
	case *Operation:
		deepest := Depth(n.Left)
		if n.Right != nil {
			if d := Depth(n.Right); d > deepest {
				deepest = d
			}
		}
		return deepest + 1
	default:
		return 0
	}
}
