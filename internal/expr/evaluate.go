// internal/expr/evaluate.go
package expr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/solatis/rolebind/internal/types"
)

/*
 * Evaluation over an immutable Context.
 *
 * Coercion contract (applies to every binary operator):
 *   Bool(false) -> 0, Bool(true) -> 1, Number(n) -> n
 * Comparators compare the coerced numbers. and/or combine the coerced
 * numbers by truthiness (!= 0). Both always produce Bool.
 *
 * Both operands are evaluated before combining; and/or never skip the
 * right-hand side. not evaluates only its operand:
 *   not Bool(b)   = Bool(!b)
 *   not Number(n) = Bool(n == 0)
 *
 * Evaluation never panics. Malformed trees (nil children, a binary
 * operation missing its right operand) produce an error.
 */

// ResultKind tags an evaluation result.
type ResultKind int

const (
	ResultBool ResultKind = iota
	ResultNumber
)

// Result is the scalar produced by evaluation: Bool or Number.
type Result struct {
	Kind   ResultKind
	Bool   bool
	Number uint64
}

// Bool returns a boolean result.
func Bool(b bool) Result { return Result{Kind: ResultBool, Bool: b} }

// Number returns a numeric result.
func Number(n uint64) Result { return Result{Kind: ResultNumber, Number: n} }

// AsNumber coerces the result to a number (booleans become 0 or 1).
func (r Result) AsNumber() uint64 {
	if r.Kind == ResultNumber {
		return r.Number
	}
	if r.Bool {
		return 1
	}
	return 0
}

// Truthy reports Bool(true) or a non-zero Number.
func (r Result) Truthy() bool { return r.AsNumber() != 0 }

func (r Result) String() string {
	if r.Kind == ResultNumber {
		return fmt.Sprintf("Number(%d)", r.Number)
	}
	return fmt.Sprintf("Bool(%t)", r.Bool)
}

// Context is the read-only view an expression is evaluated against.
type Context struct {
	// Roles is the caller's current role set.
	Roles map[types.RoleID]struct{}
	// Ranks maps external group id to the caller's rank. Absent means not a member.
	Ranks map[types.GroupID]types.RankID
	// Username is the caller's external display name, matched by WithString.
	Username string
}

// NewContext builds a Context from slices and maps owned by the caller.
// The role slice is copied into a set; ranks is referenced, not copied.
func NewContext(roles []types.RoleID, ranks map[types.GroupID]types.RankID, username string) *Context {
	set := make(map[types.RoleID]struct{}, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	if ranks == nil {
		ranks = map[types.GroupID]types.RankID{}
	}
	return &Context{Roles: set, Ranks: ranks, Username: username}
}

// HasRole reports whether the caller holds role.
func (c *Context) HasRole(role types.RoleID) bool {
	_, ok := c.Roles[role]
	return ok
}

// Rank returns the caller's rank in group and whether they are a member.
func (c *Context) Rank(group types.GroupID) (types.RankID, bool) {
	rank, ok := c.Ranks[group]
	return rank, ok
}

// ErrMalformedTree is returned for ASTs that the parser cannot produce.
var ErrMalformedTree = errors.New("malformed expression tree")

// Evaluate walks e against ctx using DefaultLimits.
func Evaluate(e Expression, ctx *Context) (Result, error) {
	return EvaluateWithLimits(e, ctx, DefaultLimits)
}

// EvaluateWithLimits walks e against ctx. A left fold of N operators is N deep
// but costs one parser level, so tree depth is bounded by limits.MaxLength
// rather than limits.MaxDepth. A non-positive MaxLength disables the guard.
func EvaluateWithLimits(e Expression, ctx *Context, limits Limits) (Result, error) {
	if ctx == nil {
		ctx = &Context{}
	}
	ev := evaluator{ctx: ctx, maxDepth: limits.MaxLength}
	return ev.eval(e)
}

type evaluator struct {
	ctx      *Context
	depth    int
	maxDepth int
}

func (ev *evaluator) eval(e Expression) (Result, error) {
	ev.depth++
	defer func() { ev.depth-- }()
	if ev.maxDepth > 0 && ev.depth > ev.maxDepth {
		return Result{}, fmt.Errorf("%w: nesting deeper than %d", types.ErrExpressionTooDeep, ev.maxDepth)
	}

	switch n := e.(type) {
	case *Constant:
		if n == nil {
			return Result{}, fmt.Errorf("%w: nil constant", ErrMalformedTree)
		}
		if n.Value.Kind == AtomString {
			return Bool(true), nil
		}
		return Number(n.Value.Number), nil

	case *Function:
		if n == nil {
			return Result{}, fmt.Errorf("%w: nil function", ErrMalformedTree)
		}
		return ev.call(n)

	case *Operation:
		if n == nil {
			return Result{}, fmt.Errorf("%w: nil operation", ErrMalformedTree)
		}
		return ev.operation(n)

	default:
		return Result{}, fmt.Errorf("%w: unexpected node %T", ErrMalformedTree, e)
	}
}

func (ev *evaluator) operation(o *Operation) (Result, error) {
	left, err := ev.eval(o.Left)
	if err != nil {
		return Result{}, err
	}

	if o.Op == OpNot {
		if left.Kind == ResultBool {
			return Bool(!left.Bool), nil
		}
		return Bool(left.Number == 0), nil
	}

	if o.Right == nil {
		return Result{}, fmt.Errorf("%w: %s missing right operand", ErrMalformedTree, o.Op)
	}
	right, err := ev.eval(o.Right)
	if err != nil {
		return Result{}, err
	}

	l, r := left.AsNumber(), right.AsNumber()
	switch o.Op {
	case OpGt:
		return Bool(l > r), nil
	case OpGte:
		return Bool(l >= r), nil
	case OpLt:
		return Bool(l < r), nil
	case OpLte:
		return Bool(l <= r), nil
	case OpEq:
		return Bool(l == r), nil
	case OpAnd:
		return Bool(l != 0 && r != 0), nil
	case OpOr:
		return Bool(l != 0 || r != 0), nil
	default:
		return Result{}, fmt.Errorf("%w: unknown operator %s", ErrMalformedTree, o.Op)
	}
}

func (ev *evaluator) call(f *Function) (Result, error) {
	builtin, ok := LookupBuiltin(f.Name)
	if !ok {
		return Result{}, &UnknownFunctionError{Name: f.Name}
	}
	if want := builtin.Arity(); len(f.Args) != want {
		return Result{}, &ArgumentCountError{Function: f.Name, Expected: want, Found: len(f.Args)}
	}

	switch builtin {
	case BuiltinIsInGroup:
		group, err := ev.numberArg(f, 0)
		if err != nil {
			return Result{}, err
		}
		_, member := ev.ctx.Rank(types.GroupID(group))
		return Bool(member), nil

	case BuiltinHasRank:
		group, err := ev.numberArg(f, 0)
		if err != nil {
			return Result{}, err
		}
		rank, err := ev.numberArg(f, 1)
		if err != nil {
			return Result{}, err
		}
		have, member := ev.ctx.Rank(types.GroupID(group))
		return Bool(member && have == types.RankID(rank)), nil

	case BuiltinHasRole:
		role, err := ev.numberArg(f, 0)
		if err != nil {
			return Result{}, err
		}
		return Bool(ev.ctx.HasRole(types.RoleID(role))), nil

	case BuiltinWithString:
		needle, err := ev.stringArg(f, 0)
		if err != nil {
			return Result{}, err
		}
		return Bool(strings.Contains(ev.ctx.Username, needle)), nil

	case BuiltinGetRank:
		// Echoes the group id, not the caller's rank. Kept for stored binds
		// written against this behavior; GetUserRank returns the real rank.
		group, err := ev.numberArg(f, 0)
		if err != nil {
			return Result{}, err
		}
		return Number(group), nil

	case BuiltinGetUserRank:
		group, err := ev.numberArg(f, 0)
		if err != nil {
			return Result{}, err
		}
		rank, _ := ev.ctx.Rank(types.GroupID(group))
		return Number(uint64(rank)), nil

	default:
		return Result{}, &UnknownFunctionError{Name: f.Name}
	}
}

// numberArg evaluates argument i as a number. A string literal is a type error;
// any other sub-expression is coerced.
func (ev *evaluator) numberArg(f *Function, i int) (uint64, error) {
	arg := f.Args[i]
	if c, ok := arg.(*Constant); ok && c != nil && c.Value.Kind == AtomString {
		return 0, &ArgumentTypeError{Function: f.Name, Index: i, Expected: ArgNumber, Found: ArgString}
	}
	res, err := ev.eval(arg)
	if err != nil {
		return 0, err
	}
	return res.AsNumber(), nil
}

// stringArg requires argument i to be a string literal.
func (ev *evaluator) stringArg(f *Function, i int) (string, error) {
	switch n := f.Args[i].(type) {
	case *Constant:
		if n != nil && n.Value.Kind == AtomString {
			return n.Value.Text, nil
		}
		return "", &ArgumentTypeError{Function: f.Name, Index: i, Expected: ArgString, Found: ArgNumber}
	default:
		return "", &ArgumentTypeError{Function: f.Name, Index: i, Expected: ArgString, Found: ArgExpression}
	}
}
