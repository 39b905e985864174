package expr

import (
	"fmt"

	"github.com/solatis/rolebind/internal/types"
)

// ParseError reports malformed source text at a byte offset.
// It matches types.ErrParse, plus the limit sentinel when a guard tripped.
type ParseError struct {
	Offset  int
	Message string
	Limit   error // types.ErrExpressionTooDeep or types.ErrExpressionTooLong, else nil
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: %s", e.Offset, e.Message)
}

func (e *ParseError) Unwrap() []error {
	if e.Limit != nil {
		return []error{types.ErrParse, e.Limit}
	}
	return []error{types.ErrParse}
}

// ArgKind describes the shape of a function argument.
type ArgKind int

const (
	ArgNumber ArgKind = iota
	ArgString
	ArgExpression
)

func (k ArgKind) String() string {
	switch k {
	case ArgNumber:
		return "number"
	case ArgString:
		return "string literal"
	case ArgExpression:
		return "expression"
	default:
		return fmt.Sprintf("ArgKind(%d)", int(k))
	}
}

// UnknownFunctionError reports a call to a name outside the builtin set.
type UnknownFunctionError struct {
	Name string
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("unknown function %q", e.Name)
}

func (e *UnknownFunctionError) Unwrap() error { return types.ErrUnknownFunction }

// ArgumentCountError reports a builtin called with the wrong number of arguments.
type ArgumentCountError struct {
	Function string
	Expected int
	Found    int
}

func (e *ArgumentCountError) Error() string {
	return fmt.Sprintf("%s expects %d argument(s), got %d", e.Function, e.Expected, e.Found)
}

func (e *ArgumentCountError) Unwrap() error { return types.ErrArgumentCount }

// ArgumentTypeError reports a builtin argument of the wrong kind.
type ArgumentTypeError struct {
	Function string
	Index    int
	Expected ArgKind
	Found    ArgKind
}

func (e *ArgumentTypeError) Error() string {
	return fmt.Sprintf("%s argument %d: expected %s, found %s", e.Function, e.Index, e.Expected, e.Found)
}

func (e *ArgumentTypeError) Unwrap() error { return types.ErrArgumentType }
