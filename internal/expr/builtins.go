package expr

// Builtin is the closed set of functions an expression may call.
// Adding a member requires a case in LookupBuiltin, Arity, and evaluator.call.
type Builtin int

const (
	BuiltinIsInGroup Builtin = iota + 1
	BuiltinHasRank
	BuiltinHasRole
	BuiltinWithString
	BuiltinGetRank
	BuiltinGetUserRank
)

// Builtins lists every builtin in documentation order.
var Builtins = []Builtin{
	BuiltinIsInGroup,
	BuiltinHasRank,
	BuiltinHasRole,
	BuiltinWithString,
	BuiltinGetRank,
	BuiltinGetUserRank,
}

// LookupBuiltin resolves a case-sensitive function name.
func LookupBuiltin(name string) (Builtin, bool) {
	switch name {
	case "IsInGroup":
		return BuiltinIsInGroup, true
	case "HasRank":
		return BuiltinHasRank, true
	case "HasRole":
		return BuiltinHasRole, true
	case "WithString":
		return BuiltinWithString, true
	case "GetRank":
		return BuiltinGetRank, true
	case "GetUserRank":
		return BuiltinGetUserRank, true
	default:
		return 0, false
	}
}

func (b Builtin) String() string {
	switch b {
	case BuiltinIsInGroup:
		return "IsInGroup"
	case BuiltinHasRank:
		return "HasRank"
	case BuiltinHasRole:
		return "HasRole"
	case BuiltinWithString:
		return "WithString"
	case BuiltinGetRank:
		return "GetRank"
	case BuiltinGetUserRank:
		return "GetUserRank"
	default:
		return "Builtin(?)"
	}
}

// Arity returns the exact argument count.
func (b Builtin) Arity() int {
	switch b {
	case BuiltinHasRank:
		return 2
	case BuiltinIsInGroup, BuiltinHasRole, BuiltinWithString, BuiltinGetRank, BuiltinGetUserRank:
		return 1
	default:
		return 0
	}
}

// Signature is a one-line usage string for help output.
func (b Builtin) Signature() string {
	switch b {
	case BuiltinIsInGroup:
		return "IsInGroup(group) -> bool"
	case BuiltinHasRank:
		return "HasRank(group, rank) -> bool"
	case BuiltinHasRole:
		return "HasRole(role) -> bool"
	case BuiltinWithString:
		return `WithString("text") -> bool`
	case BuiltinGetRank:
		return "GetRank(group) -> number (echoes group)"
	case BuiltinGetUserRank:
		return "GetUserRank(group) -> number"
	default:
		return b.String()
	}
}
