package types

import "errors"

// Sentinel errors for rolebind operations.
var (
	// ErrParse indicates custom bind source text is not a valid expression.
	ErrParse = errors.New("expression parse failed")

	// ErrExpressionTooDeep indicates an expression exceeds MaxExpressionDepth.
	ErrExpressionTooDeep = errors.New("expression exceeds maximum nesting depth")

	// ErrExpressionTooLong indicates source text exceeds the configured length limit.
	ErrExpressionTooLong = errors.New("expression exceeds maximum length")

	// ErrUnknownFunction indicates a call to a function outside the builtin set.
	ErrUnknownFunction = errors.New("unknown function")

	// ErrArgumentCount indicates a builtin was called with the wrong arity.
	ErrArgumentCount = errors.New("argument count mismatch")

	// ErrArgumentType indicates a builtin argument has the wrong kind.
	ErrArgumentType = errors.New("argument type mismatch")

	// ErrDenied indicates a deny-list entry matched the member.
	ErrDenied = errors.New("member is deny-listed")

	// ErrInvalidNickname indicates the resolved nickname is empty or too long.
	ErrInvalidNickname = errors.New("invalid nickname")

	// ErrCustomBind indicates a custom bind failed to parse or evaluate.
	ErrCustomBind = errors.New("custom bind failed")

	// ErrDenyListExpression indicates a custom deny-list entry failed to parse or evaluate.
	ErrDenyListExpression = errors.New("deny-list expression failed")

	// ErrNoDefaultNickname indicates no nickname bind matched and the catalog
	// has no default template.
	ErrNoDefaultNickname = errors.New("no default nickname template configured")

	// ErrInvalidBind indicates a bind's fields are inconsistent with its kind.
	ErrInvalidBind = errors.New("invalid bind")

	// ErrInvalidDenyList indicates a deny-list entry's fields are inconsistent.
	ErrInvalidDenyList = errors.New("invalid deny-list entry")

	// ErrDuplicateID indicates two catalog objects share an identifier.
	ErrDuplicateID = errors.New("duplicate identifier")

	// ErrCatalogNotFound indicates no catalog is stored for a guild.
	ErrCatalogNotFound = errors.New("catalog not found")
)
