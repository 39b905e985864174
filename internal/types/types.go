// Package types provides domain models shared across rolebind components.
//
// Zero-dependency design: types.go, binds.go and errors.go use only the
// standard library so the resolution engine can be embedded without pulling
// storage or transport dependencies. ID utilities in ids.go import uuid but
// are isolated from the engine hot path.
//
// Identifier conventions: chat-platform objects (guilds, roles, members) and
// reputation-platform objects (users, groups, ranks, assets) are numeric
// snowflake-style identifiers. Configuration objects created by rolebind
// itself (binds, deny-list entries) carry UUIDv7 string identifiers.
package types

import "strconv"

// GuildID identifies a chat-platform guild (server).
type GuildID uint64

// RoleID identifies a chat-platform role.
type RoleID uint64

// MemberID identifies a chat-platform member (user snowflake).
type MemberID uint64

// UserID identifies a reputation-platform user.
type UserID uint64

// GroupID identifies a reputation-platform group.
type GroupID uint64

// RankID identifies a rank within a reputation-platform group.
// Rank 0 is reserved for "not a member" (guest).
type RankID uint64

// AssetID identifies a reputation-platform asset (badge, pass, catalog item).
type AssetID uint64

// GuestRank is the sentinel rank id matching callers outside the group.
const GuestRank RankID = 0

// String renders a role id in its canonical decimal form.
func (r RoleID) String() string { return strconv.FormatUint(uint64(r), 10) }

// String renders a guild id in its canonical decimal form.
func (g GuildID) String() string { return strconv.FormatUint(uint64(g), 10) }

// Resource limits enforced by the expression language and resolver.
const (
	// MaxExpressionDepth bounds recursion in the parser and evaluator.
	// 64 levels is far beyond any hand-written bind while keeping the Go stack shallow.
	MaxExpressionDepth = 64

	// MaxExpressionLength is the default bound on custom source text in bytes.
	MaxExpressionLength = 4096

	// MaxNicknameLength is the chat platform's nickname limit in code points.
	MaxNicknameLength = 32

	// MaxFunctionArgs bounds argument lists so a single call cannot fan out unbounded.
	MaxFunctionArgs = 16
)
