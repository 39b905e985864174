// Package auth provides HMAC-based API key authentication for gRPC services.
//
// Each key belongs to exactly one guild. A successful authentication places
// that guild id in the request context, and handlers only ever serve the
// authenticated guild's catalog.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/solatis/rolebind/internal/types"
)

// contextKey is a typed key for context values to avoid collisions.
type contextKey string

// guildIDKey is the context key for storing the authenticated guild ID.
const guildIDKey = contextKey("guild_id")

// MetadataKey is the gRPC metadata entry carrying the API key.
const MetadataKey = "x-api-key"

// Queries defines the store operations needed for authentication.
// Implemented by *db.Queries.
type Queries interface {
	Get(ctx context.Context, name string, dest any, args ...any) error
	Exec(ctx context.Context, name string, args ...any) (sql.Result, error)
}

// Authenticator validates API keys using HMAC-SHA256 signatures.
// Holds in-memory secret map for O(1) lookup and queries for key verification.
type Authenticator struct {
	secrets map[string][]byte
	queries Queries
	public  map[string]bool
}

// NewAuthenticator creates an authenticator with HMAC secrets and query
// interface. Methods listed in public (full gRPC method names or service
// prefixes ending in "/") skip authentication.
func NewAuthenticator(secrets map[string][]byte, queries Queries, public ...string) *Authenticator {
	a := &Authenticator{
		secrets: secrets,
		queries: queries,
		public:  make(map[string]bool, len(public)),
	}
	for _, m := range public {
		a.public[m] = true
	}
	return a
}

// Authenticate validates an API key and returns the guild it belongs to.
func (a *Authenticator) Authenticate(ctx context.Context, apiKey string) (types.GuildID, error) {
	secretID, _, err := ParseAPIKey(apiKey)
	if err != nil {
		return 0, err
	}

	secret, ok := a.secrets[secretID]
	if !ok {
		return 0, ErrUnknownKey
	}

	// key_hash is unique, so at most one row matches
	var result struct {
		APIKeyID   string        `db:"api_key_id"`
		GuildID    types.GuildID `db:"guild_id"`
		RevokedAt  sql.NullTime  `db:"revoked_at"`
		LastUsedAt sql.NullTime  `db:"last_used_at"`
	}
	err = a.queries.Get(ctx, "get-api-key-by-hash", &result, ComputeHMAC(secret, apiKey))
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrInvalidKey
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStore, err)
	}

	if result.RevokedAt.Valid {
		return 0, ErrKeyRevoked
	}

	// 1-minute throttle keeps an active bot from writing on every request
	if shouldUpdateLastUsed(result.LastUsedAt) {
		_, _ = a.queries.Exec(ctx, "update-last-used", time.Now().UTC(), result.APIKeyID)
	}

	return result.GuildID, nil
}

// shouldUpdateLastUsed implements 1-minute throttle to reduce write amplification.
func shouldUpdateLastUsed(lastUsed sql.NullTime) bool {
	if !lastUsed.Valid {
		return true
	}
	return time.Since(lastUsed.Time) > time.Minute
}

// UnaryInterceptor returns gRPC interceptor that authenticates requests.
func (a *Authenticator) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if a.isPublic(info.FullMethod) {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		apiKeys := md.Get(MetadataKey)
		if len(apiKeys) == 0 {
			return nil, status.Error(codes.Unauthenticated, ErrMissingKey.Error())
		}

		guildID, err := a.Authenticate(ctx, apiKeys[0])
		if err != nil {
			switch {
			case errors.Is(err, ErrKeyRevoked):
				return nil, status.Error(codes.PermissionDenied, err.Error())
			case errors.Is(err, ErrStore):
				return nil, status.Error(codes.Unavailable, err.Error())
			default:
				return nil, status.Error(codes.Unauthenticated, err.Error())
			}
		}

		return handler(WithGuildID(ctx, guildID), req)
	}
}

func (a *Authenticator) isPublic(method string) bool {
	if a.public[method] {
		return true
	}
	if i := strings.LastIndex(method, "/"); i > 0 {
		return a.public[method[:i+1]]
	}
	return false
}

// WithGuildID returns a context carrying an authenticated guild id.
func WithGuildID(ctx context.Context, guildID types.GuildID) context.Context {
	return context.WithValue(ctx, guildIDKey, guildID)
}

// GuildIDFromContext extracts the authenticated guild id from context.
func GuildIDFromContext(ctx context.Context) (types.GuildID, bool) {
	guildID, ok := ctx.Value(guildIDKey).(types.GuildID)
	return guildID, ok && guildID != 0
}
