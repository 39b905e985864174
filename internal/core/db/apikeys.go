package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/solatis/rolebind/internal/types"
)

// APIKey is the stored metadata of a guild-scoped API key. The key itself is
// never stored, only its HMAC.
type APIKey struct {
	ID         string        `db:"api_key_id"`
	GuildID    types.GuildID `db:"guild_id"`
	Name       string        `db:"name"`
	SecretID   string        `db:"secret_id"`
	CreatedAt  time.Time     `db:"created_at"`
	LastUsedAt sql.NullTime  `db:"last_used_at"`
	RevokedAt  sql.NullTime  `db:"revoked_at"`
}

// InsertAPIKey stores key metadata and the HMAC of the key text.
func (q *Queries) InsertAPIKey(ctx context.Context, key APIKey, keyHash []byte) error {
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now().UTC()
	}
	_, err := q.Exec(ctx, "insert-api-key", key.ID, key.GuildID, key.Name, key.SecretID, keyHash, key.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting api key: %w", err)
	}
	return nil
}

// ListAPIKeys returns guildID's keys, oldest first.
func (q *Queries) ListAPIKeys(ctx context.Context, guildID types.GuildID) ([]APIKey, error) {
	var keys []APIKey
	if err := q.Select(ctx, "list-api-keys", &keys, guildID); err != nil {
		return nil, fmt.Errorf("listing api keys: %w", err)
	}
	return keys, nil
}

// RevokeAPIKey marks a key revoked. Returns ErrAPIKeyNotFound when id is
// unknown or already revoked.
func (q *Queries) RevokeAPIKey(ctx context.Context, id string) error {
	res, err := q.Exec(ctx, "revoke-api-key", time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("revoking api key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoking api key: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrAPIKeyNotFound, id)
	}
	return nil
}
