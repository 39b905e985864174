package auth

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/solatis/rolebind/internal/core/db"
	"github.com/solatis/rolebind/internal/types"
)

const testSecretID = "0123456789abcdef0123456789abcdef"

var testSecret = []byte("0123456789abcdef0123456789abcdef-secret")

func openStore(t *testing.T) *db.Queries {
	t.Helper()
	database, err := db.Open("sqlite://" + filepath.Join(t.TempDir(), "auth.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if _, err := db.MigrateUp(database); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}
	queries, err := db.LoadQueries(database)
	if err != nil {
		t.Fatalf("LoadQueries() error = %v", err)
	}
	return queries
}

func mintKey(t *testing.T, store *db.Queries, id string, guild types.GuildID) string {
	t.Helper()
	key, hash, err := GenerateAPIKey(testSecretID, testSecret)
	if err != nil {
		t.Fatalf("GenerateAPIKey() error = %v", err)
	}
	if err := store.InsertAPIKey(context.Background(), db.APIKey{ID: id, GuildID: guild, SecretID: testSecretID}, hash); err != nil {
		t.Fatalf("InsertAPIKey() error = %v", err)
	}
	return key
}

func TestParseAPIKey(t *testing.T) {
	random := strings.Repeat("ab", 32)
	valid := FormatAPIKey(testSecretID, random)

	secretID, data, err := ParseAPIKey(valid)
	if err != nil {
		t.Fatalf("ParseAPIKey(%q) error = %v", valid, err)
	}
	if secretID != testSecretID || data != random {
		t.Errorf("ParseAPIKey() = %q, %q", secretID, data)
	}

	invalid := []string{
		"",
		"tk-v1-" + testSecretID + "-" + random,
		"rb-v2-" + testSecretID + "-" + random,
		"rb-v1-" + testSecretID[:31] + "-" + random,
		"rb-v1-" + testSecretID + "-" + random[:63],
		"rb-v1-" + strings.ToUpper(testSecretID) + "-" + random,
		"rb-v1-" + testSecretID + "-" + random + "-extra",
	}
	for _, key := range invalid {
		if _, _, err := ParseAPIKey(key); !errors.Is(err, ErrInvalidKeyFormat) {
			t.Errorf("ParseAPIKey(%q) error = %v, want %v", key, err, ErrInvalidKeyFormat)
		}
	}
}

func TestGenerateAPIKey(t *testing.T) {
	a, hashA, err := GenerateAPIKey(testSecretID, testSecret)
	if err != nil {
		t.Fatalf("GenerateAPIKey() error = %v", err)
	}
	b, _, err := GenerateAPIKey(testSecretID, testSecret)
	if err != nil {
		t.Fatalf("GenerateAPIKey() error = %v", err)
	}
	if a == b {
		t.Error("two generated keys are identical")
	}
	if string(hashA) != string(ComputeHMAC(testSecret, a)) {
		t.Error("returned hash does not match ComputeHMAC")
	}
	if _, _, err := GenerateAPIKey("not-hex", testSecret); err == nil {
		t.Error("expected error for malformed secret id")
	}
}

func TestAuthenticate(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	key := mintKey(t, store, "k1", 555)
	auth := NewAuthenticator(map[string][]byte{testSecretID: testSecret}, store)

	guildID, err := auth.Authenticate(ctx, key)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if guildID != 555 {
		t.Errorf("Authenticate() = %v, want 555", guildID)
	}

	forged := FormatAPIKey(testSecretID, strings.Repeat("0", 64))
	if _, err := auth.Authenticate(ctx, forged); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("forged key error = %v, want %v", err, ErrInvalidKey)
	}

	other := FormatAPIKey(strings.Repeat("f", 32), strings.Repeat("0", 64))
	if _, err := auth.Authenticate(ctx, other); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("unknown secret error = %v, want %v", err, ErrUnknownKey)
	}

	if err := store.RevokeAPIKey(ctx, "k1"); err != nil {
		t.Fatalf("RevokeAPIKey() error = %v", err)
	}
	if _, err := auth.Authenticate(ctx, key); !errors.Is(err, ErrKeyRevoked) {
		t.Errorf("revoked key error = %v, want %v", err, ErrKeyRevoked)
	}
}

type failingQueries struct{}

func (failingQueries) Get(context.Context, string, any, ...any) error {
	return errors.New("connection refused")
}

func (failingQueries) Exec(context.Context, string, ...any) (sql.Result, error) {
	return nil, errors.New("connection refused")
}

func TestUnaryInterceptor(t *testing.T) {
	store := openStore(t)
	key := mintKey(t, store, "k1", 555)
	revoked := mintKey(t, store, "k2", 555)
	if err := store.RevokeAPIKey(context.Background(), "k2"); err != nil {
		t.Fatalf("RevokeAPIKey() error = %v", err)
	}

	secrets := map[string][]byte{testSecretID: testSecret}
	auth := NewAuthenticator(secrets, store, "/grpc.health.v1.Health/")
	broken := NewAuthenticator(secrets, failingQueries{})

	var seen types.GuildID
	handler := func(ctx context.Context, req any) (any, error) {
		seen, _ = GuildIDFromContext(ctx)
		return "ok", nil
	}

	withKey := func(k string) context.Context {
		return metadata.NewIncomingContext(context.Background(), metadata.Pairs(MetadataKey, k))
	}
	resolve := &grpc.UnaryServerInfo{FullMethod: "/rolebind.v1.BindingService/ResolveMember"}
	health := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	tests := []struct {
		name  string
		auth  *Authenticator
		ctx   context.Context
		info  *grpc.UnaryServerInfo
		code  codes.Code
		guild types.GuildID
	}{
		{"valid key", auth, withKey(key), resolve, codes.OK, 555},
		{"no metadata", auth, context.Background(), resolve, codes.Unauthenticated, 0},
		{"no key", auth, metadata.NewIncomingContext(context.Background(), metadata.Pairs("other", "x")), resolve, codes.Unauthenticated, 0},
		{"bad format", auth, withKey("nope"), resolve, codes.Unauthenticated, 0},
		{"revoked", auth, withKey(revoked), resolve, codes.PermissionDenied, 0},
		{"store down", broken, withKey(key), resolve, codes.Unavailable, 0},
		{"public method", auth, context.Background(), health, codes.OK, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = 0
			_, err := tt.auth.UnaryInterceptor()(tt.ctx, nil, tt.info, handler)
			if got := status.Code(err); got != tt.code {
				t.Fatalf("code = %v, want %v (err %v)", got, tt.code, err)
			}
			if seen != tt.guild {
				t.Errorf("guild in context = %v, want %v", seen, tt.guild)
			}
		})
	}
}

func TestGuildIDFromContext(t *testing.T) {
	if _, ok := GuildIDFromContext(context.Background()); ok {
		t.Error("empty context reported a guild")
	}
	if id, ok := GuildIDFromContext(WithGuildID(context.Background(), 9)); !ok || id != 9 {
		t.Errorf("GuildIDFromContext() = %v, %t", id, ok)
	}
}
