// Package config provides configuration management for rolebind services.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/solatis/rolebind/internal/expr"
	"github.com/solatis/rolebind/internal/resolve"
	"github.com/solatis/rolebind/internal/types"
)

// EnvPrefix prefixes every environment variable read by rolebind.
const EnvPrefix = "RB"

// ServerConfig holds configuration for the gRPC binding service.
type ServerConfig struct {
	Host           string
	Port           int
	RequestTimeout time.Duration
	MaxRecvBytes   int
	MetricsAddr    string
	Engine         EngineConfig
}

// EngineConfig tunes the resolution engine.
type EngineConfig struct {
	MaxExpressionDepth  int
	MaxExpressionLength int
	CacheExpressions    bool
	CacheEntries        int
}

// DefaultServerConfig returns configuration with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:           "0.0.0.0",
		Port:           50061,
		RequestTimeout: 10 * time.Second,
		MaxRecvBytes:   4 << 20,
		MetricsAddr:    ":9090",
		Engine:         DefaultEngineConfig(),
	}
}

// DefaultEngineConfig mirrors the limits in internal/types.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxExpressionDepth:  types.MaxExpressionDepth,
		MaxExpressionLength: types.MaxExpressionLength,
		CacheExpressions:    true,
		CacheEntries:        expr.DefaultCacheEntries,
	}
}

// ResolveConfig converts to the engine's own configuration type.
func (c EngineConfig) ResolveConfig() resolve.Config {
	return resolve.Config{
		Limits: expr.Limits{
			MaxDepth:  c.MaxExpressionDepth,
			MaxLength: c.MaxExpressionLength,
		},
		CacheExpressions: c.CacheExpressions,
		CacheEntries:     c.CacheEntries,
	}
}

// HMACSecrets extracts HMAC secrets from environment variables.
// Supports RB_HMAC_SECRET (single) and RB_HMAC_SECRET_N (rotation).
// Returns map of secret_id -> decoded secret bytes.
// Secret IDs are UUIDv7 (32 hex chars without hyphens) matching API key format.
func HMACSecrets() (map[string][]byte, error) {
	secrets := make(map[string][]byte)

	add := func(key, val string) error {
		secretID, decoded, err := ParseHMACSecretWithID(val)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if _, exists := secrets[secretID]; exists {
			return fmt.Errorf("duplicate secret_id '%s' found in environment variables (check %s_HMAC_SECRET and %s_HMAC_SECRET_* for conflicts)", secretID, EnvPrefix, EnvPrefix)
		}
		secrets[secretID] = decoded
		return nil
	}

	// Format: <secret_id>:<base64_secret>
	single := EnvPrefix + "_HMAC_SECRET"
	if val := os.Getenv(single); val != "" {
		if err := add(single, val); err != nil {
			return nil, err
		}
	}

	// Numbered secrets keep old and new keys valid while rotating.
	for i := 1; ; i++ {
		key := fmt.Sprintf("%s_HMAC_SECRET_%d", EnvPrefix, i)
		val := os.Getenv(key)
		if val == "" {
			break
		}
		if err := add(key, val); err != nil {
			return nil, err
		}
	}

	return secrets, nil
}

// ParseHMACSecret decodes a base64-encoded HMAC secret.
func ParseHMACSecret(envValue string) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(envValue))
	if err != nil {
		return nil, fmt.Errorf("invalid base64 encoding: %w", err)
	}
	if len(decoded) < 32 {
		return nil, fmt.Errorf("secret must be at least 32 bytes, got %d", len(decoded))
	}
	return decoded, nil
}

// ParseHMACSecretWithID parses secret_id:base64_secret format.
// Secret ID must be 32 hex chars (UUIDv7 without hyphens).
func ParseHMACSecretWithID(envValue string) (secretID string, secret []byte, err error) {
	parts := strings.SplitN(strings.TrimSpace(envValue), ":", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("format must be <secret_id>:<base64_secret>")
	}

	secretID = parts[0]
	if len(secretID) != 32 {
		return "", nil, fmt.Errorf("secret_id must be 32 hex chars (UUIDv7 without hyphens)")
	}
	for _, c := range secretID {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return "", nil, fmt.Errorf("secret_id must be hex chars only")
		}
	}

	secret, err = ParseHMACSecret(parts[1])
	if err != nil {
		return "", nil, err
	}
	return secretID, secret, nil
}
