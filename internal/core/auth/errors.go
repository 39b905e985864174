package auth

import "errors"

// Authentication errors map onto gRPC codes in UnaryInterceptor.
// Unauthenticated for missing or invalid keys (does not confirm the key exists),
// PermissionDenied for revoked keys, Unavailable for store failures.
var (
	ErrMissingKey       = errors.New("API key required in x-api-key metadata")
	ErrInvalidKeyFormat = errors.New("invalid API key format")
	ErrUnknownKey       = errors.New("unknown secret ID")
	ErrInvalidKey       = errors.New("invalid API key")
	ErrKeyRevoked       = errors.New("API key has been revoked")
	ErrStore            = errors.New("key store unavailable")
)
