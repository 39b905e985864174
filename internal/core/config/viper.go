package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"github.com/tidwall/jsonc"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
// Files ending in .jsonc may carry comments and trailing commas.
func LoadConfig(configPath string) (*ServerConfig, error) {
	v := viper.New()

	def := DefaultServerConfig()
	v.SetDefault("server.host", def.Host)
	v.SetDefault("server.port", def.Port)
	v.SetDefault("server.request_timeout", def.RequestTimeout.String())
	v.SetDefault("server.max_recv_bytes", def.MaxRecvBytes)
	v.SetDefault("metrics.addr", def.MetricsAddr)
	v.SetDefault("engine.max_expression_depth", def.Engine.MaxExpressionDepth)
	v.SetDefault("engine.max_expression_length", def.Engine.MaxExpressionLength)
	v.SetDefault("engine.cache_expressions", def.Engine.CacheExpressions)
	v.SetDefault("engine.cache_entries", def.Engine.CacheEntries)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		if err := readConfigFile(v, configPath); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets must be environment-only per 12-factor principles
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &ServerConfig{
		Host:           v.GetString("server.host"),
		Port:           v.GetInt("server.port"),
		RequestTimeout: v.GetDuration("server.request_timeout"),
		MaxRecvBytes:   v.GetInt("server.max_recv_bytes"),
		MetricsAddr:    v.GetString("metrics.addr"),
		Engine: EngineConfig{
			MaxExpressionDepth:  v.GetInt("engine.max_expression_depth"),
			MaxExpressionLength: v.GetInt("engine.max_expression_length"),
			CacheExpressions:    v.GetBool("engine.cache_expressions"),
			CacheEntries:        v.GetInt("engine.cache_entries"),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readConfigFile(v *viper.Viper, path string) error {
	if filepath.Ext(path) != ".jsonc" {
		v.SetConfigFile(path)
		return v.ReadInConfig()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	v.SetConfigType("json")
	return v.ReadConfig(bytes.NewReader(jsonc.ToJSON(raw)))
}

// validateConfig checks port range and positive limits.
func validateConfig(cfg *ServerConfig) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.RequestTimeout)
	}
	if cfg.MaxRecvBytes <= 0 {
		return fmt.Errorf("max_recv_bytes must be positive, got %d", cfg.MaxRecvBytes)
	}
	if cfg.Engine.MaxExpressionDepth <= 0 {
		return fmt.Errorf("engine.max_expression_depth must be positive, got %d", cfg.Engine.MaxExpressionDepth)
	}
	if cfg.Engine.MaxExpressionLength <= 0 {
		return fmt.Errorf("engine.max_expression_length must be positive, got %d", cfg.Engine.MaxExpressionLength)
	}
	if cfg.Engine.CacheEntries < 0 {
		return fmt.Errorf("engine.cache_entries must not be negative, got %d", cfg.Engine.CacheEntries)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets (12-factor principle).
// InConfig ignores the environment, so RB_HMAC_SECRET itself never trips this.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("hmac_secret") || v.InConfig("server.hmac_secret") {
		return fmt.Errorf("HMAC secrets not allowed in config files (use %s_HMAC_SECRET environment variable)", EnvPrefix)
	}
	return nil
}
