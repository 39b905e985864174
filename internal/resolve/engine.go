// internal/resolve/engine.go
package resolve

import (
	"log/slog"

	"github.com/solatis/rolebind/internal/expr"
)

// Config tunes expression handling inside the engine.
type Config struct {
	// Limits bounds custom expression parsing.
	Limits expr.Limits
	// CacheExpressions memoizes parsed custom sources across calls.
	CacheExpressions bool
	// CacheEntries bounds the memo; <= 0 selects expr.DefaultCacheEntries.
	CacheEntries int
}

// DefaultConfig returns limits from internal/types with caching enabled.
func DefaultConfig() Config {
	return Config{Limits: expr.DefaultLimits, CacheExpressions: true}
}

// Engine resolves member facts against a catalog.
// Safe for concurrent use; the only shared state is the immutable parse cache.
type Engine struct {
	limits expr.Limits
	cache  *expr.Cache
	logger *slog.Logger
}

// NewEngine creates an engine. A nil logger discards output.
func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	e := &Engine{limits: cfg.Limits, logger: logger}
	if cfg.CacheExpressions {
		e.cache = expr.NewCache(cfg.Limits, cfg.CacheEntries)
	}
	return e
}

// Parse parses source with the engine's limits, consulting the cache when enabled.
func (e *Engine) Parse(source string) (expr.Expression, error) {
	if e.cache != nil {
		return e.cache.Parse(source)
	}
	return expr.ParseWithLimits(source, e.limits)
}

// CacheLen reports how many parsed sources are memoized; 0 when caching is off.
func (e *Engine) CacheLen() int {
	if e.cache == nil {
		return 0
	}
	return e.cache.Len()
}

// Evaluate evaluates a parsed tree with the engine's limits.
func (e *Engine) Evaluate(tree expr.Expression, ctx *expr.Context) (expr.Result, error) {
	return expr.EvaluateWithLimits(tree, ctx, e.limits)
}

// evaluateSource parses and evaluates source against the member context.
func (e *Engine) evaluateSource(source string, snap *snapshot) (bool, error) {
	tree, err := e.Parse(source)
	if err != nil {
		return false, err
	}
	res, err := e.Evaluate(tree, snap.ctx)
	if err != nil {
		return false, err
	}
	return res.Truthy(), nil
}
