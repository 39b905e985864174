// Package api implements rolebind.v1.BindingService on top of the
// configuration store and the resolution engine.
package api

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/rolebind/internal/core/auth"
	"github.com/solatis/rolebind/internal/core/telemetry"
	"github.com/solatis/rolebind/internal/resolve"
	"github.com/solatis/rolebind/internal/types"
)

// CatalogStore loads a guild's catalog. Implemented by *db.Queries.
type CatalogStore interface {
	LoadCatalog(ctx context.Context, guildID types.GuildID) (*types.Catalog, error)
}

// BindingService implements BindingServer.
// Thin orchestration layer delegating to the store and the resolution engine.
type BindingService struct {
	store   CatalogStore
	engine  *resolve.Engine
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// NewBindingService creates service instance with dependencies.
// metrics and logger are optional.
func NewBindingService(store CatalogStore, engine *resolve.Engine, metrics *telemetry.Metrics, logger *slog.Logger) (*BindingService, error) {
	if store == nil {
		return nil, errors.New("store cannot be nil")
	}
	if engine == nil {
		return nil, errors.New("engine cannot be nil")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &BindingService{
		store:   store,
		engine:  engine,
		metrics: metrics,
		logger:  logger,
	}, nil
}

var _ BindingServer = (*BindingService)(nil)

// guildID returns the guild the auth interceptor placed in ctx.
func guildID(ctx context.Context) (types.GuildID, error) {
	id, ok := auth.GuildIDFromContext(ctx)
	if !ok {
		return 0, status.Error(codes.Internal, "missing guild_id in context")
	}
	return id, nil
}

func (s *BindingService) observe(outcome string, configErrors int) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveResolution(outcome, configErrors)
	s.metrics.SetCacheSize(s.engine.CacheLen())
}
