package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/rolebind/internal/types"
)

type syncCatalogRequest struct {
	IfNoneMatch string `json:"if_none_match"`
}

// SyncCatalog returns the authenticated guild's catalog with an ETag.
//
// Request: {"if_none_match": "<etag>"} (optional).
// Response: {"guild_id": "...", "etag": "...", "not_modified": bool,
// "catalog_json": "..."}. catalog_json is omitted when not_modified is set.
// The catalog travels as a JSON string so 64-bit identifiers survive intact.
func (s *BindingService) SyncCatalog(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	guild, err := guildID(ctx)
	if err != nil {
		return nil, err
	}

	var req syncCatalogRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, invalidArgument("decoding request: %v", err)
	}

	catalog, err := s.store.LoadCatalog(ctx, guild)
	if err != nil {
		return nil, storeStatus(err)
	}

	blob, etag, err := CatalogETag(catalog)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	fields := map[string]any{
		"guild_id":     formatID(guild),
		"etag":         etag,
		"not_modified": req.IfNoneMatch != "" && req.IfNoneMatch == etag,
	}
	if !fields["not_modified"].(bool) {
		fields["catalog_json"] = string(blob)
	}
	return encodeResponse(fields)
}

// CatalogETag encodes catalog as JSON and derives a weak ETag from the bytes.
// Equal catalogs always produce equal ETags.
func CatalogETag(catalog *types.Catalog) ([]byte, string, error) {
	blob, err := json.Marshal(catalog)
	if err != nil {
		return nil, "", fmt.Errorf("encoding catalog: %w", err)
	}
	return blob, fmt.Sprintf(`W/"%016x"`, xxhash.Sum64(blob)), nil
}
