package api

import (
	"context"
	"errors"
	"strconv"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/rolebind/internal/expr"
	"github.com/solatis/rolebind/internal/types"
)

type checkExpressionRequest struct {
	Source  string       `json:"source"`
	Context *evalContext `json:"context"`
}

type evalContext struct {
	Roles    []types.RoleID                 `json:"roles"`
	Ranks    map[types.GroupID]types.RankID `json:"ranks"`
	Username string                         `json:"username"`
}

// CheckExpression parses a custom bind source and optionally evaluates it.
//
// Request:
//
//	{"source": "...", "context": {"roles": [...], "ranks": {...}, "username": "..."}}
//
// Response: {"valid": bool, "canonical": "..."} on success, or
// {"valid": false, "error": "...", "offset": n} when parsing fails. With a
// context, "result" ({"kind": "bool"|"number", "value": ...}) or
// "evaluation_error" is added. Numbers are returned as decimal strings.
//
// Invalid source is a normal response, not an RPC error.
func (s *BindingService) CheckExpression(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if _, err := guildID(ctx); err != nil {
		return nil, err
	}

	var req checkExpressionRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, invalidArgument("decoding request: %v", err)
	}

	tree, err := s.engine.Parse(req.Source)
	if err != nil {
		fields := map[string]any{"valid": false, "error": err.Error()}
		var perr *expr.ParseError
		if errors.As(err, &perr) {
			fields["offset"] = perr.Offset
		}
		return encodeResponse(fields)
	}

	fields := map[string]any{"valid": true, "canonical": tree.String()}
	if req.Context != nil {
		res, err := s.engine.Evaluate(tree, expr.NewContext(req.Context.Roles, req.Context.Ranks, req.Context.Username))
		if err != nil {
			fields["evaluation_error"] = err.Error()
		} else {
			fields["result"] = resultFields(res)
		}
	}
	return encodeResponse(fields)
}

func resultFields(r expr.Result) map[string]any {
	if r.Kind == expr.ResultNumber {
		return map[string]any{"kind": "number", "value": strconv.FormatUint(r.Number, 10)}
	}
	return map[string]any{"kind": "bool", "value": r.Bool}
}
