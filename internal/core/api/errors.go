package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/rolebind/internal/resolve"
	"github.com/solatis/rolebind/internal/types"
)

// Error mapping at the gRPC edge:
//   - malformed requests map to INVALID_ARGUMENT
//   - a guild without a stored catalog maps to NOT_FOUND
//   - other store failures map to UNAVAILABLE
//   - catalog problems surfaced by resolution (broken custom bind, invalid
//     nickname, missing default template) map to FAILED_PRECONDITION, since
//     the guild's configuration must change before a retry can succeed;
//     deny-list failures collected before the abort ride along as details
//   - context timeouts map to DEADLINE_EXCEEDED
// Auth errors are mapped in the auth package interceptor.

func storeStatus(err error) error {
	switch {
	case errors.Is(err, types.ErrCatalogNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Errorf(codes.Unavailable, "loading catalog: %v", err)
	}
}

func resolveStatus(err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, types.ErrCustomBind),
		errors.Is(err, types.ErrInvalidNickname),
		errors.Is(err, types.ErrNoDefaultNickname):
		code = codes.FailedPrecondition
	}
	st := status.New(code, err.Error())

	// Deny-list failures collected before the abort travel as a
	// {"warnings": [...]} detail, matching the success response field.
	if failures := resolve.DenyListFailures(err); len(failures) > 0 {
		detail, derr := structpb.NewStruct(map[string]any{"warnings": errorList(failures)})
		if derr == nil {
			if withDetail, werr := st.WithDetails(detail); werr == nil {
				st = withDetail
			}
		}
	}
	return st.Err()
}

func invalidArgument(format string, args ...any) error {
	return status.Errorf(codes.InvalidArgument, format, args...)
}
