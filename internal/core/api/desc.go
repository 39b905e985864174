// internal/core/api/desc.go
package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

/*
 * Service descriptor for rolebind.v1.BindingService.
 *
 * Every method takes and returns a google.protobuf.Struct, so the service is
 * described by hand instead of generated from a .proto file. The wire shape
 * of each message is documented on the handler. Clients in any language can
 * call it with the well-known Struct type and no rolebind-specific stubs.
 *
 * Platform identifiers are 64-bit and exceed the 53-bit integer range of a
 * Struct number, so responses always carry them as decimal strings. Requests
 * accept either strings or numbers.
 */

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "rolebind.v1.BindingService"

// Full method names, as seen by interceptors.
const (
	MethodResolveMember   = "/" + ServiceName + "/ResolveMember"
	MethodCheckExpression = "/" + ServiceName + "/CheckExpression"
	MethodSyncCatalog     = "/" + ServiceName + "/SyncCatalog"
)

// BindingServer is the server API for rolebind.v1.BindingService.
type BindingServer interface {
	ResolveMember(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckExpression(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SyncCatalog(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc registers a BindingServer on a grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BindingServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ResolveMember", Handler: unaryHandler(MethodResolveMember, BindingServer.ResolveMember)},
		{MethodName: "CheckExpression", Handler: unaryHandler(MethodCheckExpression, BindingServer.CheckExpression)},
		{MethodName: "SyncCatalog", Handler: unaryHandler(MethodSyncCatalog, BindingServer.SyncCatalog)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rolebind/v1/binding.proto",
}

// RegisterBindingServer registers srv with s.
func RegisterBindingServer(s grpc.ServiceRegistrar, srv BindingServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type unaryMethod func(BindingServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, method unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return method(srv.(BindingServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return method(srv.(BindingServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Client calls rolebind.v1.BindingService over a client connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// ResolveMember calls the ResolveMember method.
func (c *Client) ResolveMember(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodResolveMember, in, opts)
}

// CheckExpression calls the CheckExpression method.
func (c *Client) CheckExpression(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodCheckExpression, in, opts)
}

// SyncCatalog calls the SyncCatalog method.
func (c *Client) SyncCatalog(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodSyncCatalog, in, opts)
}

func (c *Client) invoke(ctx context.Context, method string, in *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
