package flight

import (
	"context"

	"google.golang.org/grpc"

	"github.com/hugr-lab/gridsource-go/auth"
)

// metadataInterceptors store the trace and session headers of every call in
// its context, so handler logs carry them.
func metadataInterceptors() (grpc.UnaryServerInterceptor, grpc.StreamServerInterceptor) {
	unary := func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		return handler(EnrichContextMetadata(ctx), req)
	}
	stream := func(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		return handler(srv, auth.WithStreamContext(ss, EnrichContextMetadata(ss.Context())))
	}
	return unary, stream
}
