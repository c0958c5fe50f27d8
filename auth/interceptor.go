package auth

import (
	"context"

	"google.golang.org/grpc"
)

// UnaryServerInterceptor authenticates unary calls and stores the identity in
// the handler context. A nil authenticator lets every call through.
func UnaryServerInterceptor(authenticator Authenticator) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, err := authenticateCall(ctx, authenticator)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor is the streaming counterpart of
// UnaryServerInterceptor.
func StreamServerInterceptor(authenticator Authenticator) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := authenticateCall(ss.Context(), authenticator)
		if err != nil {
			return err
		}
		return handler(srv, WithStreamContext(ss, ctx))
	}
}

func authenticateCall(ctx context.Context, authenticator Authenticator) (context.Context, error) {
	if authenticator == nil {
		return ctx, nil
	}
	token, err := ExtractToken(ctx)
	if err != nil {
		return nil, err
	}
	ctx, err = ValidateToken(ctx, token, authenticator)
	if err != nil {
		return nil, StatusError(err)
	}
	return ctx, nil
}

type contextStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s contextStream) Context() context.Context { return s.ctx }

// WithStreamContext returns ss reporting ctx from Context. Interceptors use
// it to hand values down to stream handlers.
func WithStreamContext(ss grpc.ServerStream, ctx context.Context) grpc.ServerStream {
	if ctx == ss.Context() {
		return ss
	}
	return contextStream{ServerStream: ss, ctx: ctx}
}
