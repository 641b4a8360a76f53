package connection

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"looped/infrastructure"
	"looped/pkg/jwt"
)

// Methods that don't require authentication. Anything under a listed service
// prefix is public as well.
var (
	publicMethods = map[string]bool{
		"/grpc.health.v1.Health/Check": true,
		"/grpc.health.v1.Health/Watch": true,
	}
	publicServices = []string{
		"/grpc.reflection.v1.ServerReflection/",
		"/grpc.reflection.v1alpha.ServerReflection/",
	}
)

// AuthenticationInterceptor validates the bearer token of every non-public
// unary call and stores the caller's user ID in the context.
func AuthenticationInterceptor(tokens *jwt.JWT) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		newCtx, err := authenticate(ctx, tokens, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(newCtx, req)
	}
}

// StreamAuthenticationInterceptor is the streaming counterpart of
// AuthenticationInterceptor.
func StreamAuthenticationInterceptor(tokens *jwt.JWT) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		newCtx, err := authenticate(ss.Context(), tokens, info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &authenticatedStream{ServerStream: ss, ctx: newCtx})
	}
}

func authenticate(ctx context.Context, tokens *jwt.JWT, method string) (context.Context, error) {
	if isPublic(method) {
		return ctx, nil
	}

	token, err := extractTokenFromContext(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Unauthenticated, "Invalid token: %v", err)
	}

	claims, err := tokens.ValidateToken(token)
	if err != nil {
		return nil, status.Errorf(codes.Unauthenticated, "Invalid token: %v", err)
	}

	return infrastructure.WithUserID(ctx, claims.UserID()), nil
}

func isPublic(method string) bool {
	if publicMethods[method] {
		return true
	}
	for _, prefix := range publicServices {
		if strings.HasPrefix(method, prefix) {
			return true
		}
	}
	return false
}

// extractTokenFromContext extracts the token from the gRPC metadata
func extractTokenFromContext(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", infrastructure.ErrMissingToken
	}

	values := md.Get("authorization")
	if len(values) == 0 {
		return "", infrastructure.ErrMissingToken
	}

	authHeader := values[0]
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", infrastructure.ErrInvalidToken
	}

	return strings.TrimPrefix(authHeader, "Bearer "), nil
}

type authenticatedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authenticatedStream) Context() context.Context {
	return s.ctx
}
