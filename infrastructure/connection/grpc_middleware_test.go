package connection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"looped/infrastructure"
	"looped/pkg/jwt"
)

func TestAuthenticationInterceptor(t *testing.T) {
	tokens := jwt.NewJWT([]byte("secret"), time.Hour)
	interceptor := AuthenticationInterceptor(tokens)

	valid, err := tokens.GenerateToken("user-1")
	require.NoError(t, err)

	var seen string
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		seen, _ = infrastructure.UserIDFromContext(ctx)
		return "ok", nil
	}

	tests := []struct {
		name     string
		method   string
		header   string
		wantCode codes.Code
		wantUser string
	}{
		{name: "health is public", method: "/grpc.health.v1.Health/Check", wantCode: codes.OK},
		{name: "reflection is public", method: "/grpc.reflection.v1.ServerReflection/ServerReflectionInfo", wantCode: codes.OK},
		{name: "missing token", method: "/looped.social.v1.Social/Follow", wantCode: codes.Unauthenticated},
		{name: "not a bearer token", method: "/looped.social.v1.Social/Follow", header: valid, wantCode: codes.Unauthenticated},
		{name: "garbage token", method: "/looped.social.v1.Social/Follow", header: "Bearer nope", wantCode: codes.Unauthenticated},
		{name: "valid token", method: "/looped.social.v1.Social/Follow", header: "Bearer " + valid, wantCode: codes.OK, wantUser: "user-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			ctx := context.Background()
			if tt.header != "" {
				ctx = metadata.NewIncomingContext(ctx, metadata.Pairs("authorization", tt.header))
			}

			_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: tt.method}, handler)
			assert.Equal(t, tt.wantCode, status.Code(err))
			assert.Equal(t, tt.wantUser, seen)
		})
	}
}
