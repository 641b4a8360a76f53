package social

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"looped/infrastructure"
	"looped/infrastructure/connection"
)

const ServiceName = "looped.social.v1.Social"

// SocialServer is the gRPC surface of a signed-in user's store. Every
// method takes the target user id as a StringValue.
type SocialServer interface {
	IsFollowing(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	Follow(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	Unfollow(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
}

type GRPCHandler struct {
	sessions Sessions
}

func NewGRPCHandler(sessions Sessions) *GRPCHandler {
	return &GRPCHandler{sessions: sessions}
}

func (h *GRPCHandler) store(ctx context.Context) (*Store, error) {
	userID, ok := infrastructure.UserIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, infrastructure.ErrMissingToken.Error())
	}
	store, err := h.sessions.Acquire(ctx, userID)
	if err != nil {
		return nil, connection.StatusError(err)
	}
	return store, nil
}

func (h *GRPCHandler) IsFollowing(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "user id is required")
	}
	store, err := h.store(ctx)
	if err != nil {
		return nil, err
	}
	return wrapperspb.Bool(store.IsFollowing(req.GetValue())), nil
}

// Follow answers with the outcome: followed, requested or unchanged.
func (h *GRPCHandler) Follow(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "user id is required")
	}
	store, err := h.store(ctx)
	if err != nil {
		return nil, err
	}
	outcome, err := store.Follow(ctx, req.GetValue())
	if err != nil {
		return nil, connection.StatusError(err)
	}
	return wrapperspb.String(string(outcome)), nil
}

func (h *GRPCHandler) Unfollow(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "user id is required")
	}
	store, err := h.store(ctx)
	if err != nil {
		return nil, err
	}
	if err := store.Unfollow(ctx, req.GetValue()); err != nil {
		return nil, connection.StatusError(err)
	}
	return &emptypb.Empty{}, nil
}

func RegisterSocialServer(s grpc.ServiceRegistrar, srv SocialServer) {
	s.RegisterService(&socialServiceDesc, srv)
}

var socialServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SocialServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "IsFollowing", Handler: isFollowingHandler},
		{MethodName: "Follow", Handler: followHandler},
		{MethodName: "Unfollow", Handler: unfollowHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func isFollowingHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SocialServer).IsFollowing(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/IsFollowing"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SocialServer).IsFollowing(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func followHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SocialServer).Follow(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Follow"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SocialServer).Follow(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func unfollowHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SocialServer).Unfollow(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Unfollow"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SocialServer).Unfollow(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}
