package social

import (
	"context"
	"fmt"
	"log/slog"

	"looped/internal/backend"
	"looped/internal/social/storage"
)

// Repository adapts the follows and follow_requests tables of a backend.
type Repository interface {
	Followers(ctx context.Context, userID string) ([]FollowEdge, error)
	Following(ctx context.Context, userID string) ([]FollowEdge, error)
	EdgeExists(ctx context.Context, followerID, followingID string) (bool, error)
	InsertEdge(ctx context.Context, edge FollowEdge) error
	DeleteEdge(ctx context.Context, followerID, followingID string) (bool, error)

	IncomingRequests(ctx context.Context, userID string) ([]FollowRequest, error)
	OutgoingRequests(ctx context.Context, userID string) ([]FollowRequest, error)
	InsertRequest(ctx context.Context, req FollowRequest) error
	DeleteRequest(ctx context.Context, id string) (bool, error)
	DeleteRequestBetween(ctx context.Context, followerID, followingID string) (bool, error)

	WatchFollowers(ctx context.Context, userID string, onChange func(backend.ChangeEvent)) (*backend.Subscription, error)
	WatchFollowing(ctx context.Context, userID string, onChange func(backend.ChangeEvent)) (*backend.Subscription, error)
	WatchIncoming(ctx context.Context, userID string, onChange func(backend.ChangeEvent)) (*backend.Subscription, error)
	WatchOutgoing(ctx context.Context, userID string, onChange func(backend.ChangeEvent)) (*backend.Subscription, error)
	Unwatch(sub *backend.Subscription)
}

type repository struct {
	backend backend.Backend
	logger  *slog.Logger
}

func NewRepository(b backend.Backend, logger *slog.Logger) Repository {
	return &repository{backend: b, logger: logger}
}

var byCreatedAt = backend.SelectOptions{OrderBy: []backend.Order{{Column: "created_at"}}}

func (r *repository) Followers(ctx context.Context, userID string) ([]FollowEdge, error) {
	return r.edges(ctx, backend.Eq("following_id", userID))
}

func (r *repository) Following(ctx context.Context, userID string) ([]FollowEdge, error) {
	return r.edges(ctx, backend.Eq("follower_id", userID))
}

func (r *repository) EdgeExists(ctx context.Context, followerID, followingID string) (bool, error) {
	rows, err := r.backend.Select(ctx, backend.TableFollows, pair(followerID, followingID), backend.SelectOptions{Limit: 1})
	if err != nil {
		return false, fmt.Errorf("failed to check follow: %w", err)
	}
	return len(rows) > 0, nil
}

// InsertEdge returns an error wrapping infrastructure.ErrConflict when the
// edge already exists.
func (r *repository) InsertEdge(ctx context.Context, edge FollowEdge) error {
	return r.backend.Insert(ctx, backend.TableFollows, ConvertEdgeToDBFollow(edge).Row())
}

func (r *repository) DeleteEdge(ctx context.Context, followerID, followingID string) (bool, error) {
	n, err := r.backend.Delete(ctx, backend.TableFollows, pair(followerID, followingID))
	return n > 0, err
}

func (r *repository) IncomingRequests(ctx context.Context, userID string) ([]FollowRequest, error) {
	return r.requests(ctx, backend.Eq("following_id", userID))
}

func (r *repository) OutgoingRequests(ctx context.Context, userID string) ([]FollowRequest, error) {
	return r.requests(ctx, backend.Eq("follower_id", userID))
}

func (r *repository) InsertRequest(ctx context.Context, req FollowRequest) error {
	row, err := ConvertRequestToDBRequest(req)
	if err != nil {
		return err
	}
	return r.backend.Insert(ctx, backend.TableFollowRequests, row.Row())
}

func (r *repository) DeleteRequest(ctx context.Context, id string) (bool, error) {
	n, err := r.backend.Delete(ctx, backend.TableFollowRequests, backend.Where(backend.Eq("id", id)))
	return n > 0, err
}

func (r *repository) DeleteRequestBetween(ctx context.Context, followerID, followingID string) (bool, error) {
	n, err := r.backend.Delete(ctx, backend.TableFollowRequests, pair(followerID, followingID))
	return n > 0, err
}

func (r *repository) WatchFollowers(ctx context.Context, userID string, onChange func(backend.ChangeEvent)) (*backend.Subscription, error) {
	return r.backend.Subscribe(ctx, backend.TableFollows, backend.Where(backend.Eq("following_id", userID)), onChange)
}

func (r *repository) WatchFollowing(ctx context.Context, userID string, onChange func(backend.ChangeEvent)) (*backend.Subscription, error) {
	return r.backend.Subscribe(ctx, backend.TableFollows, backend.Where(backend.Eq("follower_id", userID)), onChange)
}

func (r *repository) WatchIncoming(ctx context.Context, userID string, onChange func(backend.ChangeEvent)) (*backend.Subscription, error) {
	return r.backend.Subscribe(ctx, backend.TableFollowRequests, backend.Where(backend.Eq("following_id", userID)), onChange)
}

func (r *repository) WatchOutgoing(ctx context.Context, userID string, onChange func(backend.ChangeEvent)) (*backend.Subscription, error) {
	return r.backend.Subscribe(ctx, backend.TableFollowRequests, backend.Where(backend.Eq("follower_id", userID)), onChange)
}

func (r *repository) Unwatch(sub *backend.Subscription) {
	r.backend.Unsubscribe(sub)
}

func (r *repository) edges(ctx context.Context, cond backend.Condition) ([]FollowEdge, error) {
	rows, err := r.backend.Select(ctx, backend.TableFollows, backend.Where(cond), byCreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get follows: %w", err)
	}
	edges := make([]FollowEdge, len(rows))
	for i, row := range rows {
		edges[i] = ConvertDBFollowToEdge(storage.FollowFromRow(row))
	}
	return edges, nil
}

func (r *repository) requests(ctx context.Context, cond backend.Condition) ([]FollowRequest, error) {
	rows, err := r.backend.Select(ctx, backend.TableFollowRequests, backend.Where(cond), byCreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get follow requests: %w", err)
	}
	reqs := make([]FollowRequest, len(rows))
	for i, row := range rows {
		req, err := ConvertDBRequestToRequest(storage.FollowRequestFromRow(row))
		if err != nil {
			r.logger.WarnContext(ctx, "corrupt follower snapshot", "request_id", req.ID, "error", err)
		}
		reqs[i] = req
	}
	return reqs, nil
}

func pair(followerID, followingID string) backend.Filter {
	return backend.Where(backend.Eq("follower_id", followerID), backend.Eq("following_id", followingID))
}
