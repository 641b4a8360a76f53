package social

import (
	"time"

	"looped/internal/profile"
)

// FollowEdge is a directed "follows" relation. There is at most one edge per
// ordered pair and never one from a user to themselves.
type FollowEdge struct {
	FollowerID  string    `json:"follower_id"`
	FollowingID string    `json:"following_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProfileSnapshot is the copy of the requester's profile stored on a follow
// request so it can be shown without another lookup.
type ProfileSnapshot struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarRef   string `json:"avatar_ref"`
	IsVerified  bool   `json:"is_verified"`
}

func SnapshotOf(u *profile.User) ProfileSnapshot {
	return ProfileSnapshot{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarRef:   u.AvatarRef,
		IsVerified:  u.IsVerified,
	}
}

// FollowRequest is a pending follow of a private account.
type FollowRequest struct {
	ID              string          `json:"id"`
	FollowerID      string          `json:"follower_id"`
	FollowingID     string          `json:"following_id"`
	CreatedAt       time.Time       `json:"created_at"`
	FollowerProfile ProfileSnapshot `json:"follower_profile"`
}

type RequestState string

const (
	// RequestUnknown is reported for ids the store has never seen pending.
	RequestUnknown  RequestState = ""
	RequestPending  RequestState = "pending"
	RequestAccepted RequestState = "accepted"
	RequestRejected RequestState = "rejected"
)

type FollowOutcome string

const (
	OutcomeFollowed  FollowOutcome = "followed"
	OutcomeRequested FollowOutcome = "requested"
	OutcomeUnchanged FollowOutcome = "unchanged"
)

// Snapshot is a consistent copy of a store's state.
type Snapshot struct {
	UserID       string          `json:"user_id"`
	Followers    []string        `json:"followers"`
	Following    []string        `json:"following"`
	Requests     []FollowRequest `json:"requests"`
	SentRequests []string        `json:"sent_requests"`
}
