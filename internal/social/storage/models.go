package storage

import (
	"time"

	"looped/internal/backend"
)

// Follow is one row of the follows table.
type Follow struct {
	FollowerID  string
	FollowingID string
	CreatedAt   time.Time
}

func FollowFromRow(row backend.Row) *Follow {
	return &Follow{
		FollowerID:  row.String("follower_id"),
		FollowingID: row.String("following_id"),
		CreatedAt:   row.Time("created_at"),
	}
}

func (f *Follow) Row() backend.Row {
	return backend.Row{
		"follower_id":  f.FollowerID,
		"following_id": f.FollowingID,
		"created_at":   f.CreatedAt,
	}
}

// FollowRequest is one row of the follow_requests table. FollowerProfile
// holds the requester snapshot as JSON text.
type FollowRequest struct {
	ID              string
	FollowerID      string
	FollowingID     string
	CreatedAt       time.Time
	FollowerProfile string
}

func FollowRequestFromRow(row backend.Row) *FollowRequest {
	return &FollowRequest{
		ID:              row.String("id"),
		FollowerID:      row.String("follower_id"),
		FollowingID:     row.String("following_id"),
		CreatedAt:       row.Time("created_at"),
		FollowerProfile: row.String("follower_profile"),
	}
}

func (r *FollowRequest) Row() backend.Row {
	return backend.Row{
		"id":               r.ID,
		"follower_id":      r.FollowerID,
		"following_id":     r.FollowingID,
		"created_at":       r.CreatedAt,
		"follower_profile": r.FollowerProfile,
	}
}
