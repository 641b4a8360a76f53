package social

import (
	"encoding/json"
	"fmt"

	"looped/internal/social/storage"
)

func ConvertDBFollowToEdge(f *storage.Follow) FollowEdge {
	return FollowEdge{
		FollowerID:  f.FollowerID,
		FollowingID: f.FollowingID,
		CreatedAt:   f.CreatedAt,
	}
}

func ConvertEdgeToDBFollow(e FollowEdge) *storage.Follow {
	return &storage.Follow{
		FollowerID:  e.FollowerID,
		FollowingID: e.FollowingID,
		CreatedAt:   e.CreatedAt,
	}
}

// ConvertDBRequestToRequest falls back to the requester id alone when the
// snapshot is missing or malformed. A malformed snapshot is still reported
// so the caller can log it.
func ConvertDBRequestToRequest(r *storage.FollowRequest) (FollowRequest, error) {
	req := FollowRequest{
		ID:          r.ID,
		FollowerID:  r.FollowerID,
		FollowingID: r.FollowingID,
		CreatedAt:   r.CreatedAt,
	}
	var err error
	if r.FollowerProfile != "" {
		var snapshot ProfileSnapshot
		if err = json.Unmarshal([]byte(r.FollowerProfile), &snapshot); err != nil {
			err = fmt.Errorf("failed to decode follower profile of request %s: %w", r.ID, err)
		} else {
			req.FollowerProfile = snapshot
		}
	}
	if req.FollowerProfile.ID == "" {
		req.FollowerProfile.ID = r.FollowerID
	}
	return req, err
}

func ConvertRequestToDBRequest(req FollowRequest) (*storage.FollowRequest, error) {
	snapshot, err := json.Marshal(req.FollowerProfile)
	if err != nil {
		return nil, fmt.Errorf("failed to encode follower profile: %w", err)
	}
	return &storage.FollowRequest{
		ID:              req.ID,
		FollowerID:      req.FollowerID,
		FollowingID:     req.FollowingID,
		CreatedAt:       req.CreatedAt,
		FollowerProfile: string(snapshot),
	}, nil
}
