package profile

import "time"

// DefaultAvatar is the avatar every new profile starts with.
const DefaultAvatar = "default_avatar"

type User struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Bio         string    `json:"bio"`
	AvatarRef   string    `json:"avatar_ref"`
	IsVerified  bool      `json:"is_verified"`
	IsPublic    bool      `json:"is_public"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateInput struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio"`
	AvatarRef   string `json:"avatar_ref"`
	IsPublic    *bool  `json:"is_public"`
}

// Patch holds the fields a profile edit may change. Nil fields are left as
// they are.
type Patch struct {
	Username    *string `json:"username"`
	DisplayName *string `json:"display_name"`
	Bio         *string `json:"bio"`
	AvatarRef   *string `json:"avatar_ref"`
	IsPublic    *bool   `json:"is_public"`
}

func (p Patch) Empty() bool {
	return p.Username == nil && p.DisplayName == nil && p.Bio == nil && p.AvatarRef == nil && p.IsPublic == nil
}
