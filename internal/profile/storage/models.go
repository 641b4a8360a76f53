package storage

import (
	"time"

	"looped/internal/backend"
)

// Profile is one row of the profiles table.
type Profile struct {
	ID          string
	Username    string
	DisplayName string
	Bio         string
	AvatarRef   string
	IsVerified  bool
	IsPublic    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func ProfileFromRow(row backend.Row) *Profile {
	return &Profile{
		ID:          row.String("id"),
		Username:    row.String("username"),
		DisplayName: row.String("display_name"),
		Bio:         row.String("bio"),
		AvatarRef:   row.String("avatar_ref"),
		IsVerified:  row.Bool("is_verified"),
		IsPublic:    row.Bool("is_public"),
		CreatedAt:   row.Time("created_at"),
		UpdatedAt:   row.Time("updated_at"),
	}
}

func (p *Profile) Row() backend.Row {
	return backend.Row{
		"id":           p.ID,
		"username":     p.Username,
		"display_name": p.DisplayName,
		"bio":          p.Bio,
		"avatar_ref":   p.AvatarRef,
		"is_verified":  p.IsVerified,
		"is_public":    p.IsPublic,
		"created_at":   p.CreatedAt,
		"updated_at":   p.UpdatedAt,
	}
}
