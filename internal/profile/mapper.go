package profile

import "looped/internal/profile/storage"

func ConvertDBProfileToUser(p *storage.Profile) *User {
	return &User{
		ID:          p.ID,
		Username:    p.Username,
		DisplayName: p.DisplayName,
		Bio:         p.Bio,
		AvatarRef:   p.AvatarRef,
		IsVerified:  p.IsVerified,
		IsPublic:    p.IsPublic,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func ConvertUserToDBProfile(u *User) *storage.Profile {
	return &storage.Profile{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Bio:         u.Bio,
		AvatarRef:   u.AvatarRef,
		IsVerified:  u.IsVerified,
		IsPublic:    u.IsPublic,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// patchRow lists only the columns the patch touches.
func patchRow(p Patch) map[string]any {
	set := make(map[string]any)
	if p.Username != nil {
		set["username"] = *p.Username
	}
	if p.DisplayName != nil {
		set["display_name"] = *p.DisplayName
	}
	if p.Bio != nil {
		set["bio"] = *p.Bio
	}
	if p.AvatarRef != nil {
		set["avatar_ref"] = *p.AvatarRef
	}
	if p.IsPublic != nil {
		set["is_public"] = *p.IsPublic
	}
	return set
}
