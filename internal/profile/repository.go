package profile

import (
	"context"
	"fmt"
	"time"

	"looped/internal/backend"
	"looped/internal/profile/storage"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Update(ctx context.Context, id string, patch Patch, updatedAt time.Time) (int64, error)
	List(ctx context.Context, limit int) ([]*User, error)
}

type repository struct {
	backend backend.Backend
}

func NewRepository(b backend.Backend) Repository {
	return &repository{backend: b}
}

func (r *repository) Create(ctx context.Context, user *User) error {
	return r.backend.Insert(ctx, backend.TableProfiles, ConvertUserToDBProfile(user).Row())
}

// GetByID returns nil, nil when the user has no profile yet.
func (r *repository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.getOne(ctx, backend.Eq("id", id))
}

func (r *repository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.getOne(ctx, backend.Eq("username", username))
}

func (r *repository) GetByIDs(ctx context.Context, ids []string) (map[string]*User, error) {
	users := make(map[string]*User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}
	rows, err := r.backend.Select(ctx, backend.TableProfiles, backend.Where(backend.In("id", ids)), backend.SelectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get profiles: %w", err)
	}
	for _, row := range rows {
		u := ConvertDBProfileToUser(storage.ProfileFromRow(row))
		users[u.ID] = u
	}
	return users, nil
}

func (r *repository) Update(ctx context.Context, id string, patch Patch, updatedAt time.Time) (int64, error) {
	set := backend.Row(patchRow(patch))
	set["updated_at"] = updatedAt
	return r.backend.Update(ctx, backend.TableProfiles, backend.Where(backend.Eq("id", id)), set)
}

func (r *repository) List(ctx context.Context, limit int) ([]*User, error) {
	rows, err := r.backend.Select(ctx, backend.TableProfiles, nil, backend.SelectOptions{
		OrderBy: []backend.Order{{Column: "username"}},
		Limit:   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	users := make([]*User, len(rows))
	for i, row := range rows {
		users[i] = ConvertDBProfileToUser(storage.ProfileFromRow(row))
	}
	return users, nil
}

func (r *repository) getOne(ctx context.Context, cond backend.Condition) (*User, error) {
	rows, err := r.backend.Select(ctx, backend.TableProfiles, backend.Where(cond), backend.SelectOptions{Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return ConvertDBProfileToUser(storage.ProfileFromRow(rows[0])), nil
}
