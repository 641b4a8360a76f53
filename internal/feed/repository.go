package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"looped/internal/backend"
	"looped/internal/feed/storage"
)

type Repository interface {
	Create(ctx context.Context, post *Post) error
	ByAuthors(ctx context.Context, authorIDs []string, limit int) ([]*Post, error)
}

type repository struct {
	backend backend.Backend
}

func NewRepository(b backend.Backend) Repository {
	return &repository{backend: b}
}

func (r *repository) Create(ctx context.Context, post *Post) error {
	items, err := json.Marshal(post.Items)
	if err != nil {
		return fmt.Errorf("failed to encode post items: %w", err)
	}
	row := &storage.Post{
		ID:        post.ID,
		AuthorID:  post.AuthorID,
		Period:    string(post.Period),
		Kind:      string(post.Kind),
		Items:     string(items),
		CreatedAt: post.CreatedAt,
	}
	return r.backend.Insert(ctx, backend.TablePosts, row.Row())
}

// ByAuthors returns the newest posts of the given authors first.
func (r *repository) ByAuthors(ctx context.Context, authorIDs []string, limit int) ([]*Post, error) {
	if len(authorIDs) == 0 {
		return nil, nil
	}
	rows, err := r.backend.Select(ctx, backend.TablePosts, backend.Where(backend.In("author_id", authorIDs)), backend.SelectOptions{
		OrderBy: []backend.Order{{Column: "created_at", Desc: true}},
		Limit:   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get posts: %w", err)
	}

	posts := make([]*Post, 0, len(rows))
	for _, row := range rows {
		p := storage.PostFromRow(row)
		post := &Post{
			ID:        p.ID,
			AuthorID:  p.AuthorID,
			Period:    Period(p.Period),
			Kind:      Kind(p.Kind),
			CreatedAt: p.CreatedAt,
		}
		if err := json.Unmarshal([]byte(p.Items), &post.Items); err != nil {
			return nil, fmt.Errorf("failed to decode items of post %s: %w", p.ID, err)
		}
		posts = append(posts, post)
	}
	return posts, nil
}
