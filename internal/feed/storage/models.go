package storage

import (
	"time"

	"looped/internal/backend"
)

// Post is one row of the posts table. Items is a JSON array.
type Post struct {
	ID        string
	AuthorID  string
	Period    string
	Kind      string
	Items     string
	CreatedAt time.Time
}

func PostFromRow(row backend.Row) *Post {
	return &Post{
		ID:        row.String("id"),
		AuthorID:  row.String("author_id"),
		Period:    row.String("period"),
		Kind:      row.String("kind"),
		Items:     row.String("items"),
		CreatedAt: row.Time("created_at"),
	}
}

func (p *Post) Row() backend.Row {
	return backend.Row{
		"id":         p.ID,
		"author_id":  p.AuthorID,
		"period":     p.Period,
		"kind":       p.Kind,
		"items":      p.Items,
		"created_at": p.CreatedAt,
	}
}
