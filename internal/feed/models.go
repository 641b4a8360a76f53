package feed

import "time"

type Period string

const (
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

type Kind string

const (
	KindSongs   Kind = "songs"
	KindArtists Kind = "artists"
)

const (
	MaxItems      = 10
	MaxItemLength = 200
)

// Post is a "top songs" or "top artists" summary for a week or month.
type Post struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Period    Period    `json:"period"`
	Kind      Kind      `json:"kind"`
	Items     []string  `json:"items"`
	CreatedAt time.Time `json:"created_at"`
}

type PublishInput struct {
	Period Period   `json:"period" validate:"oneof=weekly monthly"`
	Kind   Kind     `json:"kind" validate:"oneof=songs artists"`
	Items  []string `json:"items" validate:"min=1,max=10,dive,required,max=200"`
}
