package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"looped/infrastructure"
	"looped/internal/profile"
)

const DefaultLimit = 50

type Service struct {
	repo     Repository
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	return &Service{repo: repo, validate: v, logger: logger, now: time.Now}
}

// Publish stores a summary post. Items are trimmed; between one and MaxItems
// non-empty items are required.
func (s *Service) Publish(ctx context.Context, authorID string, in PublishInput) (*Post, error) {
	items := make([]string, len(in.Items))
	for i, item := range in.Items {
		items[i] = strings.TrimSpace(item)
	}
	in.Items = items

	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := profile.FieldErrors{}
			for _, fe := range verrs {
				field := strings.SplitN(fe.Field(), "[", 2)[0]
				if _, seen := fields[field]; !seen {
					fields[field] = fmt.Sprintf("%s failed the %s rule", field, fe.Tag())
				}
			}
			return nil, fmt.Errorf("%w: %w", infrastructure.ErrInvalidInput, fields)
		}
		return nil, fmt.Errorf("%w: %v", infrastructure.ErrInvalidInput, err)
	}

	post := &Post{
		ID:        uuid.NewString(),
		AuthorID:  authorID,
		Period:    in.Period,
		Kind:      in.Kind,
		Items:     in.Items,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, post); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish post", "author_id", authorID, "error", err)
		return nil, err
	}
	return post, nil
}

// Feed returns the posts of userID and of the users they follow, newest
// first.
func (s *Service) Feed(ctx context.Context, userID string, following []string, limit int) ([]*Post, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	authors := append([]string{userID}, following...)

	var posts []*Post
	err := infrastructure.TimeOperation(ctx, s.logger, "feed.ByAuthors", func() error {
		var err error
		posts, err = s.repo.ByAuthors(ctx, authors, limit)
		return err
	})
	return posts, err
}
