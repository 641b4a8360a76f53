package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"looped/infrastructure"
	"looped/internal/backend"
	"looped/internal/profile"
)

func newTestService(t *testing.T) (*Service, *backend.Memory) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := backend.NewMemory(logger)
	t.Cleanup(func() { _ = mem.Close() })
	return NewService(NewRepository(mem), logger), mem
}

func TestPublishAndFeed(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Hour)
	}

	mine, err := svc.Publish(ctx, "a", PublishInput{Period: PeriodWeekly, Kind: KindSongs, Items: []string{" One ", "Two"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"One", "Two"}, mine.Items)
	assert.NotEmpty(t, mine.ID)

	friend, err := svc.Publish(ctx, "b", PublishInput{Period: PeriodMonthly, Kind: KindArtists, Items: []string{"Band"}})
	require.NoError(t, err)
	_, err = svc.Publish(ctx, "stranger", PublishInput{Period: PeriodMonthly, Kind: KindArtists, Items: []string{"Other"}})
	require.NoError(t, err)

	posts, err := svc.Feed(ctx, "a", []string{"b"}, 0)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, friend.ID, posts[0].ID)
	assert.Equal(t, mine.ID, posts[1].ID)
	assert.Equal(t, []string{"One", "Two"}, posts[1].Items)
	assert.Equal(t, PeriodWeekly, posts[1].Period)
}

func TestPublishValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		in    PublishInput
		field string
	}{
		{"no items", PublishInput{Period: PeriodWeekly, Kind: KindSongs}, "items"},
		{"too many items", PublishInput{Period: PeriodWeekly, Kind: KindSongs, Items: make([]string, MaxItems+1)}, "items"},
		{"blank item", PublishInput{Period: PeriodWeekly, Kind: KindSongs, Items: []string{"ok", "  "}}, "items"},
		{"bad period", PublishInput{Period: "daily", Kind: KindSongs, Items: []string{"ok"}}, "period"},
		{"bad kind", PublishInput{Period: PeriodWeekly, Kind: "albums", Items: []string{"ok"}}, "kind"},
		{"item too long", PublishInput{Period: PeriodWeekly, Kind: KindSongs, Items: []string{strings.Repeat("x", MaxItemLength+1)}}, "items"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Publish(ctx, "a", tt.in)
			require.ErrorIs(t, err, infrastructure.ErrInvalidInput)
			var fields profile.FieldErrors
			require.True(t, errors.As(err, &fields))
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestPublishLongestItem(t *testing.T) {
	svc, _ := newTestService(t)

	post, err := svc.Publish(context.Background(), "a", PublishInput{
		Period: PeriodWeekly,
		Kind:   KindSongs,
		Items:  []string{strings.Repeat("x", MaxItemLength)},
	})
	require.NoError(t, err)
	assert.Len(t, post.Items[0], MaxItemLength)
}

func TestPublishBackendFailure(t *testing.T) {
	svc, mem := newTestService(t)
	boom := errors.New("down")
	mem.FailNext(backend.OperationInsert, backend.TablePosts, boom)

	_, err := svc.Publish(context.Background(), "a", PublishInput{Period: PeriodWeekly, Kind: KindSongs, Items: []string{"x"}})
	assert.ErrorIs(t, err, boom)
}
