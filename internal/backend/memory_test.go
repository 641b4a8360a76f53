package backend

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"looped/infrastructure"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMemory(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory(discardLogger())
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func follow(from, to string, at time.Time) Row {
	return Row{"follower_id": from, "following_id": to, "created_at": at}
}

func TestMemoryInsertEnforcesUniqueness(t *testing.T) {
	m := newMemory(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, m.Insert(ctx, TableFollows, follow("a", "b", now)))
	err := m.Insert(ctx, TableFollows, follow("a", "b", now))
	assert.ErrorIs(t, err, infrastructure.ErrConflict)

	require.NoError(t, m.Insert(ctx, TableFollows, follow("b", "a", now)))

	rows, err := m.Select(ctx, TableFollows, nil, SelectOptions{})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestMemoryRejectsUnknownColumns(t *testing.T) {
	m := newMemory(t)
	ctx := context.Background()

	err := m.Insert(ctx, TableFollows, Row{"follower_id": "a", "nope": 1})
	assert.ErrorIs(t, err, infrastructure.ErrUnknownColumn)

	_, err = m.Select(ctx, Table("users"), nil, SelectOptions{})
	assert.ErrorIs(t, err, infrastructure.ErrUnknownTable)

	_, err = m.Select(ctx, TableFollows, Where(Condition{Column: "follower_id", Op: OpIn, Value: "a"}), SelectOptions{})
	assert.ErrorIs(t, err, infrastructure.ErrInvalidInput)
}

func TestMemorySelectFilterOrderLimit(t *testing.T) {
	m := newMemory(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, m.Insert(ctx, TableFollows, follow("a", "x", base.Add(2*time.Hour))))
	require.NoError(t, m.Insert(ctx, TableFollows, follow("b", "x", base)))
	require.NoError(t, m.Insert(ctx, TableFollows, follow("c", "x", base.Add(time.Hour))))
	require.NoError(t, m.Insert(ctx, TableFollows, follow("a", "y", base)))

	rows, err := m.Select(ctx, TableFollows, Where(Eq("following_id", "x")), SelectOptions{
		OrderBy: []Order{{Column: "created_at"}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "b", rows[0].String("follower_id"))
	assert.Equal(t, "c", rows[1].String("follower_id"))
	assert.Equal(t, "a", rows[2].String("follower_id"))

	rows, err = m.Select(ctx, TableFollows, Where(In("follower_id", []string{"a", "c"})), SelectOptions{
		OrderBy: []Order{{Column: "created_at", Desc: true}},
		Limit:   2,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].String("follower_id"))
	assert.Equal(t, "x", rows[0].String("following_id"))
	assert.Equal(t, "c", rows[1].String("follower_id"))
}

func TestMemoryUpdateAndDelete(t *testing.T) {
	m := newMemory(t)
	ctx := context.Background()

	require.NoError(t, m.Insert(ctx, TableProfiles, Row{"id": "1", "username": "amy"}))
	require.NoError(t, m.Insert(ctx, TableProfiles, Row{"id": "2", "username": "bo"}))

	n, err := m.Update(ctx, TableProfiles, Where(Eq("id", "1")), Row{"bio": "hi"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = m.Update(ctx, TableProfiles, Where(Eq("id", "1")), Row{"username": "bo"})
	assert.ErrorIs(t, err, infrastructure.ErrConflict)

	rows, err := m.Select(ctx, TableProfiles, Where(Eq("id", "1")), SelectOptions{})
	require.NoError(t, err)
	assert.Equal(t, "amy", rows[0].String("username"))
	assert.Equal(t, "hi", rows[0].String("bio"))

	n, err = m.Delete(ctx, TableProfiles, Where(Eq("id", "missing")))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = m.Delete(ctx, TableProfiles, Where(Eq("id", "2")))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemoryReturnsCopies(t *testing.T) {
	m := newMemory(t)
	ctx := context.Background()

	row := Row{"id": "1", "username": "amy"}
	require.NoError(t, m.Insert(ctx, TableProfiles, row))
	row["username"] = "mutated"

	rows, err := m.Select(ctx, TableProfiles, nil, SelectOptions{})
	require.NoError(t, err)
	rows[0]["username"] = "mutated too"

	rows, err = m.Select(ctx, TableProfiles, nil, SelectOptions{})
	require.NoError(t, err)
	assert.Equal(t, "amy", rows[0].String("username"))
}

func TestMemoryFailNext(t *testing.T) {
	m := newMemory(t)
	ctx := context.Background()
	boom := errors.New("boom")

	m.FailNext(OperationInsert, TableFollows, boom)
	assert.ErrorIs(t, m.Insert(ctx, TableFollows, follow("a", "b", time.Now())), boom)

	rows, err := m.Select(ctx, TableFollows, nil, SelectOptions{})
	require.NoError(t, err)
	assert.Empty(t, rows)

	assert.NoError(t, m.Insert(ctx, TableFollows, follow("a", "b", time.Now())))
}

func TestMemoryPublishesChanges(t *testing.T) {
	m := newMemory(t)
	ctx := context.Background()

	events := make(chan ChangeEvent, 4)
	sub, err := m.Subscribe(ctx, TableFollows, Where(Eq("following_id", "b")), func(e ChangeEvent) { events <- e })
	require.NoError(t, err)

	require.NoError(t, m.Insert(ctx, TableFollows, follow("x", "other", time.Now())))
	require.NoError(t, m.Insert(ctx, TableFollows, follow("a", "b", time.Now())))
	_, err = m.Delete(ctx, TableFollows, Where(Eq("follower_id", "a")))
	require.NoError(t, err)

	first := <-events
	assert.Equal(t, ChangeInsert, first.Type)
	assert.Equal(t, "a", first.Record.String("follower_id"))

	second := <-events
	assert.Equal(t, ChangeDelete, second.Type)
	assert.Equal(t, "b", second.Old.String("following_id"))

	m.Unsubscribe(sub)
	m.Unsubscribe(sub)
	assert.Equal(t, 0, m.Subscriptions())
}

func TestMemoryClosed(t *testing.T) {
	m := NewMemory(discardLogger())
	require.NoError(t, m.Close())

	ctx := context.Background()
	assert.ErrorIs(t, m.Insert(ctx, TableFollows, follow("a", "b", time.Now())), infrastructure.ErrBackendClosed)
	_, err := m.Subscribe(ctx, TableFollows, nil, func(ChangeEvent) {})
	assert.ErrorIs(t, err, infrastructure.ErrBackendClosed)
}
