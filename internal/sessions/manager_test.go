package sessions

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"looped/config"
	"looped/infrastructure"
	"looped/internal/backend"
	"looped/internal/profile"
	"looped/internal/social"
)

func newTestManager(t *testing.T) (*Manager, *backend.Memory) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := backend.NewMemory(logger)
	t.Cleanup(func() { _ = mem.Close() })

	profiles := profile.NewService(profile.NewRepository(mem), logger)
	service := social.NewService(social.NewRepository(mem, logger), profiles, logger)
	cfg := &config.Config{Sessions: config.SessionsConfig{IdleTTL: 30}}

	m := NewManager(service, cfg, prometheus.NewRegistry(), logger)
	t.Cleanup(m.Close)
	return m, mem
}

func TestAcquireReusesStore(t *testing.T) {
	m, mem := newTestManager(t)
	ctx := context.Background()

	first, err := m.Acquire(ctx, "u1")
	require.NoError(t, err)
	second, err := m.Acquire(ctx, "u1")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 4, mem.Subscriptions())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.active))
}

func TestConcurrentAcquireCreatesOneStore(t *testing.T) {
	m, mem := newTestManager(t)
	ctx := context.Background()

	stores := make([]*social.Store, 8)
	var wg sync.WaitGroup
	for i := range stores {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := m.Acquire(ctx, "u1")
			assert.NoError(t, err)
			stores[i] = s
		}(i)
	}
	wg.Wait()

	for _, s := range stores[1:] {
		assert.Same(t, stores[0], s)
	}
	assert.Equal(t, 4, mem.Subscriptions())
}

func TestAcquireRequiresUser(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Acquire(context.Background(), "")
	assert.ErrorIs(t, err, infrastructure.ErrUnauthorized)
}

func TestAcquireStartFailureIsNotKept(t *testing.T) {
	m, mem := newTestManager(t)
	boom := errors.New("down")
	mem.FailNext(backend.OperationSelect, backend.TableFollows, boom)

	_, err := m.Acquire(context.Background(), "u1")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, m.Len())

	_, err = m.Acquire(context.Background(), "u1")
	assert.NoError(t, err)
}

func TestEndTearsDownSubscriptions(t *testing.T) {
	m, mem := newTestManager(t)
	ctx := context.Background()

	store, err := m.Acquire(ctx, "u1")
	require.NoError(t, err)

	m.End("u1")
	m.End("u1")
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 0, mem.Subscriptions())

	_, err = store.Follow(ctx, "u2")
	assert.ErrorIs(t, err, infrastructure.ErrSessionClosed)

	fresh, err := m.Acquire(ctx, "u1")
	require.NoError(t, err)
	assert.NotSame(t, store, fresh)
}

func TestSweepClosesIdleSessions(t *testing.T) {
	m, mem := newTestManager(t)
	ctx := context.Background()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	_, err := m.Acquire(ctx, "idle")
	require.NoError(t, err)

	now = now.Add(20 * time.Minute)
	_, err = m.Acquire(ctx, "busy")
	require.NoError(t, err)

	now = now.Add(15 * time.Minute)
	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 4, mem.Subscriptions())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.active))
}

func TestCloseEndsEverything(t *testing.T) {
	m, mem := newTestManager(t)
	ctx := context.Background()

	_, err := m.Acquire(ctx, "u1")
	require.NoError(t, err)
	_, err = m.Acquire(ctx, "u2")
	require.NoError(t, err)

	m.Close()
	assert.Equal(t, 0, mem.Subscriptions())

	_, err = m.Acquire(ctx, "u1")
	assert.ErrorIs(t, err, infrastructure.ErrSessionClosed)
}
