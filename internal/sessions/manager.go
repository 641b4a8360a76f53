package sessions

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"looped/config"
	"looped/infrastructure"
	"looped/internal/social"
)

// StoreFactory builds an unstarted store for a user.
type StoreFactory interface {
	NewStore(userID string) *social.Store
}

// Manager keeps one started social.Store per signed-in user and closes the
// ones nobody has used for the idle TTL.
type Manager struct {
	factory StoreFactory
	idleTTL time.Duration
	logger  *slog.Logger
	now     func() time.Time
	active  prometheus.Gauge

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

func NewManager(factory StoreFactory, cfg *config.Config, registry prometheus.Registerer, logger *slog.Logger) *Manager {
	active := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "looped_active_sessions",
		Help: "Sessions with a live social graph store.",
	})
	registry.MustRegister(active)

	return &Manager{
		factory:  factory,
		idleTTL:  cfg.GetIdleTTL(),
		logger:   logger,
		now:      time.Now,
		active:   active,
		sessions: make(map[string]*Session),
	}
}

// Acquire returns the user's store, creating and starting it on first use.
// Concurrent first calls for the same user share one store.
func (m *Manager) Acquire(ctx context.Context, userID string) (*social.Store, error) {
	if userID == "" {
		return nil, infrastructure.ErrUnauthorized
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, infrastructure.ErrSessionClosed
	}
	if sess, ok := m.sessions[userID]; ok {
		sess.LastSeen = m.now()
		m.mu.Unlock()
		return m.wait(ctx, sess)
	}

	now := m.now()
	sess := &Session{
		UserID:    userID,
		Store:     m.factory.NewStore(userID),
		StartedAt: now,
		LastSeen:  now,
		ready:     make(chan struct{}),
	}
	m.sessions[userID] = sess
	m.active.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	err := sess.Store.Start(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to start session", "user_id", userID, "error", err)
		m.remove(userID, sess)
		sess.Store.Close()
	} else {
		m.logger.InfoContext(ctx, "session started", "user_id", userID)
	}
	sess.err = err
	close(sess.ready)

	if err != nil {
		return nil, err
	}
	return sess.Store, nil
}

func (m *Manager) wait(ctx context.Context, sess *Session) (*social.Store, error) {
	select {
	case <-sess.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if sess.err != nil {
		return nil, sess.err
	}
	return sess.Store, nil
}

// End closes the user's session, if any. Its realtime subscriptions are torn
// down so no event for this user is delivered afterwards.
func (m *Manager) End(userID string) {
	m.mu.Lock()
	sess, ok := m.sessions[userID]
	if ok {
		delete(m.sessions, userID)
		m.active.Set(float64(len(m.sessions)))
	}
	m.mu.Unlock()

	if ok {
		sess.Store.Close()
		m.logger.Info("session ended", "user_id", userID)
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Run closes idle sessions until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	interval := m.idleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Info("closed idle sessions", "count", n)
			}
		}
	}
}

// Sweep closes every started session idle for longer than the TTL and
// reports how many it closed.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.idleTTL)

	m.mu.Lock()
	var idle []*Session
	for id, sess := range m.sessions {
		if !sess.LastSeen.Before(cutoff) {
			continue
		}
		select {
		case <-sess.ready:
		default:
			continue
		}
		idle = append(idle, sess)
		delete(m.sessions, id)
	}
	m.active.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	for _, sess := range idle {
		sess.Store.Close()
	}
	return len(idle)
}

// Close ends every session. Acquire fails afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.active.Set(0)
	m.mu.Unlock()

	for _, sess := range all {
		sess.Store.Close()
	}
}

func (m *Manager) remove(userID string, sess *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[userID] == sess {
		delete(m.sessions, userID)
		m.active.Set(float64(len(m.sessions)))
	}
}
