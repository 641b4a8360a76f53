package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/nats-io/nats.go"
)

// NotifyChannel is the Postgres channel the change triggers notify on.
const NotifyChannel = "looped_changes"

// LocalFeed publishes this instance's writes straight to its own hub. It is
// enough for a single gateway instance.
type LocalFeed struct {
	mu      sync.RWMutex
	publish func(ChangeEvent)
}

func NewLocalFeed() *LocalFeed {
	return &LocalFeed{}
}

func (f *LocalFeed) Start(ctx context.Context, publish func(ChangeEvent)) error {
	f.mu.Lock()
	f.publish = publish
	f.mu.Unlock()
	return nil
}

func (f *LocalFeed) Announce(ctx context.Context, event ChangeEvent) error {
	f.mu.RLock()
	publish := f.publish
	f.mu.RUnlock()
	if publish != nil {
		publish(event)
	}
	return nil
}

func (f *LocalFeed) Close() error {
	f.mu.Lock()
	f.publish = nil
	f.mu.Unlock()
	return nil
}

// ListenerFeed receives changes from the database itself: triggers installed
// by the migration call pg_notify for every committed row change, so writes
// made by any client show up, not only the ones made through this gateway.
type ListenerFeed struct {
	dsn      string
	logger   *slog.Logger
	listener *pq.Listener
	done     chan struct{}
}

func NewListenerFeed(dsn string, logger *slog.Logger) *ListenerFeed {
	return &ListenerFeed{dsn: dsn, logger: logger, done: make(chan struct{})}
}

func (f *ListenerFeed) Start(ctx context.Context, publish func(ChangeEvent)) error {
	f.listener = pq.NewListener(f.dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			f.logger.Error("postgres listener event", "event", ev, "error", err)
		}
	})
	if err := f.listener.Listen(NotifyChannel); err != nil {
		f.listener.Close()
		return fmt.Errorf("failed to listen on %s: %w", NotifyChannel, err)
	}

	go func() {
		for {
			select {
			case <-f.done:
				return
			case n, ok := <-f.listener.Notify:
				if !ok {
					return
				}
				// nil notification: the connection was re-established and
				// events may have been missed.
				if n == nil {
					f.logger.Warn("postgres listener reconnected")
					continue
				}
				event, err := decodeChange([]byte(n.Extra))
				if err != nil {
					f.logger.Error("failed to decode change notification", "error", err)
					continue
				}
				publish(event)
			case <-time.After(90 * time.Second):
				go f.listener.Ping()
			}
		}
	}()
	return nil
}

func (f *ListenerFeed) Announce(ctx context.Context, event ChangeEvent) error {
	return nil
}

func (f *ListenerFeed) Close() error {
	select {
	case <-f.done:
		return nil
	default:
		close(f.done)
	}
	if f.listener == nil {
		return nil
	}
	return f.listener.Close()
}

// NATSFeed spreads writes between gateway instances over NATS subjects named
// <prefix>.<table>.
type NATSFeed struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
	sub    *nats.Subscription
}

func NewNATSFeed(conn *nats.Conn, prefix string, logger *slog.Logger) *NATSFeed {
	return &NATSFeed{conn: conn, prefix: strings.TrimSuffix(prefix, "."), logger: logger}
}

func (f *NATSFeed) Start(ctx context.Context, publish func(ChangeEvent)) error {
	sub, err := f.conn.Subscribe(f.prefix+".>", func(msg *nats.Msg) {
		event, err := decodeChange(msg.Data)
		if err != nil {
			f.logger.Error("failed to decode change message", "subject", msg.Subject, "error", err)
			return
		}
		publish(event)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s.>: %w", f.prefix, err)
	}
	f.sub = sub
	return nil
}

func (f *NATSFeed) Announce(ctx context.Context, event ChangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode change: %w", err)
	}
	subject := f.prefix + "." + string(event.Table)
	if err := f.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

func (f *NATSFeed) Close() error {
	if f.sub != nil {
		if err := f.sub.Unsubscribe(); err != nil {
			return err
		}
	}
	return f.conn.Drain()
}

func decodeChange(data []byte) (ChangeEvent, error) {
	var event ChangeEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return ChangeEvent{}, err
	}
	if err := validateTable(event.Table); err != nil {
		return ChangeEvent{}, err
	}
	return event, nil
}
