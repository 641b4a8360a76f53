package backend

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"looped/infrastructure"
)

const listenerBuffer = 16

// Hub fans change events out to subscribers. Each subscription owns a
// buffered channel drained by its own goroutine, so a slow handler never
// blocks the writer that published the event.
type Hub struct {
	logger    *slog.Logger
	listeners sync.Map
	closed    atomic.Bool
}

type listener struct {
	sub      *Subscription
	events   chan ChangeEvent
	onChange func(ChangeEvent)
	done     chan struct{}
	stop     sync.Once
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{logger: logger}
}

func (h *Hub) Subscribe(table Table, filter Filter, onChange func(ChangeEvent)) (*Subscription, error) {
	if h.closed.Load() {
		return nil, infrastructure.ErrBackendClosed
	}
	if err := validateTable(table); err != nil {
		return nil, err
	}
	if err := validateFilter(table, filter); err != nil {
		return nil, err
	}
	if !filter.equalityOnly() {
		return nil, fmt.Errorf("%w: realtime filters support equality only", infrastructure.ErrInvalidInput)
	}
	if !filter.keyColumnsOnly() {
		return nil, fmt.Errorf("%w: realtime filters support key columns only", infrastructure.ErrInvalidInput)
	}

	l := &listener{
		sub:      &Subscription{ID: uuid.NewString(), Table: table, Filter: filter},
		events:   make(chan ChangeEvent, listenerBuffer),
		onChange: onChange,
		done:     make(chan struct{}),
	}
	h.listeners.Store(l.sub.ID, l)
	go h.run(l)

	return l.sub, nil
}

func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	if v, ok := h.listeners.LoadAndDelete(sub.ID); ok {
		v.(*listener).close()
	}
}

// Publish delivers the event to every matching subscription. When a
// subscriber's buffer is full the event is dropped for that subscriber: the
// events it already has queued trigger a full reload anyway.
func (h *Hub) Publish(event ChangeEvent) {
	if h.closed.Load() {
		return
	}
	subject := event.Subject()
	h.listeners.Range(func(_, v any) bool {
		l := v.(*listener)
		if l.sub.Table != event.Table || !l.sub.Filter.Matches(subject) {
			return true
		}
		select {
		case l.events <- event:
		case <-l.done:
		default:
			h.logger.Warn("dropping change event for busy subscriber",
				"subscription", l.sub.ID, "table", event.Table, "type", event.Type)
		}
		return true
	})
}

func (h *Hub) Len() int {
	n := 0
	h.listeners.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (h *Hub) Close() {
	if !h.closed.CompareAndSwap(false, true) {
		return
	}
	h.listeners.Range(func(k, v any) bool {
		h.listeners.Delete(k)
		v.(*listener).close()
		return true
	})
}

func (h *Hub) run(l *listener) {
	for {
		select {
		case <-l.done:
			return
		case event := <-l.events:
			h.dispatch(l, event)
		}
	}
}

func (h *Hub) dispatch(l *listener, event ChangeEvent) {
	defer func() {
		if p := recover(); p != nil {
			h.logger.Error("change handler panicked", "subscription", l.sub.ID, "table", event.Table, "panic", p)
		}
	}()
	l.onChange(event)
}

func (l *listener) close() {
	l.stop.Do(func() { close(l.done) })
}
