package backend

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"looped/infrastructure"
)

type Operation string

const (
	OperationInsert Operation = "insert"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
	OperationSelect Operation = "select"
)

type faultKey struct {
	op    Operation
	table Table
}

// Memory is an in-process Backend with the same uniqueness constraints and
// change notifications as the Postgres one. It backs tests and local runs.
type Memory struct {
	mu     sync.Mutex
	tables map[Table][]Row
	faults map[faultKey][]error
	closed bool

	hub *Hub
	now func() time.Time
}

func NewMemory(logger *slog.Logger) *Memory {
	return &Memory{
		tables: make(map[Table][]Row),
		faults: make(map[faultKey][]error),
		hub:    NewHub(logger),
		now:    time.Now,
	}
}

// FailNext makes the next call of op against table return err without
// touching any data. Calls queue up in order.
func (m *Memory) FailNext(op Operation, table Table, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := faultKey{op: op, table: table}
	m.faults[k] = append(m.faults[k], err)
}

func (m *Memory) Insert(ctx context.Context, table Table, row Row) error {
	if err := validateTable(table); err != nil {
		return err
	}
	if err := validateRow(table, row); err != nil {
		return err
	}

	m.mu.Lock()
	if err := m.precheck(OperationInsert, table); err != nil {
		m.mu.Unlock()
		return err
	}
	record := copyRow(row)
	if err := m.checkUnique(table, record, -1); err != nil {
		m.mu.Unlock()
		return err
	}
	m.tables[table] = append(m.tables[table], record)
	event := ChangeEvent{Table: table, Type: ChangeInsert, Record: copyRow(record), CommitTime: m.now()}
	m.mu.Unlock()

	m.hub.Publish(event)
	return nil
}

func (m *Memory) Update(ctx context.Context, table Table, match Filter, set Row) (int64, error) {
	if err := validateTable(table); err != nil {
		return 0, err
	}
	if err := validateFilter(table, match); err != nil {
		return 0, err
	}
	if err := validateRow(table, set); err != nil {
		return 0, err
	}

	m.mu.Lock()
	if err := m.precheck(OperationUpdate, table); err != nil {
		m.mu.Unlock()
		return 0, err
	}

	rows := m.tables[table]
	updated := make(map[int]Row)
	for i, row := range rows {
		if !match.Matches(row) {
			continue
		}
		next := copyRow(row)
		for k, v := range set {
			next[k] = v
		}
		if err := m.checkUnique(table, next, i); err != nil {
			m.mu.Unlock()
			return 0, err
		}
		updated[i] = next
	}

	events := make([]ChangeEvent, 0, len(updated))
	for i, next := range updated {
		events = append(events, ChangeEvent{
			Table: table, Type: ChangeUpdate, Record: copyRow(next), Old: copyRow(rows[i]), CommitTime: m.now(),
		})
		rows[i] = next
	}
	m.mu.Unlock()

	for _, e := range events {
		m.hub.Publish(e)
	}
	return int64(len(events)), nil
}

func (m *Memory) Delete(ctx context.Context, table Table, match Filter) (int64, error) {
	if err := validateTable(table); err != nil {
		return 0, err
	}
	if err := validateFilter(table, match); err != nil {
		return 0, err
	}

	m.mu.Lock()
	if err := m.precheck(OperationDelete, table); err != nil {
		m.mu.Unlock()
		return 0, err
	}

	var kept []Row
	var events []ChangeEvent
	for _, row := range m.tables[table] {
		if match.Matches(row) {
			events = append(events, ChangeEvent{Table: table, Type: ChangeDelete, Old: copyRow(row), CommitTime: m.now()})
			continue
		}
		kept = append(kept, row)
	}
	m.tables[table] = kept
	m.mu.Unlock()

	for _, e := range events {
		m.hub.Publish(e)
	}
	return int64(len(events)), nil
}

func (m *Memory) Select(ctx context.Context, table Table, filter Filter, opts SelectOptions) ([]Row, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}
	if err := validateFilter(table, filter); err != nil {
		return nil, err
	}
	for _, o := range opts.OrderBy {
		if err := validateColumn(table, o.Column); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	if err := m.precheck(OperationSelect, table); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	var out []Row
	for _, row := range m.tables[table] {
		if filter.Matches(row) {
			out = append(out, copyRow(row))
		}
	}
	m.mu.Unlock()

	if len(opts.OrderBy) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range opts.OrderBy {
				c := compareValues(out[i][o.Column], out[j][o.Column])
				if c == 0 {
					continue
				}
				if o.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *Memory) Subscribe(ctx context.Context, table Table, filter Filter, onChange func(ChangeEvent)) (*Subscription, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, infrastructure.ErrBackendClosed
	}
	return m.hub.Subscribe(table, filter, onChange)
}

func (m *Memory) Unsubscribe(sub *Subscription) {
	m.hub.Unsubscribe(sub)
}

// Subscriptions reports how many realtime subscriptions are open.
func (m *Memory) Subscriptions() int {
	return m.hub.Len()
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.hub.Close()
	return nil
}

// precheck must be called with m.mu held.
func (m *Memory) precheck(op Operation, table Table) error {
	if m.closed {
		return infrastructure.ErrBackendClosed
	}
	k := faultKey{op: op, table: table}
	if queued := m.faults[k]; len(queued) > 0 {
		m.faults[k] = queued[1:]
		return queued[0]
	}
	return nil
}

// checkUnique must be called with m.mu held. skip is the index of the row
// being replaced, or -1 for an insert.
func (m *Memory) checkUnique(table Table, candidate Row, skip int) error {
	for _, key := range uniqueKeys[table] {
		for i, row := range m.tables[table] {
			if i == skip {
				continue
			}
			if sameKey(key, row, candidate) {
				return fmt.Errorf("%w: %s(%s)", infrastructure.ErrConflict, table, strings.Join(key, ", "))
			}
		}
	}
	return nil
}

func sameKey(key []string, a, b Row) bool {
	for _, column := range key {
		av, aok := a[column]
		bv, bok := b[column]
		if !aok || !bok || !sameValue(av, bv) {
			return false
		}
	}
	return true
}

func copyRow(row Row) Row {
	out := make(Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

func compareValues(a, b any) int {
	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	case int:
		if bv, ok := b.(int); ok {
			return av - bv
		}
	case int64:
		if bv, ok := b.(int64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case bool:
		if bv, ok := b.(bool); ok && av != bv {
			if av {
				return 1
			}
			return -1
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
