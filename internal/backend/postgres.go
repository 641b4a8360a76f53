package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"looped/infrastructure"
)

// ChangeFeed carries committed writes to every gateway instance. Start hands
// incoming events to publish; Announce is called after each successful write
// made through this instance.
type ChangeFeed interface {
	Start(ctx context.Context, publish func(ChangeEvent)) error
	Announce(ctx context.Context, event ChangeEvent) error
	Close() error
}

type Postgres struct {
	db     *sql.DB
	hub    *Hub
	feed   ChangeFeed
	logger *slog.Logger
	now    func() time.Time
}

func NewPostgres(ctx context.Context, db *sql.DB, feed ChangeFeed, logger *slog.Logger) (*Postgres, error) {
	p := &Postgres{
		db:     db,
		hub:    NewHub(logger),
		feed:   feed,
		logger: logger,
		now:    time.Now,
	}
	if err := feed.Start(ctx, p.hub.Publish); err != nil {
		return nil, fmt.Errorf("failed to start change feed: %w", err)
	}
	return p, nil
}

func (p *Postgres) Insert(ctx context.Context, table Table, row Row) error {
	if err := validateTable(table); err != nil {
		return err
	}
	if err := validateRow(table, row); err != nil {
		return err
	}

	columns := orderedColumns(table, row)
	placeholders := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, c := range columns {
		placeholders[i] = "$" + strconv.Itoa(i+1)
		args[i] = row[c]
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		return translateError(table, err)
	}

	p.announce(ctx, ChangeEvent{Table: table, Type: ChangeInsert, Record: copyRow(row), CommitTime: p.now()})
	return nil
}

func (p *Postgres) Update(ctx context.Context, table Table, match Filter, set Row) (int64, error) {
	if err := validateTable(table); err != nil {
		return 0, err
	}
	if err := validateFilter(table, match); err != nil {
		return 0, err
	}
	if err := validateRow(table, set); err != nil {
		return 0, err
	}
	if len(set) == 0 {
		return 0, nil
	}

	columns := orderedColumns(table, set)
	assignments := make([]string, len(columns))
	args := make([]any, 0, len(columns)+len(match))
	for i, c := range columns {
		args = append(args, set[c])
		assignments[i] = c + " = $" + strconv.Itoa(len(args))
	}
	where, args := buildWhere(match, args)
	query := fmt.Sprintf("UPDATE %s SET %s%s RETURNING %s",
		table, strings.Join(assignments, ", "), where, strings.Join(Columns[table], ", "))

	rows, err := p.queryRows(ctx, table, query, args...)
	if err != nil {
		return 0, translateError(table, err)
	}
	for _, r := range rows {
		p.announce(ctx, ChangeEvent{Table: table, Type: ChangeUpdate, Record: r, CommitTime: p.now()})
	}
	return int64(len(rows)), nil
}

func (p *Postgres) Delete(ctx context.Context, table Table, match Filter) (int64, error) {
	if err := validateTable(table); err != nil {
		return 0, err
	}
	if err := validateFilter(table, match); err != nil {
		return 0, err
	}

	where, args := buildWhere(match, nil)
	query := fmt.Sprintf("DELETE FROM %s%s RETURNING %s", table, where, strings.Join(Columns[table], ", "))

	rows, err := p.queryRows(ctx, table, query, args...)
	if err != nil {
		return 0, translateError(table, err)
	}
	for _, r := range rows {
		p.announce(ctx, ChangeEvent{Table: table, Type: ChangeDelete, Old: r, CommitTime: p.now()})
	}
	return int64(len(rows)), nil
}

func (p *Postgres) Select(ctx context.Context, table Table, filter Filter, opts SelectOptions) ([]Row, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}
	if err := validateFilter(table, filter); err != nil {
		return nil, err
	}

	where, args := buildWhere(filter, nil)
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s%s", strings.Join(Columns[table], ", "), table, where)
	if len(opts.OrderBy) > 0 {
		parts := make([]string, len(opts.OrderBy))
		for i, o := range opts.OrderBy {
			if err := validateColumn(table, o.Column); err != nil {
				return nil, err
			}
			parts[i] = o.Column
			if o.Desc {
				parts[i] += " DESC"
			}
		}
		b.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}
	if opts.Limit > 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(opts.Limit))
	}

	rows, err := p.queryRows(ctx, table, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select from %s: %w", table, err)
	}
	return rows, nil
}

func (p *Postgres) Subscribe(ctx context.Context, table Table, filter Filter, onChange func(ChangeEvent)) (*Subscription, error) {
	return p.hub.Subscribe(table, filter, onChange)
}

func (p *Postgres) Unsubscribe(sub *Subscription) {
	p.hub.Unsubscribe(sub)
}

func (p *Postgres) Close() error {
	p.hub.Close()
	return p.feed.Close()
}

func (p *Postgres) announce(ctx context.Context, event ChangeEvent) {
	if err := p.feed.Announce(ctx, event); err != nil {
		p.logger.ErrorContext(ctx, "failed to announce change", "table", event.Table, "type", event.Type, "error", err)
	}
}

func (p *Postgres) queryRows(ctx context.Context, table Table, query string, args ...any) ([]Row, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := Columns[table]
	var out []Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		row := make(Row, len(columns))
		for i, c := range columns {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// buildWhere appends the filter's arguments to args and returns the WHERE
// clause with placeholders numbered after the ones already present.
func buildWhere(filter Filter, args []any) (string, []any) {
	if len(filter) == 0 {
		return "", args
	}
	parts := make([]string, len(filter))
	for i, c := range filter {
		switch c.Op {
		case OpIn:
			args = append(args, pq.Array(c.Value))
			parts[i] = c.Column + " = ANY($" + strconv.Itoa(len(args)) + ")"
		default:
			args = append(args, c.Value)
			parts[i] = c.Column + " = $" + strconv.Itoa(len(args))
		}
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

func orderedColumns(table Table, row Row) []string {
	var out []string
	for _, c := range Columns[table] {
		if _, ok := row[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

func translateError(table Table, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return fmt.Errorf("%w: %s (%s)", infrastructure.ErrConflict, table, pqErr.Constraint)
	}
	return fmt.Errorf("failed to write %s: %w", table, err)
}
