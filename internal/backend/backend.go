// Package backend is the contract between the gateway and the managed
// relational + realtime service it sits in front of.
//
// Rows cross this boundary loosely typed. Callers convert them into their own
// record types immediately, the same way storage rows are mapped elsewhere.
package backend

import (
	"context"
	"fmt"
	"time"

	"looped/infrastructure"
)

type Table string

const (
	TableProfiles       Table = "profiles"
	TableFollows        Table = "follows"
	TableFollowRequests Table = "follow_requests"
	TablePosts          Table = "posts"
)

// Columns lists the columns each table exposes. Anything else is rejected
// before it reaches SQL.
var Columns = map[Table][]string{
	TableProfiles: {
		"id", "username", "display_name", "bio", "avatar_ref",
		"is_verified", "is_public", "created_at", "updated_at",
	},
	TableFollows:        {"follower_id", "following_id", "created_at"},
	TableFollowRequests: {"id", "follower_id", "following_id", "created_at", "follower_profile"},
	TablePosts:          {"id", "author_id", "period", "kind", "items", "created_at"},
}

// ChangeKeyColumns are the only columns a change notification is guaranteed
// to carry, so they are the only columns a subscription may filter on.
var ChangeKeyColumns = []string{"id", "follower_id", "following_id", "author_id"}

// uniqueKeys are the uniqueness constraints the backend enforces per table.
var uniqueKeys = map[Table][][]string{
	TableProfiles:       {{"id"}, {"username"}},
	TableFollows:        {{"follower_id", "following_id"}},
	TableFollowRequests: {{"id"}, {"follower_id", "following_id"}},
	TablePosts:          {{"id"}},
}

type Row map[string]any

type Op string

const (
	OpEq Op = "eq"
	OpIn Op = "in"
)

type Condition struct {
	Column string
	Op     Op
	Value  any
}

// Filter is a conjunction of conditions. An empty filter matches every row.
type Filter []Condition

func Eq(column string, value any) Condition {
	return Condition{Column: column, Op: OpEq, Value: value}
}

func In(column string, values []string) Condition {
	return Condition{Column: column, Op: OpIn, Value: values}
}

func Where(conditions ...Condition) Filter {
	return Filter(conditions)
}

type Order struct {
	Column string
	Desc   bool
}

type SelectOptions struct {
	OrderBy []Order
	Limit   int
}

type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

type ChangeEvent struct {
	Table      Table      `json:"table"`
	Type       ChangeType `json:"type"`
	Record     Row        `json:"record,omitempty"`
	Old        Row        `json:"old,omitempty"`
	CommitTime time.Time  `json:"commit_time"`
}

// Subject returns the row a subscription filter is matched against.
func (e ChangeEvent) Subject() Row {
	if e.Type == ChangeDelete {
		return e.Old
	}
	return e.Record
}

type Subscription struct {
	ID     string
	Table  Table
	Filter Filter
}

type Backend interface {
	Insert(ctx context.Context, table Table, row Row) error
	Update(ctx context.Context, table Table, match Filter, set Row) (int64, error)
	Delete(ctx context.Context, table Table, match Filter) (int64, error)
	Select(ctx context.Context, table Table, filter Filter, opts SelectOptions) ([]Row, error)
	Subscribe(ctx context.Context, table Table, filter Filter, onChange func(ChangeEvent)) (*Subscription, error)
	Unsubscribe(sub *Subscription)
	Close() error
}

func validateTable(table Table) error {
	if _, ok := Columns[table]; !ok {
		return fmt.Errorf("%w: %s", infrastructure.ErrUnknownTable, table)
	}
	return nil
}

func validateColumn(table Table, column string) error {
	for _, c := range Columns[table] {
		if c == column {
			return nil
		}
	}
	return fmt.Errorf("%w: %s.%s", infrastructure.ErrUnknownColumn, table, column)
}

func validateFilter(table Table, filter Filter) error {
	for _, c := range filter {
		if err := validateColumn(table, c.Column); err != nil {
			return err
		}
		switch c.Op {
		case OpEq:
		case OpIn:
			if _, ok := c.Value.([]string); !ok {
				return fmt.Errorf("%w: %s expects []string", infrastructure.ErrInvalidInput, c.Column)
			}
		default:
			return fmt.Errorf("%w: operator %q", infrastructure.ErrInvalidInput, c.Op)
		}
	}
	return nil
}

func validateRow(table Table, row Row) error {
	for column := range row {
		if err := validateColumn(table, column); err != nil {
			return err
		}
	}
	return nil
}

// Matches reports whether row satisfies every condition of the filter.
func (f Filter) Matches(row Row) bool {
	for _, c := range f {
		v, ok := row[c.Column]
		if !ok {
			return false
		}
		switch c.Op {
		case OpEq:
			if !sameValue(v, c.Value) {
				return false
			}
		case OpIn:
			values, _ := c.Value.([]string)
			found := false
			for _, candidate := range values {
				if sameValue(v, candidate) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

// equalityOnly reports whether the filter can be evaluated by the realtime
// channel, which only understands column equality.
func (f Filter) equalityOnly() bool {
	for _, c := range f {
		if c.Op != OpEq {
			return false
		}
	}
	return true
}

func (f Filter) keyColumnsOnly() bool {
	for _, c := range f {
		found := false
		for _, k := range ChangeKeyColumns {
			if c.Column == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// sameValue compares column values that may have travelled through JSON, where
// every scalar collapses to a string, float64 or bool.
func sameValue(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}
