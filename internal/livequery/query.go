package livequery

import (
	"context"
	"fmt"
)

// Op is a filter comparison.
type Op string

const (
	Eq     Op = "=="
	Lt     Op = "<"
	Lte    Op = "<="
	Gt     Op = ">"
	Gte    Op = ">="
	Prefix Op = "prefix"
)

func (o Op) valid() bool {
	switch o {
	case Eq, Lt, Lte, Gt, Gte, Prefix:
		return true
	}
	return false
}

// Filter restricts a query to documents whose field compares to Value.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Order sorts query results by a field.
type Order struct {
	Field string
	Desc  bool
}

// Query is a filtered, ordered view of one collection.
type Query struct {
	Path    Path
	Filters []Filter
	Orders  []Order
	Limit   int
}

// NewQuery starts a query over path.
func NewQuery(path Path) Query {
	return Query{Path: path}
}

// Where returns a copy of q with an extra filter.
func (q Query) Where(field string, op Op, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Op: op, Value: value})
	return q
}

// OrderBy returns a copy of q with an extra sort key.
func (q Query) OrderBy(field string, desc bool) Query {
	q.Orders = append(append([]Order(nil), q.Orders...), Order{Field: field, Desc: desc})
	return q
}

// WithLimit returns a copy of q limited to n documents.
func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

// Validate checks the query is well formed.
func (q Query) Validate() error {
	if !q.Path.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPath, q.Path.String())
	}
	for _, f := range q.Filters {
		if f.Field == "" {
			return fmt.Errorf("filter has no field")
		}
		if !f.Op.valid() {
			return fmt.Errorf("unsupported filter op %q", f.Op)
		}
	}
	for _, o := range q.Orders {
		if o.Field == "" {
			return fmt.Errorf("order has no field")
		}
	}
	if q.Limit < 0 {
		return fmt.Errorf("negative limit")
	}
	return nil
}

// Document is a raw record as returned by a Source.
type Document struct {
	ID     string
	Path   Path
	Fields map[string]any
}

// Source runs a query and returns the complete current result set.
type Source interface {
	Fetch(ctx context.Context, q Query) ([]Document, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, q Query) ([]Document, error)

func (f SourceFunc) Fetch(ctx context.Context, q Query) ([]Document, error) {
	return f(ctx, q)
}
