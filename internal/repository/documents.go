package repository

import (
	"context"
	"fmt"
	"strings"

	"tripwise-backend/internal/livequery"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// collection maps a path pattern onto a table. Binds name the column that
// holds each document id of the path, keyed by the collection segment that
// precedes it.
type collection struct {
	table   string
	columns []string
	binds   map[string]string
}

var collections = map[string]collection{
	"users": {
		table:   "users",
		columns: []string{"id", "username", "lowercase_username", "email", "profile_picture_url", "friends", "created_at"},
	},
	"users/*/trips": {
		table: "trips",
		columns: []string{"id", "user_id", "destination", "start_date", "end_date", "type",
			"flights", "accommodation", "notes", "image_urls", "invited_friends"},
		binds: map[string]string{"users": "user_id"},
	},
	"users/*/trips/*/timeline": {
		table:   "timeline_items",
		columns: []string{"id", "trip_id", "date", "time", "description", "notes", "image_urls"},
		binds:   map[string]string{"users": "user_id", "trips": "trip_id"},
	},
	"shared_trips": {
		table: "shared_trips",
		columns: []string{"id", "user_id", "username", "profile_picture_url", "shared_text",
			"image_urls", "timestamp", "original_trip_id"},
	},
	"users/*/friends": {
		table:   "friends",
		columns: []string{"id", "owner_id", "username", "email", "profile_picture_url", "added_at"},
		binds:   map[string]string{"users": "owner_id"},
	},
	"users/*/conversations": {
		table: "conversations",
		columns: []string{"id", "owner_id", "participants", "last_message", "last_message_sender_id",
			"other_user_username", "other_user_profile_picture_url", "last_updated"},
		binds: map[string]string{"users": "owner_id"},
	},
	"conversations/*/messages": {
		table:   "messages",
		columns: []string{"id", "conversation_id", "sender_id", "text", "timestamp"},
		binds:   map[string]string{"conversations": "conversation_id"},
	},
}

// DocumentSource serves live queries from the relational tables.
type DocumentSource struct {
	db *pgxpool.Pool
}

// NewDocumentSource creates a document source over db.
func NewDocumentSource(db *pgxpool.Pool) *DocumentSource {
	return &DocumentSource{db: db}
}

// Fetch runs q and returns every matching row as a document.
func (s *DocumentSource) Fetch(ctx context.Context, q livequery.Query) ([]livequery.Document, error) {
	sql, args, err := buildQuery(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Path.Pattern(), err)
	}
	records, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", q.Path.Pattern(), err)
	}

	docs := make([]livequery.Document, 0, len(records))
	for _, rec := range records {
		id, _ := rec["id"].(string)
		docs = append(docs, livequery.Document{ID: id, Path: q.Path, Fields: rec})
	}
	return docs, nil
}

func buildQuery(q livequery.Query) (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	c, ok := collections[q.Path.Pattern()]
	if !ok {
		return "", nil, fmt.Errorf("%w: no collection at %s", livequery.ErrInvalidPath, q.Path.Pattern())
	}

	known := make(map[string]bool, len(c.columns))
	cols := make([]string, len(c.columns))
	for i, col := range c.columns {
		known[col] = true
		cols[i] = pgx.Identifier{col}.Sanitize()
	}

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	// Path binds come first and in a fixed order.
	for _, seg := range []string{"users", "trips", "conversations"} {
		col, ok := c.binds[seg]
		if !ok {
			continue
		}
		where = append(where, fmt.Sprintf("%s = %s", pgx.Identifier{col}.Sanitize(), arg(q.Path.Param(seg))))
	}

	for _, f := range q.Filters {
		if !known[f.Field] {
			return "", nil, fmt.Errorf("unknown field %q in %s", f.Field, c.table)
		}
		col := pgx.Identifier{f.Field}.Sanitize()
		switch f.Op {
		case livequery.Prefix:
			where = append(where, fmt.Sprintf("starts_with(%s, %s)", col, arg(f.Value)))
		default:
			where = append(where, fmt.Sprintf("%s %s %s", col, sqlOp(f.Op), arg(f.Value)))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(cols, ", "), pgx.Identifier{c.table}.Sanitize())
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}

	order := make([]string, 0, len(q.Orders)+1)
	for _, o := range q.Orders {
		if !known[o.Field] {
			return "", nil, fmt.Errorf("unknown field %q in %s", o.Field, c.table)
		}
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		order = append(order, pgx.Identifier{o.Field}.Sanitize()+" "+dir)
	}
	// Ties break on id so snapshots are stable.
	order = append(order, `"id" ASC`)
	b.WriteString(" ORDER BY ")
	b.WriteString(strings.Join(order, ", "))

	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	return b.String(), args, nil
}

func sqlOp(op livequery.Op) string {
	if op == livequery.Eq {
		return "="
	}
	return string(op)
}
