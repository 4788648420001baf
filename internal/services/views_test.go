package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tripwise-backend/internal/clock"
	"tripwise-backend/internal/listdiff"
	"tripwise-backend/internal/livequery"
	"tripwise-backend/internal/models"
	"tripwise-backend/internal/wire"

	"github.com/go-playground/assert/v2"
)

type rendered struct {
	section string
	count   int
	ops     any
}

type chanSink struct {
	renders chan rendered
	fails   chan error
}

func newChanSink() *chanSink {
	return &chanSink{renders: make(chan rendered, 16), fails: make(chan error, 1)}
}

func (s *chanSink) Render(section string, seq uint64, count int, ops any) {
	s.renders <- rendered{section: section, count: count, ops: ops}
}

func (s *chanSink) Fail(err error) { s.fails <- err }

func (s *chanSink) next(t *testing.T) rendered {
	t.Helper()
	select {
	case r := <-s.renders:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no render")
	}
	return rendered{}
}

func tripDoc(uid, id, start string) livequery.Document {
	return livequery.Document{
		ID:   id,
		Path: tripsPath(uid),
		Fields: map[string]any{
			"destination": "Somewhere",
			"start_date":  start,
			"type":        "UPCOMING",
		},
	}
}

func TestHomeViewSectionsByToday(t *testing.T) {
	source := livequery.SourceFunc(func(ctx context.Context, q livequery.Query) ([]livequery.Document, error) {
		return []livequery.Document{
			tripDoc("u1", "old", "2025-06-01"),
			tripDoc("u1", "today", "2025-07-01"),
			tripDoc("u1", "soon", "2025-08-01"),
		}, nil
	})
	engine := livequery.NewEngine(source)
	defer engine.Close()
	reg := NewViewRegistry(engine, clock.Fake(time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)))

	sink := newChanSink()
	view, err := reg.Open(context.Background(), "u1", ViewHome, nil, sink)
	assert.Equal(t, nil, err)
	defer view.Close()

	upcoming := sink.next(t)
	assert.Equal(t, SectionUpcoming, upcoming.section)
	assert.Equal(t, 2, upcoming.count)

	past := sink.next(t)
	assert.Equal(t, SectionPast, past.section)
	assert.Equal(t, 1, past.count)
	ops := past.ops.([]listdiff.Op[models.Trip])
	assert.Equal(t, "old", ops[0].Key)
	assert.Equal(t, models.TripTypePast, ops[0].Item.Type)
}

func TestViewFailureReachesSink(t *testing.T) {
	boom := errors.New("boom")
	engine := livequery.NewEngine(livequery.SourceFunc(func(ctx context.Context, q livequery.Query) ([]livequery.Document, error) {
		return nil, boom
	}))
	defer engine.Close()
	reg := NewViewRegistry(engine, clock.Real())

	sink := newChanSink()
	view, err := reg.Open(context.Background(), "u1", ViewFeed, nil, sink)
	assert.Equal(t, nil, err)
	defer view.Close()

	select {
	case err := <-sink.fails:
		assert.Equal(t, true, errors.Is(err, boom))
	case <-time.After(2 * time.Second):
		t.Fatal("no failure")
	}
}

func TestOpenViewValidatesParams(t *testing.T) {
	engine := livequery.NewEngine(livequery.SourceFunc(func(ctx context.Context, q livequery.Query) ([]livequery.Document, error) {
		return nil, nil
	}))
	defer engine.Close()
	reg := NewViewRegistry(engine, clock.Real())
	ctx := context.Background()

	_, err := reg.Open(ctx, "u1", "nope", nil, newChanSink())
	assert.Equal(t, true, errors.Is(err, ErrInvalidInput))

	_, err = reg.Open(ctx, "u1", ViewTimeline, nil, newChanSink())
	assert.Equal(t, true, errors.Is(err, ErrInvalidInput))

	_, err = reg.Open(ctx, "u1", ViewTimeline, map[string]string{"trip_id": "t1", "date": "July 1"}, newChanSink())
	assert.Equal(t, true, errors.Is(err, ErrInvalidInput))

	_, err = reg.Open(ctx, "u1", ViewMessages, map[string]string{"other_user_id": "u1"}, newChanSink())
	assert.Equal(t, true, errors.Is(err, ErrInvalidInput))
	assert.Equal(t, 0, engine.Count())
}

func TestProfileQueryFiltersByID(t *testing.T) {
	q := ProfileQuery("u9")
	assert.Equal(t, "users", q.Path.String())
	assert.Equal(t, 1, len(q.Filters))
	assert.Equal(t, "u9", q.Filters[0].Value)
}

// tripList replays render ops onto per-section lists, as a client does.
type tripList struct {
	mu       sync.Mutex
	sections map[string][]models.Trip
	counts   map[string]int
	renders  chan struct{}
	fails    chan error
}

func newTripList() *tripList {
	return &tripList{
		sections: make(map[string][]models.Trip),
		counts:   make(map[string]int),
		renders:  make(chan struct{}, 64),
		fails:    make(chan error, 4),
	}
}

func (l *tripList) Render(section string, seq uint64, count int, ops any) {
	l.mu.Lock()
	l.sections[section] = listdiff.Apply(l.sections[section], ops.([]listdiff.Op[models.Trip]))
	l.counts[section] = count
	l.mu.Unlock()
	l.renders <- struct{}{}
}

func (l *tripList) Fail(err error) { l.fails <- err }

func (l *tripList) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-l.renders:
		case <-time.After(2 * time.Second):
			t.Fatal("no render")
		}
	}
}

func (l *tripList) rows(section string) (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sections[section]), l.counts[section]
}

type tripTable struct {
	mu   sync.Mutex
	docs []livequery.Document
}

func (s *tripTable) set(docs ...livequery.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = docs
}

func (s *tripTable) Fetch(ctx context.Context, q livequery.Query) ([]livequery.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]livequery.Document(nil), s.docs...), nil
}

func TestResubscribeKeepsClientRowsInStep(t *testing.T) {
	table := &tripTable{}
	table.set(tripDoc("u1", "a", "2025-08-01"))
	engine := livequery.NewEngine(table)
	defer engine.Close()
	reg := NewViewRegistry(engine, clock.Fake(time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)))

	c := NewClient("u1", nil, wire.JSON)
	defer c.Close()
	list := newTripList()
	ctx := context.Background()

	assert.Equal(t, nil, reg.Subscribe(ctx, c, "s1", ViewHome, nil, list))
	list.wait(t, 2)
	held, count := list.rows(SectionUpcoming)
	assert.Equal(t, 1, held)
	assert.Equal(t, 1, count)

	for i := 0; i < 3; i++ {
		assert.Equal(t, nil, reg.Subscribe(ctx, c, "s1", ViewHome, nil, newTripList()))
		list.wait(t, 2)
		held, count = list.rows(SectionUpcoming)
		assert.Equal(t, count, held)
		assert.Equal(t, 1, held)
	}
	assert.Equal(t, 1, c.Views())
	assert.Equal(t, 1, engine.Count())

	table.set(tripDoc("u1", "a", "2025-08-01"), tripDoc("u1", "b", "2025-06-01"))
	engine.Notify(tripsPath("u1").String())
	list.wait(t, 1)
	held, count = list.rows(SectionPast)
	assert.Equal(t, 1, held)
	assert.Equal(t, 1, count)
	held, _ = list.rows(SectionUpcoming)
	assert.Equal(t, 1, held)
}

func TestResubscribeToOtherViewIsRejected(t *testing.T) {
	table := &tripTable{}
	engine := livequery.NewEngine(table)
	defer engine.Close()
	reg := NewViewRegistry(engine, clock.Real())

	c := NewClient("u1", nil, wire.JSON)
	defer c.Close()
	ctx := context.Background()

	list := newTripList()
	assert.Equal(t, nil, reg.Subscribe(ctx, c, "s1", ViewHome, nil, list))
	list.wait(t, 2)

	err := reg.Subscribe(ctx, c, "s1", ViewFeed, nil, newChanSink())
	assert.Equal(t, true, errors.Is(err, ErrInvalidInput))
	view, ok := c.View("s1")
	assert.Equal(t, true, ok)
	assert.Equal(t, ViewHome, view.Name())
	assert.Equal(t, 1, engine.Count())

	assert.Equal(t, true, c.CloseView("s1"))
	assert.Equal(t, nil, reg.Subscribe(ctx, c, "s1", ViewFeed, nil, newChanSink()))
	view, _ = c.View("s1")
	assert.Equal(t, ViewFeed, view.Name())
	assert.Equal(t, 1, engine.Count())
}

func TestUserPostsViewFiltersByAuthor(t *testing.T) {
	queries := make(chan livequery.Query, 4)
	engine := livequery.NewEngine(livequery.SourceFunc(func(ctx context.Context, q livequery.Query) ([]livequery.Document, error) {
		queries <- q
		return []livequery.Document{{
			ID:   "p1",
			Path: sharedTripsPath(),
			Fields: map[string]any{
				"user_id":     "u2",
				"shared_text": "Lisbon!",
			},
		}}, nil
	}))
	defer engine.Close()
	reg := NewViewRegistry(engine, clock.Real())

	sink := newChanSink()
	view, err := reg.Open(context.Background(), "u1", ViewUserPosts, map[string]string{"user_id": "u2"}, sink)
	assert.Equal(t, nil, err)
	defer view.Close()

	q := <-queries
	assert.Equal(t, "shared_trips", q.Path.String())
	assert.Equal(t, 1, len(q.Filters))
	assert.Equal(t, "user_id", q.Filters[0].Field)
	assert.Equal(t, "u2", q.Filters[0].Value)
	assert.Equal(t, "timestamp", q.Orders[0].Field)
	assert.Equal(t, true, q.Orders[0].Desc)

	r := sink.next(t)
	assert.Equal(t, 1, r.count)
	ops := r.ops.([]listdiff.Op[models.SharedTrip])
	assert.Equal(t, "Lisbon!", ops[0].Item.SharedText)
}
