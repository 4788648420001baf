package viewmodel

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"tripwise-backend/internal/listdiff"
	"tripwise-backend/internal/livequery"
	"tripwise-backend/internal/mapper"
	"tripwise-backend/internal/models"

	"github.com/go-playground/assert/v2"
)

type tableSource struct {
	mu   sync.Mutex
	rows map[string][]livequery.Document
	err  map[string]error
}

func newTableSource() *tableSource {
	return &tableSource{rows: make(map[string][]livequery.Document), err: make(map[string]error)}
}

func (s *tableSource) put(path string, trips ...models.Trip) {
	p, _ := livequery.ParsePath(path)
	docs := make([]livequery.Document, 0, len(trips))
	for _, t := range trips {
		docs = append(docs, livequery.Document{ID: t.ID, Path: p, Fields: map[string]any{
			"destination": t.Destination,
			"start_date":  t.StartDate,
		}})
	}
	s.mu.Lock()
	s.rows[path] = docs
	s.mu.Unlock()
}

func (s *tableSource) Fetch(ctx context.Context, q livequery.Query) ([]livequery.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err[q.Path.String()]; err != nil {
		return nil, err
	}
	return append([]livequery.Document(nil), s.rows[q.Path.String()]...), nil
}

// listRenderer replays patches onto its own copy of each section, the same
// way a client does.
type listRenderer struct {
	mu       sync.Mutex
	sections map[string][]models.Trip
	patches  chan Patch[models.Trip]
	errs     chan error
}

func newListRenderer() *listRenderer {
	return &listRenderer{
		sections: make(map[string][]models.Trip),
		patches:  make(chan Patch[models.Trip], 256),
		errs:     make(chan error, 8),
	}
}

func (r *listRenderer) Render(p Patch[models.Trip]) {
	r.mu.Lock()
	r.sections[p.Section] = listdiff.Apply(r.sections[p.Section], p.Ops)
	r.mu.Unlock()
	r.patches <- p
}

func (r *listRenderer) Fail(err error) { r.errs <- err }

func (r *listRenderer) section(name string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, t := range r.sections[name] {
		out = append(out, t.Destination)
	}
	return out
}

func (r *listRenderer) next(t *testing.T) Patch[models.Trip] {
	t.Helper()
	select {
	case p := <-r.patches:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for patch")
		return Patch[models.Trip]{}
	}
}

func tripSpec() Spec[models.Trip] {
	return Spec[models.Trip]{
		Kind: "trip",
		Map:  mapper.Trip,
		Key:  func(t models.Trip) string { return t.ID },
		Less: func(a, b models.Trip) bool { return a.StartDate < b.StartDate },
	}
}

func TestOpenRendersSortedSnapshot(t *testing.T) {
	src := newTableSource()
	src.put("users/u1/trips",
		models.Trip{ID: "b", Destination: "Rome", StartDate: "2025-09-01"},
		models.Trip{ID: "a", Destination: "Paris", StartDate: "2025-07-01"},
	)
	engine := livequery.NewEngine(src)
	defer engine.Close()

	r := newListRenderer()
	vm := New(engine, tripSpec(), r)
	defer vm.Close()

	assert.Equal(t, nil, vm.Open(context.Background(), livequery.NewQuery(livequery.Collection("users", "u1", "trips"))))
	p := r.next(t)
	assert.Equal(t, uint64(1), p.Seq)
	assert.Equal(t, 2, p.Count)
	assert.Equal(t, []string{"Paris", "Rome"}, r.section(""))

	src.put("users/u1/trips",
		models.Trip{ID: "b", Destination: "Rome", StartDate: "2025-09-01"},
		models.Trip{ID: "a", Destination: "Paris", StartDate: "2025-07-01"},
		models.Trip{ID: "c", Destination: "Lisbon", StartDate: "2025-08-01"},
	)
	engine.Notify("users/u1/trips")
	p = r.next(t)
	assert.Equal(t, 1, len(p.Ops))
	assert.Equal(t, listdiff.Insert, p.Ops[0].Kind)
	assert.Equal(t, 1, p.Ops[0].Index)
	assert.Equal(t, []string{"Paris", "Lisbon", "Rome"}, r.section(""))
}

func TestEmptyViewStillRenders(t *testing.T) {
	engine := livequery.NewEngine(newTableSource())
	defer engine.Close()

	r := newListRenderer()
	vm := New(engine, tripSpec(), r)
	defer vm.Close()

	assert.Equal(t, nil, vm.Open(context.Background(), livequery.NewQuery(livequery.Collection("users", "u1", "trips"))))
	p := r.next(t)
	assert.Equal(t, 0, p.Count)
	assert.Equal(t, 0, len(p.Ops))
}

func TestSections(t *testing.T) {
	src := newTableSource()
	src.put("users/u1/trips",
		models.Trip{ID: "a", Destination: "Paris", StartDate: "2025-07-01"},
		models.Trip{ID: "b", Destination: "Oslo", StartDate: "2024-01-10"},
		models.Trip{ID: "c", Destination: "Rome", StartDate: "2025-09-01"},
	)
	engine := livequery.NewEngine(src)
	defer engine.Close()

	spec := tripSpec()
	spec.Sections = []string{"upcoming", "past"}
	spec.Section = func(t models.Trip) string {
		if t.StartDate >= "2025-06-01" {
			return "upcoming"
		}
		return "past"
	}

	r := newListRenderer()
	vm := New(engine, spec, r)
	defer vm.Close()

	assert.Equal(t, nil, vm.Open(context.Background(), livequery.NewQuery(livequery.Collection("users", "u1", "trips"))))
	first, second := r.next(t), r.next(t)
	assert.Equal(t, "upcoming", first.Section)
	assert.Equal(t, "past", second.Section)
	assert.Equal(t, []string{"Paris", "Rome"}, r.section("upcoming"))
	assert.Equal(t, []string{"Oslo"}, r.section("past"))
	assert.Equal(t, 2, len(vm.Rows("upcoming")))
}

func TestStaleSnapshotsAreDropped(t *testing.T) {
	engine := livequery.NewEngine(newTableSource())
	defer engine.Close()

	r := newListRenderer()
	vm := New(engine, tripSpec(), r)
	defer vm.Close()

	path := livequery.Collection("users", "u1", "trips")
	snap := func(seq uint64, ids ...string) livequery.Snapshot {
		var docs []livequery.Document
		for _, id := range ids {
			docs = append(docs, livequery.Document{ID: id, Path: path, Fields: map[string]any{"destination": id}})
		}
		return livequery.Snapshot{Seq: seq, Docs: docs}
	}

	vm.mu.Lock()
	vm.gen = 2
	vm.mu.Unlock()

	vm.apply(2, snap(5, "x"))
	r.next(t)
	assert.Equal(t, []string{"x"}, r.section(""))

	// Older generation.
	vm.apply(1, snap(9, "old"))
	// Same generation, sequence not increasing.
	vm.apply(2, snap(5, "dup"))
	vm.apply(2, snap(4, "older"))

	select {
	case p := <-r.patches:
		t.Fatalf("stale patch rendered: %+v", p)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, []string{"x"}, r.section(""))
}

func TestReopenClosesPreviousSubscription(t *testing.T) {
	src := newTableSource()
	src.put("users/u1/trips/t1/timeline", models.Trip{ID: "d1", Destination: "day one"})
	src.put("users/u1/trips/t2/timeline", models.Trip{ID: "d2", Destination: "day two"})
	engine := livequery.NewEngine(src)
	defer engine.Close()

	r := newListRenderer()
	vm := New(engine, tripSpec(), r)
	defer vm.Close()

	assert.Equal(t, nil, vm.Open(context.Background(), livequery.NewQuery(livequery.Collection("users", "u1", "trips", "t1", "timeline"))))
	r.next(t)
	assert.Equal(t, nil, vm.Open(context.Background(), livequery.NewQuery(livequery.Collection("users", "u1", "trips", "t2", "timeline"))))
	r.next(t)
	assert.Equal(t, []string{"day two"}, r.section(""))
	assert.Equal(t, 1, engine.Count())

	src.put("users/u1/trips/t1/timeline", models.Trip{ID: "d3", Destination: "late"})
	engine.Notify("users/u1/trips/t1/timeline")
	select {
	case p := <-r.patches:
		t.Fatalf("patch from closed subscription: %+v", p)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, []string{"day two"}, r.section(""))
}

func TestFailureReachesRenderer(t *testing.T) {
	src := newTableSource()
	engine := livequery.NewEngine(src)
	defer engine.Close()

	r := newListRenderer()
	vm := New(engine, tripSpec(), r)
	defer vm.Close()

	boom := errors.New("permission denied")
	src.mu.Lock()
	src.err["users/u1/trips"] = boom
	src.mu.Unlock()

	assert.Equal(t, nil, vm.Open(context.Background(), livequery.NewQuery(livequery.Collection("users", "u1", "trips"))))
	select {
	case err := <-r.errs:
		assert.Equal(t, true, errors.Is(err, boom))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for failure")
	}
}

func TestFailedOpenKeepsNoSubscription(t *testing.T) {
	src := newTableSource()
	src.err["users/u1/trips"] = errors.New("permission denied")
	engine := livequery.NewEngine(src)
	defer engine.Close()

	for i := 0; i < 20; i++ {
		r := newListRenderer()
		vm := New(engine, tripSpec(), r)
		assert.Equal(t, nil, vm.Open(context.Background(), livequery.NewQuery(livequery.Collection("users", "u1", "trips"))))
		select {
		case <-r.errs:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for failure")
		}

		vm.mu.Lock()
		sub := vm.sub
		vm.mu.Unlock()
		if sub != nil {
			t.Fatalf("attempt %d: view kept a failed subscription", i)
		}
	}
}

// The rendered list always matches the latest snapshot, whatever sequence of
// changes produced it.
func TestRenderedListTracksLatestSnapshot(t *testing.T) {
	src := newTableSource()
	engine := livequery.NewEngine(src)
	defer engine.Close()

	r := newListRenderer()
	vm := New(engine, tripSpec(), r)
	defer vm.Close()

	const path = "users/u1/trips"
	assert.Equal(t, nil, vm.Open(context.Background(), livequery.NewQuery(livequery.Collection("users", "u1", "trips"))))
	r.next(t)

	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 100; round++ {
		n := rng.Intn(8)
		var trips []models.Trip
		var want []string
		perm := rng.Perm(12)[:n]
		for _, id := range perm {
			trips = append(trips, models.Trip{
				ID:          fmt.Sprintf("t%02d", id),
				Destination: fmt.Sprintf("d%02d-%d", id, rng.Intn(2)),
				StartDate:   fmt.Sprintf("2025-01-%02d", id+1),
			})
		}
		sorted := append([]models.Trip(nil), trips...)
		for i := range sorted {
			for j := i + 1; j < len(sorted); j++ {
				if sorted[j].StartDate < sorted[i].StartDate {
					sorted[i], sorted[j] = sorted[j], sorted[i]
				}
			}
		}
		for _, tr := range sorted {
			want = append(want, tr.Destination)
		}

		src.put(path, trips...)
		engine.Notify(path)

		deadline := time.After(2 * time.Second)
		for !equalStrings(r.section(""), want) {
			select {
			case <-r.patches:
			case <-deadline:
				t.Fatalf("round %d: rendered %v, want %v", round, r.section(""), want)
			}
		}
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
