// Package viewmodel keeps a rendered list in step with a live query.
//
// A ViewModel owns at most one subscription. Each snapshot is mapped to
// typed rows, sorted, split into sections and diffed against what was last
// rendered; the renderer only receives the operations.
package viewmodel

import (
	"context"
	"reflect"
	"sort"
	"sync"

	"tripwise-backend/internal/listdiff"
	"tripwise-backend/internal/livequery"
	"tripwise-backend/internal/mapper"
	"tripwise-backend/internal/metrics"
)

// Patch is the change to one section of a view.
type Patch[T any] struct {
	Section string
	Seq     uint64
	Count   int
	Ops     []listdiff.Op[T]
}

// Renderer receives patches and failures. Calls are serialized and must not
// block or call back into the ViewModel.
type Renderer[T any] interface {
	Render(p Patch[T])
	Fail(err error)
}

// Spec describes how a view turns documents into rows.
type Spec[T any] struct {
	Kind string
	Map  mapper.Func[T]
	Key  func(T) string

	// Equal decides whether a surviving row needs an update. Defaults to
	// reflect.DeepEqual.
	Equal func(a, b T) bool
	// Less orders rows. Rows keep the query order when nil.
	Less func(a, b T) bool
	// Sections lists the section names in display order and Section
	// assigns a row to one of them. Rows in an unknown section are dropped.
	// A view without sections has a single unnamed one.
	Sections []string
	Section  func(T) string
}

type ViewModel[T any] struct {
	engine   *livequery.Engine
	spec     Spec[T]
	renderer Renderer[T]

	mu       sync.Mutex
	gen      uint64
	sub      *livequery.Subscription
	lastSeq  uint64
	rendered bool
	failed   bool
	rows     map[string][]T
}

func New[T any](engine *livequery.Engine, spec Spec[T], renderer Renderer[T]) *ViewModel[T] {
	if spec.Equal == nil {
		spec.Equal = func(a, b T) bool { return reflect.DeepEqual(a, b) }
	}
	if len(spec.Sections) == 0 {
		spec.Sections = []string{""}
		spec.Section = nil
	}
	return &ViewModel[T]{
		engine:   engine,
		spec:     spec,
		renderer: renderer,
		rows:     make(map[string][]T),
	}
}

// Open starts listening to q. A subscription opened earlier is closed first
// and anything it still delivers is ignored. Rows already rendered stay and
// are diffed against the first snapshot of q.
func (v *ViewModel[T]) Open(ctx context.Context, q livequery.Query) error {
	v.mu.Lock()
	prev := v.sub
	v.sub = nil
	v.gen++
	gen := v.gen
	v.lastSeq = 0
	v.rendered = false
	v.failed = false
	v.mu.Unlock()

	// Callbacks take v.mu, so the old subscription is closed without it.
	if prev != nil {
		prev.Close()
	}

	sub, err := v.engine.Subscribe(ctx, q,
		func(s livequery.Snapshot) { v.apply(gen, s) },
		func(err error) { v.fail(gen, err) },
	)
	if err != nil {
		return err
	}

	v.mu.Lock()
	switch {
	case v.gen != gen:
		v.mu.Unlock()
		sub.Close()
	case v.failed:
		// The first fetch already failed and the subscription has stopped.
		v.mu.Unlock()
	default:
		v.sub = sub
		v.mu.Unlock()
	}
	return nil
}

// Close stops the current subscription. Rendered rows are kept.
func (v *ViewModel[T]) Close() {
	v.mu.Lock()
	v.gen++
	sub := v.sub
	v.sub = nil
	v.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
}

// Rows returns the rendered rows of a section.
func (v *ViewModel[T]) Rows(section string) []T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]T(nil), v.rows[section]...)
}

func (v *ViewModel[T]) apply(gen uint64, s livequery.Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.gen || s.Seq <= v.lastSeq {
		return
	}
	v.lastSeq = s.Seq

	items := mapper.All(v.spec.Kind, s.Docs, v.spec.Map)
	if v.spec.Less != nil {
		sort.SliceStable(items, func(i, j int) bool { return v.spec.Less(items[i], items[j]) })
	}

	next := make(map[string][]T, len(v.spec.Sections))
	for _, name := range v.spec.Sections {
		next[name] = []T{}
	}
	for _, item := range items {
		name := ""
		if v.spec.Section != nil {
			name = v.spec.Section(item)
		}
		if rows, ok := next[name]; ok {
			next[name] = append(rows, item)
		}
	}

	for _, name := range v.spec.Sections {
		ops := listdiff.Diff(v.rows[name], next[name], v.spec.Key, v.spec.Equal)
		v.rows[name] = next[name]
		if len(ops) == 0 && v.rendered {
			continue
		}
		for _, op := range ops {
			metrics.RenderedOps.WithLabelValues(string(op.Kind)).Inc()
		}
		v.renderer.Render(Patch[T]{
			Section: name,
			Seq:     s.Seq,
			Count:   len(next[name]),
			Ops:     ops,
		})
	}
	v.rendered = true
}

func (v *ViewModel[T]) fail(gen uint64, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.gen {
		return
	}
	v.sub = nil
	v.failed = true
	v.renderer.Fail(err)
}
