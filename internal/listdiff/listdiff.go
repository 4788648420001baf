// Package listdiff computes the operations that turn one rendered list into
// another, so a client only patches rows that changed.
//
// Operations are applied in order against a list that starts as the old
// list. Indexes always refer to the list as it is at that step.
package listdiff

import "sort"

// Kind is the type of a list operation.
type Kind string

const (
	Remove Kind = "remove"
	Insert Kind = "insert"
	Move   Kind = "move"
	Update Kind = "update"
)

// Op is one step of a patch.
//
//	Remove: delete the row at Index.
//	Insert: insert Item at Index.
//	Move:   take the row at From and reinsert it at Index.
//	Update: replace the row at Index with Item.
type Op[T any] struct {
	Kind  Kind   `json:"kind"`
	Index int    `json:"index"`
	From  int    `json:"from"`
	Key   string `json:"key"`
	Item  T      `json:"item,omitempty"`
}

// Diff returns the operations that transform old into new. Rows are matched
// by key; rows whose key survives but which are not equal get an Update.
// Rows that keep their relative order stay put, so only the minimum number
// of rows are moved.
//
// Keys must be unique within each list. When they are not, Diff falls back
// to removing every old row and inserting every new one.
func Diff[T any](old, new []T, key func(T) string, equal func(a, b T) bool) []Op[T] {
	oldIndex, ok := indexByKey(old, key)
	if !ok {
		return replaceAll(old, new, key)
	}
	newIndex, ok := indexByKey(new, key)
	if !ok {
		return replaceAll(old, new, key)
	}

	var ops []Op[T]

	// Removals, back to front so earlier indexes stay valid.
	for i := len(old) - 1; i >= 0; i-- {
		k := key(old[i])
		if _, kept := newIndex[k]; !kept {
			ops = append(ops, Op[T]{Kind: Remove, Index: i, Key: k})
		}
	}

	// Surviving keys in their old order, and the new index of each.
	current := make([]string, 0, len(old))
	targets := make([]int, 0, len(old))
	for _, item := range old {
		k := key(item)
		if j, kept := newIndex[k]; kept {
			current = append(current, k)
			targets = append(targets, j)
		}
	}
	stable := longestIncreasing(targets)

	// Rows outside the longest run already in order are moved, one each,
	// to sit right after their predecessor among the surviving rows.
	prev, hasPrev := "", false
	for _, item := range new {
		k := key(item)
		if _, existed := oldIndex[k]; !existed {
			continue
		}
		if !stable[newIndex[k]] {
			from := position(current, k)
			current = removeAt(current, from)
			to := 0
			if hasPrev {
				to = position(current, prev) + 1
			}
			current = insertAt(current, to, k)
			if from != to {
				ops = append(ops, Op[T]{Kind: Move, Index: to, From: from, Key: k})
			}
		}
		prev, hasPrev = k, true
	}

	// Surviving rows are now in their final relative order; new rows slot
	// in front to back.
	for j, item := range new {
		k := key(item)
		if _, existed := oldIndex[k]; !existed {
			ops = append(ops, Op[T]{Kind: Insert, Index: j, Key: k, Item: item})
		}
	}

	for j, item := range new {
		k := key(item)
		if i, existed := oldIndex[k]; existed && !equal(old[i], item) {
			ops = append(ops, Op[T]{Kind: Update, Index: j, Key: k, Item: item})
		}
	}
	return ops
}

// Apply runs ops against a copy of list and returns the result.
func Apply[T any](list []T, ops []Op[T]) []T {
	out := make([]T, len(list))
	copy(out, list)
	for _, op := range ops {
		switch op.Kind {
		case Remove:
			out = removeAt(out, op.Index)
		case Insert:
			out = insertAt(out, op.Index, op.Item)
		case Move:
			item := out[op.From]
			out = insertAt(removeAt(out, op.From), op.Index, item)
		case Update:
			out[op.Index] = op.Item
		}
	}
	return out
}

func indexByKey[T any](list []T, key func(T) string) (map[string]int, bool) {
	index := make(map[string]int, len(list))
	for i, item := range list {
		k := key(item)
		if _, dup := index[k]; dup {
			return nil, false
		}
		index[k] = i
	}
	return index, true
}

func replaceAll[T any](old, new []T, key func(T) string) []Op[T] {
	ops := make([]Op[T], 0, len(old)+len(new))
	for i := len(old) - 1; i >= 0; i-- {
		ops = append(ops, Op[T]{Kind: Remove, Index: i, Key: key(old[i])})
	}
	for j, item := range new {
		ops = append(ops, Op[T]{Kind: Insert, Index: j, Key: key(item), Item: item})
	}
	return ops
}

// longestIncreasing returns the values of one longest strictly increasing
// subsequence of targets.
func longestIncreasing(targets []int) map[int]bool {
	// tails[l] is the index into targets of the smallest tail of an
	// increasing run of length l+1.
	tails := make([]int, 0, len(targets))
	prev := make([]int, len(targets))
	for i, v := range targets {
		l := sort.Search(len(tails), func(n int) bool { return targets[tails[n]] >= v })
		if l > 0 {
			prev[i] = tails[l-1]
		} else {
			prev[i] = -1
		}
		if l == len(tails) {
			tails = append(tails, i)
		} else {
			tails[l] = i
		}
	}
	keep := make(map[int]bool, len(tails))
	if len(tails) == 0 {
		return keep
	}
	for i := tails[len(tails)-1]; i >= 0; i = prev[i] {
		keep[targets[i]] = true
	}
	return keep
}

func position(keys []string, k string) int {
	for i, v := range keys {
		if v == k {
			return i
		}
	}
	return -1
}

func insertAt[T any](list []T, i int, v T) []T {
	var zero T
	list = append(list, zero)
	copy(list[i+1:], list[i:])
	list[i] = v
	return list
}

func removeAt[T any](list []T, i int) []T {
	return append(list[:i], list[i+1:]...)
}
