package instr

import (
	"fmt"
	"sync"
)

// IndexedViews lazily materializes per-index sub-device views (channels,
// axes) over a contiguous external range 0..N-1. Views hold only a
// back-reference to the parent Instrument; the parent's Communicator is
// shared, never re-owned. External indices are zero-based; instruments
// documented one-based get the translation here so vendor code never
// does index arithmetic.
type IndexedViews[V any] struct {
	parent    *Instrument
	construct func(parent *Instrument, native int) V
	count     int
	oneBased  bool

	mu    sync.Mutex
	cache map[int]V
}

type IndexedOption func(oneBased *bool)

// OneBased translates external index i to native index i+1.
func OneBased() IndexedOption {
	return func(oneBased *bool) { *oneBased = true }
}

func NewIndexed[V any](parent *Instrument, construct func(*Instrument, int) V, count int, opts ...IndexedOption) *IndexedViews[V] {
	views := &IndexedViews[V]{
		parent:    parent,
		construct: construct,
		count:     count,
		cache:     make(map[int]V),
	}
	for _, opt := range opts {
		opt(&views.oneBased)
	}
	return views
}

func (v *IndexedViews[V]) Len() int { return v.count }

// Get resolves external index i, constructing the view on first use.
func (v *IndexedViews[V]) Get(i int) (V, error) {
	var zero V
	if i < 0 || i >= v.count {
		return zero, fmt.Errorf("%w: %d not in [0, %d)", ErrIndex, i, v.count)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if view, ok := v.cache[i]; ok {
		return view, nil
	}
	native := i
	if v.oneBased {
		native = i + 1
	}
	view := v.construct(v.parent, native)
	v.cache[i] = view
	return view, nil
}

// All returns every view in ascending external order. Each call builds a
// fresh slice, so iteration is restartable and finite.
func (v *IndexedViews[V]) All() []V {
	out := make([]V, 0, v.count)
	for i := 0; i < v.count; i++ {
		view, _ := v.Get(i)
		out = append(out, view)
	}
	return out
}

// LabeledViews resolves sub-devices addressed by explicit labels (for
// example output channels "AB", "CD"). Labels pass through to the view
// constructor unchanged, in declared order.
type LabeledViews[V any] struct {
	parent    *Instrument
	construct func(parent *Instrument, label string) V
	labels    []string
	valid     map[string]struct{}

	mu    sync.Mutex
	cache map[string]V
}

func NewLabeled[V any](parent *Instrument, construct func(*Instrument, string) V, labels []string) *LabeledViews[V] {
	valid := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		valid[l] = struct{}{}
	}
	return &LabeledViews[V]{
		parent:    parent,
		construct: construct,
		labels:    labels,
		valid:     valid,
		cache:     make(map[string]V),
	}
}

func (v *LabeledViews[V]) Len() int { return len(v.labels) }

func (v *LabeledViews[V]) Get(label string) (V, error) {
	var zero V
	if _, ok := v.valid[label]; !ok {
		return zero, fmt.Errorf("%w: %q not in %v", ErrIndex, label, v.labels)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if view, ok := v.cache[label]; ok {
		return view, nil
	}
	view := v.construct(v.parent, label)
	v.cache[label] = view
	return view, nil
}

// All returns every view in declared order; a fresh slice per call.
func (v *LabeledViews[V]) All() []V {
	out := make([]V, 0, len(v.labels))
	for _, label := range v.labels {
		view, _ := v.Get(label)
		out = append(out, view)
	}
	return out
}
