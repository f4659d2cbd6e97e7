// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package summary collects scalar summaries and stores them per run.
//
// A Registry plays the part of the graph's summary collection: layers
// register named scalar sources while the graph is built, and Merge
// returns one op that evaluates all of them. A Writer appends the results
// to a sqlite event store under the run's log directory.
//
//	merged := registry.Merge()
//	values, err := merged.Eval(ctx)
//	writer.AddSummary(values, step)
package summary

import (
	"context"
	"fmt"

	sync "github.com/sasha-s/go-deadlock"
)

// Value is one evaluated scalar summary.
type Value struct {
	Tag   string
	Value float64
}

// ScalarFunc produces the current value of a scalar summary.
type ScalarFunc func(ctx context.Context) (float64, error)

type entry struct {
	tag string
	fn  ScalarFunc
}

// Registry holds the scalar summaries of one graph.
type Registry struct {
	mu      sync.Mutex
	entries []entry
	seen    map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{seen: make(map[string]int)}
}

// Scalar registers fn under tag and returns the tag actually used.
//
// A repeated tag gets a numeric suffix ("xentropy_avg_1"), so two loss
// nodes in one graph never overwrite each other's series.
func (r *Registry) Scalar(tag string, fn ScalarFunc) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	unique := tag
	if n := r.seen[tag]; n > 0 {
		unique = fmt.Sprintf("%s_%d", tag, n)
	}
	r.seen[tag]++
	r.entries = append(r.entries, entry{tag: unique, fn: fn})
	return unique
}

// Tags returns the registered tags in registration order.
func (r *Registry) Tags() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	tags := make([]string, len(r.entries))
	for i, e := range r.entries {
		tags[i] = e.tag
	}
	return tags
}

// Merge returns an op evaluating every summary registered so far, or nil
// when there are none.
func (r *Registry) Merge() *Merged {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.entries) == 0 {
		return nil
	}
	entries := make([]entry, len(r.entries))
	copy(entries, r.entries)
	return &Merged{entries: entries}
}

// Merged evaluates a fixed set of summaries.
type Merged struct {
	entries []entry
}

// Eval evaluates every summary in registration order. A nil Merged
// evaluates to no values.
func (m *Merged) Eval(ctx context.Context) ([]Value, error) {
	if m == nil {
		return nil, nil
	}
	values := make([]Value, 0, len(m.entries))
	for _, e := range m.entries {
		v, err := e.fn(ctx)
		if err != nil {
			return nil, fmt.Errorf("summary %s: %w", e.tag, err)
		}
		values = append(values, Value{Tag: e.tag, Value: v})
	}
	return values, nil
}

// Find returns the value recorded for tag.
func Find(values []Value, tag string) (float64, bool) {
	for _, v := range values {
		if v.Tag == tag {
			return v.Value, true
		}
	}
	return 0, false
}
