// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	sync "github.com/sasha-s/go-deadlock"

	"github.com/born-ml/convnet/optim"
	"github.com/born-ml/convnet/tensor"
)

// Variable is a named tensor in the store.
type Variable struct {
	Name      string
	Value     *tensor.Tensor
	Trainable bool
}

// Store holds the variables of a graph in creation order.
type Store struct {
	mu    sync.RWMutex
	vars  map[string]*Variable
	order []string
	rng   *rand.Rand
}

// NewStore creates an empty store whose initializers draw from a source
// seeded with seed.
func NewStore(seed int64) *Store {
	return &Store{
		vars: make(map[string]*Variable),
		//nolint:gosec // math/rand is fine for weight initialization
		rng: rand.New(rand.NewSource(seed)),
	}
}

// GetVariable returns the variable called name, creating it with init
// when it does not exist yet.
//
// Panics if the variable exists with a different shape: two layers were
// given the same name.
func (s *Store) GetVariable(name string, shape tensor.Shape, init Initializer, trainable bool) *tensor.Tensor {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.vars[name]; ok {
		if !v.Value.Shape().Equal(shape) {
			panic(fmt.Sprintf("variable %s already exists with shape %v, requested %v", name, v.Value.Shape(), shape))
		}
		return v.Value
	}
	v := &Variable{Name: name, Value: init(shape, s.rng), Trainable: trainable}
	s.vars[name] = v
	s.order = append(s.order, name)
	return v.Value
}

// Lookup returns the variable called name.
func (s *Store) Lookup(name string) (*Variable, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vars[name]
	return v, ok
}

// Names returns variable names in creation order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Len returns the number of variables.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Params returns the trainable variables in creation order.
func (s *Store) Params() []optim.Param {
	s.mu.RLock()
	defer s.mu.RUnlock()
	params := make([]optim.Param, 0, len(s.order))
	for _, name := range s.order {
		if v := s.vars[name]; v.Trainable {
			params = append(params, optim.Param{Name: v.Name, Value: v.Value})
		}
	}
	return params
}

// NumParams returns the number of trainable scalars.
func (s *Store) NumParams() int {
	n := 0
	for _, p := range s.Params() {
		n += p.Value.NumElements()
	}
	return n
}

// StateDict returns a copy of every variable.
func (s *Store) StateDict() map[string]*tensor.Tensor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := make(map[string]*tensor.Tensor, len(s.vars))
	for name, v := range s.vars {
		state[name] = v.Value.Clone()
	}
	return state
}

// LoadStateDict copies values from state into the store.
//
// Existing variables keep their tensor (the tape and optimizer hold on to
// it) and must match in shape. Entries for variables not created yet are
// added, so a checkpoint can be restored before the network first runs.
// Keys that name optimizer slots ("{var}/Adam") are skipped.
func (s *Store) LoadStateDict(state map[string]*tensor.Tensor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(state))
	for name := range state {
		if !isSlotName(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		value := state[name]
		if v, ok := s.vars[name]; ok {
			if !v.Value.Shape().Equal(value.Shape()) {
				return fmt.Errorf("variable %s: checkpoint shape %v, graph shape %v", name, value.Shape(), v.Value.Shape())
			}
			copy(v.Value.Data(), value.Data())
			continue
		}
		s.vars[name] = &Variable{Name: name, Value: value.Clone(), Trainable: name != GlobalStepName}
		s.order = append(s.order, name)
	}
	return nil
}

// Describe lists every variable with its shape, one per line.
func (s *Store) Describe() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var b strings.Builder
	for _, name := range s.order {
		v := s.vars[name]
		fmt.Fprintf(&b, "%s %v", name, v.Value.Shape())
		if !v.Trainable {
			b.WriteString(" (not trainable)")
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// isSlotName reports whether name belongs to optimizer state rather than
// to a model variable.
func isSlotName(name string) bool {
	if strings.HasPrefix(name, "optimizer/") {
		return true
	}
	for _, suffix := range []string{"/Adam", "/Adam_1", "/Momentum"} {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
