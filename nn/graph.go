// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"context"
	"fmt"

	sync "github.com/sasha-s/go-deadlock"

	"github.com/born-ml/convnet/dataset"
	"github.com/born-ml/convnet/internal/autodiff"
	"github.com/born-ml/convnet/internal/backend/cpu"
	"github.com/born-ml/convnet/summary"
	"github.com/born-ml/convnet/tensor"
)

// GlobalStepName is the store name of the step counter.
const GlobalStepName = "global_step"

// Input produces batches for a Logits node.
//
// Next returns dataset.ErrOutOfRange once its epoch budget is spent.
type Input interface {
	Next(ctx context.Context) (*dataset.Batch, error)
}

// Network maps a batch of NHWC images to logits of shape [N, 1].
//
// Forward is called once per evaluation. Layers must be created through
// the Graph with fixed names so repeated calls reuse the same variables.
type Network interface {
	Name() string
	Forward(g *Graph, images *tensor.Tensor, train bool) (*tensor.Tensor, error)
	String() string
}

// Graph owns everything a model needs at run time.
type Graph struct {
	backend   *autodiff.AutodiffBackend[*cpu.CPUBackend]
	store     *Store
	summaries *summary.Registry

	// mu serializes evaluations: the tape records every op while a Train
	// node runs, so no other node may run kernels at the same time.
	mu     sync.Mutex
	inputs []Input
}

// GraphOption configures a Graph.
type GraphOption func(*graphConfig)

type graphConfig struct {
	seed    int64
	workers int
}

// WithSeed sets the seed used by variable initializers.
func WithSeed(seed int64) GraphOption {
	return func(c *graphConfig) { c.seed = seed }
}

// WithWorkers limits the CPU kernels to n goroutines (n <= 0 uses every
// physical core).
func WithWorkers(n int) GraphOption {
	return func(c *graphConfig) { c.workers = n }
}

// NewGraph creates an empty graph with its global step set to zero.
func NewGraph(opts ...GraphOption) *Graph {
	cfg := graphConfig{seed: 1}
	for _, opt := range opts {
		opt(&cfg)
	}

	backend := cpu.New()
	if cfg.workers > 0 {
		backend = cpu.NewWithWorkers(cfg.workers)
	}

	g := &Graph{
		backend:   autodiff.New(backend),
		store:     NewStore(cfg.seed),
		summaries: summary.NewRegistry(),
	}
	g.store.GetVariable(GlobalStepName, tensor.CounterShape, Constant(0), false)
	return g
}

// Store returns the variable store.
func (g *Graph) Store() *Store {
	return g.store
}

// Summaries returns the summary registry.
func (g *Graph) Summaries() *summary.Registry {
	return g.summaries
}

// BackendName describes where the kernels run.
func (g *Graph) BackendName() string {
	return fmt.Sprintf("%s, %d workers", g.backend.Name(), g.backend.Inner().Workers())
}

// GlobalStep returns the number of completed training steps.
func (g *Graph) GlobalStep() int64 {
	v, ok := g.store.Lookup(GlobalStepName)
	if !ok {
		return 0
	}
	return tensor.CounterValue(v.Value)
}

// SetGlobalStep overwrites the step counter.
func (g *Graph) SetGlobalStep(step int64) {
	if v, ok := g.store.Lookup(GlobalStepName); ok {
		copy(v.Value.Data(), tensor.Counter(step).Data())
	}
}

// Inputs returns every input attached to a Logits node, in creation order.
func (g *Graph) Inputs() []Input {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Input(nil), g.inputs...)
}

// Infer runs net on images outside any input pipeline and returns the
// logits. Nothing is recorded.
func (g *Graph) Infer(net Network, images *tensor.Tensor) (*tensor.Tensor, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return net.Forward(g, images, false)
}

// Probabilities applies the logistic function to logits.
func Probabilities(logits *tensor.Tensor) []float32 {
	data := logits.Data()
	out := make([]float32, len(data))
	for i, v := range data {
		out[i] = cpu.Sigmoid(v)
	}
	return out
}
