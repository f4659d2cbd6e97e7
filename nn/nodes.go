// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"context"
	"errors"
	"fmt"

	"github.com/born-ml/convnet/optim"
	"github.com/born-ml/convnet/tensor"
)

// ErrNoLabels is returned when a loss or accuracy node is fed from a
// prediction input.
var ErrNoLabels = errors.New("batch has no labels")

// Output is one evaluation of a Logits node.
type Output struct {
	Logits *tensor.Tensor // [N, 1]
	Labels *tensor.Tensor // [N, 1], nil for prediction inputs
	IDs    []int
}

// Logits runs a network on the next batch of an input each time it is
// evaluated.
type Logits struct {
	g     *Graph
	net   Network
	input Input
	train bool
}

// Logits creates a node applying net to batches from input. The input is
// tracked by the graph so the caller can close it when the run ends.
func (g *Graph) Logits(net Network, input Input, train bool) *Logits {
	g.mu.Lock()
	g.inputs = append(g.inputs, input)
	g.mu.Unlock()
	return &Logits{g: g, net: net, input: input, train: train}
}

// Input returns the node's input.
func (l *Logits) Input() Input {
	return l.input
}

// Eval dequeues one batch and runs the network on it.
func (l *Logits) Eval(ctx context.Context) (*Output, error) {
	l.g.mu.Lock()
	defer l.g.mu.Unlock()
	return l.eval(ctx)
}

func (l *Logits) eval(ctx context.Context) (*Output, error) {
	batch, err := l.input.Next(ctx)
	if err != nil {
		return nil, err
	}
	logits, err := l.net.Forward(l.g, batch.Images, l.train)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.net.Name(), err)
	}
	if logits.NumElements() != batch.Size() {
		return nil, fmt.Errorf("%s: %d logits for a batch of %d", l.net.Name(), logits.NumElements(), batch.Size())
	}
	return &Output{Logits: logits, Labels: batch.Labels, IDs: batch.IDs}, nil
}

func (l *Logits) labelled(ctx context.Context) (*Output, error) {
	out, err := l.eval(ctx)
	if err != nil {
		return nil, err
	}
	if out.Labels == nil {
		return nil, ErrNoLabels
	}
	if out.Labels.NumElements() != out.Logits.NumElements() {
		return nil, fmt.Errorf("%d labels for %d logits", out.Labels.NumElements(), out.Logits.NumElements())
	}
	return out, nil
}

// Loss is the mean sigmoid cross-entropy of a Logits node against its
// batch labels.
type Loss struct {
	g      *Graph
	logits *Logits
	tag    string
}

// LossOp creates a loss node and registers it as the scalar summary
// "xentropy_avg".
func (g *Graph) LossOp(logits *Logits) *Loss {
	l := &Loss{g: g, logits: logits}
	l.tag = g.summaries.Scalar("xentropy_avg", l.Eval)
	return l
}

// Tag returns the summary tag of the node.
func (l *Loss) Tag() string {
	return l.tag
}

// Eval computes the loss on the next batch.
func (l *Loss) Eval(ctx context.Context) (float64, error) {
	l.g.mu.Lock()
	defer l.g.mu.Unlock()
	loss, err := l.forward(ctx)
	if err != nil {
		return 0, err
	}
	return float64(loss.Item()), nil
}

func (l *Loss) forward(ctx context.Context) (*tensor.Tensor, error) {
	out, err := l.logits.labelled(ctx)
	if err != nil {
		return nil, err
	}
	return l.g.backend.SigmoidCrossEntropy(out.Logits, out.Labels), nil
}

// Accuracy is the fraction of a batch classified correctly.
type Accuracy struct {
	g      *Graph
	logits *Logits
	tag    string
}

// AccuracyOp creates an accuracy node. Its summary tag is "accuracy", or
// "{name}_accuracy" when name is set.
func (g *Graph) AccuracyOp(logits *Logits, name string) *Accuracy {
	tag := "accuracy"
	if name != "" {
		tag = name + "_accuracy"
	}
	a := &Accuracy{g: g, logits: logits}
	a.tag = g.summaries.Scalar(tag, a.Eval)
	return a
}

// Tag returns the summary tag of the node.
func (a *Accuracy) Tag() string {
	return a.tag
}

// Eval computes the accuracy on the next batch.
func (a *Accuracy) Eval(ctx context.Context) (float64, error) {
	a.g.mu.Lock()
	defer a.g.mu.Unlock()
	out, err := a.logits.labelled(ctx)
	if err != nil {
		return 0, err
	}
	return BinaryAccuracy(out.Logits, out.Labels), nil
}

// BinaryAccuracy returns mean((sigmoid(logits) > 0.5) == (labels > 0.5)).
func BinaryAccuracy(logits, labels *tensor.Tensor) float64 {
	probs := Probabilities(logits)
	if len(probs) == 0 {
		return 0
	}
	correct := 0
	for i, p := range probs {
		if (p > 0.5) == (labels.Data()[i] > 0.5) {
			correct++
		}
	}
	return float64(correct) / float64(len(probs))
}

// Train minimizes a Loss and advances the global step.
type Train struct {
	g         *Graph
	loss      *Loss
	optimizer optim.Optimizer
	last      float64
}

// TrainOp minimizes loss with Adam at the given learning rate.
func (g *Graph) TrainOp(loss *Loss, learningRate float32) *Train {
	return g.TrainOpWith(loss, optim.NewAdam(optim.AdamConfig{LR: learningRate}))
}

// TrainOpWith minimizes loss with the given optimizer.
func (g *Graph) TrainOpWith(loss *Loss, optimizer optim.Optimizer) *Train {
	return &Train{g: g, loss: loss, optimizer: optimizer}
}

// Optimizer returns the optimizer updating the variables.
func (t *Train) Optimizer() optim.Optimizer {
	return t.optimizer
}

// LastLoss returns the loss of the most recent step.
func (t *Train) LastLoss() float64 {
	return t.last
}

// Run performs one step: forward on the next batch, backward, update,
// then global_step += 1. Errors from the input (dataset.ErrOutOfRange at
// the end of training) are returned unchanged and leave the step as is.
func (t *Train) Run(ctx context.Context) error {
	g := t.g
	g.mu.Lock()
	defer g.mu.Unlock()

	tape := g.backend.Tape()
	tape.Clear()
	tape.StartRecording()
	loss, err := t.loss.forward(ctx)
	tape.StopRecording()
	if err != nil {
		tape.Clear()
		return err
	}

	grads := g.backend.Backward(loss)
	tape.Clear()

	t.optimizer.Step(g.store.Params(), grads)
	t.last = float64(loss.Item())
	g.SetGlobalStep(g.GlobalStep() + 1)
	return nil
}
