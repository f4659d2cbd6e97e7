// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package dataset

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sync"

	"github.com/born-ml/convnet/config"
	"github.com/born-ml/convnet/tensor"
)

// ErrOutOfRange is returned by Input.Next once the epoch budget is spent.
var ErrOutOfRange = fmt.Errorf("input out of range: %w", io.EOF)

// Input is a queue of decoded batches fed by background goroutines.
//
// One goroutine cuts the example stream into batches, NumThreads workers
// decode them and a final goroutine restores batch order and fills a queue
// of QueueCapacity examples. Only the last batch may be short.
type Input struct {
	name    string
	predict bool
	size    int
	chans   int

	out    chan result
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

type job struct {
	seq      int
	examples []Example
}

type result struct {
	seq   int
	batch *Batch
	err   error
}

func newInput(name string, examples []Example, numEpochs int, predict bool, flags config.Flags) *Input {
	ctx, cancel := context.WithCancel(context.Background())
	in := &Input{
		name:    name,
		predict: predict,
		size:    flags.ImageSize,
		chans:   flags.Channels,
		out:     make(chan result, max(flags.QueueCapacity/max(flags.BatchSize, 1), 1)),
		cancel:  cancel,
	}

	workers := max(flags.NumThreads, 1)
	jobs := make(chan job, workers)
	decoded := make(chan result, workers)

	in.wg.Add(1)
	go func() {
		defer in.wg.Done()
		defer close(jobs)
		in.enqueue(ctx, jobs, examples, numEpochs, flags)
	}()

	var decoders sync.WaitGroup
	for range workers {
		decoders.Add(1)
		in.wg.Add(1)
		go func() {
			defer in.wg.Done()
			defer decoders.Done()
			for j := range jobs {
				batch, err := in.decode(j.examples)
				select {
				case decoded <- result{seq: j.seq, batch: batch, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		decoders.Wait()
		close(decoded)
	}()

	in.wg.Add(1)
	go func() {
		defer in.wg.Done()
		defer close(in.out)
		in.reorder(ctx, decoded)
	}()

	return in
}

// enqueue cuts the example stream into batches, one epoch after another.
func (in *Input) enqueue(ctx context.Context, jobs chan<- job, examples []Example, numEpochs int, flags config.Flags) {
	//nolint:gosec // shuffling order, not security sensitive
	rng := rand.New(rand.NewSource(flags.Seed))
	order := append([]Example(nil), examples...)
	batchSize := max(flags.BatchSize, 1)

	seq := 0
	pending := make([]Example, 0, batchSize)
	send := func() bool {
		select {
		case jobs <- job{seq: seq, examples: pending}:
			seq++
			pending = make([]Example, 0, batchSize)
			return true
		case <-ctx.Done():
			return false
		}
	}

	for epoch := 0; numEpochs == 0 || epoch < numEpochs; epoch++ {
		if !in.predict {
			rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		}
		for _, ex := range order {
			pending = append(pending, ex)
			if len(pending) == batchSize && !send() {
				return
			}
		}
	}
	if len(pending) > 0 {
		send()
	}
}

// reorder forwards decoded batches in sequence order.
func (in *Input) reorder(ctx context.Context, decoded <-chan result) {
	next := 0
	waiting := make(map[int]result)
	for r := range decoded {
		waiting[r.seq] = r
		for {
			ready, ok := waiting[next]
			if !ok {
				break
			}
			delete(waiting, next)
			next++
			select {
			case in.out <- ready:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (in *Input) decode(examples []Example) (*Batch, error) {
	n := len(examples)
	pixels := in.size * in.size * in.chans
	images := make([]float32, 0, n*pixels)
	batch := &Batch{IDs: make([]int, n), Paths: make([]string, n)}
	var labels []float32

	for i, ex := range examples {
		data, err := LoadImage(ex.Path, in.size, in.chans)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", in.name, err)
		}
		images = append(images, data...)
		batch.IDs[i] = ex.ID
		batch.Paths[i] = ex.Path
		if !in.predict {
			labels = append(labels, float32(ex.Label))
		}
	}

	var err error
	if batch.Images, err = tensor.FromSlice(images, tensor.Shape{n, in.size, in.size, in.chans}); err != nil {
		return nil, err
	}
	if !in.predict {
		if batch.Labels, err = tensor.FromSlice(labels, tensor.Shape{n, 1}); err != nil {
			return nil, err
		}
	}
	return batch, nil
}

// Name returns the input name.
func (in *Input) Name() string {
	return in.name
}

// Next dequeues one batch, blocking until it is decoded.
func (in *Input) Next(ctx context.Context) (*Batch, error) {
	select {
	case r, ok := <-in.out:
		if !ok {
			return nil, ErrOutOfRange
		}
		return r.batch, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the background goroutines and waits for them. Next then
// drains whatever was already queued and returns ErrOutOfRange.
func (in *Input) Close() error {
	in.once.Do(func() {
		in.cancel()
		in.wg.Wait()
	})
	return nil
}
