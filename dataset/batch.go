// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package dataset

import "github.com/born-ml/convnet/tensor"

// Batch is one dequeued group of examples.
type Batch struct {
	Images *tensor.Tensor // [N, H, W, C], values in [0, 1]
	Labels *tensor.Tensor // [N, 1], dog = 1, cat = 0; nil for prediction inputs
	IDs    []int          // numeric image ids
	Paths  []string       // source files
}

// Size returns the number of examples in the batch.
func (b *Batch) Size() int {
	return len(b.IDs)
}
