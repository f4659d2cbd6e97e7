package tensor

// counterBase is the largest power of two below which every integer is an
// exact float32.
const counterBase = 1 << 24

// CounterShape is the shape of a counter tensor.
var CounterShape = Shape{2}

// Counter encodes n as a [2] tensor of base-2^24 digits, low digit first,
// so that counters up to 2^48 survive float32 storage exactly.
func Counter(n int64) *Tensor {
	if n < 0 {
		n = 0
	}
	return &Tensor{
		shape: CounterShape.Clone(),
		data:  []float32{float32(n % counterBase), float32(n / counterBase)},
	}
}

// CounterValue decodes a counter tensor. A one-element tensor is read as a
// plain number.
func CounterValue(t *Tensor) int64 {
	d := t.Data()
	switch len(d) {
	case 0:
		return 0
	case 1:
		return int64(d[0])
	default:
		return int64(d[0]) + int64(d[1])*counterBase
	}
}
