package tensor

import "fmt"

// Padding selects how spatial borders are handled by convolution and pooling.
type Padding int

// Padding modes, with the same output-size rules as TensorFlow.
const (
	// Same pads the input so that out = ceil(in / stride).
	Same Padding = iota
	// Valid uses no padding: out = (in - window) / stride + 1.
	Valid
)

// ParsePadding parses "SAME" or "VALID" (case-sensitive, as TensorFlow does).
func ParsePadding(s string) (Padding, error) {
	switch s {
	case "SAME":
		return Same, nil
	case "VALID":
		return Valid, nil
	default:
		return 0, fmt.Errorf("unknown padding %q (want SAME or VALID)", s)
	}
}

// String returns "SAME" or "VALID".
func (p Padding) String() string {
	if p == Valid {
		return "VALID"
	}
	return "SAME"
}

// Window computes the output size and the leading padding for one spatial
// dimension of size in, a window of size k and the given stride.
// A VALID window larger than the input yields out = 0.
func (p Padding) Window(in, k, stride int) (out, padBefore int) {
	if p == Valid {
		if in < k {
			return 0, 0
		}
		return (in-k)/stride + 1, 0
	}
	out = (in + stride - 1) / stride
	padTotal := (out-1)*stride + k - in
	if padTotal < 0 {
		padTotal = 0
	}
	return out, padTotal / 2
}
