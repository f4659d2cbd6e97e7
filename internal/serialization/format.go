package serialization

import "time"

// Format constants.
const (
	MagicBytes       = "CNVT"
	FormatVersion    = 1
	HeaderAlignment  = 64 // Tensor data starts on a 64-byte boundary
	FixedHeaderSize  = 64
	ChecksumSize     = 32
	ChecksumOffset   = 0x20
	DTypeFloat32     = "float32"
	float32ByteWidth = 4
)

// Flags stored in the fixed header.
const (
	FlagHasOptimizer uint32 = 1 << 0 // optimizer moments included
	FlagHasMetadata  uint32 = 1 << 1 // custom metadata included
)

// Header is the JSON header of a checkpoint file.
type Header struct {
	FormatVersion int               `json:"format_version"`
	ModelType     string            `json:"model_type"`
	CreatedAt     time.Time         `json:"created_at"`
	Tensors       []TensorMeta      `json:"tensors"`
	Metadata      map[string]string `json:"metadata"`
	Step          int64             `json:"step"`
	RunID         string            `json:"run_id,omitempty"`
	HasOptimizer  bool              `json:"has_optimizer"`
}

// TensorMeta describes a tensor stored in the data section.
type TensorMeta struct {
	Name   string `json:"name"`   // Scoped variable name (e.g., "conv1/weights")
	DType  string `json:"dtype"`  // Always "float32"
	Shape  []int  `json:"shape"`  // Tensor shape
	Offset int64  `json:"offset"` // Bytes from the start of the data section
	Size   int64  `json:"size"`   // Size in bytes
}
