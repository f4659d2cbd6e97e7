// Package serialization implements the checkpoint file format.
//
//	Format Structure (64-byte fixed header):
//	  0x00 [4 bytes: Magic "CNVT"]
//	  0x04 [4 bytes: Version (uint32 LE)]
//	  0x08 [4 bytes: Flags (uint32 LE)]
//	  0x0C [4 bytes: reserved]
//	  0x10 [8 bytes: Header Size (uint64 LE)]
//	  0x18 [8 bytes: Data Size (uint64 LE)]
//	  0x20 [32 bytes: SHA-256 of the tensor data]
//	  0x40 [Header: JSON metadata]
//	       [Tensor data: little-endian float32, 64-byte aligned]
//
// Tensors are written in name order so that identical state produces
// identical files.
//
// Example usage:
//
//	var buf bytes.Buffer
//	if err := serialization.Write(&buf, store.StateDict(), serialization.Header{ModelType: "catsdogs"}); err != nil {
//	    return err
//	}
//	state, header, err := serialization.Read(&buf)
package serialization
