// SPDX-License-Identifier: MIT
package flash

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Aggregate records are a verbatim little-endian float32 image of the
// per-bin running means: 4 bytes per bin, no header. Write and read sides
// share this codec, so a record read back deserializes bit-for-bit.

// RecordLength returns the serialized record size in bytes for the given
// bin count.
func RecordLength(bins int) int {
	return 4 * bins
}

// MarshalRecord serializes the per-bin means into dst. dst must be exactly
// RecordLength(len(means)) bytes; a mismatch means the caller's registered
// buffer was sized for a different bin count, which is a configuration
// error.
func MarshalRecord(means []float32, dst []byte) error {
	if len(dst) != RecordLength(len(means)) {
		return fmt.Errorf("flash: record buffer %d bytes, expected %d for %d bins",
			len(dst), RecordLength(len(means)), len(means))
	}
	for i, v := range means {
		binary.LittleEndian.PutUint32(dst[4*i:], math.Float32bits(v))
	}
	return nil
}

// UnmarshalRecord deserializes a record into dst, the inverse of
// MarshalRecord.
func UnmarshalRecord(src []byte, dst []float32) error {
	if len(src) != RecordLength(len(dst)) {
		return fmt.Errorf("flash: record buffer %d bytes, expected %d for %d bins",
			len(src), RecordLength(len(dst)), len(dst))
	}
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[4*i:]))
	}
	return nil
}
