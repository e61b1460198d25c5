package oto

import (
	"encoding/binary"
	"math"
)

// FloatBufferToFloat32LE appends buff to dst as little-endian IEEE floats,
// clamping to [-1, 1], and returns the extended slice.
func FloatBufferToFloat32LE(buff []float32, dst []byte) []byte {
	for _, v := range buff {
		if v < -1.0 {
			v = -1.0
		} else if v > 1.0 {
			v = 1.0
		}
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}
