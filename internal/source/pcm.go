package source

import "encoding/binary"

// bytesPerSample returns the container size of a raw little-endian sample.
func bytesPerSample(bitDepth int) int {
	if bitDepth == 16 {
		return 2
	}
	return 4
}

// decodePCM converts little-endian signed samples from src into dst and
// returns the number of samples written. Trailing bytes that do not form a
// whole sample are ignored.
func decodePCM(dst []int32, src []byte, bitDepth int) int {
	if bitDepth == 16 {
		n := min(len(dst), len(src)/2)
		for i := range n {
			dst[i] = int32(int16(binary.LittleEndian.Uint16(src[i*2:])))
		}
		return n
	}

	n := min(len(dst), len(src)/4)
	for i := range n {
		dst[i] = int32(binary.LittleEndian.Uint32(src[i*4:]))
	}
	return n
}
