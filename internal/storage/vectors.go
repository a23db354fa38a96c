package storage

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/klauspost/compress/zstd"
)

// Shared coders; EncodeAll and DecodeAll are safe for concurrent use.
var (
	vectorEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	vectorDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
)

// EncodeVector packs v as little-endian float32 and compresses it with zstd.
// A nil vector encodes to nil.
func EncodeVector(v []float32) []byte {
	if v == nil {
		return nil
	}
	raw := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(f))
	}
	return vectorEncoder.EncodeAll(raw, make([]byte, 0, len(raw)/2))
}

// DecodeVector reverses EncodeVector.
func DecodeVector(data []byte) ([]float32, error) {
	if data == nil {
		return nil, nil
	}
	raw, err := vectorDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress vector: %w", err)
	}
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("corrupt vector: %d bytes", len(raw))
	}
	v := make([]float32, len(raw)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return v, nil
}
