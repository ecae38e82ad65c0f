package compression

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pierrec/lz4"
)

var ErrCorrupt = errors.New("corrupt compressed value")

// NoCompressor stores values unchanged.
type NoCompressor struct{}

func (NoCompressor) Name() string {
	return "none"
}

func (NoCompressor) Compress(data []byte) ([]byte, error) {
	result := make([]byte, len(data))
	copy(result, data)
	return result, nil
}

func (NoCompressor) Decompress(data []byte) ([]byte, error) {
	result := make([]byte, len(data))
	copy(result, data)
	return result, nil
}

const (
	frameRaw byte = 0
	frameLZ4 byte = 1
)

// LZ4Compressor writes an LZ4 block prefixed with a frame byte and the
// uncompressed length as a uvarint. Values that do not shrink are stored raw.
type LZ4Compressor struct{}

func (LZ4Compressor) Name() string {
	return "lz4"
}

func (LZ4Compressor) Compress(data []byte) ([]byte, error) {
	header := make([]byte, 1+binary.MaxVarintLen64)
	n := 1 + binary.PutUvarint(header[1:], uint64(len(data)))

	out := make([]byte, n+lz4.CompressBlockBound(len(data)))
	size, err := lz4.CompressBlock(data, out[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compression failed: %w", err)
	}

	if size == 0 || size >= len(data) {
		out = append(out[:0], frameRaw)
		return append(out, data...), nil
	}
	copy(out, header[:n])
	out[0] = frameLZ4
	return out[:n+size], nil
}

func (LZ4Compressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrCorrupt
	}

	switch data[0] {
	case frameRaw:
		result := make([]byte, len(data)-1)
		copy(result, data[1:])
		return result, nil
	case frameLZ4:
		size, n := binary.Uvarint(data[1:])
		if n <= 0 {
			return nil, ErrCorrupt
		}
		result := make([]byte, size)
		got, err := lz4.UncompressBlock(data[1+n:], result)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompression failed: %w", err)
		}
		if uint64(got) != size {
			return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrCorrupt, size, got)
		}
		return result, nil
	default:
		return nil, fmt.Errorf("%w: unknown frame %d", ErrCorrupt, data[0])
	}
}
