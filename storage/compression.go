package storage

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the block codec for persisted segments.
type Compression uint8

const (
	// CompressionNone stores segments as is.
	CompressionNone Compression = iota
	// CompressionLZ4 favors load speed.
	CompressionLZ4
	// CompressionZSTD favors size.
	CompressionZSTD
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("Compression(%d)", uint8(c))
	}
}

// ParseCompression maps "none", "lz4" and "zstd" to a Compression.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return 0, fmt.Errorf("storage: unknown compression %q", s)
	}
}

var (
	zstdEncoders sync.Pool
	zstdDecoders sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoders.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoders.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	return dec
}

// A stored block is [raw size u32][packed size u32][bytes]. A packed size
// of 0 means the bytes are raw.
const blockHeaderSize = 8

// compressBlock encodes data with c. Blocks that do not shrink below 90%
// are stored raw.
func compressBlock(data []byte, c Compression) ([]byte, error) {
	var packed []byte
	switch c {
	case CompressionNone:
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("storage: lz4: %w", err)
		}
		packed = buf[:n]
	case CompressionZSTD:
		enc := getZstdEncoder()
		packed = enc.EncodeAll(data, nil)
		zstdEncoders.Put(enc)
	default:
		return nil, fmt.Errorf("storage: unknown compression %d", c)
	}

	if len(packed) == 0 || len(packed) > len(data)*9/10 {
		out := make([]byte, blockHeaderSize+len(data))
		binary.LittleEndian.PutUint32(out, uint32(len(data)))
		copy(out[blockHeaderSize:], data)
		return out, nil
	}
	out := make([]byte, blockHeaderSize+len(packed))
	binary.LittleEndian.PutUint32(out, uint32(len(data)))
	binary.LittleEndian.PutUint32(out[4:], uint32(len(packed)))
	copy(out[blockHeaderSize:], packed)
	return out, nil
}

// decompressBlock decodes a block produced by compressBlock into dst, which
// must have the raw block size.
func decompressBlock(block []byte, c Compression, dst []byte) error {
	if len(block) < blockHeaderSize {
		return fmt.Errorf("%w: block shorter than its header", ErrCorrupt)
	}
	raw := binary.LittleEndian.Uint32(block)
	packed := binary.LittleEndian.Uint32(block[4:])
	if int(raw) != len(dst) {
		return fmt.Errorf("%w: block holds %d bytes, want %d", ErrCorrupt, raw, len(dst))
	}

	if packed == 0 {
		if len(block)-blockHeaderSize != int(raw) {
			return fmt.Errorf("%w: raw block length mismatch", ErrCorrupt)
		}
		copy(dst, block[blockHeaderSize:])
		return nil
	}
	if len(block)-blockHeaderSize != int(packed) {
		return fmt.Errorf("%w: packed block length mismatch", ErrCorrupt)
	}
	src := block[blockHeaderSize:]

	switch c {
	case CompressionLZ4:
		n, err := lz4.UncompressBlock(src, dst)
		if err != nil {
			return fmt.Errorf("%w: lz4: %w", ErrCorrupt, err)
		}
		if n != len(dst) {
			return fmt.Errorf("%w: lz4 produced %d bytes, want %d", ErrCorrupt, n, len(dst))
		}
	case CompressionZSTD:
		dec := getZstdDecoder()
		out, err := dec.DecodeAll(src, dst[:0])
		zstdDecoders.Put(dec)
		if err != nil {
			return fmt.Errorf("%w: zstd: %w", ErrCorrupt, err)
		}
		if len(out) != len(dst) {
			return fmt.Errorf("%w: zstd produced %d bytes, want %d", ErrCorrupt, len(out), len(dst))
		}
	default:
		return fmt.Errorf("%w: packed block with compression %s", ErrCorrupt, c)
	}
	return nil
}
