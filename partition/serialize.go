package partition

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/erichchampion/codegraph/codec"
)

// Compression selects the partition blob compression algorithm.
type Compression uint8

const (
	// CompressionNone stores the encoded partition as-is.
	CompressionNone Compression = 0
	// CompressionLZ4 is fast block compression, good for hot partitions.
	CompressionLZ4 Compression = 1
	// CompressionZSTD has a better ratio, good for cold partitions.
	CompressionZSTD Compression = 2
)

// Blob layout:
//
//	[4]byte  magic "CGPB"
//	uint8    format version
//	uint8    compression type
//	uint8    codec name length
//	[]byte   codec name
//	uint32   uncompressed payload size (LE)
//	uint32   compressed payload size (LE; 0 means stored uncompressed)
//	[]byte   payload
var blobMagic = [4]byte{'C', 'G', 'P', 'B'}

const blobVersion = 1

var (
	// ErrBadBlob reports a malformed or truncated partition blob.
	ErrBadBlob = errors.New("partition: malformed blob")

	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// encodeBlob serializes a partition with the given codec and compression.
// Incompressible payloads (ratio > 0.9) fall back to uncompressed storage;
// the header records which form was stored.
func encodeBlob(p *Partition, c codec.Codec, comp Compression) ([]byte, error) {
	payload, err := c.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("partition: encode %s: %w", p.ID, err)
	}

	var compressed []byte
	switch comp {
	case CompressionNone:
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(payload)))
		n, err := lz4.CompressBlock(payload, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("partition: lz4 compress %s: %w", p.ID, err)
		}
		if n > 0 {
			compressed = buf[:n]
		}
	case CompressionZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(payload, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("partition: unknown compression type %d", comp)
	}

	if len(compressed) == 0 || float64(len(compressed)) > float64(len(payload))*0.9 {
		compressed = nil
	}

	name := c.Name()
	if len(name) > 255 {
		return nil, fmt.Errorf("partition: codec name %q too long", name)
	}

	stored := payload
	storedLen := 0
	if compressed != nil {
		stored = compressed
		storedLen = len(compressed)
	}

	out := make([]byte, 0, 4+3+len(name)+8+len(stored))
	out = append(out, blobMagic[:]...)
	out = append(out, blobVersion, byte(comp), byte(len(name)))
	out = append(out, name...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(payload)))
	out = binary.LittleEndian.AppendUint32(out, uint32(storedLen))
	out = append(out, stored...)
	return out, nil
}

// decodeBlob reverses encodeBlob. The codec is resolved from the header so
// blobs written under a different default codec still load.
func decodeBlob(data []byte) (*Partition, error) {
	if len(data) < 7 || [4]byte(data[:4]) != blobMagic {
		return nil, ErrBadBlob
	}
	if data[4] != blobVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadBlob, data[4])
	}
	comp := Compression(data[5])
	nameLen := int(data[6])

	rest := data[7:]
	if len(rest) < nameLen+8 {
		return nil, ErrBadBlob
	}
	c, ok := codec.ByName(string(rest[:nameLen]))
	if !ok {
		return nil, fmt.Errorf("partition: decode: unknown codec %q", rest[:nameLen])
	}
	rest = rest[nameLen:]

	uncompressedSize := binary.LittleEndian.Uint32(rest[0:])
	compressedSize := binary.LittleEndian.Uint32(rest[4:])
	rest = rest[8:]

	var payload []byte
	if compressedSize == 0 {
		if uint32(len(rest)) < uncompressedSize {
			return nil, ErrBadBlob
		}
		payload = rest[:uncompressedSize]
	} else {
		if uint32(len(rest)) < compressedSize {
			return nil, ErrBadBlob
		}
		stored := rest[:compressedSize]

		switch comp {
		case CompressionLZ4:
			payload = make([]byte, uncompressedSize)
			n, err := lz4.UncompressBlock(stored, payload)
			if err != nil {
				return nil, fmt.Errorf("partition: lz4 decompress: %w", err)
			}
			if uint32(n) != uncompressedSize {
				return nil, fmt.Errorf("%w: decompressed size mismatch", ErrBadBlob)
			}
		case CompressionZSTD:
			dec := getZstdDecoder()
			out, err := dec.DecodeAll(stored, make([]byte, 0, uncompressedSize))
			zstdDecoderPool.Put(dec)
			if err != nil {
				return nil, fmt.Errorf("partition: zstd decompress: %w", err)
			}
			payload = out
			if uint32(len(payload)) != uncompressedSize {
				return nil, fmt.Errorf("%w: decompressed size mismatch", ErrBadBlob)
			}
		default:
			return nil, fmt.Errorf("%w: unknown compression type %d", ErrBadBlob, comp)
		}
	}

	var p Partition
	if err := c.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("partition: decode payload: %w", err)
	}
	return &p, nil
}
