package telemetry

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// Compression type constants.
const (
	CompressionNone    = "none"
	CompressionGzip    = "gzip"
	CompressionZstd    = "zstd"
	CompressionDeflate = "deflate"
	CompressionSnappy  = "snappy"
)

// compressor compresses request bodies using a configured algorithm.
// The zstd encoder is created once up front since it is expensive.
type compressor struct {
	algorithm string
	zstdEnc   *zstd.Encoder
}

func newCompressor(algorithm string) (*compressor, error) {
	c := &compressor{algorithm: algorithm}

	if algorithm == CompressionZstd {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("creating zstd encoder: %w", err)
		}

		c.zstdEnc = enc
	}

	return c, nil
}

func (c *compressor) compress(data []byte) ([]byte, error) {
	switch c.algorithm {
	case CompressionNone, "":
		return data, nil
	case CompressionGzip:
		var buf bytes.Buffer

		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("gzip write: %w", err)
		}

		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("gzip close: %w", err)
		}

		return buf.Bytes(), nil
	case CompressionZstd:
		return c.zstdEnc.EncodeAll(data, make([]byte, 0, len(data))), nil
	case CompressionDeflate:
		var buf bytes.Buffer

		w := zlib.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("deflate write: %w", err)
		}

		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("deflate close: %w", err)
		}

		return buf.Bytes(), nil
	case CompressionSnappy:
		return snappy.Encode(nil, data), nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", c.algorithm)
	}
}

// contentEncoding returns the Content-Encoding header value for the
// algorithm, or empty when no header should be set.
func (c *compressor) contentEncoding() string {
	switch c.algorithm {
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	case CompressionDeflate:
		return "deflate"
	case CompressionSnappy:
		return "snappy"
	default:
		return ""
	}
}

func (c *compressor) close() error {
	if c.zstdEnc != nil {
		return c.zstdEnc.Close()
	}

	return nil
}

// DecompressGzip decompresses gzip data (for testing).
func DecompressGzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}

// DecompressZstd decompresses zstd data (for testing).
func DecompressZstd(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	return io.ReadAll(dec)
}

// DecompressSnappy decompresses snappy data (for testing).
func DecompressSnappy(data []byte) ([]byte, error) {
	return snappy.Decode(nil, data)
}
