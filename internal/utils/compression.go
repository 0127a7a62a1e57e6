package utils

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// Compression types understood by Compress and Decompress
const (
	CompressionGzip = "gz"
	CompressionXz   = "xz"
)

// GzipCompress compresses data using gzip
func GzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)

	if _, err := w.Write(data); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// GzipDecompress decompresses gzip data
func GzipDecompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}

// XzCompress compresses data using xz
func XzCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, err
	}

	if _, err := w.Write(data); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// XzDecompress decompresses xz data
func XzDecompress(data []byte) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	return io.ReadAll(r)
}

// Compress compresses data with the named compression type
func Compress(kind string, data []byte) ([]byte, error) {
	switch kind {
	case CompressionGzip:
		return GzipCompress(data)
	case CompressionXz:
		return XzCompress(data)
	default:
		return nil, fmt.Errorf("unsupported compression type %q", kind)
	}
}

// DecompressFile decompresses data according to the extension of name.
// Uncompressed names are returned as is.
func DecompressFile(name string, data []byte) ([]byte, error) {
	switch {
	case strings.HasSuffix(name, "."+CompressionGzip):
		return GzipDecompress(data)
	case strings.HasSuffix(name, "."+CompressionXz):
		return XzDecompress(data)
	default:
		return data, nil
	}
}
