package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// Checksum contains the checksum and size of a file
type Checksum struct {
	SHA256 string
	Size   int64
}

// CalculateChecksums calculates the checksum of a file in a single pass
func CalculateChecksums(path string) (*Checksum, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReaderChecksum(f)
}

// ReaderChecksum streams r through the hash
func ReaderChecksum(r io.Reader) (*Checksum, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return nil, err
	}

	return &Checksum{
		SHA256: hex.EncodeToString(h.Sum(nil)),
		Size:   n,
	}, nil
}

// SHA256 returns the hex encoded sha256 of data
func SHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
