package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"
)

// checksumChunkSize is the read size used when streaming a file through the hash
const checksumChunkSize = 32 * 1024

// IsStable reports whether a file has stopped growing. It samples the
// file size, waits for the given delay, and samples again; equal sizes
// mean the writer is presumed done. A path that cannot be stat'ed at
// either sample (including one that vanished between them) is treated
// as not ready rather than as an error.
func IsStable(path string, delay time.Duration) bool {
	before, err := os.Stat(path)
	if err != nil {
		return false
	}

	time.Sleep(delay)

	after, err := os.Stat(path)
	if err != nil {
		return false
	}

	return before.Size() == after.Size()
}

// Checksum streams the file through SHA-256 in fixed-size chunks and
// returns the hex digest. The digest is the content-addressing key for
// the processed-file registry.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, checksumChunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
