package ingest

import (
	"errors"
	"fmt"
)

// ErrNotReady indicates the file is still being written. Transient:
// the dispatcher retries after the poll interval instead of treating
// it as a failure.
var ErrNotReady = errors.New("file not ready")

// ChecksumError indicates the file's content digest could not be
// computed. The file is dropped and the failure logged with enough
// context for manual replay.
type ChecksumError struct {
	Path string
	Err  error
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("failed to checksum %s: %v", e.Path, e.Err)
}

func (e *ChecksumError) Unwrap() error {
	return e.Err
}
