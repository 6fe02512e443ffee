package disk

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrNotFound marks a missing read, stat, copy-source or move-source
	// target. It wraps fs.ErrNotExist so callers checking the OS marker
	// with errors.Is see a match.
	ErrNotFound = fmt.Errorf("file not found: %w", fs.ErrNotExist)

	// ErrInvalidPath marks a logical path that is malformed or escapes the
	// disk root.
	ErrInvalidPath = errors.New("invalid path")

	// ErrFeatureDisabled marks URL generation on a disk without asset
	// serving enabled.
	ErrFeatureDisabled = errors.New("asset serving is disabled for this disk")

	// ErrInvalidSignature marks a missing, malformed, mismatched or
	// expired signature.
	ErrInvalidSignature = errors.New("invalid or expired signature")

	// ErrStreamConsumed marks a read attempt on a stream that was already
	// fully consumed or closed.
	ErrStreamConsumed = errors.New("stream already consumed")
)
