package chunk

import "errors"

var (
	// ErrMissingChunk indicates a fragment file is absent.
	ErrMissingChunk = errors.New("chunk missing")

	// ErrSizeMismatch indicates a fragment's byte size differs from its record.
	ErrSizeMismatch = errors.New("chunk size mismatch")

	// ErrHashMismatch indicates a fragment's digest differs from its record.
	ErrHashMismatch = errors.New("chunk hash mismatch")

	// ErrReassemblyVerification indicates the reassembled output does not
	// match the original size or digest. The output has been removed.
	ErrReassemblyVerification = errors.New("reassembled file failed verification")

	// ErrAlreadyExists indicates the reassembly target already exists.
	// It is a benign no-op, not a failure.
	ErrAlreadyExists = errors.New("output already exists")

	// ErrNotChunked indicates a record without chunk details was passed to
	// the reassembler.
	ErrNotChunked = errors.New("file is not chunked")

	// ErrTooManyChunks indicates a split would produce more than MaxChunks fragments.
	ErrTooManyChunks = errors.New("too many chunks")

	// ErrInvalidChunkSize indicates a zero chunk size.
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
)
