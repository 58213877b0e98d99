package processing

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrBatchTooLarge   = errors.New("too many files in batch")
	ErrFileTooLarge    = errors.New("file exceeds size limit")
	ErrUnsupportedMime = errors.New("unsupported file type")
)
