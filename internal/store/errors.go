package store

import (
	"errors"
	"fmt"

	"github.com/roach88/radcache/internal/model"
)

// StorageError reports a backing file that is missing or does not have the
// expected shape. It is fatal at open time.
type StorageError struct {
	// Path is the backing file.
	Path string

	// Message is a human-readable description.
	Message string

	// Err is the underlying driver error, if any.
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("storage error: %s (path=%s): %v", e.Message, e.Path, e.Err)
	}
	return fmt.Sprintf("storage error: %s (path=%s)", e.Message, e.Path)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ConsistencyError reports more than one stored row for a single condition
// key. It indicates prior corruption or a concurrent writer and is never
// recovered automatically.
type ConsistencyError struct {
	Key model.ConditionKey

	// Rows is the number of matching rows found (at least 2).
	Rows int
}

// Error implements the error interface.
func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency error: %d rows for condition %s", e.Rows, e.Key)
}

// IsStorageError returns true if err is or wraps a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// IsConsistencyError returns true if err is or wraps a ConsistencyError.
func IsConsistencyError(err error) bool {
	var ce *ConsistencyError
	return errors.As(err, &ce)
}

// ErrNaN is returned when writing a NaN value. SQLite stores NaN as NULL,
// which would read back as "not computed".
var ErrNaN = errors.New("NaN cannot be stored")
