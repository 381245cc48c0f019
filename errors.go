package pagestate

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicatePage  = errors.New("pagestate: page already registered")
	ErrInvalidPageKey = errors.New("pagestate: invalid page key")
	ErrClosed         = errors.New("pagestate: store closed")
)

// PersistError reports a failed snapshot write. Rejected is set when the
// provider refused the write without an error of its own.
type PersistError struct {
	StorageKey string
	Rejected   bool
	Err        error
}

func (e *PersistError) Error() string {
	switch {
	case e.Rejected:
		return fmt.Sprintf("persist %q: provider rejected write", e.StorageKey)
	case e.Err != nil:
		return fmt.Sprintf("persist %q: %v", e.StorageKey, e.Err)
	default:
		return fmt.Sprintf("persist %q: unknown error", e.StorageKey)
	}
}

func (e *PersistError) Unwrap() error { return e.Err }
