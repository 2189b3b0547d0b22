package entry

import "context"

// Repository persists entries keyed by handle
type Repository interface {
	// Get returns ErrEntryNotFound when no entry exists for handle
	Get(ctx context.Context, handle string) (*Entry, error)
	// Create returns ErrDuplicateHandle when an entry already exists
	Create(ctx context.Context, entry *Entry) error
	// Update returns ErrEntryNotFound when the handle is unknown
	Update(ctx context.Context, entry *Entry) error
}

// ErrEntryNotFound indicates a missing entry
type ErrEntryNotFound struct {
	Handle string
}

func (e ErrEntryNotFound) Error() string {
	return "entry not found: " + e.Handle
}

// Is implements the errors.Is interface for ErrEntryNotFound
func (e ErrEntryNotFound) Is(target error) bool {
	t, ok := target.(ErrEntryNotFound)
	if !ok {
		return false
	}
	// An empty target handle matches any ErrEntryNotFound
	if t.Handle == "" {
		return true
	}
	return e.Handle == t.Handle
}

// ErrDuplicateHandle indicates an entry already exists for the handle
type ErrDuplicateHandle struct {
	Handle string
}

func (e ErrDuplicateHandle) Error() string {
	return "duplicate entry handle: " + e.Handle
}

// Is implements the errors.Is interface for ErrDuplicateHandle
func (e ErrDuplicateHandle) Is(target error) bool {
	t, ok := target.(ErrDuplicateHandle)
	if !ok {
		return false
	}
	if t.Handle == "" {
		return true
	}
	return e.Handle == t.Handle
}
