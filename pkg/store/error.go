package store

// ErrNotFound is returned when a bullet doesn't exist in the store.
type ErrNotFound struct {
	ID string
}

func (e ErrNotFound) Error() string {
	if e.ID == "" {
		return "bullet not found"
	}

	return "bullet not found: " + e.ID
}
