package checkpoint

// ErrNotFound is returned when a user has no stored snapshot.
type ErrNotFound struct {
	UserID string
}

func (e ErrNotFound) Error() string {
	if e.UserID == "" {
		return "memory state not found"
	}

	return "memory state not found for user: " + e.UserID
}
