package domain

import "time"

// InputEntry is an immutable record of one field write, including skips.
type InputEntry struct {
	ID        int64
	DraftID   string
	Field     FieldKey
	Value     *string
	CreatedAt time.Time
}

// StatusEntry is an immutable record of one mark-done attempt. Repeated
// marks each produce an entry even though the done-set is unchanged.
type StatusEntry struct {
	ID        int64
	DraftID   string
	Status    StatusKey
	CreatedAt time.Time
}
