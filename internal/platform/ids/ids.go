package ids

import "github.com/google/uuid"

// New returns a time-ordered UUIDv7 string, so freshly inserted rows land
// at the right edge of the primary key index. Falls back to v4 if the
// clock sequence cannot be read.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
