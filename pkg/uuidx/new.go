package uuidx

import (
	"errors"

	"github.com/google/uuid"
)

// ErrNilUUID is returned when a parsed identifier is the all-zero UUID.
var ErrNilUUID = errors.New("nil uuid")

// New generates a new UUID using the version 7 format and returns it.
// It panics if the UUID generation fails.
func New() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewString generates a new UUID using the version 7 format and returns it as a string.
// It utilizes the New function to create the UUID and then converts it to a string.
func NewString() string {
	return New().String()
}

// Parse decodes s into a UUID. Unlike uuid.Parse it refuses the nil UUID,
// which is never handed out by New and so can't identify anything.
func Parse(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, err
	}
	if id == uuid.Nil {
		return uuid.Nil, ErrNilUUID
	}
	return id, nil
}
