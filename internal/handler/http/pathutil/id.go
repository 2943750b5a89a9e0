// Package pathutil provides URL path helpers shared by the HTTP handlers.
package pathutil

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
)

// ErrInvalidID is returned when the ID in the URL path is invalid.
var ErrInvalidID = errors.New("invalid id")

// ExtractUUID reads a path wildcard registered on the mux (e.g. "{id}") and
// validates it as a UUID. Notification and tracking ids are UUIDs; anything
// else in the path segment is a client error, not a lookup miss.
func ExtractUUID(r *http.Request, name string) (string, error) {
	value := r.PathValue(name)
	if _, err := uuid.Parse(value); err != nil {
		return "", ErrInvalidID
	}
	return value, nil
}

// ExtractSegment reads a non-empty path wildcard without format validation.
// Used for provider names in webhook routes.
func ExtractSegment(r *http.Request, name string) (string, error) {
	value := r.PathValue(name)
	if value == "" {
		return "", ErrInvalidID
	}
	return value, nil
}
