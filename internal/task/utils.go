package task

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GetShortID returns the short form (first segment) of a UUID string representing a task ID.
// Returns an error if the input string is not a valid UUID.
func GetShortID(tid string) (string, error) {
	uuid, err := uuid.Parse(tid)
	if err != nil {
		return "", fmt.Errorf("broken UUID: %w", err)
	}

	return strings.Split(uuid.String(), "-")[0], nil
}

// shortID is a lenient version of GetShortID used for log fields:
// the ID is returned as is if it is not a valid UUID.
func shortID(tid string) string {
	if s, err := GetShortID(tid); err == nil {
		return s
	}

	return tid
}
