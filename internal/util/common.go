package util

import (
	"errors"
	"strings"
	"time"
)

// Common timeout durations
const (
	WriteWait       = 10 * time.Second
	ShutdownTimeout = 5 * time.Second
)

// Size limits for caller-supplied identifiers. Payload bytes themselves are
// opaque and unbounded here; ids leak into map keys and log lines, so they
// are kept short.
const (
	MaxIDLen   = 256
	MaxNameLen = 512
)

// ValidateID validates and normalizes a caller-supplied identifier (peer id,
// group id, call id). Returns the trimmed id and an error if invalid.
func ValidateID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.New("id is empty")
	}
	if len(id) > MaxIDLen {
		return "", errors.New("id too long")
	}
	return id, nil
}

// ContainsFold reports whether substr occurs in s, case-insensitively.
// Backs the group/channel/user search operations.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
