package api

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	idLength = 24

	runIDPrefix      = "run_"
	toolCallIDPrefix = "tc_"
)

var (
	runIDPattern      = regexp.MustCompile(`^run_[a-zA-Z0-9]{24}$`)
	toolCallIDPattern = regexp.MustCompile(`^tc_[a-zA-Z0-9]{24}$`)
)

// NewRunID generates a new run id with the "run_" prefix followed by 24
// hexadecimal characters taken from random UUIDs.
func NewRunID() string {
	return runIDPrefix + randomAlphanumeric(idLength)
}

// NewToolCallID generates a synthetic id for an inflight tool invocation
// that the upstream runtime did not itself assign a stable id to.
func NewToolCallID() string {
	return toolCallIDPrefix + randomAlphanumeric(idLength)
}

// ValidateRunID checks whether the given string is a valid run id
// (matches "run_" + 24 alphanumeric characters).
func ValidateRunID(id string) bool {
	return runIDPattern.MatchString(id)
}

// ValidateToolCallID checks whether the given string is a valid synthetic
// tool-call id (matches "tc_" + 24 alphanumeric characters).
func ValidateToolCallID(id string) bool {
	return toolCallIDPattern.MatchString(id)
}

// randomAlphanumeric returns n hex characters drawn from one or more UUIDs,
// which is alphanumeric by construction and satisfies the id patterns above.
func randomAlphanumeric(n int) string {
	var b strings.Builder
	for b.Len() < n {
		b.WriteString(strings.ReplaceAll(uuid.NewString(), "-", ""))
	}
	return b.String()[:n]
}
