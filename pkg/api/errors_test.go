package api

import "testing"

func TestAPIErrorError(t *testing.T) {
	err := NewInvalidRequestError("audio", "forbidden path segment")
	want := "invalid_request: forbidden path segment (param: audio)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	noParam := NewNotFoundError("run not found")
	want = "not_found: run not found"
	if got := noParam.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestNewConflictError(t *testing.T) {
	err := NewConflictError("run already terminal")
	if err.Type != ErrorTypeConflict {
		t.Errorf("Type = %q, want %q", err.Type, ErrorTypeConflict)
	}
}
