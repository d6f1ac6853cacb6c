package transport

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rhuss/antwort/pkg/api"
)

func TestChainAppliesMiddlewareInOrder(t *testing.T) {
	var order []string

	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name+":before")
				next.ServeHTTP(w, r)
				order = append(order, name+":after")
			})
		}
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	})

	chain := Chain(mw("first"), mw("second"), mw("third"))
	wrapped := chain(handler)

	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/runs", nil))

	expected := []string{
		"first:before", "second:before", "third:before",
		"handler",
		"third:after", "second:after", "first:after",
	}

	if len(order) != len(expected) {
		t.Fatalf("execution order length = %d, want %d: %v", len(order), len(expected), order)
	}
	for i, got := range order {
		if got != expected[i] {
			t.Errorf("order[%d] = %q, want %q", i, got, expected[i])
		}
	}
}

func TestRecoveryCatchesPanic(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	wrapped := Recovery(nil)(handler)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest("POST", "/runs", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if !strings.Contains(rec.Body.String(), "test panic") {
		t.Errorf("body = %q, should contain %q", rec.Body.String(), "test panic")
	}
}

func TestRecoveryPassesThroughNormalExecution(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	wrapped := Recovery(nil)(handler)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest("GET", "/runs", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRequestIDGeneratesNewID(t *testing.T) {
	var capturedID string

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedID = RequestIDFromContext(r.Context())
	})

	wrapped := RequestID()(handler)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest("GET", "/runs", nil))

	if capturedID == "" {
		t.Error("expected a generated request ID, got empty string")
	}
	if len(capturedID) != 32 { // 16 bytes = 32 hex chars
		t.Errorf("request ID length = %d, want 32 (hex encoded)", len(capturedID))
	}
	if rec.Header().Get("X-Request-ID") != capturedID {
		t.Errorf("X-Request-ID header = %q, want %q", rec.Header().Get("X-Request-ID"), capturedID)
	}
}

func TestRequestIDPropagatesExisting(t *testing.T) {
	var capturedID string

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedID = RequestIDFromContext(r.Context())
	})

	req := httptest.NewRequest("GET", "/runs", nil)
	req.Header.Set("X-Request-ID", "existing-id-123")
	wrapped := RequestID()(handler)
	wrapped.ServeHTTP(httptest.NewRecorder(), req)

	if capturedID != "existing-id-123" {
		t.Errorf("request ID = %q, want %q", capturedID, "existing-id-123")
	}
}

func TestRequestIDUniqueness(t *testing.T) {
	ids := make(map[string]bool)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids[RequestIDFromContext(r.Context())] = true
	})

	wrapped := RequestID()(handler)
	for i := 0; i < 100; i++ {
		wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/runs", nil))
	}

	if len(ids) != 100 {
		t.Errorf("expected 100 unique IDs, got %d", len(ids))
	}
}

func TestLoggingEmitsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/runs/run_abc", nil)
	req = req.WithContext(ContextWithRequestID(req.Context(), "req-log-test"))
	wrapped := Logging(logger)(handler)
	wrapped.ServeHTTP(httptest.NewRecorder(), req)

	output := buf.String()
	for _, expected := range []string{"request_id=req-log-test", "method=GET", "status=200", "request completed"} {
		if !strings.Contains(output, expected) {
			t.Errorf("log output missing %q in:\n%s", expected, output)
		}
	}
}

func TestLoggingEmitsErrorLevelOnServerFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteAPIError(w, api.NewServerError("test failure"))
	})

	wrapped := Logging(logger)(handler)
	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/runs", nil))

	output := buf.String()
	if !strings.Contains(output, "level=ERROR") {
		t.Errorf("log output missing ERROR level in:\n%s", output)
	}
	if !strings.Contains(output, "status=500") {
		t.Errorf("log output missing status=500 in:\n%s", output)
	}
}
