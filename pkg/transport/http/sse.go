package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rhuss/antwort/pkg/runevents"
)

// sseWriter adapts a run's event stream (as delivered through
// runstore.Store.Subscribe) to the SSE wire format: one `event: <kind>\ndata:
// <json>\n\n` frame per event, plus `: keep-alive\n\n` comments during idle
// periods. It owns no subscription state of its own — the caller drives it
// by calling writeEvent for each delivered runevents.Event and heartbeat on
// a ticker.
type sseWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

// newSSEWriter sets the SSE response headers and returns a writer ready to
// stream frames. It must be called before any other write to w.
func newSSEWriter(w http.ResponseWriter) *sseWriter {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream; charset=utf-8")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("X-Accel-Buffering", "no") // disable nginx's response buffering for this connection
	w.WriteHeader(http.StatusOK)

	return &sseWriter{w: w, rc: http.NewResponseController(w)}
}

// writeEvent writes one event frame and flushes it to the client.
func (s *sseWriter) writeEvent(ev runevents.Event) error {
	data, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", ev.Kind, data); err != nil {
		return err
	}
	return s.rc.Flush()
}

// heartbeat writes a comment frame to keep idle connections (and
// intermediating proxies) from timing out.
func (s *sseWriter) heartbeat() error {
	if _, err := fmt.Fprint(s.w, ": keep-alive\n\n"); err != nil {
		return err
	}
	return s.rc.Flush()
}
