// Package http wires the runs domain onto net/http: request validation,
// run creation, status lookup, the SSE stream endpoint (component F), and
// abort — plus the Server type that serves them with graceful shutdown.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/rhuss/antwort/pkg/api"
	"github.com/rhuss/antwort/pkg/debug"
	"github.com/rhuss/antwort/pkg/pipeline"
	"github.com/rhuss/antwort/pkg/runevents"
	"github.com/rhuss/antwort/pkg/runstore"
	"github.com/rhuss/antwort/pkg/transport"
	"github.com/rhuss/antwort/pkg/upstream"
)

// maxBodySize bounds POST /runs request bodies.
const maxBodySize = 1 << 20 // 1 MB

// statusCheckRetries/Delay bound the wait for SetStatus to catch up with an
// already-delivered terminal error event: the driver calls Emit then
// SetStatus back-to-back on its own goroutine, so the status is visible
// within a handful of scheduler ticks in practice.
const (
	statusCheckRetries = 20
	statusCheckDelay   = time.Millisecond
)

// defaultHeartbeat is used when Handlers.Heartbeat is left zero.
const defaultHeartbeat = 15 * time.Second

// createRunRequest is the POST /runs body.
type createRunRequest struct {
	Audio          string `json:"audio"`
	Template       string `json:"template"`
	Outdoc         string `json:"outdoc"`
	InputLanguage  string `json:"inputLanguage"`
	OutputLanguage string `json:"outputLanguage"`
}

// Handlers implements the four endpoints of SPEC_FULL.md §6 over a shared
// Run Store, pipeline configuration, and upstream runtime. A fresh
// pipeline.Driver is constructed per run since a Driver carries per-run
// mutable state (cost tracker, phase machine, transcription aggregator)
// that must not be shared across concurrent runs.
type Handlers struct {
	Store          *runstore.Store
	PipelineConfig pipeline.Config
	Runtime        upstream.Runtime
	ProjectRoot    string
	PromptPath     string
	GuidelinesPath string
	Logger         *slog.Logger

	// Heartbeat is the idle duration after which the SSE stream writes a
	// comment heartbeat. Zero uses defaultHeartbeat.
	Heartbeat time.Duration
}

func (h *Handlers) heartbeat() time.Duration {
	if h.Heartbeat > 0 {
		return h.Heartbeat
	}
	return defaultHeartbeat
}

// Routes builds the runs API mux: POST /runs, GET /runs/{id}, GET
// /runs/{id}/stream, POST /runs/{id}/abort.
func (h *Handlers) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /runs", h.CreateRun)
	mux.HandleFunc("GET /runs/{id}", h.GetRun)
	mux.HandleFunc("GET /runs/{id}/stream", h.StreamRun)
	mux.HandleFunc("POST /runs/{id}/abort", h.AbortRun)
	return mux
}

func (h *Handlers) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// CreateRun handles POST /runs: validates the body, creates a run record,
// spawns the pipeline driver, and returns the new run's id.
func (h *Handlers) CreateRun(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var body createRunRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			transport.WriteAPIError(w, api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()))
			return
		}
	}

	if apiErr := validateCreateRunRequest(body); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	id, ctx := h.Store.CreateRun()

	req := pipeline.Request{
		AudioPath:      body.Audio,
		TemplatePath:   body.Template,
		OutputPath:     body.Outdoc,
		PromptPath:     h.PromptPath,
		GuidelinesPath: h.GuidelinesPath,
		InputLanguage:  body.InputLanguage,
		OutputLanguage: body.OutputLanguage,
		ProjectRoot:    h.ProjectRoot,
	}

	go h.runPipeline(ctx, id, req)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"runId":          id,
		"audio":          body.Audio,
		"template":       body.Template,
		"outdoc":         body.Outdoc,
		"inputLanguage":  body.InputLanguage,
		"outputLanguage": body.OutputLanguage,
	})
}

func validateCreateRunRequest(body createRunRequest) *api.APIError {
	if apiErr := api.ValidateRelativePath("audio", body.Audio, api.AudioExtensions); apiErr != nil {
		return apiErr
	}
	if apiErr := api.ValidateRelativePath("template", body.Template, []string{api.DocxExtension}); apiErr != nil {
		return apiErr
	}
	if apiErr := api.ValidateRelativePath("outdoc", body.Outdoc, []string{api.DocxExtension}); apiErr != nil {
		return apiErr
	}
	if apiErr := api.ValidateLanguageCode("inputLanguage", body.InputLanguage, true); apiErr != nil {
		return apiErr
	}
	if apiErr := api.ValidateLanguageCode("outputLanguage", body.OutputLanguage, false); apiErr != nil {
		return apiErr
	}
	return nil
}

// runPipeline drives one run to completion and then releases it for TTL
// cleanup. It is the only place a pipeline.Driver is constructed, precisely
// so each run gets its own zero-valued cost/phase/transcription state.
func (h *Handlers) runPipeline(ctx context.Context, id string, req pipeline.Request) {
	driver := &pipeline.Driver{
		Config:  h.PipelineConfig,
		Runtime: h.Runtime,
		Emit: func(kind runevents.Kind, payload any) {
			h.Store.AppendEvent(id, kind, payload)
		},
		SetStatus: func(status pipeline.RunStatus, errMsg string) {
			h.Store.SetStatus(id, runstore.Status(status), errMsg)
		},
	}
	driver.Run(ctx, req)
	h.Store.Finish(id)
}

// GetRun handles GET /runs/{id}: returns the run's current status.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	status, _, ok := h.Store.GetStatus(id)
	if !ok {
		transport.WriteAPIError(w, api.NewNotFoundError("run not found"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"runId":  id,
		"status": status,
	})
}

// AbortRun handles POST /runs/{id}/abort.
func (h *Handlers) AbortRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.Store.Has(id) {
		transport.WriteAPIError(w, api.NewNotFoundError("run not found"))
		return
	}

	h.Store.Abort(id, "Run aborted by client")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// StreamRun handles GET /runs/{id}/stream: component F, the SSE fan-out.
func (h *Handlers) StreamRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.Store.Has(id) {
		transport.WriteAPIError(w, api.NewNotFoundError("run not found"))
		return
	}

	events := make(chan runevents.Event, 64)
	unsubscribe, _, err := h.Store.Subscribe(id, func(ev runevents.Event) {
		select {
		case events <- ev:
		default:
			h.logger().Warn("sse: event channel full, dropping event", "run_id", id, "seq", ev.Seq)
		}
	})
	if err != nil {
		transport.WriteAPIError(w, api.NewNotFoundError("run not found"))
		return
	}

	var once sync.Once
	defer once.Do(unsubscribe)

	debug.Log("streaming", "sse subscription opened", "run_id", id)
	defer debug.Log("streaming", "sse subscription closed", "run_id", id)

	sw := newSSEWriter(w)

	interval := h.heartbeat()
	idleTimer := time.NewTimer(interval)
	defer idleTimer.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case ev := <-events:
			resetIdleTimer(idleTimer, interval)
			if err := sw.writeEvent(ev); err != nil {
				return
			}
			if ev.Kind == runevents.KindFinal {
				return
			}
			if ev.Kind == runevents.KindError && h.errorIsTerminal(id) {
				return
			}

		case <-idleTimer.C:
			if err := sw.heartbeat(); err != nil {
				return
			}
			idleTimer.Reset(interval)
		}
	}
}

func resetIdleTimer(t *time.Timer, interval time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(interval)
}

// errorIsTerminal reports whether the run's status has (or shortly will
// have) left pending/running following a delivered error event.
func (h *Handlers) errorIsTerminal(id string) bool {
	for i := 0; i < statusCheckRetries; i++ {
		status, _, ok := h.Store.GetStatus(id)
		if !ok {
			return true
		}
		if status != runstore.Pending && status != runstore.Running {
			return true
		}
		time.Sleep(statusCheckDelay)
	}
	return false
}
