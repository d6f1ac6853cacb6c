// Package pipeline implements the Pipeline Driver (component D): the
// goroutine that consumes the upstream agent runtime's message stream for a
// single run, drives the Cost Tracker, Phase State Machine, and
// Transcription Aggregator, and funnels every observation to the Run
// Store's append/status sinks.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rhuss/antwort/pkg/cost"
	"github.com/rhuss/antwort/pkg/phase"
	"github.com/rhuss/antwort/pkg/runevents"
	"github.com/rhuss/antwort/pkg/transcription"
	"github.com/rhuss/antwort/pkg/upstream"
)

// RunStatus mirrors runstore.Status's values without importing that
// package, keeping the driver decoupled from the store's concrete type the
// way SPEC_FULL.md §4.D describes its inputs (plain emit/setStatus sinks).
type RunStatus string

// The driver-visible run statuses, matching runstore.Status's string values.
const (
	Running RunStatus = "running"
	Success RunStatus = "success"
	Error   RunStatus = "error"
)

// EmitFunc appends one event to the run's stream.
type EmitFunc func(kind runevents.Kind, payload any)

// SetStatusFunc write-through updates the run's terminal/running status.
type SetStatusFunc func(status RunStatus, errMsg string)

// recoveryMinBytes is the size an output file must exceed to be treated as
// a recovered success when the upstream runtime fails or its stream ends
// without a result message.
const recoveryMinBytes = 1000

// Config is the fixed, per-deployment configuration the driver needs beyond
// a single request: tool names it recognizes, the review-round cap, the turn
// budget it passes to the upstream runtime, and a tool timeout value that the
// driver itself does not apply. The prompt and guidelines paths arrive per
// Request.
type Config struct {
	TranscribeTool string
	DraftTool      string
	ExportTool     string
	TodoTool       string
	ReviewRoundCap int
	MaxTurns       int
	ToolTimeout    time.Duration
}

// Request is one run's invocation parameters.
type Request struct {
	AudioPath      string
	TemplatePath   string
	OutputPath     string
	PromptPath     string
	GuidelinesPath string
	InputLanguage  string
	OutputLanguage string
	ProjectRoot    string
}

// Driver runs a single pipeline to completion.
type Driver struct {
	Config  Config
	Runtime upstream.Runtime
	Emit    EmitFunc
	SetStatus SetStatusFunc

	cost        *cost.Tracker
	machine     *phase.Machine
	transcript  *transcription.Aggregator
	inflight    map[string]inflightCall
	judgeRound  int
}

type inflightCall struct {
	name      string
	startedAt time.Time
}

// Run drives req to completion. It returns only once the run has reached a
// terminal outcome (success, error, or the ctx-cancelled abort path) and
// every exit path has called finish via the caller (the caller — typically
// cmd/server — owns calling the Run Store's finish(id) once Run returns).
func (d *Driver) Run(ctx context.Context, req Request) {
	d.cost = cost.New()
	d.machine = phase.New()
	d.transcript = transcription.New()
	d.inflight = make(map[string]inflightCall)

	d.SetStatus(Running, "")
	if t := d.machine.StartPhase(phase.Transcribe); t != nil {
		d.emitTransition(*t)
	}

	msgs, err := d.Runtime.Run(ctx, upstream.Request{
		Prompt:   d.buildPrompt(req),
		WorkDir:  req.ProjectRoot,
		MaxTurns: d.Config.MaxTurns,
	})
	if err != nil {
		d.finishWithRecovery(req)
		return
	}

	sawResult := false
	for !sawResult {
		select {
		case <-ctx.Done():
			// The cancellation signal's owner (the Run Store) already set
			// status=aborted and appended the terminal error event; the
			// driver's only remaining job is to stop without emitting
			// `final` (SPEC_FULL.md §4.D step 5).
			return
		case msg, ok := <-msgs:
			if !ok {
				d.finishWithRecovery(req)
				return
			}
			d.handleMessage(msg, &sawResult)
		}
	}
}

func (d *Driver) buildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Transcribe the audio at %q, draft a document from it, have it reviewed, then export it.\n", req.AudioPath)
	fmt.Fprintf(&b, "Input language: %s. Output language: %s.\n", req.InputLanguage, req.OutputLanguage)
	fmt.Fprintf(&b, "Template: %q. Output path: %q.\n", req.TemplatePath, req.OutputPath)
	if req.GuidelinesPath != "" {
		if data, err := os.ReadFile(req.GuidelinesPath); err == nil {
			fmt.Fprintf(&b, "Guidelines:\n%s\n", string(data))
		}
	}
	fmt.Fprintf(&b, "Use tool %q to transcribe, %q to draft, %q to export.\n",
		d.Config.TranscribeTool, d.Config.DraftTool, d.Config.ExportTool)
	fmt.Fprintf(&b, "Example transcribe call: {\"file\": %q}. Example export call: {\"draft\": \"...\", \"outdoc\": %q}.\n",
		req.AudioPath, req.OutputPath)
	if req.PromptPath != "" {
		if data, err := os.ReadFile(req.PromptPath); err == nil {
			fmt.Fprintf(&b, "%s\n", string(data))
		}
	}
	return b.String()
}

func (d *Driver) handleMessage(msg upstream.Message, sawResult *bool) {
	d.recordCost(msg)

	switch msg.Kind {
	case upstream.KindSystem:
		d.Emit(runevents.KindLog, runevents.LogPayload{
			Level:   "info",
			Message: fmt.Sprintf("session started: %s", msg.SessionID),
		})
	case upstream.KindAssistantText:
		d.handleAssistantText(msg.Text)
	case upstream.KindToolUse:
		d.handleToolUse(msg)
	case upstream.KindToolResult:
		d.handleToolResult(msg)
	case upstream.KindResult:
		d.handleResult(msg)
		*sawResult = true
	}
}

func (d *Driver) recordCost(msg upstream.Message) {
	var u *cost.Usage
	if msg.Usage != nil {
		u = &cost.Usage{
			InputTokens:              msg.Usage.InputTokens,
			OutputTokens:             msg.Usage.OutputTokens,
			CacheCreationInputTokens: msg.Usage.CacheCreationInputTokens,
			CacheReadInputTokens:     msg.Usage.CacheReadInputTokens,
		}
	}
	d.cost.Record(cost.Message{ID: msg.MessageID, At: msg.At, Usage: u})
	d.emitCostSummary(msg.At)
}

func (d *Driver) emitCostSummary(at time.Time) {
	s := d.cost.Summary()
	d.Emit(runevents.KindCost, runevents.CostPayload{
		Summary: runevents.CostSummary{
			TotalTokens:      s.TotalTokens,
			EstimatedCostUSD: s.EstimatedCostUSD,
			Breakdown:        breakdownToMap(s.Breakdown),
		},
		At: at,
	})
}

// recordGeminiUsage extracts the transcribe tool's own usage block, if any,
// and attributes it to the gemini buckets — the transcription provider's
// token counts never arrive on the upstream message's own Usage field since
// that field carries the orchestrating model's usage, not the tool's.
func (d *Driver) recordGeminiUsage(toolCallID, content string, at time.Time) {
	text, ok := extractJSON(content)
	if !ok {
		return
	}
	var payload struct {
		Usage *struct {
			InputTokens  int64 `json:"inputTokens"`
			OutputTokens int64 `json:"outputTokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil || payload.Usage == nil {
		return
	}
	d.cost.RecordGemini(toolCallID, at, payload.Usage.InputTokens, payload.Usage.OutputTokens)
	d.emitCostSummary(at)
}

func breakdownToMap(b map[string]cost.BucketCost) map[string]any {
	out := make(map[string]any, len(b))
	for k, v := range b {
		out[k] = map[string]any{"tokens": v.Tokens, "costUSD": v.CostUSD}
	}
	return out
}

func (d *Driver) toolPhase(name string) (phase.Phase, bool) {
	switch name {
	case d.Config.TranscribeTool:
		return phase.Transcribe, true
	case d.Config.DraftTool:
		return phase.Draft, true
	case d.Config.ExportTool:
		return phase.Export, true
	}
	return "", false
}

func (d *Driver) handleToolUse(msg upstream.Message) {
	tu := msg.ToolUse
	if tu == nil {
		return
	}
	d.inflight[tu.ID] = inflightCall{name: tu.Name, startedAt: msg.At}

	d.Emit(runevents.KindToolUse, runevents.ToolUsePayload{
		ID:           tu.ID,
		Name:         tu.Name,
		StartedAt:    msg.At,
		InputSummary: summarizeInput(tu.Input),
	})

	for _, t := range phase.OnToolUse(d.machine, tu.Name, d.Config.TranscribeTool, d.Config.DraftTool, d.Config.ExportTool) {
		d.emitTransition(t)
	}

	if tu.Name == d.Config.TodoTool {
		d.emitTodos(tu.Input)
	}
}

func summarizeInput(input map[string]any) string {
	data, err := json.Marshal(input)
	if err != nil {
		return ""
	}
	const cap = 200
	if len(data) > cap {
		return string(data[:cap])
	}
	return string(data)
}

func (d *Driver) emitTodos(input map[string]any) {
	raw, ok := input["todos"]
	if !ok {
		return
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return
	}
	var todos []runevents.Todo
	if err := json.Unmarshal(data, &todos); err != nil {
		return
	}
	d.Emit(runevents.KindTodo, runevents.TodoPayload{Todos: todos})
}

func (d *Driver) handleToolResult(msg upstream.Message) {
	tr := msg.ToolResult
	if tr == nil {
		return
	}
	call, ok := d.inflight[tr.ToolUseID]
	if !ok {
		return
	}
	delete(d.inflight, tr.ToolUseID)

	duration := msg.At.Sub(call.startedAt).Milliseconds()
	d.Emit(runevents.KindToolResult, runevents.ToolResultPayload{
		ID:         tr.ToolUseID,
		Name:       call.name,
		IsError:    tr.IsError,
		Content:    tr.Content,
		FinishedAt: msg.At,
		DurationMs: duration,
	})

	if p, ok := d.toolPhase(call.name); ok {
		for _, t := range d.machine.OnToolResult(p, tr.IsError) {
			d.emitTransition(t)
		}
	}

	if call.name == d.Config.TranscribeTool {
		d.foldTranscriptChunk(tr.Content, msg.At)
		d.recordGeminiUsage(tr.ToolUseID, tr.Content, msg.At)
	}

	if tr.IsError {
		d.Emit(runevents.KindError, runevents.ErrorPayload{Message: tr.Content})
	}
}

func (d *Driver) foldTranscriptChunk(content string, at time.Time) {
	text, ok := extractJSON(content)
	if !ok {
		return
	}
	var payload struct {
		Transcript      *string             `json:"transcript"`
		Segments        []transcription.Segment `json:"segments"`
		ProcessedChunks *int                `json:"processedChunks"`
		TotalChunks     *int                `json:"totalChunks"`
		StartChunk      *int                `json:"startChunk"`
		NextChunk       *int                `json:"nextChunk"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return
	}
	nextIsNull := strings.Contains(text, `"nextChunk"`) && strings.Contains(text, `"nextChunk":null`)
	st := d.transcript.Fold(transcription.ChunkPayload{
		Transcript:      payload.Transcript,
		Segments:        payload.Segments,
		ProcessedChunks: payload.ProcessedChunks,
		TotalChunks:     payload.TotalChunks,
		StartChunk:      payload.StartChunk,
		NextChunk:       payload.NextChunk,
		NextChunkIsNull: nextIsNull,
	})
	d.Emit(runevents.KindTranscriptChunk, runevents.TranscriptChunkPayload{
		Transcript:      st.Preview,
		ProcessedChunks: st.Processed,
		TotalChunks:     st.Total,
		At:              at,
	})
}

func (d *Driver) handleAssistantText(text string) {
	jsonText, ok := extractJSON(strings.TrimSpace(text))
	if !ok {
		return
	}
	var verdict struct {
		Approved        *bool    `json:"approved"`
		Reasons         []string `json:"reasons"`
		RequiredChanges []string `json:"required_changes"`
		RevisedDraft    string   `json:"revised_draft"`
	}
	if err := json.Unmarshal([]byte(jsonText), &verdict); err != nil || verdict.Approved == nil {
		return
	}

	d.judgeRound++
	d.Emit(runevents.KindJudgeRound, runevents.JudgeRoundPayload{
		Round:           d.judgeRound,
		Approved:        *verdict.Approved,
		Reasons:         verdict.Reasons,
		RequiredChanges: verdict.RequiredChanges,
		RevisedDraft:    verdict.RevisedDraft,
		At:              time.Now(),
	})

	for _, t := range d.machine.OnJudgeVerdict(*verdict.Approved, d.judgeRound, d.Config.ReviewRoundCap) {
		d.emitTransition(t)
	}
}

func (d *Driver) handleResult(msg upstream.Message) {
	if msg.IsError {
		d.Emit(runevents.KindError, runevents.ErrorPayload{Message: msg.ErrorText})
		d.SetStatus(Error, msg.ErrorText)
		return
	}

	text, ok := extractJSON(strings.TrimSpace(msg.FinalText))
	if !ok {
		d.Emit(runevents.KindError, runevents.ErrorPayload{Message: "could not parse final result"})
		d.SetStatus(Error, "could not parse final result")
		return
	}

	var payload struct {
		Status string `json:"status"`
		Draft  string `json:"draft"`
		Docx   string `json:"docx"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil || payload.Status != "ok" {
		d.Emit(runevents.KindError, runevents.ErrorPayload{Message: "final result did not report success"})
		d.SetStatus(Error, "final result did not report success")
		return
	}

	for _, t := range d.machine.SucceedPhase(phase.Export) {
		d.emitTransition(t)
	}
	d.Emit(runevents.KindFinal, runevents.FinalPayload{
		OK:           true,
		Draft:        payload.Draft,
		Docx:         payload.Docx,
		DocxRelative: relativeOrSame(payload.Docx),
	})
	d.SetStatus(Success, "")
}

func relativeOrSame(path string) string {
	return filepath.Base(path)
}

// finishWithRecovery handles both "iterator raised before a final event"
// paths: an upfront Runtime.Run error and a channel that closed without a
// result message. It probes the output path per SPEC_FULL.md §4.D step 4.
func (d *Driver) finishWithRecovery(req Request) {
	info, err := os.Stat(req.OutputPath)
	if err == nil && !info.IsDir() && info.Size() > recoveryMinBytes {
		d.Emit(runevents.KindFinal, runevents.FinalPayload{
			OK:        true,
			Docx:      req.OutputPath,
			Recovered: true,
		})
		d.SetStatus(Success, "")
		return
	}
	d.Emit(runevents.KindError, runevents.ErrorPayload{Message: "run ended without a result and no recoverable output was found"})
	d.SetStatus(Error, "run ended without a result")
}

func (d *Driver) emitTransition(t phase.Transition) {
	d.Emit(runevents.KindStatus, runevents.StatusPayload{
		Step:   string(t.Phase),
		Status: string(t.Status),
		At:     time.Now(),
		Meta:   t.Meta,
	})
}

// extractJSON implements SPEC_FULL.md §4.D's JSON-from-free-text rule:
// accept the whole string if it is already a JSON object, a fenced ```json
// block, or the first-`{`-to-last-`}` substring if that is itself an
// object. Returns ok=false on no match; callers silently ignore that case.
func extractJSON(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return trimmed, true
	}
	if fenced, ok := extractFencedJSON(trimmed); ok {
		return fenced, true
	}
	first := strings.Index(trimmed, "{")
	last := strings.LastIndex(trimmed, "}")
	if first >= 0 && last > first {
		candidate := trimmed[first : last+1]
		return candidate, true
	}
	return "", false
}

func extractFencedJSON(s string) (string, bool) {
	const open = "```json"
	start := strings.Index(s, open)
	if start < 0 {
		return "", false
	}
	rest := s[start+len(open):]
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	body := strings.TrimSpace(rest[:end])
	if strings.HasPrefix(body, "{") && strings.HasSuffix(body, "}") {
		return body, true
	}
	return "", false
}
