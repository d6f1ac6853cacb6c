// Package runevents defines the typed event kinds and payload shapes that
// flow from the pipeline driver into a run's event ring, and from there to
// SSE subscribers.
package runevents

import "time"

// Kind identifies the type of a RunEvent, used as the SSE "event:" field.
type Kind string

const (
	KindStatus           Kind = "status"
	KindToolUse          Kind = "tool_use"
	KindToolResult       Kind = "tool_result"
	KindTranscriptChunk  Kind = "transcript_chunk"
	KindTodo             Kind = "todo"
	KindJudgeRound       Kind = "judge_round"
	KindCost             Kind = "cost"
	KindLog              Kind = "log"
	KindFinal            Kind = "final"
	KindError            Kind = "error"
)

// Event is a single append-only record in a run's event ring. Seq is
// assigned by the run store and is strictly increasing and dense per run.
type Event struct {
	Seq     int       `json:"seq"`
	Kind    Kind       `json:"kind"`
	Payload any        `json:"payload"`
	At      time.Time `json:"at"`
}

// StatusPayload is the payload for KindStatus events: a phase transitioned
// to a new status.
type StatusPayload struct {
	Step   string         `json:"step"`
	Status string         `json:"status"`
	At     time.Time      `json:"at"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// ToolUsePayload is the payload for KindToolUse events.
type ToolUsePayload struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	StartedAt     time.Time `json:"startedAt"`
	InputSummary  string    `json:"inputSummary,omitempty"`
}

// ToolResultPayload is the payload for KindToolResult events.
type ToolResultPayload struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	IsError    bool      `json:"isError"`
	Content    string    `json:"content,omitempty"`
	FinishedAt time.Time `json:"finishedAt"`
	DurationMs int64     `json:"durationMs"`
}

// TranscriptChunkPayload is the payload for KindTranscriptChunk events.
type TranscriptChunkPayload struct {
	Transcript       string    `json:"transcript,omitempty"`
	ProcessedChunks  int       `json:"processedChunks"`
	TotalChunks      int       `json:"totalChunks"`
	At               time.Time `json:"at"`
}

// Todo is a single entry in a TodoPayload.
type Todo struct {
	Content    string `json:"content"`
	Status     string `json:"status"`
	ActiveForm string `json:"activeForm,omitempty"`
}

// TodoPayload is the payload for KindTodo events.
type TodoPayload struct {
	Todos []Todo `json:"todos"`
}

// JudgeRoundPayload is the payload for KindJudgeRound events.
type JudgeRoundPayload struct {
	Round           int       `json:"round"`
	Approved        bool      `json:"approved"`
	Reasons         []string  `json:"reasons,omitempty"`
	RequiredChanges []string  `json:"required_changes,omitempty"`
	RevisedDraft    string    `json:"revised_draft,omitempty"`
	At              time.Time `json:"at"`
}

// CostSummary mirrors cost.Summary without importing pkg/cost, keeping this
// package dependency-free.
type CostSummary struct {
	TotalTokens     int64          `json:"totalTokens"`
	EstimatedCostUSD float64       `json:"estimatedCostUSD"`
	Breakdown       map[string]any `json:"breakdown,omitempty"`
}

// CostPayload is the payload for KindCost events.
type CostPayload struct {
	Summary CostSummary `json:"summary"`
	At      time.Time   `json:"at"`
}

// LogPayload is the payload for KindLog events.
type LogPayload struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// FinalPayload is the payload for KindFinal events.
type FinalPayload struct {
	OK           bool   `json:"ok"`
	Draft        string `json:"draft,omitempty"`
	Docx         string `json:"docx,omitempty"`
	DocxRelative string `json:"docxRelative,omitempty"`
	Recovered    bool   `json:"recovered,omitempty"`
}

// ErrorPayload is the payload for KindError events.
type ErrorPayload struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Aborted bool   `json:"aborted,omitempty"`
}
