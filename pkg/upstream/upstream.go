// Package upstream defines the pipeline driver's boundary with the agent
// runtime that actually does the transcribing, drafting, reviewing, and
// exporting: a single minimal streaming interface, deliberately kept small
// because the upstream runtime itself is an out-of-scope external
// collaborator (SPEC_FULL.md §1).
package upstream

import (
	"context"
	"time"
)

// MessageKind discriminates the union of message shapes a Runtime emits.
type MessageKind string

const (
	// KindSystem carries the upstream session id and any startup metadata.
	KindSystem MessageKind = "system"
	// KindAssistantText carries a chunk of free-text assistant output.
	KindAssistantText MessageKind = "assistant_text"
	// KindToolUse carries one tool invocation the assistant has requested.
	KindToolUse MessageKind = "tool_use"
	// KindToolResult carries the outcome of a previously issued tool use.
	KindToolResult MessageKind = "tool_result"
	// KindResult is the terminal message of a run: either a final answer or
	// a driver-detected/upstream-reported error.
	KindResult MessageKind = "result"
)

// ToolUse is one tool invocation requested by the upstream assistant.
type ToolUse struct {
	ID    string
	Name  string
	Input map[string]any
}

// ToolResult is the outcome of executing a ToolUse.
type ToolResult struct {
	ToolUseID string
	Content   string
	IsError   bool
}

// Usage is the token-accounting block the pipeline driver folds into its
// cost tracker; nil when a message carries none.
type Usage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

// Message is one event in the stream a Runtime produces for a single run.
// Exactly one of the kind-specific fields is populated, matching Kind.
type Message struct {
	Kind MessageKind
	At   time.Time

	// Present only on KindSystem.
	SessionID string

	// Present only on KindAssistantText.
	Text string

	// Present only on KindToolUse.
	ToolUse *ToolUse

	// Present only on KindToolResult.
	ToolResult *ToolResult

	// Present only on KindResult.
	FinalText string
	IsError   bool
	ErrorText string

	// MessageID, when non-empty, is a stable id the cost tracker uses for
	// exact dedup instead of its fingerprint fallback.
	MessageID string
	Usage     *Usage
}

// Request is the single call a pipeline run makes to start an upstream
// session: the rendered instruction prompt, the working directory it
// operates against, and an optional turn budget.
type Request struct {
	Prompt  string
	WorkDir string

	// MaxTurns caps the number of steps a runtime may take before it
	// abandons the session as over-budget (LocalRuntime counts every script
	// step, text or tool use). Zero means no cap.
	MaxTurns int
}

// Runtime starts one upstream agent session per call and streams back its
// messages. The returned channel is closed when the session ends, whether
// by a terminal KindResult message, an error, or ctx cancellation.
type Runtime interface {
	Run(ctx context.Context, req Request) (<-chan Message, error)
}
