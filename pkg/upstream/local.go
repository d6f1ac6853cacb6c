package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rhuss/antwort/pkg/api"
	"github.com/rhuss/antwort/pkg/observability"
	"github.com/rhuss/antwort/pkg/tools"
)

// Step is one scripted action a LocalRuntime session performs: either a
// tool invocation (executed against the configured tools.ToolExecutor) or a
// plain assistant-text chunk.
type Step struct {
	// ToolName, when non-empty, makes this step a tool use. Input is
	// marshaled to JSON as the tool call's arguments.
	ToolName string
	Input    map[string]any

	// Text, used when ToolName is empty, emits a KindAssistantText message.
	Text string
}

// Script is the fixed sequence of steps a LocalRuntime session replays,
// followed by a final message.
type Script struct {
	Steps     []Step
	FinalText string
	IsError   bool
	ErrorText string
}

// LocalRuntime is a deterministic Runtime stand-in for the out-of-scope
// upstream agent runtime: it replays a fixed Script, dispatching each tool
// step to a tools.ToolExecutor and interleaving the resulting tool_use/
// tool_result messages the way a real agentic loop would. It exists for
// local demo and integration-test use, grounded on the decode-loop shape of
// the teacher's provider stream translators.
type LocalRuntime struct {
	Executor  tools.ToolExecutor
	SessionID func() string
	Scripts   func(req Request) Script

	// AllowedTools, when non-empty, restricts which tool names a script
	// step may dispatch; anything else is rejected without reaching
	// Executor, the same guard a real agentic loop applies against a
	// model-proposed tool call before it leaves the server process.
	AllowedTools []string
}

// Run starts a goroutine that replays the script for req and closes the
// returned channel when done or when ctx is cancelled.
func (r *LocalRuntime) Run(ctx context.Context, req Request) (<-chan Message, error) {
	out := make(chan Message, 16)
	script := r.Scripts(req)

	go func() {
		defer close(out)

		sessionID := api.NewRunID()
		if r.SessionID != nil {
			sessionID = r.SessionID()
		}
		if !r.send(ctx, out, Message{Kind: KindSystem, At: now(), SessionID: sessionID}) {
			return
		}

		for turn, step := range script.Steps {
			if req.MaxTurns > 0 && turn >= req.MaxTurns {
				r.send(ctx, out, Message{
					Kind:      KindResult,
					At:        now(),
					IsError:   true,
					ErrorText: fmt.Sprintf("turn budget exceeded (max %d)", req.MaxTurns),
				})
				return
			}

			if step.ToolName == "" {
				if !r.send(ctx, out, Message{Kind: KindAssistantText, At: now(), Text: step.Text}) {
					return
				}
				continue
			}

			callID := api.NewToolCallID()
			args, _ := json.Marshal(step.Input)
			if !r.send(ctx, out, Message{
				Kind: KindToolUse,
				At:   now(),
				ToolUse: &ToolUse{
					ID:    callID,
					Name:  step.ToolName,
					Input: step.Input,
				},
			}) {
				return
			}

			call := tools.ToolCall{ID: callID, Name: step.ToolName, Arguments: string(args)}
			filtered := tools.FilterAllowedTools([]tools.ToolCall{call}, r.AllowedTools)

			var tr *ToolResult
			if len(filtered.Rejected) > 0 {
				rej := filtered.Rejected[0]
				tr = &ToolResult{ToolUseID: callID, Content: rej.Output, IsError: rej.IsError}
				observability.ToolExecutionsTotal.WithLabelValues(step.ToolName, "rejected").Inc()
			} else {
				result, err := r.Executor.Execute(ctx, call)
				tr = &ToolResult{ToolUseID: callID, IsError: err != nil}
				status := "ok"
				if err != nil {
					tr.Content = err.Error()
					status = "error"
				} else {
					tr.Content = result.Output
					tr.IsError = result.IsError
					if result.IsError {
						status = "error"
					}
				}
				observability.ToolExecutionsTotal.WithLabelValues(step.ToolName, status).Inc()
			}
			if !r.send(ctx, out, Message{Kind: KindToolResult, At: now(), ToolResult: tr}) {
				return
			}
		}

		r.send(ctx, out, Message{
			Kind:      KindResult,
			At:        now(),
			FinalText: script.FinalText,
			IsError:   script.IsError,
			ErrorText: script.ErrorText,
		})
	}()

	return out, nil
}

func (r *LocalRuntime) send(ctx context.Context, out chan<- Message, m Message) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case out <- m:
		return true
	case <-ctx.Done():
		return false
	}
}

// now is a thin indirection so the clock reads in this file are easy to
// spot; Runtime implementations are free to stamp real
// wall-clock time since, unlike workflow scripts, nothing here replays.
func now() time.Time { return time.Now() }
