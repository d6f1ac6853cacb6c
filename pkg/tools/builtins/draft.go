package builtins

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rhuss/antwort/pkg/api"
	"github.com/rhuss/antwort/pkg/tools"
	"github.com/rhuss/antwort/pkg/tools/registry"
)

// DraftProvider is the local stand-in for the draft-generation tool
// provider: it turns a transcript into a placeholder document body. Like
// TranscribeProvider, it never produces real document content (a spec
// Non-goal); it exists so the Phase State Machine and reviewer verdict
// plumbing downstream of "draft" have a real tool-result to react to.
type DraftProvider struct {
	ToolName string
}

var _ registry.FunctionProvider = (*DraftProvider)(nil)

// NewDraftProvider creates a DraftProvider registered under toolName.
func NewDraftProvider(toolName string) *DraftProvider {
	return &DraftProvider{ToolName: toolName}
}

func (p *DraftProvider) Name() string { return "draft" }

func (p *DraftProvider) Tools() []api.ToolDefinition {
	schema := json.RawMessage(`{
		"type": "object",
		"properties": {
			"transcript": {"type": "string", "description": "Full transcript text to draft a document from."},
			"templatePath": {"type": "string", "description": "Path to the .docx template to draft against."}
		},
		"required": ["transcript"]
	}`)
	return []api.ToolDefinition{{
		Type:        "function",
		Name:        p.ToolName,
		Description: "Draft a document from transcript, following the structure of templatePath.",
		Parameters:  schema,
	}}
}

func (p *DraftProvider) CanExecute(name string) bool { return name == p.ToolName }

type draftArgs struct {
	Transcript   string `json:"transcript"`
	TemplatePath string `json:"templatePath"`
}

func (p *DraftProvider) Execute(ctx context.Context, call tools.ToolCall) (*tools.ToolResult, error) {
	var args draftArgs
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return &tools.ToolResult{CallID: call.ID, Output: fmt.Sprintf("invalid arguments: %v", err), IsError: true}, nil
	}

	draft := fmt.Sprintf("Draft based on template %q:\n\n%s", args.TemplatePath, args.Transcript)
	payload := map[string]any{"draft": draft}
	out, err := json.Marshal(payload)
	if err != nil {
		return &tools.ToolResult{CallID: call.ID, Output: err.Error(), IsError: true}, nil
	}
	return &tools.ToolResult{CallID: call.ID, Output: string(out)}, nil
}

func (p *DraftProvider) Routes() []registry.Route             { return nil }
func (p *DraftProvider) Collectors() []prometheus.Collector { return nil }
func (p *DraftProvider) Close() error                         { return nil }
