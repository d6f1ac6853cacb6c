package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rhuss/antwort/pkg/api"
	"github.com/rhuss/antwort/pkg/tools"
	"github.com/rhuss/antwort/pkg/tools/registry"
)

// ExportProvider is a local fallback for the document-export tool
// provider, used when no MCP export server is configured (see
// pkg/tools/mcp for the production binding). It writes draft text to the
// configured output path under ProjectRoot so the pipeline driver's
// output-file recovery probe (SPEC_FULL.md §4.D step 4) has a real file to
// find.
type ExportProvider struct {
	ToolName    string
	ProjectRoot string
}

var _ registry.FunctionProvider = (*ExportProvider)(nil)

// NewExportProvider creates an ExportProvider registered under toolName,
// writing output files relative to projectRoot.
func NewExportProvider(toolName, projectRoot string) *ExportProvider {
	return &ExportProvider{ToolName: toolName, ProjectRoot: projectRoot}
}

func (p *ExportProvider) Name() string { return "export" }

func (p *ExportProvider) Tools() []api.ToolDefinition {
	schema := json.RawMessage(`{
		"type": "object",
		"properties": {
			"draft": {"type": "string", "description": "Final draft text to export."},
			"outputPath": {"type": "string", "description": "Relative .docx path to write, within the project root."}
		},
		"required": ["draft", "outputPath"]
	}`)
	return []api.ToolDefinition{{
		Type:        "function",
		Name:        p.ToolName,
		Description: "Export draft to outputPath as the final document.",
		Parameters:  schema,
	}}
}

func (p *ExportProvider) CanExecute(name string) bool { return name == p.ToolName }

type exportArgs struct {
	Draft      string `json:"draft"`
	OutputPath string `json:"outputPath"`
}

func (p *ExportProvider) Execute(ctx context.Context, call tools.ToolCall) (*tools.ToolResult, error) {
	var args exportArgs
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return &tools.ToolResult{CallID: call.ID, Output: fmt.Sprintf("invalid arguments: %v", err), IsError: true}, nil
	}
	if args.OutputPath == "" {
		return &tools.ToolResult{CallID: call.ID, Output: "outputPath is required", IsError: true}, nil
	}

	full := filepath.Join(p.ProjectRoot, args.OutputPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return &tools.ToolResult{CallID: call.ID, Output: err.Error(), IsError: true}, nil
	}
	if err := os.WriteFile(full, []byte(args.Draft), 0o644); err != nil {
		return &tools.ToolResult{CallID: call.ID, Output: err.Error(), IsError: true}, nil
	}

	out, err := json.Marshal(map[string]any{"ok": true})
	if err != nil {
		return &tools.ToolResult{CallID: call.ID, Output: err.Error(), IsError: true}, nil
	}
	return &tools.ToolResult{CallID: call.ID, Output: string(out)}, nil
}

func (p *ExportProvider) Routes() []registry.Route             { return nil }
func (p *ExportProvider) Collectors() []prometheus.Collector { return nil }
func (p *ExportProvider) Close() error                         { return nil }
