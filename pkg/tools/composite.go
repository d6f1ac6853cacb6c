package tools

import "context"

// CompositeExecutor dispatches a tool call to the first ToolExecutor in
// Executors that claims it via CanExecute, mirroring the gateway's own
// function/MCP/sandbox ToolKind split but collapsed into a single
// executor the upstream-runtime adapter can hold one reference to.
type CompositeExecutor struct {
	Executors []ToolExecutor
}

var _ ToolExecutor = (*CompositeExecutor)(nil)

// Kind returns ToolKindFunction; a composite has no single kind of its
// own, and callers that need the kind of the tool that actually served a
// call should consult the winning executor directly.
func (c *CompositeExecutor) Kind() ToolKind { return ToolKindFunction }

// CanExecute reports whether any member executor handles name.
func (c *CompositeExecutor) CanExecute(name string) bool {
	for _, e := range c.Executors {
		if e.CanExecute(name) {
			return true
		}
	}
	return false
}

// Execute routes call to the first member executor that claims it.
func (c *CompositeExecutor) Execute(ctx context.Context, call ToolCall) (*ToolResult, error) {
	for _, e := range c.Executors {
		if e.CanExecute(call.Name) {
			return e.Execute(ctx, call)
		}
	}
	return &ToolResult{CallID: call.ID, Output: "no executor registered for tool " + call.Name, IsError: true}, nil
}
