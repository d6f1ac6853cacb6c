// Package builtins provides the local, function-style stand-ins for the
// three tool providers the pipeline driver treats as out-of-scope external
// collaborators: audio transcription, draft generation, and document
// export. Each is a registry.FunctionProvider the server registers into a
// registry.FunctionRegistry, matching the teacher's own split between
// locally-executed function tools and remote MCP tools. The export
// provider is the fallback the server uses when no MCP server is
// configured; otherwise export goes through pkg/tools/mcp.
//
// These providers do not actually transcribe audio or draft documents
// (producing the document content itself is an explicit spec Non-goal);
// they synthesize deterministic, chunked output so the pipeline driver's
// transcription aggregation and phase transitions have something real to
// exercise end to end without a network dependency.
package builtins
