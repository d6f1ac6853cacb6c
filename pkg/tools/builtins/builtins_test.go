package builtins

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rhuss/antwort/pkg/tools"
	"github.com/stretchr/testify/require"
)

func TestTranscribeProviderChunks(t *testing.T) {
	p := NewTranscribeProvider("transcribe_audio", 3)
	require.True(t, p.CanExecute("transcribe_audio"))
	require.False(t, p.CanExecute("other"))

	args, _ := json.Marshal(map[string]any{"audioPath": "uploads/m.mp3", "startChunk": 0})
	res, err := p.Execute(context.Background(), tools.ToolCall{ID: "1", Name: "transcribe_audio", Arguments: string(args)})
	require.NoError(t, err)
	require.False(t, res.IsError)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.Output), &payload))
	require.Equal(t, float64(0), payload["startChunk"])
	require.Equal(t, float64(1), payload["nextChunk"])
	require.Equal(t, float64(3), payload["totalChunks"])
}

func TestTranscribeProviderLastChunkHasNilNext(t *testing.T) {
	p := NewTranscribeProvider("transcribe_audio", 2)
	args, _ := json.Marshal(map[string]any{"audioPath": "a.mp3", "startChunk": 1})
	res, err := p.Execute(context.Background(), tools.ToolCall{ID: "1", Name: "transcribe_audio", Arguments: string(args)})
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.Output), &payload))
	require.Nil(t, payload["nextChunk"])
}

func TestDraftProviderProducesDraft(t *testing.T) {
	p := NewDraftProvider("draft_document")
	args, _ := json.Marshal(map[string]any{"transcript": "hello world", "templatePath": "templates/t.docx"})
	res, err := p.Execute(context.Background(), tools.ToolCall{ID: "1", Name: "draft_document", Arguments: string(args)})
	require.NoError(t, err)
	require.False(t, res.IsError)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.Output), &payload))
	require.Contains(t, payload["draft"], "hello world")
}

func TestExportProviderWritesFile(t *testing.T) {
	dir := t.TempDir()
	p := NewExportProvider("export_document", dir)

	args, _ := json.Marshal(map[string]any{"draft": "final text", "outputPath": "exports/out.docx"})
	res, err := p.Execute(context.Background(), tools.ToolCall{ID: "1", Name: "export_document", Arguments: string(args)})
	require.NoError(t, err)
	require.False(t, res.IsError)

	data, err := os.ReadFile(filepath.Join(dir, "exports", "out.docx"))
	require.NoError(t, err)
	require.Equal(t, "final text", string(data))
}

func TestExportProviderRequiresOutputPath(t *testing.T) {
	p := NewExportProvider("export_document", t.TempDir())
	args, _ := json.Marshal(map[string]any{"draft": "x"})
	res, err := p.Execute(context.Background(), tools.ToolCall{ID: "1", Name: "export_document", Arguments: string(args)})
	require.NoError(t, err)
	require.True(t, res.IsError)
}
