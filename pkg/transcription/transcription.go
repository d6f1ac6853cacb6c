// Package transcription implements the chunked-transcription aggregator
// (component C): folding per-call tool payloads into a running
// (processed, total, preview) progress state.
package transcription

import (
	"sort"
	"strings"
)

// previewCap is the maximum length, in characters, of the cached joined
// preview.
const previewCap = 1500

// unknownTotal marks a total chunk count that has not yet been observed.
const unknownTotal = -1

// ChunkPayload is the subset of a transcription tool-result payload the
// aggregator folds. Pointer fields distinguish "absent" from "zero".
type ChunkPayload struct {
	Transcript      *string
	Segments        []Segment
	ProcessedChunks *int
	TotalChunks     *int
	StartChunk      *int
	NextChunk       *int // nil means absent; NextChunkIsNull means the JSON null was present
	NextChunkIsNull bool
}

// Segment is one entry of a tool-result's "segments" array.
type Segment struct {
	Text string
}

// State is the aggregator's exported snapshot.
type State struct {
	Processed int
	Total     int // unknownTotal (-1) if not yet known
	Preview   string
}

// Aggregator folds chunked transcription tool-results into running progress
// state. It is single-writer, matching the pipeline driver's single
// goroutine of execution.
type Aggregator struct {
	processed int
	total     int // unknownTotal until observed

	// snippets maps start-chunk index to its text. A payload with no
	// StartChunk is stored under the replaceAllKey and replaces the whole
	// set (full-replacement semantics).
	snippets map[int]string
	keys     []int // insertion order is irrelevant; keys are sorted for preview.

	previewCache string
	previewDirty bool
}

const replaceAllKey = -1

// New creates an empty Aggregator with total unknown.
func New() *Aggregator {
	return &Aggregator{
		total:    unknownTotal,
		snippets: make(map[int]string),
	}
}

// Fold applies one tool-result payload's folding rules (SPEC_FULL.md §4.C)
// and returns the resulting State. Folding is idempotent: feeding an
// identical payload twice leaves (processed, total, preview) unchanged.
func (a *Aggregator) Fold(p ChunkPayload) State {
	if p.TotalChunks != nil && *p.TotalChunks > a.total {
		a.total = *p.TotalChunks
	}

	start := 0
	if p.StartChunk != nil {
		start = *p.StartChunk
	}

	if p.ProcessedChunks != nil {
		if v := start + *p.ProcessedChunks; v > a.processed {
			a.processed = v
		}
	} else if p.StartChunk != nil {
		if *p.StartChunk > a.processed {
			a.processed = *p.StartChunk
		}
	}

	if p.NextChunk != nil {
		if v := *p.NextChunk + 1; v > a.total {
			a.total = v
		}
	} else if p.NextChunkIsNull && a.total == unknownTotal && a.processed > 0 {
		a.total = a.processed
	}

	text := ""
	if p.Transcript != nil {
		text = *p.Transcript
	} else if len(p.Segments) > 0 {
		parts := make([]string, len(p.Segments))
		for i, seg := range p.Segments {
			parts[i] = seg.Text
		}
		text = strings.Join(parts, "\n")
	}

	if p.StartChunk != nil {
		a.setSnippet(*p.StartChunk, text)
	} else {
		a.setSnippet(replaceAllKey, text)
	}

	a.previewDirty = true
	return a.State()
}

func (a *Aggregator) setSnippet(key int, text string) {
	if key == replaceAllKey {
		a.snippets = map[int]string{replaceAllKey: text}
		a.keys = []int{replaceAllKey}
		return
	}
	if _, exists := a.snippets[key]; !exists {
		a.keys = append(a.keys, key)
	}
	a.snippets[key] = text
}

// State returns the current snapshot, recomputing the preview cache only
// when it has been invalidated by a Fold call since the last State call.
func (a *Aggregator) State() State {
	if a.previewDirty {
		a.previewCache = a.buildPreview()
		a.previewDirty = false
	}
	return State{Processed: a.processed, Total: a.total, Preview: a.previewCache}
}

func (a *Aggregator) buildPreview() string {
	keys := make([]int, len(a.keys))
	copy(keys, a.keys)
	sort.Ints(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(a.snippets[k])
	}
	joined := b.String()
	runes := []rune(joined)
	if len(runes) > previewCap {
		return string(runes[:previewCap])
	}
	return joined
}
