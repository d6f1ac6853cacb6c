package transcription

import "testing"

func strp(s string) *string { return &s }
func intp(i int) *int       { return &i }

func TestHappyPathSingleChunk(t *testing.T) {
	a := New()
	st := a.Fold(ChunkPayload{
		Transcript:      strp("hello world"),
		ProcessedChunks: intp(1),
		TotalChunks:     intp(1),
		NextChunk:       nil,
		NextChunkIsNull: true,
	})
	if st.Processed != 1 || st.Total != 1 || st.Preview != "hello world" {
		t.Fatalf("got %+v", st)
	}
}

func TestChunkedTranscription(t *testing.T) {
	a := New()
	st1 := a.Fold(ChunkPayload{
		Transcript:      strp("a"),
		StartChunk:      intp(0),
		ProcessedChunks: intp(1),
		TotalChunks:     intp(3),
		NextChunk:       intp(1),
	})
	if st1.Preview != "a" || st1.Processed != 1 || st1.Total != 3 {
		t.Fatalf("chunk 1: got %+v", st1)
	}

	st2 := a.Fold(ChunkPayload{
		Transcript:      strp("b"),
		StartChunk:      intp(1),
		ProcessedChunks: intp(1),
		TotalChunks:     intp(3),
		NextChunk:       intp(2),
	})
	if st2.Preview != "a\n\nb" || st2.Processed != 2 || st2.Total != 3 {
		t.Fatalf("chunk 2: got %+v", st2)
	}
}

func TestFoldIsIdempotentOnIdenticalPayload(t *testing.T) {
	a := New()
	p := ChunkPayload{
		Transcript:      strp("a"),
		StartChunk:      intp(0),
		ProcessedChunks: intp(1),
		TotalChunks:     intp(3),
		NextChunk:       intp(1),
	}
	first := a.Fold(p)
	second := a.Fold(p)
	if first != second {
		t.Fatalf("fold not idempotent: %+v != %+v", first, second)
	}
}

func TestSegmentsSynthesizeTranscript(t *testing.T) {
	a := New()
	st := a.Fold(ChunkPayload{
		Segments: []Segment{{Text: "line one"}, {Text: "line two"}},
	})
	if st.Preview != "line one\nline two" {
		t.Fatalf("preview = %q", st.Preview)
	}
}

func TestNextChunkNullInfersTotalFromProcessed(t *testing.T) {
	a := New()
	st := a.Fold(ChunkPayload{
		Transcript:      strp("done"),
		ProcessedChunks: intp(5),
		NextChunkIsNull: true,
	})
	if st.Total != 5 {
		t.Fatalf("Total = %d, want 5", st.Total)
	}
}

func TestPreviewCappedAt1500Chars(t *testing.T) {
	a := New()
	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'x'
	}
	st := a.Fold(ChunkPayload{Transcript: strp(string(long))})
	if len(st.Preview) != previewCap {
		t.Fatalf("preview len = %d, want %d", len(st.Preview), previewCap)
	}
}

func TestNoStartChunkReplacesWholeSet(t *testing.T) {
	a := New()
	a.Fold(ChunkPayload{Transcript: strp("first"), StartChunk: intp(0)})
	st := a.Fold(ChunkPayload{Transcript: strp("replacement")})
	if st.Preview != "replacement" {
		t.Fatalf("preview = %q, want full replacement", st.Preview)
	}
}
