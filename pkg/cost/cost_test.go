package cost

import (
	"testing"
	"time"
)

func TestRecordIdempotentWithStableID(t *testing.T) {
	tr := New()
	msg := Message{ID: "msg_1", At: time.Now(), Usage: &Usage{InputTokens: 100, OutputTokens: 50}}

	tr.Record(msg)
	first := tr.Summary()
	tr.Record(msg)
	second := tr.Summary()

	if first.TotalTokens != second.TotalTokens {
		t.Fatalf("record(m);record(m) changed totals: %d -> %d", first.TotalTokens, second.TotalTokens)
	}
	if first.TotalTokens != 150 {
		t.Fatalf("TotalTokens = %d, want 150", first.TotalTokens)
	}
}

func TestRecordWithoutIDDedupsWithinWindow(t *testing.T) {
	tr := New()
	// Start on a bucket boundary so both messages share one 15s bucket.
	now := time.Unix(time.Now().Unix()/15*15, 0)
	msg := Message{At: now, Usage: &Usage{InputTokens: 10}}

	tr.Record(msg)
	tr.Record(Message{At: now.Add(1 * time.Second), Usage: &Usage{InputTokens: 10}})

	if got := tr.Summary().TotalTokens; got != 10 {
		t.Fatalf("TotalTokens = %d, want 10 (dedup within bucket)", got)
	}
}

func TestRecordWithoutIDAcrossWindowsCounted(t *testing.T) {
	tr := New()
	now := time.Now()
	msg1 := Message{At: now, Usage: &Usage{InputTokens: 10}}
	msg2 := Message{At: now.Add(20 * time.Second), Usage: &Usage{InputTokens: 10}}

	tr.Record(msg1)
	tr.Record(msg2)

	if got := tr.Summary().TotalTokens; got != 20 {
		t.Fatalf("TotalTokens = %d, want 20 (distinct 15s buckets)", got)
	}
}

func TestResetThenRecordEquivalentToFresh(t *testing.T) {
	tr := New()
	tr.Record(Message{ID: "a", At: time.Now(), Usage: &Usage{InputTokens: 5}})
	tr.Reset()
	tr.Record(Message{ID: "b", At: time.Now(), Usage: &Usage{InputTokens: 7}})

	fresh := New()
	fresh.Record(Message{ID: "b", At: time.Now(), Usage: &Usage{InputTokens: 7}})

	if tr.Summary().TotalTokens != fresh.Summary().TotalTokens {
		t.Fatalf("reset tracker diverged from a fresh tracker fed the same message")
	}
}

func TestRecordGeminiDistinctBucket(t *testing.T) {
	tr := New()
	tr.Record(Message{ID: "a", At: time.Now(), Usage: &Usage{InputTokens: 100}})
	tr.RecordGemini("g1", time.Now(), 40, 20)

	s := tr.Summary()
	if s.Breakdown["claude_input"].Tokens != 100 {
		t.Errorf("claude_input = %d, want 100", s.Breakdown["claude_input"].Tokens)
	}
	if s.Breakdown["gemini_input"].Tokens != 40 || s.Breakdown["gemini_output"].Tokens != 20 {
		t.Errorf("gemini breakdown = %+v", s.Breakdown)
	}
	if s.TotalTokens != 160 {
		t.Errorf("TotalTokens = %d, want 160", s.TotalTokens)
	}
}

func TestFingerprintFIFOCapEviction(t *testing.T) {
	tr := New()
	base := time.Now()
	// Each message lands in its own 15s bucket so none dedup against
	// another, exercising FIFO eviction once the cap is exceeded.
	for i := 0; i < fingerprintCap+10; i++ {
		tr.Record(Message{At: base.Add(time.Duration(i) * dedupWindow), Usage: &Usage{InputTokens: 1}})
	}
	if got := tr.Summary().TotalTokens; got != int64(fingerprintCap+10) {
		t.Fatalf("TotalTokens = %d, want %d (no message should be spuriously deduped)", got, fingerprintCap+10)
	}
	if len(tr.fingerprintFIFO) > fingerprintCap {
		t.Fatalf("fingerprintFIFO len = %d, want <= %d", len(tr.fingerprintFIFO), fingerprintCap)
	}
}

func TestSummaryRounding(t *testing.T) {
	tr := New()
	tr.Record(Message{ID: "a", At: time.Now(), Usage: &Usage{InputTokens: 333}})
	s := tr.Summary()
	b := s.Breakdown["claude_input"]
	// 333 tokens at 3.00 USD per million is 0.000999, rounded to 4 places.
	if b.CostUSD != 0.001 {
		t.Fatalf("claude_input CostUSD = %v, want 0.001", b.CostUSD)
	}
}
