// Package cost implements the token-usage cost tracker (component A):
// accumulating Claude and Gemini token counters from the upstream message
// stream with per-message deduplication, and pricing a summary.
package cost

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// dedupWindow is the wall-clock bucket width used to fingerprint messages
// that carry no stable id.
const dedupWindow = 15 * time.Second

// fingerprintCap is the FIFO capacity of the fingerprint dedup set.
const fingerprintCap = 2000

// Usage is the subset of an upstream message's usage block the tracker
// understands. Any field may be zero/absent.
type Usage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

// Message is the minimal shape of an upstream message the tracker consumes.
// ID is the stable message id, if the upstream runtime assigns one; At is
// the message's own timestamp, used for fingerprint bucketing when ID is
// empty.
type Message struct {
	ID    string
	At    time.Time
	Usage *Usage
}

// pricing is a fixed per-million-token USD rate table. Values are
// illustrative flat rates, not tied to any specific vendor's published
// pricing, since the spec treats pricing as a fixed internal table.
var pricing = map[string]float64{
	"claude_input":          3.00,
	"claude_output":         15.00,
	"claude_cache_creation": 3.75,
	"claude_cache_read":     0.30,
	"gemini_input":          0.075,
	"gemini_output":         0.30,
}

// Summary is the priced, totaled view returned by Tracker.Summary.
type Summary struct {
	TotalTokens      int64
	EstimatedCostUSD float64
	Breakdown        map[string]BucketCost
}

// BucketCost is the token count and rounded cost for a single pricing
// bucket.
type BucketCost struct {
	Tokens   int64
	CostUSD  float64 // rounded to 4 decimal places
}

// Tracker accumulates token usage across a run's message stream. It is
// single-writer and does not lock internally — the pipeline driver is its
// only caller, always from the same goroutine.
type Tracker struct {
	claudeInput          int64
	claudeOutput         int64
	claudeCacheCreation  int64
	claudeCacheRead      int64
	geminiInput          int64
	geminiOutput         int64

	seenIDs map[string]struct{}

	fingerprints    map[string]struct{}
	fingerprintFIFO []string
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{
		seenIDs:      make(map[string]struct{}),
		fingerprints: make(map[string]struct{}),
	}
}

// Record folds a message's usage block into the running totals, skipping it
// if it is a duplicate of one already recorded. record is idempotent for a
// given message with a stable id: record(m); record(m) yields the same
// totals as a single record(m).
func (t *Tracker) Record(m Message) {
	if m.Usage == nil {
		return
	}

	if m.ID != "" {
		if _, seen := t.seenIDs[m.ID]; seen {
			return
		}
		t.seenIDs[m.ID] = struct{}{}
	} else {
		fp := fingerprint(m)
		if _, seen := t.fingerprints[fp]; seen {
			return
		}
		t.rememberFingerprint(fp)
	}

	t.claudeInput += m.Usage.InputTokens
	t.claudeOutput += m.Usage.OutputTokens
	t.claudeCacheCreation += m.Usage.CacheCreationInputTokens
	t.claudeCacheRead += m.Usage.CacheReadInputTokens
}

// RecordGemini attributes Gemini transcription usage (parsed separately from
// tool-result payloads) to its own bucket. Dedup follows the same stable-id
// / fingerprint rule as Record.
func (t *Tracker) RecordGemini(id string, at time.Time, inputTokens, outputTokens int64) {
	if id != "" {
		if _, seen := t.seenIDs[id]; seen {
			return
		}
		t.seenIDs[id] = struct{}{}
	} else {
		fp := fingerprintGemini(at, inputTokens, outputTokens)
		if _, seen := t.fingerprints[fp]; seen {
			return
		}
		t.rememberFingerprint(fp)
	}
	t.geminiInput += inputTokens
	t.geminiOutput += outputTokens
}

func (t *Tracker) rememberFingerprint(fp string) {
	t.fingerprints[fp] = struct{}{}
	t.fingerprintFIFO = append(t.fingerprintFIFO, fp)
	if len(t.fingerprintFIFO) > fingerprintCap {
		oldest := t.fingerprintFIFO[0]
		t.fingerprintFIFO = t.fingerprintFIFO[1:]
		delete(t.fingerprints, oldest)
	}
}

// fingerprint computes a deterministic hash over the usage block plus a
// 15-second wall-clock bucket index, used to dedup messages without a
// stable id. This is deliberately approximate (see SPEC_FULL.md §9):
// two distinct messages with identical usage in the same bucket collide.
func fingerprint(m Message) string {
	bucket := m.At.Unix() / int64(dedupWindow.Seconds())
	data, _ := json.Marshal(struct {
		Bucket int64
		U      *Usage
	}{bucket, m.Usage})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func fingerprintGemini(at time.Time, in, out int64) string {
	bucket := at.Unix() / int64(dedupWindow.Seconds())
	data := fmt.Sprintf("gemini:%d:%d:%d", bucket, in, out)
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// Summary returns the total token count and priced cost breakdown.
// Per-bucket costs are rounded to 4 decimal places; the total cost is left
// unrounded (the sum of the rounded per-bucket costs).
func (t *Tracker) Summary() Summary {
	buckets := map[string]int64{
		"claude_input":          t.claudeInput,
		"claude_output":         t.claudeOutput,
		"claude_cache_creation": t.claudeCacheCreation,
		"claude_cache_read":     t.claudeCacheRead,
		"gemini_input":          t.geminiInput,
		"gemini_output":         t.geminiOutput,
	}

	breakdown := make(map[string]BucketCost, len(buckets))
	var total int64
	var totalCost float64
	for name, tokens := range buckets {
		total += tokens
		cost := round4(float64(tokens) / 1_000_000 * pricing[name])
		breakdown[name] = BucketCost{Tokens: tokens, CostUSD: cost}
		totalCost += cost
	}

	return Summary{
		TotalTokens:      total,
		EstimatedCostUSD: totalCost,
		Breakdown:        breakdown,
	}
}

// Reset clears all counters and dedup state. record/reset/record is
// equivalent to record starting from zero state.
func (t *Tracker) Reset() {
	*t = *New()
}

func round4(v float64) float64 {
	const scale = 10000.0
	return float64(int64(v*scale+0.5)) / scale
}
