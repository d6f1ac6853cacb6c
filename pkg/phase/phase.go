// Package phase implements the four-phase pipeline state machine: transcribe,
// draft, review, and export each progress independently through
// pending -> running -> (success | error), driven by observed tool
// lifecycle events and reviewer verdicts.
package phase

// Phase identifies one of the four pipeline stages.
type Phase string

const (
	Transcribe Phase = "transcribe"
	Draft      Phase = "draft"
	Review     Phase = "review"
	Export     Phase = "export"
)

// Status is the state of a single phase.
type Status string

const (
	Pending Status = "pending"
	Running Status = "running"
	Success Status = "success"
	Error   Status = "error"
)

// order is the fixed phase progression used to derive "current phase" and to
// know which phase follows another.
var order = []Phase{Transcribe, Draft, Review, Export}

// transitions is the legal-transition table, ported from the teacher's
// map[Status][]Status idiom (pkg/api/state.go ValidateResponseTransition).
// success and error are terminal: no further transition is legal.
var transitions = map[Status][]Status{
	Pending: {Running},
	Running: {Success, Error},
	Success: {},
	Error:   {},
}

// isLegal reports whether from -> to is a legal status transition.
func isLegal(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition is a single {phase, status} change, matching the KindStatus
// SSE event payload shape one-to-one.
type Transition struct {
	Phase  Phase
	Status Status
	Meta   map[string]any
}

// Machine tracks the status of all four phases for a single run. It is not
// safe for concurrent use; the pipeline driver is its only writer.
type Machine struct {
	statuses map[Phase]Status
}

// New creates a Machine with every phase pending.
func New() *Machine {
	m := &Machine{statuses: make(map[Phase]Status, len(order))}
	for _, p := range order {
		m.statuses[p] = Pending
	}
	return m
}

// Status returns the current status of p.
func (m *Machine) Status(p Phase) Status {
	return m.statuses[p]
}

// Current returns the rightmost non-pending phase, or Transcribe if all
// phases are still pending.
func (m *Machine) Current() Phase {
	current := order[0]
	for _, p := range order {
		if m.statuses[p] != Pending {
			current = p
		}
	}
	return current
}

// next returns the phase immediately following p in the fixed order, and
// whether one exists.
func next(p Phase) (Phase, bool) {
	for i, o := range order {
		if o == p && i+1 < len(order) {
			return order[i+1], true
		}
	}
	return "", false
}

// set applies from -> to if legal, returning the Transition to emit, or nil
// if the transition was invalid (and therefore ignored, per spec).
func (m *Machine) set(p Phase, to Status, meta map[string]any) *Transition {
	from := m.statuses[p]
	if from == to {
		return nil
	}
	if !isLegal(from, to) {
		return nil
	}
	m.statuses[p] = to
	return &Transition{Phase: p, Status: to, Meta: meta}
}

// StartPhase moves p into running if it is still pending. No-op (and no
// emitted transition) if p has already started or finished.
func (m *Machine) StartPhase(p Phase) *Transition {
	return m.set(p, Running, nil)
}

// SucceedPhase moves p into success if it is running, and starts the next
// phase in the fixed order if it is still pending. Returns every transition
// produced, in order (the phase's own success first, then the next phase's
// start, if any).
func (m *Machine) SucceedPhase(p Phase) []Transition {
	var out []Transition
	if t := m.set(p, Success, nil); t != nil {
		out = append(out, *t)
	} else {
		return nil
	}
	if np, ok := next(p); ok {
		if t := m.StartPhase(np); t != nil {
			out = append(out, *t)
		}
	}
	return out
}

// FailPhase moves p into error if it is running. No downstream phase is
// started.
func (m *Machine) FailPhase(p Phase) *Transition {
	return m.set(p, Error, nil)
}

// OnToolUse applies the tool-use transitions from SPEC_FULL.md §4.B for the
// tool named toolName, matched against the transcribe, draft and export tool
// names passed in; any other name produces no transition. Returns every
// transition produced, in order.
func OnToolUse(m *Machine, toolName string, transcribeTool, draftTool, exportTool string) []Transition {
	var out []Transition
	switch toolName {
	case transcribeTool:
		if t := m.StartPhase(Transcribe); t != nil {
			out = append(out, *t)
		}
	case draftTool:
		if t := m.set(Transcribe, Success, nil); t != nil {
			out = append(out, *t)
		}
		if t := m.StartPhase(Draft); t != nil {
			out = append(out, *t)
		}
	case exportTool:
		if t := m.set(Draft, Success, nil); t != nil {
			out = append(out, *t)
		}
		if t := m.set(Review, Success, nil); t != nil {
			out = append(out, *t)
		}
		if t := m.StartPhase(Export); t != nil {
			out = append(out, *t)
		}
	}
	return out
}

// OnToolResult applies the tool-result transitions for the phase p
// corresponding to the completed tool, advancing to the next phase on
// success or failing p on error.
func (m *Machine) OnToolResult(p Phase, isError bool) []Transition {
	if isError {
		if t := m.FailPhase(p); t != nil {
			return []Transition{*t}
		}
		return nil
	}
	return m.SucceedPhase(p)
}

// OnJudgeVerdict advances the review phase per an approved/rejected verdict,
// honoring the review-round cap. round is the 1-based round number that
// produced this verdict. Returns the transitions produced, in order.
//
// A cap of 0 short-circuits review straight to error on the first verdict,
// since no round can ever be approved under that cap (see DESIGN.md Open
// Question 1).
func (m *Machine) OnJudgeVerdict(approved bool, round, cap int) []Transition {
	if cap <= 0 {
		if t := m.FailPhase(Review); t != nil {
			return []Transition{*t}
		}
		return nil
	}
	if approved {
		return m.SucceedPhase(Review)
	}
	if round >= cap {
		if t := m.FailPhase(Review); t != nil {
			return []Transition{*t}
		}
	}
	return nil
}
