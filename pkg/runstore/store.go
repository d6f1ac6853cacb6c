// Package runstore implements the Run Store (component E): per-run
// lifecycle records with a bounded event ring, replayable SSE-style
// subscriptions, TTL-based cleanup, and a per-run cancellation signal.
//
// The store is process-wide singleton state: the server constructs exactly
// one Store and threads it into every HTTP handler rather than reaching for
// a package-level variable.
package runstore

import (
	"context"
	"sync"
	"time"

	"github.com/rhuss/antwort/pkg/api"
	"github.com/rhuss/antwort/pkg/observability"
	"github.com/rhuss/antwort/pkg/runevents"
)

// Status is the lifecycle status of a run.
type Status string

const (
	Pending Status = "pending"
	Running Status = "running"
	Success Status = "success"
	Error   Status = "error"
	Aborted Status = "aborted"
)

// Terminal reports whether s is a terminal status; once a run reaches one,
// it never transitions again.
func (s Status) Terminal() bool {
	return s == Success || s == Error || s == Aborted
}

// Config controls the store's fixed constants. Defaults match
// SPEC_FULL.md §6's process-wide constants; tests override them to exercise
// TTL/sweep behavior without waiting real wall-clock minutes.
type Config struct {
	TTL           time.Duration
	RingCap       int
	SweepInterval time.Duration
}

// DefaultConfig returns the production constants.
func DefaultConfig() Config {
	return Config{
		TTL:           30 * time.Minute,
		RingCap:       1000,
		SweepInterval: 5 * time.Minute,
	}
}

// Store owns every run record. All reads and writes of run state go through
// its methods; the event ring and subscriber list are guarded internally.
type Store struct {
	cfg Config

	mu   sync.Mutex
	runs map[string]*run

	stopSweep chan struct{}
	sweepOnce sync.Once
}

// New creates a Store and starts its TTL cleanup sweeper goroutine.
func New(cfg Config) *Store {
	s := &Store{
		cfg:       cfg,
		runs:      make(map[string]*run),
		stopSweep: make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// Close stops the sweeper goroutine. Safe to call more than once.
func (s *Store) Close() {
	s.sweepOnce.Do(func() { close(s.stopSweep) })
}

// CreateRun allocates a new run record with status pending and returns its
// id plus a context that is cancelled once the run is aborted.
func (s *Store) CreateRun() (string, context.Context) {
	id := api.NewRunID()
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	r := &run{
		id:          id,
		status:      Pending,
		createdAt:   now,
		updatedAt:   now,
		cancel:      cancel,
		subscribers: make(map[int]*subscriber),
		ringCap:     s.cfg.RingCap,
	}

	s.mu.Lock()
	s.runs[id] = r
	s.mu.Unlock()

	observability.RunsCreatedTotal.Inc()

	return id, ctx
}

// Has reports whether id identifies a live (not yet TTL-reaped) run.
func (s *Store) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.runs[id]
	return ok
}

// GetStatus returns the run's current status and last error, if any.
func (s *Store) GetStatus(id string) (status Status, lastErr string, ok bool) {
	r := s.get(id)
	if r == nil {
		return "", "", false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status, r.lastErr, true
}

func (s *Store) get(id string) *run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[id]
}

// SetStatus write-through updates a run's status (and optional error),
// stamping updatedAt. A run's status is monotonic into a terminal state:
// once terminal, further SetStatus calls are ignored.
func (s *Store) SetStatus(id string, status Status, errMsg string) {
	r := s.get(id)
	if r == nil {
		return
	}
	r.mu.Lock()
	if r.status.Terminal() {
		r.mu.Unlock()
		return
	}
	r.status = status
	r.lastErr = errMsg
	r.updatedAt = time.Now()
	becameTerminal := status.Terminal()
	createdAt := r.createdAt
	r.mu.Unlock()

	if becameTerminal {
		observability.RunsFinishedTotal.WithLabelValues(string(status)).Inc()
		observability.RunDuration.Observe(time.Since(createdAt).Seconds())
	}
}

// AppendEvent allocates a RunEvent, assigns the next sequence number,
// appends it to the run's ring (dropping the oldest on overflow), stamps
// updatedAt, and asynchronously notifies current subscribers. It is a no-op
// if id is unknown.
func (s *Store) AppendEvent(id string, kind runevents.Kind, payload any) {
	r := s.get(id)
	if r == nil {
		return
	}
	r.appendEvent(kind, payload)
}

// ErrUnknownRun is returned by Subscribe when id does not identify a live
// run.
var ErrUnknownRun = &notFoundError{}

type notFoundError struct{}

func (*notFoundError) Error() string { return "run not found" }

// Subscribe atomically snapshots the run's current ring, replays it to
// handler in order, then attaches handler to future broadcasts. The
// returned unsubscribe func detaches the handler exactly once; replayed
// is the number of events delivered as replay.
func (s *Store) Subscribe(id string, handler func(runevents.Event)) (unsubscribe func(), replayed int, err error) {
	r := s.get(id)
	if r == nil {
		return nil, 0, ErrUnknownRun
	}
	unsub, n := r.subscribe(handler)
	return func() { s.onUnsubscribe(r, unsub) }, n, nil
}

// onUnsubscribe detaches the subscriber and, per the subscriber-count
// invariant, aborts the run if the count reaches zero while it is still
// pending/running.
func (s *Store) onUnsubscribe(r *run, unsub func()) {
	unsub()
	r.mu.Lock()
	count := len(r.subscribers)
	status := r.status
	r.mu.Unlock()
	if count == 0 && !status.Terminal() {
		s.Abort(r.id, "Client disconnected")
	}
}

// Abort fires the run's cancellation signal (once), marks it aborted, and
// appends a terminal error event. A no-op on an already-terminal run.
func (s *Store) Abort(id string, reason string) {
	r := s.get(id)
	if r == nil {
		return
	}
	r.abort(reason)
}

// Finish marks a run's completion moment for TTL purposes. The record and
// its ring are actually released later by the sweeper once
// updatedAt+TTL has elapsed and no subscribers remain.
func (s *Store) Finish(id string) {
	// updatedAt is already stamped by the terminal SetStatus call; Finish
	// exists as an explicit lifecycle hook for callers and documentation
	// symmetry with SPEC_FULL.md §4.E, and as the hook future eviction
	// policies (e.g. immediate release when already TTL-eligible) attach to.
	r := s.get(id)
	if r == nil {
		return
	}
	r.mu.Lock()
	r.finished = true
	r.mu.Unlock()
}

func (s *Store) sweepLoop() {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopSweep:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Store) sweep() {
	cutoff := time.Now().Add(-s.cfg.TTL)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.runs {
		r.mu.Lock()
		expired := r.updatedAt.Before(cutoff) && len(r.subscribers) == 0
		r.mu.Unlock()
		if expired {
			delete(s.runs, id)
		}
	}
}
