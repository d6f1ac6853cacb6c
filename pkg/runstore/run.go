package runstore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rhuss/antwort/pkg/observability"
	"github.com/rhuss/antwort/pkg/runevents"
)

// subscriberChanBuffer bounds each subscriber's delivery channel. It is sized
// to comfortably absorb a full ring replay (at most ringCap events) plus a
// burst of live events while the consumer goroutine catches up. A send that
// would block past this buffer is dropped rather than stalling appendEvent —
// the same slow-client tradeoff other_examples' session broadcaster makes,
// just with headroom generous enough that it should not trigger in practice.
const subscriberChanBuffer = 2048

// run is a single pipeline run's lifecycle record: status, the bounded event
// ring, live subscribers, and the cancellation signal.
type run struct {
	id string

	mu        sync.Mutex
	status    Status
	lastErr   string
	createdAt time.Time
	updatedAt time.Time
	finished  bool

	seq     int
	ring    []runevents.Event
	ringCap int

	nextSubID   int
	subscribers map[int]*subscriber

	cancel   context.CancelFunc
	aborted  bool
}

type subscriber struct {
	ch   chan runevents.Event
	done chan struct{}
}

// appendEvent assigns the next sequence number, appends to the ring
// (dropping the oldest entry on overflow), and enqueues the event on every
// current subscriber's channel. The enqueue is a fast, non-blocking map
// operation — no subscriber code runs on this call's goroutine.
func (r *run) appendEvent(kind runevents.Kind, payload any) runevents.Event {
	r.mu.Lock()
	r.seq++
	ev := runevents.Event{Seq: r.seq, Kind: kind, Payload: payload, At: time.Now()}

	r.ring = append(r.ring, ev)
	if len(r.ring) > r.ringCap {
		overflow := len(r.ring) - r.ringCap
		r.ring = r.ring[overflow:]
		observability.RingOverflowTotal.Add(float64(overflow))
	}
	r.updatedAt = ev.At

	for _, sub := range r.subscribers {
		select {
		case sub.ch <- ev:
		default:
			slog.Warn("runstore: subscriber channel full, dropping event", "run_id", r.id, "seq", ev.Seq)
		}
	}
	r.mu.Unlock()

	return ev
}

// subscribe snapshots the current ring and registers handler for future
// events, all under a single critical section so no live event can reach
// handler's channel ahead of the replayed snapshot. It returns an
// unsubscribe func and the number of events replayed.
func (r *run) subscribe(handler func(runevents.Event)) (unsubscribe func(), replayed int) {
	r.mu.Lock()
	snapshot := make([]runevents.Event, len(r.ring))
	copy(snapshot, r.ring)

	sub := &subscriber{
		ch:   make(chan runevents.Event, subscriberChanBuffer),
		done: make(chan struct{}),
	}
	for _, ev := range snapshot {
		sub.ch <- ev // buffer sized to hold a full ring, never blocks here
	}

	id := r.nextSubID
	r.nextSubID++
	r.subscribers[id] = sub
	r.mu.Unlock()

	observability.ActiveSubscribers.Inc()

	go func() {
		for {
			select {
			case ev, ok := <-sub.ch:
				if !ok {
					return
				}
				handler(ev)
			case <-sub.done:
				return
			}
		}
	}()

	unsubscribe = func() {
		r.mu.Lock()
		_, ok := r.subscribers[id]
		if ok {
			delete(r.subscribers, id)
			close(sub.done)
		}
		r.mu.Unlock()
		if ok {
			observability.ActiveSubscribers.Dec()
		}
	}
	return unsubscribe, len(snapshot)
}

// abort fires the cancellation signal exactly once, marks the run aborted,
// and appends a terminal error event.
func (r *run) abort(reason string) {
	r.mu.Lock()
	if r.aborted || r.status.Terminal() {
		r.mu.Unlock()
		return
	}
	r.aborted = true
	r.status = Aborted
	r.lastErr = reason
	r.updatedAt = time.Now()
	cancel := r.cancel
	r.mu.Unlock()

	cancel()
	r.appendEvent(runevents.KindError, runevents.ErrorPayload{
		Message: reason,
		Aborted: true,
	})
}
