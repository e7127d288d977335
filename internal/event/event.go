// Package event holds the time-ordered queue of events delivered to the CPU.
package event

import "container/heap"

// Kind identifies what an event does when it fires.
type Kind int

const (
	// Interrupt raises the maskable interrupt line.
	Interrupt Kind = iota
	// NMI raises the non-maskable interrupt line.
	NMI
	// Timer is delivered to the registered timer handler.
	Timer
)

func (k Kind) String() string {
	switch k {
	case Interrupt:
		return "interrupt"
	case NMI:
		return "nmi"
	case Timer:
		return "timer"
	}
	return "unknown"
}

// ParseKind maps a name back to its Kind.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "interrupt", "int", "irq":
		return Interrupt, true
	case "nmi":
		return NMI, true
	case "timer":
		return Timer, true
	}
	return 0, false
}

// Event fires once the CPU clock reaches Due.
type Event struct {
	Kind Kind
	Due  uint64 // absolute T-state
	Data byte   // data bus byte for mode 2 interrupts, free-form for timers

	seq uint64
}

// Queue orders events by due time. Events with equal due times come out in
// the order they were pushed.
type Queue struct {
	h   eventHeap
	seq uint64
}

func NewQueue() *Queue { return &Queue{} }

// Push schedules an event of kind at the absolute T-state due.
func (q *Queue) Push(kind Kind, due uint64) {
	q.PushEvent(Event{Kind: kind, Due: due})
}

func (q *Queue) PushEvent(ev Event) {
	ev.seq = q.seq
	q.seq++
	heap.Push(&q.h, ev)
}

// Peek returns the earliest event without removing it.
func (q *Queue) Peek() (Event, bool) {
	if len(q.h) == 0 {
		return Event{}, false
	}
	return q.h[0], true
}

func (q *Queue) Pop() (Event, bool) {
	if len(q.h) == 0 {
		return Event{}, false
	}
	return heap.Pop(&q.h).(Event), true
}

func (q *Queue) Len() int { return len(q.h) }

func (q *Queue) Empty() bool { return len(q.h) == 0 }

func (q *Queue) Clear() {
	q.h = q.h[:0]
}

// Due pops every event whose due time is <= now and passes it to fn in order.
// Delivery stops at the first error, which is returned; the failing event
// has already been removed.
func (q *Queue) Due(now uint64, fn func(Event) error) error {
	for len(q.h) > 0 && q.h[0].Due <= now {
		ev := heap.Pop(&q.h).(Event)
		if err := fn(ev); err != nil {
			return err
		}
	}
	return nil
}

// Pending returns the queued events in delivery order. Used for save states.
func (q *Queue) Pending() []Event {
	cp := make(eventHeap, len(q.h))
	copy(cp, q.h)
	out := make([]Event, 0, len(cp))
	for len(cp) > 0 {
		out = append(out, heap.Pop(&cp).(Event))
	}
	return out
}

type eventHeap []Event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].Due != h[j].Due {
		return h[i].Due < h[j].Due
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) { *h = append(*h, x.(Event)) }

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	ev := old[n-1]
	*h = old[:n-1]
	return ev
}
