package timerqueue

import (
	"sort"
	"sync"
	"time"
)

// Handle identifies a scheduled timer. The zero Handle means "no timer".
type Handle uint32

// NoHandle is the zero Handle.
const NoHandle Handle = 0

// Callback is invoked when a timer expires. See the package documentation
// for the meaning of the return value.
type Callback func(arg any) int

// Pending describes the nearest pending timer.
type Pending struct {
	Handle    Handle
	Remaining time.Duration
}

// SysClock reads the free-running system timer.
type SysClock interface {
	SysTick() uint32
}

// event is one scheduled timer.
type event struct {
	handle    Handle
	cb        Callback
	arg       any
	periodMs  uint32
	remaining uint32
	running   bool
	cancelled bool
}

// Queue is the timer queue. It is safe for concurrent use, although the
// firmware drives it from a single loop.
type Queue struct {
	mu sync.Mutex

	clock      SysClock
	ticksPerMs uint32

	// System tick at which elapsed time was last accounted.
	prevSysTick uint32

	// Ordered by remaining time, ties by insertion.
	events   []*event
	byHandle map[Handle]*event
	next     Handle
}

// New creates an empty queue reading time from clock. sysTicksPerUs is the
// system timer rate.
func New(clock SysClock, sysTicksPerUs uint32) *Queue {
	if sysTicksPerUs == 0 {
		sysTicksPerUs = 16
	}
	return &Queue{
		clock:       clock,
		ticksPerMs:  sysTicksPerUs * 1000,
		prevSysTick: clock.SysTick(),
		byHandle:    make(map[Handle]*event),
	}
}

// Schedule arms a timer that fires after delay (millisecond resolution) and
// then repeats according to the callback's return value.
func (q *Queue) Schedule(cb Callback, arg any, delay time.Duration) Handle {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.next++
	if q.next == NoHandle {
		q.next++
	}

	ms := toMs(delay)
	ev := &event{
		handle:    q.next,
		cb:        cb,
		arg:       arg,
		periodMs:  ms,
		remaining: ms,
	}
	q.byHandle[ev.handle] = ev
	q.insert(ev)
	return ev.handle
}

// Cancel removes the timer. Cancelling NoHandle or an unknown handle is a
// no-op. A timer cancelled from inside its own callback is not re-armed.
func (q *Queue) Cancel(h Handle) {
	if h == NoHandle {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	ev, ok := q.byHandle[h]
	if !ok {
		return
	}
	ev.cancelled = true
	delete(q.byHandle, h)
	q.remove(ev)
}

// Active reports whether h refers to a scheduled or running timer.
func (q *Queue) Active(h Handle) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.byHandle[h]
	return ok
}

// Len returns the number of armed timers.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// NearestPending returns the timer with the least remaining time.
func (q *Queue) NearestPending() (Pending, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Pending{}, false
	}
	ev := q.events[0]
	return Pending{
		Handle:    ev.handle,
		Remaining: time.Duration(ev.remaining) * time.Millisecond,
	}, true
}

// AdvanceBaseline subtracts elapsed from every armed timer. Timers that
// would go negative stop at zero and fire on the next Process call.
func (q *Queue) AdvanceBaseline(elapsed time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.update(toMs(elapsed))
}

// SetReferenceTick sets the system tick from which the next Process call
// measures elapsed time.
func (q *Queue) SetReferenceTick(tick uint32) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.prevSysTick = tick
}

// ReferenceTick returns the current reference system tick.
func (q *Queue) ReferenceTick() uint32 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.prevSysTick
}

// Process accounts elapsed time since the reference tick and fires every
// expired timer. It returns the number of callbacks invoked.
func (q *Queue) Process() int {
	q.mu.Lock()

	now := q.clock.SysTick()
	ms := (now - q.prevSysTick) / q.ticksPerMs
	if ms > 0 {
		q.update(ms)
		q.prevSysTick += ms * q.ticksPerMs
	}

	var due []*event
	for len(q.events) > 0 && q.events[0].remaining == 0 {
		ev := q.events[0]
		q.events = q.events[1:]
		ev.running = true
		due = append(due, ev)
	}
	q.mu.Unlock()

	fired := 0
	for _, ev := range due {
		// An earlier callback in this pass may have cancelled ev.
		q.mu.Lock()
		if ev.cancelled {
			ev.running = false
			q.mu.Unlock()
			continue
		}
		q.mu.Unlock()

		ret := ev.cb(ev.arg)
		fired++

		q.mu.Lock()
		ev.running = false
		switch {
		case ev.cancelled:
		case ret < 0:
			delete(q.byHandle, ev.handle)
		default:
			if ret > 0 {
				ev.periodMs = uint32(ret)
			}
			if ev.periodMs == 0 {
				delete(q.byHandle, ev.handle)
				break
			}
			ev.remaining = ev.periodMs
			q.insert(ev)
		}
		q.mu.Unlock()
	}

	return fired
}

// update must be called with mu held.
func (q *Queue) update(ms uint32) {
	if ms == 0 {
		return
	}
	for _, ev := range q.events {
		if ev.remaining > ms {
			ev.remaining -= ms
		} else {
			ev.remaining = 0
		}
	}
}

// insert must be called with mu held.
func (q *Queue) insert(ev *event) {
	i := sort.Search(len(q.events), func(i int) bool {
		return q.events[i].remaining > ev.remaining
	})
	q.events = append(q.events, nil)
	copy(q.events[i+1:], q.events[i:])
	q.events[i] = ev
}

// remove must be called with mu held.
func (q *Queue) remove(ev *event) {
	for i, e := range q.events {
		if e == ev {
			q.events = append(q.events[:i], q.events[i+1:]...)
			return
		}
	}
}

func toMs(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	return uint32(d / time.Millisecond)
}
