package stdlib

import (
	"sync"

	"github.com/edwingeng/deque"

	"github.com/lemonberrylabs/bigrun/pkg/token"
	"github.com/lemonberrylabs/bigrun/pkg/types"
)

// eventQueue is the FIFO signal queue shared by every run using the
// registry, background runs included.
type eventQueue struct {
	mu sync.Mutex
	q  deque.Deque
}

func newEventQueue() *eventQueue {
	return &eventQueue{q: deque.NewDeque()}
}

// Push appends a signal.
func (e *eventQueue) Push(signal string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.q.PushBack(signal)
}

// Pop removes the oldest signal. ok is false when the queue is empty.
func (e *eventQueue) Pop() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.q.Empty() {
		return "", false
	}
	return e.q.PopFront().(string), true
}

// Len returns the number of queued signals.
func (e *eventQueue) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.q.Len()
}

// registerEvents registers the event verb: event push X, event pop.
func (r *Registry) registerEvents() {
	r.Register(token.Event, r.event)
}

func (r *Registry) event(h types.Host, i *int, toks []token.Token) {
	j := *i + 1
	switch peek(toks, j).Kind {
	case token.Push:
		signal, end := text(h, toks, j+1)
		r.events.Push(signal)
		*i = end
	case token.Pop:
		signal, ok := r.events.Pop()
		if !ok {
			signal = types.Nothing
		}
		bind(h, i, toks, j, signal)
	default:
		abandon(i, toks)
	}
}
