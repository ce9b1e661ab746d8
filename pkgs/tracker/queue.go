package tracker

import (
	"sync"

	"github.com/EthnTuttle/manastr-sub000/pkgs/protocol"
)

// actionQueue is an ordered, unbounded, multi-producer/single-consumer
// queue. Pushes never block, which lets the tracker enqueue while holding
// the match-table lock without risking a deadlock against the consumer;
// an action is never dropped relative to the transition that produced it.
type actionQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []protocol.Action
	closed bool
}

func newActionQueue() *actionQueue {
	q := &actionQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends actions in order. Pushing to a closed queue is a no-op.
func (q *actionQueue) Push(actions ...protocol.Action) {
	if len(actions) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, actions...)
	q.cond.Broadcast()
}

// Pop blocks until an action is available or the queue is closed and
// drained. The second return is false once the queue is exhausted.
func (q *actionQueue) Pop() (protocol.Action, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	a := q.items[0]
	q.items = q.items[1:]
	return a, true
}

// Len returns the current queue depth.
func (q *actionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close wakes all blocked consumers; queued actions remain poppable.
func (q *actionQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
