package server

import (
	"sync"

	"relaychat/models"
)

// queue is the unbounded FIFO of messages awaiting delivery to one
// session. push never blocks; a slow recipient grows the backlog instead
// of stalling the router or other sessions.
type queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []models.Message
	closed bool
}

func newQueue() *queue {
	q := &queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *queue) push(m models.Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, m)
	q.cond.Signal()
}

// pop blocks until an item is available or the queue is detached. A false
// result means the queue is drained and closed.
func (q *queue) pop() (models.Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	m := q.items[0]
	q.items = q.items[1:]
	return m, true
}

// detach closes the queue, wakes any blocked pop and returns whatever was
// still pending, in enqueue order.
func (q *queue) detach() []models.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	items := q.items
	q.items = nil
	q.cond.Broadcast()
	return items
}
