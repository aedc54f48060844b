package graph

import "sync"

// queue is an unbounded work queue that closes itself once every pushed
// item has been marked done.
type queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []*slot
	pending int
	closed  bool
}

func newQueue() *queue {
	q := &queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *queue) push(s *slot) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, s)
	q.pending++
	q.cond.Signal()
}

// pop blocks until an item is available or the queue is closed.
func (q *queue) pop() (*slot, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return nil, false
	}
	s := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return s, true
}

// done marks one popped item as finished. Items pushed while processing it
// must be pushed before done is called.
func (q *queue) done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending--
	if q.pending <= 0 {
		q.closed = true
		q.cond.Broadcast()
	}
}

// seal closes the queue if nothing was ever pushed.
func (q *queue) seal() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending == 0 {
		q.closed = true
		q.cond.Broadcast()
	}
}

func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
