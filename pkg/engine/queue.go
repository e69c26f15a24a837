// Package engine runs tick-driven simulations: per-symbol engines pump
// market events through worker queues into strategies and publish the
// resulting bars, orders and info lines.
package engine

import (
	"sync"
)

// queue is an unbounded FIFO executed by a pool of workers. With a single
// worker (the default everywhere in this package) handlers run strictly in
// submission order.
type queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []func()
	closed  bool
	workers sync.WaitGroup
}

func newQueue(workers int) *queue {
	if workers < 1 {
		workers = 1
	}
	q := &queue{}
	q.cond = sync.NewCond(&q.mu)
	q.workers.Add(workers)
	for i := 0; i < workers; i++ {
		go q.work()
	}
	return q
}

func (q *queue) work() {
	defer q.workers.Done()
	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.items) == 0 {
			q.mu.Unlock()
			return
		}
		fn := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()
		fn()
	}
}

// push enqueues fn. It reports false once the queue has been shut down.
func (q *queue) push(fn func()) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, fn)
	q.mu.Unlock()
	q.cond.Signal()
	return true
}

// shutdown stops accepting work, lets the workers drain what is already
// queued and waits for them to exit.
func (q *queue) shutdown() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
	q.workers.Wait()
}

func (q *queue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
