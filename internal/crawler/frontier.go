package crawler

import (
	"sync"

	"github.com/nao1215/sitecrawl/internal/model"
)

// Task is a URL waiting for a fetch attempt.
type Task struct {
	// URL is the normalized URL.
	URL string

	// Depth is the number of link hops from the seed.
	Depth int
}

// Frontier is the FIFO of pending tasks shared by the crawl workers.
//
// Besides the queue it keeps a pending counter: a task counts as pending
// from Push until the worker that popped it calls MarkDone. The traversal
// is complete when pending drops to zero, because only then can no worker
// push further tasks.
type Frontier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []Task
	pending int
	closed  bool
}

// NewFrontier creates an empty Frontier.
func NewFrontier() *Frontier {
	f := &Frontier{items: make([]Task, 0)}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Push normalizes url and appends it at depth. It returns false, and
// changes nothing, once the frontier is closed.
func (f *Frontier) Push(url string, depth int) bool {
	task := Task{URL: model.NormalizeURL(url), Depth: depth}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.items = append(f.items, task)
	f.pending++
	f.cond.Signal()
	return true
}

// Pop removes the oldest task. It blocks while the queue is empty and
// other tasks are still pending, since those may push more work. It
// returns false when the traversal is exhausted or the frontier is closed.
func (f *Frontier) Pop() (Task, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for len(f.items) == 0 && f.pending > 0 && !f.closed {
		f.cond.Wait()
	}
	if f.closed || len(f.items) == 0 {
		return Task{}, false
	}

	task := f.items[0]
	f.items[0] = Task{}
	f.items = f.items[1:]
	return task, true
}

// MarkDone retires one popped task. When no task remains pending every
// blocked Pop is released.
func (f *Frontier) MarkDone() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending > 0 {
		f.pending--
	}
	if f.pending == 0 {
		f.cond.Broadcast()
	}
}

// Close shuts the frontier down. Blocked and later Pop calls return false
// and later Push calls are ignored. Close is idempotent.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.cond.Broadcast()
}

// Pending returns the number of tasks pushed but not yet marked done.
func (f *Frontier) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}

// Len returns the number of queued tasks.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

// Closed reports whether Close has been called.
func (f *Frontier) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
