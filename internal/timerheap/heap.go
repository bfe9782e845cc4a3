// Package timerheap implements a min-heap of per-connection idle-timeout
// deadlines. The reactor uses one instance to find, in O(log n), the next
// connection due for expiry and to push a connection's deadline forward
// every time traffic is seen on it.
package timerheap

import (
	"container/heap"
	"sync"
	"time"
)

// Callback fires when a node's deadline is reached and it pops off the
// front of the heap.
type Callback func(id int)

type node struct {
	id      int
	expires time.Time
	cb      Callback
	index   int // position within the heap slice, kept current by Swap
}

// Heap is a thread-safe min-heap ordered by expiry time, with an auxiliary
// id -> node map for O(log n) adjust/remove by id instead of only by heap
// position.
type Heap struct {
	mu    sync.Mutex
	nodes []*node
	byID  map[int]*node
}

// New returns an empty timer heap.
func New() *Heap {
	return &Heap{byID: make(map[int]*node)}
}

// container/heap.Interface, operated on while h.mu is held by the exported
// methods below.

func (h *Heap) Len() int { return len(h.nodes) }

func (h *Heap) Less(i, j int) bool { return h.nodes[i].expires.Before(h.nodes[j].expires) }

func (h *Heap) Swap(i, j int) {
	h.nodes[i], h.nodes[j] = h.nodes[j], h.nodes[i]
	h.nodes[i].index = i
	h.nodes[j].index = j
}

func (h *Heap) Push(x interface{}) {
	n := x.(*node)
	n.index = len(h.nodes)
	h.nodes = append(h.nodes, n)
}

func (h *Heap) Pop() interface{} {
	old := h.nodes
	n := len(old)
	last := old[n-1]
	old[n-1] = nil
	h.nodes = old[:n-1]
	return last
}

// Add schedules id to fire cb after timeout elapses. If id is already
// present its deadline and callback are replaced, equivalent to Adjust.
func (h *Heap) Add(id int, timeout time.Duration, cb Callback) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n, ok := h.byID[id]; ok {
		n.expires = time.Now().Add(timeout)
		n.cb = cb
		heap.Fix(h, n.index)
		return
	}
	n := &node{id: id, expires: time.Now().Add(timeout), cb: cb}
	h.byID[id] = n
	heap.Push(h, n)
}

// Adjust pushes id's deadline forward by timeout from now. A no-op if id is
// not present.
func (h *Heap) Adjust(id int, timeout time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n, ok := h.byID[id]
	if !ok {
		return
	}
	n.expires = time.Now().Add(timeout)
	heap.Fix(h, n.index)
}

// Remove drops id from the heap without firing its callback. A no-op if id
// is not present.
func (h *Heap) Remove(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(id)
}

func (h *Heap) remove(id int) {
	n, ok := h.byID[id]
	if !ok {
		return
	}
	heap.Remove(h, n.index)
	delete(h.byID, id)
}

// Tick fires the callback for, and removes, every node whose deadline has
// already passed. Call this right before blocking on the poller, using
// NextDeadline to size the block's timeout.
func (h *Heap) Tick() {
	h.mu.Lock()
	now := time.Now()
	var due []*node
	for len(h.nodes) > 0 && !h.nodes[0].expires.After(now) {
		n := heap.Pop(h).(*node)
		delete(h.byID, n.id)
		due = append(due, n)
	}
	h.mu.Unlock()

	for _, n := range due {
		if n.cb != nil {
			n.cb(n.id)
		}
	}
}

// NextDeadline reports the duration until the earliest pending deadline.
// The second return is false if the heap is empty.
func (h *Heap) NextDeadline() (time.Duration, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.nodes) == 0 {
		return 0, false
	}
	d := time.Until(h.nodes[0].expires)
	if d < 0 {
		d = 0
	}
	return d, true
}

// Count reports how many deadlines are currently tracked.
func (h *Heap) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.nodes)
}
