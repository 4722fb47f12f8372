// Package forward tracks per-request hop budgets for /send forwarding
// (server.Server's forwardSend), so a server can refuse to keep
// forwarding a request it has already spent too many hops servicing.
package forward

import (
	"container/list"
	"sync"

	"github.com/hyperborea-net/hyperborea/identity"
)

// Key identifies a single in-flight forwarded request by its originating
// seed and sender.
type Key struct {
	Seed   uint64
	Sender identity.PublicKey
}

// HopTracker is a bounded LRU cache from Key to remaining hop budget. It
// exists so the structure itself cannot grow without bound even under a
// sustained flood of distinct forwarded requests.
type HopTracker struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	pos      map[Key]*list.Element
	budget   map[Key]int
}

type entry struct {
	key    Key
	budget int
}

// NewHopTracker creates a tracker holding at most capacity in-flight
// requests; the oldest is evicted to make room for a new one.
func NewHopTracker(capacity int) *HopTracker {
	return &HopTracker{
		capacity: capacity,
		order:    list.New(),
		pos:      make(map[Key]*list.Element),
		budget:   make(map[Key]int),
	}
}

// Start registers a new request with initialBudget remaining hops,
// evicting the least-recently-used entry if the tracker is full.
func (h *HopTracker) Start(k Key, initialBudget int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if el, ok := h.pos[k]; ok {
		h.order.MoveToFront(el)
		h.budget[k] = initialBudget
		return
	}

	if h.order.Len() >= h.capacity {
		back := h.order.Back()
		if back != nil {
			evicted := back.Value.(entry).key
			h.order.Remove(back)
			delete(h.pos, evicted)
			delete(h.budget, evicted)
		}
	}

	el := h.order.PushFront(entry{key: k, budget: initialBudget})
	h.pos[k] = el
	h.budget[k] = initialBudget
}

// Spend decrements k's remaining budget by one hop and reports whether
// that hop was within budget (remaining >= 0, so a hop that leaves zero
// remaining is still ok). A request not currently tracked reports false —
// it has either never been seen or already fallen out of the LRU window.
func (h *HopTracker) Spend(k Key) (remaining int, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	el, tracked := h.pos[k]
	if !tracked {
		return 0, false
	}
	h.order.MoveToFront(el)
	h.budget[k]--
	remaining = h.budget[k]
	return remaining, remaining >= 0
}

// Len reports the number of in-flight requests currently tracked.
func (h *HopTracker) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.order.Len()
}
