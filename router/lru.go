package router

import (
	"container/list"

	"github.com/hyperborea-net/hyperborea/identity"
)

// lruIndex tracks access recency for a capped map without dictating how
// the map itself is stored — callers combine it with their own map keyed
// by identity.PublicKey. Kept deliberately small so Router.Config's
// capacity numbers map directly onto eviction behavior (§4.5).
type lruIndex struct {
	order *list.List
	pos   map[identity.PublicKey]*list.Element
}

func newLRUIndex() *lruIndex {
	return &lruIndex{order: list.New(), pos: make(map[identity.PublicKey]*list.Element)}
}

// touch marks key as most-recently-used, inserting it if new.
func (l *lruIndex) touch(key identity.PublicKey) {
	if el, ok := l.pos[key]; ok {
		l.order.MoveToFront(el)
		return
	}
	l.pos[key] = l.order.PushFront(key)
}

// remove drops key from the index.
func (l *lruIndex) remove(key identity.PublicKey) {
	if el, ok := l.pos[key]; ok {
		l.order.Remove(el)
		delete(l.pos, key)
	}
}

// evictLRU returns the least-recently-used key and removes it from the
// index, or false if the index is empty.
func (l *lruIndex) evictLRU() (identity.PublicKey, bool) {
	back := l.order.Back()
	if back == nil {
		return identity.PublicKey{}, false
	}
	key := back.Value.(identity.PublicKey)
	l.order.Remove(back)
	delete(l.pos, key)
	return key, true
}

func (l *lruIndex) len() int { return l.order.Len() }
