// Package inbox implements the per-(client, channel) store-and-forward
// queues described in the protocol's C6 component: best-effort, bounded
// FIFOs with no push path. A server holding a message for a client that
// is not currently reachable keeps it here until the client polls.
package inbox

import (
	"container/list"
	"sync"

	"github.com/hyperborea-net/hyperborea/codec"
	"github.com/hyperborea-net/hyperborea/identity"
	"github.com/hyperborea-net/hyperborea/protoerr"
)

// Config bounds a single Inbox's resource usage.
type Config struct {
	PerChannelCapacity int // default 1024
	AggregateCapacity  int // default 16384
}

// DefaultConfig returns the protocol's documented defaults.
func DefaultConfig() Config {
	return Config{PerChannelCapacity: 1024, AggregateCapacity: 16384}
}

type key struct {
	client  identity.PublicKey
	channel string
}

// Inbox holds bounded FIFO queues keyed by (client, channel). It is safe
// for concurrent use.
type Inbox struct {
	mu       sync.Mutex
	cfg      Config
	queues   map[key]*list.List
	depth    int // aggregate message count across all queues
}

// New creates an empty Inbox governed by cfg.
func New(cfg Config) *Inbox {
	return &Inbox{cfg: cfg, queues: make(map[key]*list.List)}
}

// Entry is one queued message awaiting delivery to its recipient.
type Entry struct {
	Sender  identity.PublicKey
	Channel string
	Seed    uint64
	Message codec.Message
}

// Push enqueues msg for recipient on channel. It fails with InboxFull if
// either the per-channel or the aggregate capacity would be exceeded —
// the sender, not the server, is responsible for retrying.
func (ib *Inbox) Push(recipient identity.PublicKey, channel string, entry Entry) *protoerr.Error {
	ib.mu.Lock()
	defer ib.mu.Unlock()

	if ib.depth >= ib.cfg.AggregateCapacity {
		return protoerr.New(protoerr.KindInboxFull, "aggregate inbox capacity exceeded")
	}

	k := key{client: recipient, channel: channel}
	q, ok := ib.queues[k]
	if !ok {
		q = list.New()
		ib.queues[k] = q
	}
	if q.Len() >= ib.cfg.PerChannelCapacity {
		return protoerr.New(protoerr.KindInboxFull, "channel inbox capacity exceeded")
	}

	q.PushBack(entry)
	ib.depth++
	return nil
}

// Poll drains up to max queued entries for (recipient, channel) in FIFO
// order. An empty channel simply yields zero entries; polling is not an
// error path.
func (ib *Inbox) Poll(recipient identity.PublicKey, channel string, max int) []Entry {
	ib.mu.Lock()
	defer ib.mu.Unlock()

	k := key{client: recipient, channel: channel}
	q, ok := ib.queues[k]
	if !ok {
		return nil
	}

	out := make([]Entry, 0, max)
	for len(out) < max {
		front := q.Front()
		if front == nil {
			break
		}
		out = append(out, front.Value.(Entry))
		q.Remove(front)
		ib.depth--
	}
	if q.Len() == 0 {
		delete(ib.queues, k)
	}
	return out
}

// Stats reports queue depths for a client: per-channel and the inbox-wide
// aggregate, used by send-time backpressure decisions and metrics.
type Stats struct {
	PerChannel map[string]int
	Aggregate  int
}

// StatsFor summarizes queue depths belonging to a single client.
func (ib *Inbox) StatsFor(client identity.PublicKey) Stats {
	ib.mu.Lock()
	defer ib.mu.Unlock()

	stats := Stats{PerChannel: make(map[string]int)}
	for k, q := range ib.queues {
		if k.client != client {
			continue
		}
		stats.PerChannel[k.channel] = q.Len()
		stats.Aggregate += q.Len()
	}
	return stats
}

// TotalDepth returns the server-wide message count across every client
// and channel, for metrics export.
func (ib *Inbox) TotalDepth() int {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	return ib.depth
}
