// Package traversal implements the lookup BFS (C8): when a server's own
// router has no local or remote entry for a target public key, it fans
// the question out across servers it knows, in waves bounded by
// concurrency, hop depth, and a wall-clock deadline.
package traversal

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hyperborea-net/hyperborea/identity"
	"github.com/hyperborea-net/hyperborea/protoerr"
	"github.com/hyperborea-net/hyperborea/router"
)

// Disposition mirrors the three-way lookup answer shape from the wire
// protocol: a target is found locally, found via a remote binding, or
// only a set of hints toward servers likelier to know it is available.
type Disposition string

const (
	DispositionLocal  Disposition = "local"
	DispositionRemote Disposition = "remote"
	DispositionHint   Disposition = "hint"
	DispositionNone   Disposition = "none"
)

// Answer is what a single server returns for a /lookup query.
type Answer struct {
	Disposition Disposition
	Client      router.Client
	Server      router.Server
	Available   bool
	Hints       []router.Server
}

// Querier asks a single remote server to answer a lookup, transport
// agnostic so the BFS can run against a real HTTP mesh or an in-memory
// fake in tests.
type Querier interface {
	Lookup(ctx context.Context, server router.Server, pk identity.PublicKey, clientType string) (Answer, error)
}

// Config bounds one traversal run.
type Config struct {
	Timeout     time.Duration // default 5s
	MaxDepth    int           // default 4
	Concurrency int           // default 4
	FrontierK   int           // default 8
}

// DefaultConfig returns the protocol's documented defaults.
func DefaultConfig() Config {
	return Config{Timeout: 5 * time.Second, MaxDepth: 4, Concurrency: 4, FrontierK: 8}
}

// Result is the outcome of a completed traversal.
type Result struct {
	Found bool
	Answer
}

// Lookup runs a bounded-concurrency BFS: starting from the hint
// set the local router offers, it queries successive frontiers of
// servers in parallel (bounded by cfg.Concurrency) until an answer names
// the target, the frontier is exhausted (311/not found), the deadline
// passes (310/timeout), or max_depth is reached.
func Lookup(ctx context.Context, q Querier, r *router.Router, pk identity.PublicKey, clientType string, cfg Config) (Result, *protoerr.Error) {
	deadline := time.Now().Add(cfg.Timeout)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	visited := map[identity.PublicKey]bool{r.Self(): true}
	frontier := r.Hint(pk, cfg.FrontierK, nil)

	for depth := 0; len(frontier) > 0 && depth < cfg.MaxDepth; depth++ {
		if time.Now().After(deadline) {
			return Result{}, protoerr.New(protoerr.KindTimeout, "lookup deadline exceeded")
		}

		next := make([]router.Server, 0, len(frontier))
		exclude := map[identity.PublicKey]bool{}
		for _, s := range frontier {
			if visited[s.PublicKey] {
				continue
			}
			next = append(next, s)
			exclude[s.PublicKey] = true
		}
		frontier = next
		if len(frontier) == 0 {
			break
		}

		answers, err := queryFrontier(ctx, q, frontier, pk, clientType, cfg.Concurrency)
		if err != nil {
			return Result{}, protoerr.New(protoerr.KindTimeout, "lookup deadline exceeded")
		}

		newHints := make([]router.Server, 0)
		for i, s := range frontier {
			visited[s.PublicKey] = true
			ans, ok := answers[i]
			if !ok {
				continue // server gave no answer; absorbed silently.
			}
			switch ans.Disposition {
			case DispositionLocal, DispositionRemote:
				if clientType != "" && string(ans.Client.Info.Kind) != clientType {
					continue // known under another kind: no match, keep searching.
				}
				// The answering server reports its own view (local means
				// local to it). From the caller's perspective every find
				// beyond its own router is a remote binding, so local is
				// rewritten to remote with the answering server carried
				// as Answer.Server.
				ans.Disposition = DispositionRemote
				return Result{Found: true, Answer: ans}, nil
			case DispositionHint:
				for _, h := range ans.Hints {
					if !visited[h.PublicKey] {
						newHints = append(newHints, h)
					}
				}
			}
		}
		frontier = newHints
	}

	if time.Now().After(deadline) {
		return Result{}, protoerr.New(protoerr.KindTimeout, "lookup deadline exceeded")
	}
	return Result{}, protoerr.New(protoerr.KindNotFound, "target not reachable within max_depth")
}

// queryFrontier queries every server in frontier concurrently, bounded by
// concurrency, and returns each server's answer by frontier index. A
// server that errors (timeout, transport failure) is simply absent from
// the result map — traversal treats that as "no answer" — except that a
// caller-cancelled context propagates as an error so the
// overall deadline can be honored promptly.
func queryFrontier(ctx context.Context, q Querier, frontier []router.Server, pk identity.PublicKey, clientType string, concurrency int) (map[int]Answer, error) {
	results := make(map[int]Answer, len(frontier))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, server := range frontier {
		i, server := i, server
		g.Go(func() error {
			ans, err := q.Lookup(gctx, server, pk, clientType)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				return nil
			}
			mu.Lock()
			results[i] = ans
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
