package router

import (
	"sync"
	"time"

	"github.com/hyperborea-net/hyperborea/certificate"
	"github.com/hyperborea-net/hyperborea/identity"
	"github.com/hyperborea-net/hyperborea/internal/logger"
	"github.com/hyperborea-net/hyperborea/protoerr"
)

// Router holds a server's local routing view: directly connected clients,
// known peer servers, and the client→server table learned by gossip. It
// is the exclusive owner of this state (§3 Ownership): callers never hold
// a reference into Router's internals, only the copied-by-value records
// this package returns.
//
// Router lookups take a read lock (reader-majority); mutations take a
// write lock, so concurrent connect/observe calls for the same client
// serialize and the later auth_date deterministically wins (§5).
type Router struct {
	mu sync.RWMutex

	self identity.PublicKey
	cfg  Config
	log  logger.Logger

	localClients map[identity.PublicKey]localEntry
	knownServers map[identity.PublicKey]serverEntry
	routingTable map[identity.PublicKey]routingTableEntry

	serverLRU  *lruIndex
	routingLRU *lruIndex
}

// New creates a Router for a server identified by self, using cfg for
// resource caps and log for diagnostics (nil log is replaced with a no-op
// logger; logging itself is an ambient concern, not an external sink).
func New(self identity.PublicKey, cfg Config, log logger.Logger) *Router {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Router{
		self:         self,
		cfg:          cfg,
		log:          log,
		localClients: make(map[identity.PublicKey]localEntry),
		knownServers: make(map[identity.PublicKey]serverEntry),
		routingTable: make(map[identity.PublicKey]routingTableEntry),
		serverLRU:    newLRUIndex(),
		routingLRU:   newLRUIndex(),
	}
}

// Self returns the public key this Router was constructed for, so callers
// that hold only a *Router (traversal's BFS, notably) can tell their own
// identity apart from a peer's.
func (r *Router) Self() identity.PublicKey {
	return r.self
}

// Connect validates that cert binds clientPubkey to this server and, if
// it is newer than any existing binding for the client (local or remote),
// installs it as the local entry. Emits no network traffic (§4.5).
func (r *Router) Connect(clientPubkey identity.PublicKey, cert certificate.Certificate, info ClientInfo) *protoerr.Error {
	if !certificate.Verify(cert, clientPubkey, r.self) {
		return protoerr.New(protoerr.KindIntegrity, "certificate does not bind client to this server")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.bestKnownCertificateLocked(clientPubkey); ok && !cert.Supersedes(existing) {
		return protoerr.New(protoerr.KindIntegrity, "certificate is not newer than the known binding")
	}

	r.localClients[clientPubkey] = localEntry{Info: info, Certificate: cert, LastSeen: time.Now()}
	delete(r.routingTable, clientPubkey)
	r.routingLRU.remove(clientPubkey)

	r.log.Debug("client connected", logger.String("client", clientPubkey.String()))
	return nil
}

// Disconnect removes clientPubkey's local entry. It does not retract any
// announcement of the client to other servers — those expire by TTL.
func (r *Router) Disconnect(clientPubkey identity.PublicKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.localClients, clientPubkey)
}

// ObserveClient records a remote client→server binding learned via
// announce or a peer's /clients listing. The strictly-greater auth_date
// wins; ties break by lexicographically greater signature (§4.5/§8).
func (r *Router) ObserveClient(client Client, server Server, cert certificate.Certificate) *protoerr.Error {
	if !certificate.Verify(cert, client.PublicKey, server.PublicKey) {
		return protoerr.New(protoerr.KindIntegrity, "certificate does not bind client to server")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.bestKnownCertificateLocked(client.PublicKey); ok && !cert.Supersedes(existing) {
		return nil // known entry is at least as fresh; not an error, just a no-op.
	}

	r.upsertKnownServerLocked(server)
	r.routingTable[client.PublicKey] = routingTableEntry{
		Server: server, Certificate: cert, ClientInfo: client.Info, LastRefresh: time.Now(),
	}
	r.routingLRU.touch(client.PublicKey)
	r.enforceRoutingCapacityLocked()
	return nil
}

// ObserveServer upserts server into the known-servers table.
func (r *Router) ObserveServer(server Server) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upsertKnownServerLocked(server)
}

func (r *Router) upsertKnownServerLocked(server Server) {
	r.knownServers[server.PublicKey] = serverEntry{Server: server, LastSeen: time.Now()}
	r.serverLRU.touch(server.PublicKey)
	r.enforceServerCapacityLocked()
}

// bestKnownCertificateLocked returns the currently-winning certificate for
// a client across both local and routing-table state, if any. Caller must
// hold at least a read lock.
func (r *Router) bestKnownCertificateLocked(pk identity.PublicKey) (certificate.Certificate, bool) {
	var best certificate.Certificate
	found := false
	if local, ok := r.localClients[pk]; ok {
		best = local.Certificate
		found = true
	}
	if remote, ok := r.routingTable[pk]; ok {
		if !found || remote.Certificate.Supersedes(best) {
			best = remote.Certificate
			found = true
		}
	}
	return best, found
}

// LookupLocal reports a directly-connected client and whether it is
// currently available, per the liveness rules in §4.5.
func (r *Router) LookupLocal(pk identity.PublicKey) (Client, bool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.localClients[pk]
	if !ok {
		return Client{}, false, false
	}
	client := Client{PublicKey: pk, Certificate: entry.Certificate, Info: entry.Info}
	available := isAvailable(entry.Info.Kind, entry.LastSeen, r.cfg.LivenessWindow)
	return client, true, available
}

// LookupRemote consults the routing table for a remote binding whose
// server is still known.
func (r *Router) LookupRemote(pk identity.PublicKey) (Client, Server, bool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.routingTable[pk]
	if !ok {
		return Client{}, Server{}, false, false
	}
	if _, knownServer := r.knownServers[entry.Server.PublicKey]; !knownServer {
		return Client{}, Server{}, false, false
	}
	client := Client{PublicKey: pk, Certificate: entry.Certificate, Info: entry.ClientInfo}
	available := isAvailable(entry.ClientInfo.Kind, entry.LastRefresh, r.cfg.LivenessWindow)
	return client, entry.Server, true, available
}

// Hint returns up to k servers believed likeliest to know pk, ordered by
// XOR-distance between the server's public key and pk, ties broken by
// lexicographic public key (§4.5, determinism in §4.8).
func (r *Router) Hint(pk identity.PublicKey, k int, exclude map[identity.PublicKey]bool) []Server {
	r.mu.RLock()
	defer r.mu.RUnlock()

	candidates := make([]Server, 0, len(r.knownServers))
	for spk, entry := range r.knownServers {
		if exclude != nil && exclude[spk] {
			continue
		}
		candidates = append(candidates, entry.Server)
	}
	sortByXORDistance(candidates, pk)
	if k >= 0 && len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}

// Clients returns all directly-connected clients, for the /clients
// endpoint.
func (r *Router) Clients() []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Client, 0, len(r.localClients))
	for pk, entry := range r.localClients {
		out = append(out, Client{PublicKey: pk, Certificate: entry.Certificate, Info: entry.Info})
	}
	return out
}

// Servers returns all known peer servers, for the /servers endpoint.
func (r *Router) Servers() []Server {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Server, 0, len(r.knownServers))
	for _, entry := range r.knownServers {
		out = append(out, entry.Server)
	}
	return out
}

// Stats summarizes table sizes for introspection/metrics.
type Stats struct {
	LocalClients int
	KnownServers int
	RoutingTable int
}

func (r *Router) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{
		LocalClients: len(r.localClients),
		KnownServers: len(r.knownServers),
		RoutingTable: len(r.routingTable),
	}
}

// EvictExpired drops routing-table and known-server entries that have not
// been refreshed within the configured TTL (§4.5).
func (r *Router) EvictExpired(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for pk, entry := range r.routingTable {
		if now.Sub(entry.LastRefresh) > r.cfg.EntryTTL {
			delete(r.routingTable, pk)
			r.routingLRU.remove(pk)
		}
	}
	for pk, entry := range r.knownServers {
		if now.Sub(entry.LastSeen) > r.cfg.EntryTTL {
			delete(r.knownServers, pk)
			r.serverLRU.remove(pk)
		}
	}
}

func (r *Router) enforceRoutingCapacityLocked() {
	for len(r.routingTable) > r.cfg.RoutingTableCapacity {
		victim, ok := r.routingLRU.evictLRU()
		if !ok {
			break
		}
		delete(r.routingTable, victim)
	}
}

func (r *Router) enforceServerCapacityLocked() {
	for len(r.knownServers) > r.cfg.KnownServersCapacity {
		victim, ok := r.serverLRU.evictLRU()
		if !ok {
			break
		}
		delete(r.knownServers, victim)
	}
}

// Snapshot returns every routing-table entry, for the optional persisted
// snapshot file in §6. Certificate bytes are preserved verbatim by virtue
// of Certificate being copied by value.
func (r *Router) Snapshot() []RoutingEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RoutingEntry, 0, len(r.routingTable))
	for pk, entry := range r.routingTable {
		out = append(out, RoutingEntry{
			Client:      Client{PublicKey: pk, Certificate: entry.Certificate, Info: entry.ClientInfo},
			Server:      entry.Server,
			Certificate: entry.Certificate,
			ObservedAt:  entry.LastRefresh,
		})
	}
	return out
}

// Restore reinstates routing entries from a prior Snapshot, re-verifying
// each certificate before trusting it (a snapshot file is just bytes on
// disk; it gets no special trust).
func (r *Router) Restore(entries []RoutingEntry) {
	for _, e := range entries {
		_ = r.ObserveClient(e.Client, e.Server, e.Certificate)
	}
}
