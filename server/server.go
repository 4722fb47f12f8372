// Package server implements the eight endpoint handlers (C7): info,
// clients, servers, connect, lookup, announce, send, poll. Handlers are
// transport-agnostic — they consume an *envelope.Request and produce an
// *envelope.Response — so the HTTP binding in transport/http is the only
// package that knows about net/http.
package server

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/hyperborea-net/hyperborea/client"
	"github.com/hyperborea-net/hyperborea/codec"
	"github.com/hyperborea-net/hyperborea/envelope"
	"github.com/hyperborea-net/hyperborea/forward"
	"github.com/hyperborea-net/hyperborea/identity"
	"github.com/hyperborea-net/hyperborea/inbox"
	"github.com/hyperborea-net/hyperborea/internal/logger"
	"github.com/hyperborea-net/hyperborea/internal/metrics"
	"github.com/hyperborea-net/hyperborea/protoerr"
	"github.com/hyperborea-net/hyperborea/router"
	"github.com/hyperborea-net/hyperborea/traversal"
)

// Config carries the per-server tunables from the configuration
// record that this package itself consumes.
type Config struct {
	InboxConfig     inbox.Config
	RouterConfig    router.Config
	CodecConfig     codec.Config
	TraversalConfig traversal.Config

	// MaxForwardHops bounds how many times a single /send can be relayed
	// before a server gives up, tracked per (request seed, sender).
	MaxForwardHops int
	// ForwardTimeout bounds a single forwarding hop's round trip.
	ForwardTimeout time.Duration
	// ForwardTrackerCapacity bounds how many in-flight forwarded requests
	// this server tracks hop budgets for at once.
	ForwardTrackerCapacity int
}

// DefaultConfig wires every sub-config's documented defaults together.
func DefaultConfig() Config {
	return Config{
		InboxConfig:            inbox.DefaultConfig(),
		RouterConfig:           router.DefaultConfig(),
		CodecConfig:            codec.DefaultConfig(),
		TraversalConfig:        traversal.DefaultConfig(),
		MaxForwardHops:         3,
		ForwardTimeout:         3 * time.Second,
		ForwardTrackerCapacity: 10_000,
	}
}

// Server holds the shared state every handler reads and mutates: identity,
// the routing table, the inbox, and a Querier used to reach out to peers
// during traversal.
type Server struct {
	Keys *identity.KeyPair
	Cfg  Config

	Router  *router.Router
	Inbox   *inbox.Inbox
	Querier traversal.Querier
	Log     logger.Logger
	Metrics *metrics.Collector

	// Forwarder relays a /send this server cannot satisfy locally to the
	// server routing_table names as the receiver's owner. Nil disables
	// forwarding: Send then answers NotConnected for remote receivers,
	// same as it does for unknown ones.
	Forwarder client.Transport
	// Hops tracks the remaining forward-hop budget per (seed, sender).
	Hops *forward.HopTracker
}

// New constructs a Server for identity keys. querier may be nil in tests
// that never exercise remote traversal. Forwarder (server-to-server send
// relaying) is left unset; assign Forwarder directly once a transport
// binding exists.
func New(keys *identity.KeyPair, cfg Config, querier traversal.Querier, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNopLogger()
	}
	capacity := cfg.ForwardTrackerCapacity
	if capacity <= 0 {
		capacity = 10_000
	}
	return &Server{
		Keys:    keys,
		Cfg:     cfg,
		Router:  router.New(keys.PublicKey(), cfg.RouterConfig, log),
		Inbox:   inbox.New(cfg.InboxConfig),
		Querier: querier,
		Log:     log,
		Metrics: metrics.NewRegistry(),
		Hops:    forward.NewHopTracker(capacity),
	}
}

// PublishStats pushes the current router and inbox sizes into the
// Prometheus gauges. Callers run this periodically (e.g. from a
// time.Ticker in the transport binding's main loop).
func (s *Server) PublishStats() {
	rs := s.Router.Stats()
	s.Metrics.ObserveRouterStats(rs.LocalClients, rs.KnownServers, rs.RoutingTable)
	s.Metrics.ObserveInboxDepth(s.Inbox.TotalDepth())
}

// handle wraps a handler body with the envelope validation every endpoint
// shares: standard-tag check and proof-of-key verification (§4.2a/b).
func (s *Server) handle(endpoint string, req *envelope.Request, body func() (json.RawMessage, *protoerr.Error)) *envelope.Response {
	start := time.Now()
	resp := s.handleInner(req, body)
	s.Metrics.ObserveRequest(endpoint, int(resp.Status), time.Since(start))
	return resp
}

func (s *Server) handleInner(req *envelope.Request, body func() (json.RawMessage, *protoerr.Error)) *envelope.Response {
	if perr := req.Validate(); perr != nil {
		return envelope.Failure(perr.Status(), perr.Reason)
	}
	payload, perr := body()
	if perr != nil {
		if perr.Kind == protoerr.KindInternal {
			s.Log.Error("internal handler failure", logger.Error(perr))
			return envelope.Failure(protoerr.StatusInternal, "internal error")
		}
		return envelope.Failure(perr.Status(), perr.Reason)
	}
	return envelope.Success(s.Keys, req, payload)
}

// Info answers /api/v1/info (POST, like every endpoint transport/http
// binds): the server's own public key, proven by
// signing the request's seed (the generic proof every success envelope
// already carries), plus optional stats.
func (s *Server) Info(ctx context.Context, req *envelope.Request, withStats bool) *envelope.Response {
	return s.handle("info", req, func() (json.RawMessage, *protoerr.Error) {
		resp := InfoResponse{PublicKey: identity.Encode(s.Keys.PublicKey())}
		if withStats {
			rs := s.Router.Stats()
			resp.Stats = &Stats{
				LocalClients: rs.LocalClients,
				KnownServers: rs.KnownServers,
				RoutingTable: rs.RoutingTable,
				InboxDepth:   s.Inbox.TotalDepth(),
			}
		}
		return marshal(resp)
	})
}

// Clients answers POST /api/v1/clients with every directly-connected
// client.
func (s *Server) Clients(ctx context.Context, req *envelope.Request) *envelope.Response {
	return s.handle("clients", req, func() (json.RawMessage, *protoerr.Error) {
		clients := s.Router.Clients()
		out := ClientsResponse{Clients: make([]clientRecord, len(clients))}
		for i, c := range clients {
			out.Clients[i] = clientRecord{PublicKey: identity.Encode(c.PublicKey), Certificate: c.Certificate, Info: c.Info}
		}
		return marshal(out)
	})
}

// Servers answers POST /api/v1/servers with every known peer server.
func (s *Server) Servers(ctx context.Context, req *envelope.Request) *envelope.Response {
	return s.handle("servers", req, func() (json.RawMessage, *protoerr.Error) {
		servers := s.Router.Servers()
		out := ServersResponse{Servers: make([]serverRecord, len(servers))}
		for i, srv := range servers {
			out.Servers[i] = serverRecord{PublicKey: identity.Encode(srv.PublicKey), Address: srv.Address}
		}
		return marshal(out)
	})
}

// Connect answers POST /api/v1/connect: binds req's caller to this
// server under the submitted certificate.
func (s *Server) Connect(ctx context.Context, req *envelope.Request) *envelope.Response {
	return s.handle("connect", req, func() (json.RawMessage, *protoerr.Error) {
		var body ConnectRequest
		if err := json.Unmarshal(req.Payload, &body); err != nil {
			return nil, protoerr.Wrap(protoerr.KindSchema, "malformed connect request", err)
		}
		if perr := s.Router.Connect(req.PublicKey, body.Certificate, body.ClientInfo); perr != nil {
			return nil, perr
		}
		return json.RawMessage(`{}`), nil
	})
}

// Lookup answers POST /api/v1/lookup. It checks the local router first
// (local, then remote), and only falls back to the traversal BFS when
// neither has an entry for the target.
func (s *Server) Lookup(ctx context.Context, req *envelope.Request) *envelope.Response {
	return s.handle("lookup", req, func() (json.RawMessage, *protoerr.Error) {
		var body LookupRequest
		if err := json.Unmarshal(req.Payload, &body); err != nil {
			return nil, protoerr.Wrap(protoerr.KindSchema, "malformed lookup request", err)
		}
		target, err := identity.Decode(body.PublicKey)
		if err != nil {
			return nil, protoerr.Wrap(protoerr.KindSchema, "malformed public_key", err)
		}

		clientType := ""
		if body.Type != nil {
			clientType = *body.Type
		}
		kindMatches := func(c router.Client) bool {
			return clientType == "" || string(c.Info.Kind) == clientType
		}

		if client, ok, available := s.Router.LookupLocal(target); ok && kindMatches(client) {
			return marshal(LookupResponse{
				Disposition: string(traversal.DispositionLocal),
				Client:      clientRecordFrom(client),
				Available:   available,
			})
		}
		if client, srv, ok, available := s.Router.LookupRemote(target); ok && kindMatches(client) {
			return marshal(LookupResponse{
				Disposition: string(traversal.DispositionRemote),
				Client:      clientRecordFrom(client),
				Server:      &serverRecord{PublicKey: identity.Encode(srv.PublicKey), Address: srv.Address},
				Available:   available,
			})
		}

		if s.Querier == nil {
			return nil, protoerr.New(protoerr.KindNotFound, "target not known to this server")
		}
		result, perr := traversal.Lookup(ctx, s.Querier, s.Router, target, clientType, s.Cfg.TraversalConfig)
		if perr != nil {
			s.Metrics.ObserveTraversal(string(perr.Kind), 0)
			return nil, perr
		}
		s.Metrics.ObserveTraversal(string(result.Disposition), 0)
		return marshal(LookupResponse{
			Disposition: string(result.Disposition),
			Client:      clientRecordFrom(result.Client),
			Available:   result.Available,
		})
	})
}

func clientRecordFrom(c router.Client) *clientRecord {
	if c.PublicKey == (identity.PublicKey{}) {
		return nil
	}
	return &clientRecord{PublicKey: identity.Encode(c.PublicKey), Certificate: c.Certificate, Info: c.Info}
}

// Announce answers POST /api/v1/announce: the request carries either a
// client binding (pushed by that client, or forwarded on its behalf) or a
// peer server record.
func (s *Server) Announce(ctx context.Context, req *envelope.Request) *envelope.Response {
	return s.handle("announce", req, func() (json.RawMessage, *protoerr.Error) {
		var body AnnounceRequest
		if err := json.Unmarshal(req.Payload, &body); err != nil {
			return nil, protoerr.Wrap(protoerr.KindSchema, "malformed announce request", err)
		}
		switch {
		case body.Client != nil:
			pk, err := identity.Decode(body.Client.PublicKey)
			if err != nil {
				return nil, protoerr.Wrap(protoerr.KindSchema, "malformed client public_key", err)
			}
			serverPk, err := identity.Decode(body.Client.Server.PublicKey)
			if err != nil {
				return nil, protoerr.Wrap(protoerr.KindSchema, "malformed server public_key", err)
			}
			srv := router.Server{PublicKey: serverPk, Address: body.Client.Server.Address}
			client := router.Client{PublicKey: pk, Certificate: body.Client.Certificate, Info: body.Client.Info}
			if perr := s.Router.ObserveClient(client, srv, body.Client.Certificate); perr != nil {
				return nil, perr
			}
		case body.Server != nil:
			pk, err := identity.Decode(body.Server.PublicKey)
			if err != nil {
				return nil, protoerr.Wrap(protoerr.KindSchema, "malformed server public_key", err)
			}
			s.Router.ObserveServer(router.Server{PublicKey: pk, Address: body.Server.Address})
		default:
			return nil, protoerr.New(protoerr.KindSchema, "announce requires a client or server variant")
		}
		return json.RawMessage(`{}`), nil
	})
}

// Send answers POST /api/v1/send. A locally connected receiver gets the
// message pushed straight into its inbox. A receiver known only via
// routing_table is reached by forwarding the request, verbatim, to the
// server that owns its binding. Anything else is NotConnected.
func (s *Server) Send(ctx context.Context, req *envelope.Request) *envelope.Response {
	return s.handle("send", req, func() (json.RawMessage, *protoerr.Error) {
		var body SendRequest
		if err := json.Unmarshal(req.Payload, &body); err != nil {
			return nil, protoerr.Wrap(protoerr.KindSchema, "malformed send request", err)
		}
		sender, err := identity.Decode(body.Sender)
		if err != nil {
			return nil, protoerr.Wrap(protoerr.KindSchema, "malformed sender", err)
		}
		receiver, err := identity.Decode(body.Receiver)
		if err != nil {
			return nil, protoerr.Wrap(protoerr.KindSchema, "malformed receiver", err)
		}
		seed, err := strconv.ParseUint(body.Seed, 10, 64)
		if err != nil {
			return nil, protoerr.Wrap(protoerr.KindSchema, "malformed seed", err)
		}

		if _, ok, _ := s.Router.LookupLocal(receiver); ok {
			var msg codec.Message
			if err := json.Unmarshal(body.Message, &msg); err != nil {
				return nil, protoerr.Wrap(protoerr.KindSchema, "malformed message", err)
			}
			if len(msg.Content) > s.Cfg.CodecConfig.MaxPlaintext*2 {
				return nil, protoerr.New(protoerr.KindTooLarge, "message exceeds configured size limit")
			}
			if perr := s.Inbox.Push(receiver, body.Channel, inbox.Entry{Sender: sender, Channel: body.Channel, Seed: seed, Message: msg}); perr != nil {
				return nil, perr
			}
			return json.RawMessage(`{}`), nil
		}

		if _, owner, ok, _ := s.Router.LookupRemote(receiver); ok {
			return s.forwardSend(ctx, owner, sender, req)
		}

		return nil, protoerr.New(protoerr.KindNotConnected, "receiver is not connected to this server or a known peer")
	})
}

// forwardSend relays req to owner unchanged, re-signing only the
// transport envelope with this server's own key; the inner payload
// (including the codec Message) is carried through verbatim. The forward
// hop budget is keyed by (request seed, sender) — the pair that
// identifies a single send request across every hop it takes — so a loop
// spins down instead of forwarding forever. Returns the downstream
// server's status verbatim.
func (s *Server) forwardSend(ctx context.Context, owner router.Server, sender identity.PublicKey, req *envelope.Request) (json.RawMessage, *protoerr.Error) {
	if s.Forwarder == nil {
		return nil, protoerr.New(protoerr.KindNotConnected, "receiver is known remotely but this server cannot forward")
	}

	key := forward.Key{Seed: req.Proof.Seed, Sender: sender}
	remaining, tracked := s.Hops.Spend(key)
	if !tracked {
		s.Hops.Start(key, s.Cfg.MaxForwardHops)
		remaining, _ = s.Hops.Spend(key)
	}
	if remaining < 0 {
		return nil, protoerr.New(protoerr.KindNotFound, "forward hop budget exhausted")
	}

	hopCtx, cancel := context.WithTimeout(ctx, s.Cfg.ForwardTimeout)
	defer cancel()

	forwardReq := envelope.SignedRequest(s.Keys, req.Proof.Seed, req.Payload)
	resp, err := s.Forwarder.Do(hopCtx, owner.Address, client.EndpointSend, forwardReq)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.KindTimeout, "forward hop failed", err)
	}
	if !resp.Status.IsSuccess() {
		return nil, protoerr.FromStatus(resp.Status, resp.Reason)
	}
	return resp.Payload, nil
}

// Poll answers POST /api/v1/poll: drains up to limit queued messages for
// the caller on channel, in FIFO order.
func (s *Server) Poll(ctx context.Context, req *envelope.Request) *envelope.Response {
	return s.handle("poll", req, func() (json.RawMessage, *protoerr.Error) {
		var body PollRequest
		if err := json.Unmarshal(req.Payload, &body); err != nil {
			return nil, protoerr.Wrap(protoerr.KindSchema, "malformed poll request", err)
		}
		limit := 64
		if body.Limit != nil {
			limit = *body.Limit
		}
		entries := s.Inbox.Poll(req.PublicKey, body.Channel, limit)
		messages := make([]PolledMessage, len(entries))
		for i, e := range entries {
			msgBytes, _ := json.Marshal(e.Message)
			messages[i] = PolledMessage{
				Sender:  identity.Encode(e.Sender),
				Channel: e.Channel,
				Seed:    e.Seed,
				Message: msgBytes,
			}
		}
		remaining := s.Inbox.StatsFor(req.PublicKey).PerChannel[body.Channel]
		return marshal(PollResponse{Messages: messages, Remaining: remaining})
	})
}

func marshal(v any) (json.RawMessage, *protoerr.Error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.KindInternal, "failed to encode response", err)
	}
	return b, nil
}
