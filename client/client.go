// Package client implements the client-side runtime (C9): a keypair plus
// an optional bound server, with connect/announce/lookup/send/poll
// operations built on a transport-agnostic Transport interface.
package client

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/hyperborea-net/hyperborea/certificate"
	"github.com/hyperborea-net/hyperborea/codec"
	"github.com/hyperborea-net/hyperborea/envelope"
	"github.com/hyperborea-net/hyperborea/identity"
	"github.com/hyperborea-net/hyperborea/protoerr"
)

// Endpoint names one of the eight operations a server exposes;
// transport/http maps each to its fixed URL path.
type Endpoint string

const (
	EndpointInfo     Endpoint = "info"
	EndpointClients  Endpoint = "clients"
	EndpointServers  Endpoint = "servers"
	EndpointConnect  Endpoint = "connect"
	EndpointLookup   Endpoint = "lookup"
	EndpointAnnounce Endpoint = "announce"
	EndpointSend     Endpoint = "send"
	EndpointPoll     Endpoint = "poll"
)

// Transport sends a signed request envelope for endpoint to a named
// server and returns its response envelope. Implementations
// (transport/http.Transport) own the actual network I/O; errors they can't
// otherwise classify should be wrapped as protoerr.KindTransport so the
// retry policy here recognizes them.
type Transport interface {
	Do(ctx context.Context, address string, endpoint Endpoint, req *envelope.Request) (*envelope.Response, error)
}

// Server is a peer server address the client can bind to.
type Server struct {
	PublicKey identity.PublicKey
	Address   string
}

// Binding is what Connect establishes: the server bound to and the
// certificate that attests it.
type Binding struct {
	Server      Server
	Certificate certificate.Certificate
}

// Client holds a keypair and, once connected, its current server
// binding. It is not safe for concurrent Connect calls (rebinding is
// expected to be a deliberate, serialized operation), but Lookup/Send/
// Poll calls may run concurrently once bound.
type Client struct {
	Keys      *identity.KeyPair
	Transport Transport
	Retry     RetryConfig
	Codec     codec.Config

	bound *Binding
	seed  uint64
}

// New creates a Client for keys, talking through transport.
func New(keys *identity.KeyPair, transport Transport) *Client {
	return &Client{
		Keys:      keys,
		Transport: transport,
		Retry:     DefaultRetryConfig(),
		Codec:     codec.DefaultConfig(),
	}
}

// nextSeed hands out a fresh proof-of-key nonce. A monotonic counter is
// sufficient: the protocol only requires the signature to cover whatever
// seed is declared, not that seeds be unpredictable.
func (c *Client) nextSeed() uint64 {
	return atomic.AddUint64(&c.seed, 1)
}

func (c *Client) call(ctx context.Context, address string, endpoint Endpoint, payload any) (*envelope.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.KindSchema, "failed to encode request payload", err)
	}
	var resp *envelope.Response
	err = withRetry(ctx, c.Retry, func() error {
		seed := c.nextSeed()
		req := envelope.SignedRequest(c.Keys, seed, body)
		r, callErr := c.Transport.Do(ctx, address, endpoint, req)
		if callErr != nil {
			resp = nil
			return callErr
		}
		if !r.Status.IsSuccess() {
			resp = r
			return nil // a protocol-level failure is not a transport retry signal.
		}
		if !r.Verify(seed) {
			resp = nil
			return protoerr.New(protoerr.KindIntegrity, "response proof did not verify")
		}
		resp = r
		return nil
	})
	return resp, err
}

// Connect fetches /info from server, verifies its proof, builds a fresh
// certificate, and submits /connect. On success the binding is stored.
func (c *Client) Connect(ctx context.Context, server Server) (*Binding, error) {
	infoReq := envelope.SignedRequest(c.Keys, c.nextSeed(), json.RawMessage(`{}`))
	infoResp, err := c.Transport.Do(ctx, server.Address, EndpointInfo, infoReq)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.KindTransport, "info request failed", err)
	}
	if !infoResp.Status.IsSuccess() {
		return nil, protoerr.FromStatus(infoResp.Status, "info request rejected")
	}
	if !infoResp.Verify(infoReq.Proof.Seed) {
		return nil, protoerr.New(protoerr.KindIntegrity, "info response proof did not verify")
	}
	if infoResp.PublicKey != server.PublicKey {
		return nil, protoerr.New(protoerr.KindIntegrity, "server identity does not match expected public key")
	}

	authDate := uint64(time.Now().Unix())
	cert := certificate.Build(c.Keys, server.PublicKey, authDate)

	connectPayload := struct {
		Certificate certificate.Certificate `json:"certificate"`
		ClientInfo  any                      `json:"client_info"`
	}{Certificate: cert, ClientInfo: map[string]string{"kind": "thick"}}

	resp, err := c.call(ctx, server.Address, EndpointConnect, connectPayload)
	if err != nil {
		return nil, err
	}
	if !resp.Status.IsSuccess() {
		return nil, protoerr.FromStatus(resp.Status, "connect rejected")
	}

	binding := &Binding{Server: server, Certificate: cert}
	c.bound = binding
	return binding, nil
}

// Announce pushes the client's current binding to each of servers.
func (c *Client) Announce(ctx context.Context, servers []Server) error {
	if c.bound == nil {
		return protoerr.New(protoerr.KindNotConnected, "client has no active binding to announce")
	}
	payload := struct {
		Client struct {
			PublicKey   string                  `json:"public_key"`
			Certificate certificate.Certificate `json:"certificate"`
			Info        any                     `json:"info"`
			Server      struct {
				PublicKey string `json:"public_key"`
				Address   string `json:"address"`
			} `json:"server"`
		} `json:"client"`
	}{}
	payload.Client.PublicKey = identity.Encode(c.Keys.PublicKey())
	payload.Client.Certificate = c.bound.Certificate
	payload.Client.Info = map[string]string{"kind": "thick"}
	payload.Client.Server.PublicKey = identity.Encode(c.bound.Server.PublicKey)
	payload.Client.Server.Address = c.bound.Server.Address

	for _, srv := range servers {
		resp, err := c.call(ctx, srv.Address, EndpointAnnounce, payload)
		if err != nil {
			return err
		}
		if !resp.Status.IsSuccess() {
			return protoerr.FromStatus(resp.Status, "announce rejected")
		}
	}
	return nil
}

// LookupResult is the client-side view of a successful lookup.
type LookupResult struct {
	Disposition string
	PublicKey   string
	Available   bool
}

// Lookup asks the bound server to resolve pk.
func (c *Client) Lookup(ctx context.Context, pk identity.PublicKey) (*LookupResult, error) {
	if c.bound == nil {
		return nil, protoerr.New(protoerr.KindNotConnected, "client is not bound to a server")
	}
	payload := struct {
		PublicKey string `json:"public_key"`
	}{PublicKey: identity.Encode(pk)}

	resp, err := c.call(ctx, c.bound.Server.Address, EndpointLookup, payload)
	if err != nil {
		return nil, err
	}
	if !resp.Status.IsSuccess() {
		return nil, protoerr.FromStatus(resp.Status, "lookup failed")
	}
	var body struct {
		Disposition string `json:"disposition"`
		Available   bool   `json:"available"`
		Client      *struct {
			PublicKey string `json:"public_key"`
		} `json:"client"`
	}
	if err := json.Unmarshal(resp.Payload, &body); err != nil {
		return nil, protoerr.Wrap(protoerr.KindSchema, "malformed lookup response", err)
	}
	result := &LookupResult{Disposition: body.Disposition, Available: body.Available}
	if body.Client != nil {
		result.PublicKey = body.Client.PublicKey
	}
	return result, nil
}

// Send encrypts plaintext for receiver on channel through the message
// codec, then submits it via /send through the bound server.
func (c *Client) Send(ctx context.Context, receiver identity.PublicKey, channel string, pipeline codec.Pipeline, plaintext []byte) error {
	if c.bound == nil {
		return protoerr.New(protoerr.KindNotConnected, "client is not bound to a server")
	}
	seed := c.nextSeed()
	msg, err := codec.Encrypt(c.Codec, c.Keys, receiver, channel, seed, pipeline, plaintext)
	if err != nil {
		return err
	}
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		return protoerr.Wrap(protoerr.KindInternal, "failed to encode message", err)
	}
	payload := struct {
		Sender   string          `json:"sender"`
		Receiver string          `json:"receiver"`
		Channel  string          `json:"channel"`
		Seed     string          `json:"seed"`
		Message  json.RawMessage `json:"message"`
	}{
		Sender:   identity.Encode(c.Keys.PublicKey()),
		Receiver: identity.Encode(receiver),
		Channel:  channel,
		Seed:     seedString(seed),
		Message:  msgBytes,
	}
	resp, err := c.call(ctx, c.bound.Server.Address, EndpointSend, payload)
	if err != nil {
		return err
	}
	if !resp.Status.IsSuccess() {
		return protoerr.FromStatus(resp.Status, "send rejected")
	}
	return nil
}

// Poll drains up to limit queued messages for channel and decrypts each
// one against its declared sender.
func (c *Client) Poll(ctx context.Context, channel string, limit int) ([][]byte, error) {
	if c.bound == nil {
		return nil, protoerr.New(protoerr.KindNotConnected, "client is not bound to a server")
	}
	payload := struct {
		Channel string `json:"channel"`
		Limit   int    `json:"limit"`
	}{Channel: channel, Limit: limit}

	resp, err := c.call(ctx, c.bound.Server.Address, EndpointPoll, payload)
	if err != nil {
		return nil, err
	}
	if !resp.Status.IsSuccess() {
		return nil, protoerr.FromStatus(resp.Status, "poll failed")
	}
	var body struct {
		Messages []struct {
			Sender  string          `json:"sender"`
			Channel string          `json:"channel"`
			Seed    string          `json:"seed"`
			Message codec.Message   `json:"message"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(resp.Payload, &body); err != nil {
		return nil, protoerr.Wrap(protoerr.KindSchema, "malformed poll response", err)
	}

	out := make([][]byte, 0, len(body.Messages))
	for _, m := range body.Messages {
		sender, err := identity.Decode(m.Sender)
		if err != nil {
			return nil, protoerr.Wrap(protoerr.KindSchema, "malformed message sender", err)
		}
		seed, err := parseSeed(m.Seed)
		if err != nil {
			return nil, protoerr.Wrap(protoerr.KindSchema, "malformed message seed", err)
		}
		plaintext, err := codec.Decrypt(c.Codec, c.Keys, sender, m.Channel, seed, m.Message)
		if err != nil {
			return nil, err
		}
		out = append(out, plaintext)
	}
	return out, nil
}
