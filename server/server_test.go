package server

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperborea-net/hyperborea/certificate"
	"github.com/hyperborea-net/hyperborea/client"
	"github.com/hyperborea-net/hyperborea/codec"
	"github.com/hyperborea-net/hyperborea/envelope"
	"github.com/hyperborea-net/hyperborea/identity"
	"github.com/hyperborea-net/hyperborea/protoerr"
	"github.com/hyperborea-net/hyperborea/router"
)

// fakeForwarder is an in-memory client.Transport stand-in that records the
// request it was handed and returns a canned response, so Send's
// forwarding path can be tested without a real network hop.
type fakeForwarder struct {
	address  string
	endpoint client.Endpoint
	req      *envelope.Request
	resp     *envelope.Response
	err      error
}

func (f *fakeForwarder) Do(ctx context.Context, address string, endpoint client.Endpoint, req *envelope.Request) (*envelope.Response, error) {
	f.address, f.endpoint, f.req = address, endpoint, req
	return f.resp, f.err
}

func newTestServer(t *testing.T) (*Server, *identity.KeyPair) {
	t.Helper()
	keys, err := identity.Generate()
	require.NoError(t, err)
	return New(keys, DefaultConfig(), nil, nil), keys
}

func signedRequest(t *testing.T, kp *identity.KeyPair, seed uint64, payload any) *envelope.Request {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return envelope.SignedRequest(kp, seed, b)
}

func TestInfoReturnsServerPublicKey(t *testing.T) {
	s, keys := newTestServer(t)
	client, err := identity.Generate()
	require.NoError(t, err)

	req := signedRequest(t, client, 1, struct{}{})
	resp := s.Info(context.Background(), req, false)
	require.True(t, resp.Status.IsSuccess())

	var body InfoResponse
	require.NoError(t, json.Unmarshal(resp.Payload, &body))
	assert.Equal(t, identity.Encode(keys.PublicKey()), body.PublicKey)
}

func TestConnectThenLookupLocal(t *testing.T) {
	s, keys := newTestServer(t)
	client, err := identity.Generate()
	require.NoError(t, err)

	cert := certificate.Build(client, keys.PublicKey(), 1000)
	connectReq := signedRequest(t, client, 1, ConnectRequest{
		Certificate: cert,
		ClientInfo:  router.ClientInfo{Kind: router.KindThick},
	})
	resp := s.Connect(context.Background(), connectReq)
	require.True(t, resp.Status.IsSuccess())

	third, err := identity.Generate()
	require.NoError(t, err)
	lookupReq := signedRequest(t, third, 2, LookupRequest{PublicKey: identity.Encode(client.PublicKey())})
	lookupResp := s.Lookup(context.Background(), lookupReq)
	require.True(t, lookupResp.Status.IsSuccess())

	var body LookupResponse
	require.NoError(t, json.Unmarshal(lookupResp.Payload, &body))
	assert.Equal(t, "local", body.Disposition)
	assert.True(t, body.Available)
}

func TestConnectRejectsCertificateForWrongServer(t *testing.T) {
	s, _ := newTestServer(t)
	client, err := identity.Generate()
	require.NoError(t, err)
	otherServer, err := identity.Generate()
	require.NoError(t, err)

	cert := certificate.Build(client, otherServer.PublicKey(), 1000)
	req := signedRequest(t, client, 1, ConnectRequest{Certificate: cert, ClientInfo: router.ClientInfo{Kind: router.KindThick}})
	resp := s.Connect(context.Background(), req)
	assert.False(t, resp.Status.IsSuccess())
	assert.Equal(t, protoerr.StatusCertificateValidationFailed, resp.Status)
}

func TestSendRejectsWhenReceiverNotConnected(t *testing.T) {
	s, _ := newTestServer(t)
	sender, err := identity.Generate()
	require.NoError(t, err)
	receiver, err := identity.Generate()
	require.NoError(t, err)

	msgBytes, err := json.Marshal(codec.Message{Content: "x", Encoding: "base64"})
	require.NoError(t, err)

	req := signedRequest(t, sender, 1, SendRequest{
		Sender:   identity.Encode(sender.PublicKey()),
		Receiver: identity.Encode(receiver.PublicKey()),
		Channel:  "general",
		Seed:     "1",
		Message:  msgBytes,
	})
	resp := s.Send(context.Background(), req)
	assert.False(t, resp.Status.IsSuccess())
}

func TestSendThenPollRoundTrip(t *testing.T) {
	s, keys := newTestServer(t)
	sender, err := identity.Generate()
	require.NoError(t, err)
	receiver, err := identity.Generate()
	require.NoError(t, err)

	cert := certificate.Build(receiver, keys.PublicKey(), 1)
	connectReq := signedRequest(t, receiver, 1, ConnectRequest{Certificate: cert, ClientInfo: router.ClientInfo{Kind: router.KindThick}})
	require.True(t, s.Connect(context.Background(), connectReq).Status.IsSuccess())

	pipeline, err := codec.Parse("base64/aes256-gcm")
	require.NoError(t, err)
	msg, err := codec.Encrypt(codec.DefaultConfig(), sender, receiver.PublicKey(), "general", 7, pipeline, []byte("hi"))
	require.NoError(t, err)
	msgBytes, err := json.Marshal(msg)
	require.NoError(t, err)

	sendReq := signedRequest(t, sender, 2, SendRequest{
		Sender:   identity.Encode(sender.PublicKey()),
		Receiver: identity.Encode(receiver.PublicKey()),
		Channel:  "general",
		Seed:     "7",
		Message:  msgBytes,
	})
	require.True(t, s.Send(context.Background(), sendReq).Status.IsSuccess())

	pollReq := signedRequest(t, receiver, 3, PollRequest{Channel: "general"})
	pollResp := s.Poll(context.Background(), pollReq)
	require.True(t, pollResp.Status.IsSuccess())

	var body PollResponse
	require.NoError(t, json.Unmarshal(pollResp.Payload, &body))
	require.Len(t, body.Messages, 1)
	assert.Equal(t, identity.Encode(sender.PublicKey()), body.Messages[0].Sender)

	var decoded codec.Message
	require.NoError(t, json.Unmarshal(body.Messages[0].Message, &decoded))
	plaintext, err := codec.Decrypt(codec.DefaultConfig(), receiver, sender.PublicKey(), "general", body.Messages[0].Seed, decoded)
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), plaintext)
}

func TestAnnounceServerVariant(t *testing.T) {
	s, _ := newTestServer(t)
	client, err := identity.Generate()
	require.NoError(t, err)
	peerServer, err := identity.Generate()
	require.NoError(t, err)

	req := signedRequest(t, client, 1, AnnounceRequest{
		Server: &serverRecord{PublicKey: identity.Encode(peerServer.PublicKey()), Address: "peer:9000"},
	})
	resp := s.Announce(context.Background(), req)
	require.True(t, resp.Status.IsSuccess())
	assert.Equal(t, 1, s.Router.Stats().KnownServers)
}

func TestSendForwardsToKnownRemoteOwner(t *testing.T) {
	s, _ := newTestServer(t)
	sender, err := identity.Generate()
	require.NoError(t, err)
	receiver, err := identity.Generate()
	require.NoError(t, err)
	owner, err := identity.Generate()
	require.NoError(t, err)

	ownerServer := router.Server{PublicKey: owner.PublicKey(), Address: "owner.example:9000"}
	cert := certificate.Build(receiver, owner.PublicKey(), 1)
	require.Nil(t, s.Router.ObserveClient(
		router.Client{PublicKey: receiver.PublicKey(), Certificate: cert, Info: router.ClientInfo{Kind: router.KindThick}},
		ownerServer, cert))

	msgBytes, err := json.Marshal(codec.Message{Content: "x", Encoding: "base64"})
	require.NoError(t, err)
	req := signedRequest(t, sender, 1, SendRequest{
		Sender:   identity.Encode(sender.PublicKey()),
		Receiver: identity.Encode(receiver.PublicKey()),
		Channel:  "general",
		Seed:     "1",
		Message:  msgBytes,
	})

	forwarder := &fakeForwarder{resp: envelope.Success(owner, req, json.RawMessage(`{}`))}
	s.Forwarder = forwarder

	resp := s.Send(context.Background(), req)
	require.True(t, resp.Status.IsSuccess())
	assert.Equal(t, "owner.example:9000", forwarder.address)
	assert.Equal(t, client.EndpointSend, forwarder.endpoint)
	require.NotNil(t, forwarder.req)
	assert.Equal(t, req.Payload, forwarder.req.Payload)
	assert.Equal(t, s.Keys.PublicKey(), forwarder.req.PublicKey)
}

func TestSendWithoutForwarderReturnsNotConnected(t *testing.T) {
	s, _ := newTestServer(t)
	sender, err := identity.Generate()
	require.NoError(t, err)
	receiver, err := identity.Generate()
	require.NoError(t, err)
	owner, err := identity.Generate()
	require.NoError(t, err)

	cert := certificate.Build(receiver, owner.PublicKey(), 1)
	require.Nil(t, s.Router.ObserveClient(
		router.Client{PublicKey: receiver.PublicKey(), Certificate: cert, Info: router.ClientInfo{Kind: router.KindThick}},
		router.Server{PublicKey: owner.PublicKey(), Address: "owner.example:9000"}, cert))

	msgBytes, err := json.Marshal(codec.Message{Content: "x", Encoding: "base64"})
	require.NoError(t, err)
	req := signedRequest(t, sender, 1, SendRequest{
		Sender:   identity.Encode(sender.PublicKey()),
		Receiver: identity.Encode(receiver.PublicKey()),
		Channel:  "general",
		Seed:     "1",
		Message:  msgBytes,
	})

	resp := s.Send(context.Background(), req)
	assert.Equal(t, protoerr.StatusNotConnected, resp.Status)
}

func TestSendForwardHopBudgetExhausted(t *testing.T) {
	s, _ := newTestServer(t)
	s.Cfg.MaxForwardHops = 1
	sender, err := identity.Generate()
	require.NoError(t, err)
	receiver, err := identity.Generate()
	require.NoError(t, err)
	owner, err := identity.Generate()
	require.NoError(t, err)

	cert := certificate.Build(receiver, owner.PublicKey(), 1)
	require.Nil(t, s.Router.ObserveClient(
		router.Client{PublicKey: receiver.PublicKey(), Certificate: cert, Info: router.ClientInfo{Kind: router.KindThick}},
		router.Server{PublicKey: owner.PublicKey(), Address: "owner.example:9000"}, cert))

	msgBytes, err := json.Marshal(codec.Message{Content: "x", Encoding: "base64"})
	require.NoError(t, err)
	req := signedRequest(t, sender, 1, SendRequest{
		Sender:   identity.Encode(sender.PublicKey()),
		Receiver: identity.Encode(receiver.PublicKey()),
		Channel:  "general",
		Seed:     "1",
		Message:  msgBytes,
	})

	forwarder := &fakeForwarder{resp: envelope.Success(owner, req, json.RawMessage(`{}`))}
	s.Forwarder = forwarder

	// Budget of 1 is spent down across repeated hops of the same
	// (seed, sender) key until it goes negative.
	require.True(t, s.Send(context.Background(), req).Status.IsSuccess())
	resp := s.Send(context.Background(), req)
	assert.Equal(t, protoerr.StatusClientNotFound, resp.Status)
}

func TestHandlerRejectsInvalidProof(t *testing.T) {
	s, _ := newTestServer(t)
	client, err := identity.Generate()
	require.NoError(t, err)

	req := signedRequest(t, client, 1, struct{}{})
	req.Proof.Seed = 999 // now mismatched against the signature over seed=1
	resp := s.Info(context.Background(), req, false)
	assert.False(t, resp.Status.IsSuccess())
}
