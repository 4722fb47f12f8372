package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperborea-net/hyperborea/codec"
	"github.com/hyperborea-net/hyperborea/envelope"
	"github.com/hyperborea-net/hyperborea/identity"
	"github.com/hyperborea-net/hyperborea/server"
)

// inProcessTransport dispatches directly into a server.Server keyed by
// address, bypassing any real network I/O so the client runtime can be
// exercised end to end in-process.
type inProcessTransport struct {
	servers map[string]*server.Server
}

func newInProcessTransport() *inProcessTransport {
	return &inProcessTransport{servers: make(map[string]*server.Server)}
}

func (t *inProcessTransport) register(address string, s *server.Server) {
	t.servers[address] = s
}

func (t *inProcessTransport) Do(ctx context.Context, address string, endpoint Endpoint, req *envelope.Request) (*envelope.Response, error) {
	s, ok := t.servers[address]
	if !ok {
		return nil, &unknownServerError{address: address}
	}
	switch endpoint {
	case EndpointInfo:
		return s.Info(ctx, req, false), nil
	case EndpointClients:
		return s.Clients(ctx, req), nil
	case EndpointServers:
		return s.Servers(ctx, req), nil
	case EndpointConnect:
		return s.Connect(ctx, req), nil
	case EndpointLookup:
		return s.Lookup(ctx, req), nil
	case EndpointAnnounce:
		return s.Announce(ctx, req), nil
	case EndpointSend:
		return s.Send(ctx, req), nil
	case EndpointPoll:
		return s.Poll(ctx, req), nil
	default:
		return nil, &unknownServerError{address: string(endpoint)}
	}
}

type unknownServerError struct{ address string }

func (e *unknownServerError) Error() string { return "unknown server or endpoint: " + e.address }

func newTestServerWithTransport(t *testing.T, transport *inProcessTransport, address string) (*server.Server, *identity.KeyPair) {
	t.Helper()
	keys, err := identity.Generate()
	require.NoError(t, err)
	s := server.New(keys, server.DefaultConfig(), nil, nil)
	transport.register(address, s)
	return s, keys
}

func TestConnectEstablishesBinding(t *testing.T) {
	transport := newInProcessTransport()
	_, serverKeys := newTestServerWithTransport(t, transport, "srv-a")

	clientKeys, err := identity.Generate()
	require.NoError(t, err)
	c := New(clientKeys, transport)

	binding, err := c.Connect(context.Background(), Server{PublicKey: serverKeys.PublicKey(), Address: "srv-a"})
	require.NoError(t, err)
	assert.Equal(t, "srv-a", binding.Server.Address)
}

func TestConnectRejectsMismatchedServerIdentity(t *testing.T) {
	transport := newInProcessTransport()
	_, _ = newTestServerWithTransport(t, transport, "srv-a")

	clientKeys, err := identity.Generate()
	require.NoError(t, err)
	wrongKey, err := identity.Generate()
	require.NoError(t, err)
	c := New(clientKeys, transport)

	_, err = c.Connect(context.Background(), Server{PublicKey: wrongKey.PublicKey(), Address: "srv-a"})
	assert.Error(t, err)
}

func TestLookupAfterConnectFindsSelf(t *testing.T) {
	transport := newInProcessTransport()
	_, serverKeys := newTestServerWithTransport(t, transport, "srv-a")

	clientKeys, err := identity.Generate()
	require.NoError(t, err)
	c := New(clientKeys, transport)
	_, err = c.Connect(context.Background(), Server{PublicKey: serverKeys.PublicKey(), Address: "srv-a"})
	require.NoError(t, err)

	result, err := c.Lookup(context.Background(), clientKeys.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, "local", result.Disposition)
	assert.True(t, result.Available)
}

func TestSendAndPollRoundTrip(t *testing.T) {
	transport := newInProcessTransport()
	_, serverKeys := newTestServerWithTransport(t, transport, "srv-a")

	senderKeys, err := identity.Generate()
	require.NoError(t, err)
	receiverKeys, err := identity.Generate()
	require.NoError(t, err)

	sender := New(senderKeys, transport)
	receiver := New(receiverKeys, transport)

	_, err = sender.Connect(context.Background(), Server{PublicKey: serverKeys.PublicKey(), Address: "srv-a"})
	require.NoError(t, err)
	_, err = receiver.Connect(context.Background(), Server{PublicKey: serverKeys.PublicKey(), Address: "srv-a"})
	require.NoError(t, err)

	pipeline, err := codec.Parse("base64/chacha20-poly1305")
	require.NoError(t, err)

	err = sender.Send(context.Background(), receiverKeys.PublicKey(), "general", pipeline, []byte("hello from the client runtime"))
	require.NoError(t, err)

	messages, err := receiver.Poll(context.Background(), "general", 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, []byte("hello from the client runtime"), messages[0])
}

func TestLookupWithoutBindingFails(t *testing.T) {
	clientKeys, err := identity.Generate()
	require.NoError(t, err)
	c := New(clientKeys, newInProcessTransport())

	_, err = c.Lookup(context.Background(), clientKeys.PublicKey())
	assert.Error(t, err)
}

func TestAnnounceWithoutBindingFails(t *testing.T) {
	clientKeys, err := identity.Generate()
	require.NoError(t, err)
	c := New(clientKeys, newInProcessTransport())

	err = c.Announce(context.Background(), nil)
	assert.Error(t, err)
}
