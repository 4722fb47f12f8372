package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperborea-net/hyperborea/certificate"
	"github.com/hyperborea-net/hyperborea/identity"
)

func newTestRouter(t *testing.T) (*Router, *identity.KeyPair) {
	t.Helper()
	serverKey, err := identity.Generate()
	require.NoError(t, err)
	return New(serverKey.PublicKey(), DefaultConfig(), nil), serverKey
}

func TestConnectAcceptsValidCertificate(t *testing.T) {
	r, serverKey := newTestRouter(t)
	clientKey, err := identity.Generate()
	require.NoError(t, err)

	cert := certificate.Build(clientKey, serverKey.PublicKey(), 1000)
	perr := r.Connect(clientKey.PublicKey(), cert, ClientInfo{Kind: KindThick})
	require.Nil(t, perr)

	client, ok, available := r.LookupLocal(clientKey.PublicKey())
	require.True(t, ok)
	assert.True(t, available)
	assert.Equal(t, clientKey.PublicKey(), client.PublicKey)
}

func TestConnectRejectsCertificateForAnotherServer(t *testing.T) {
	r, _ := newTestRouter(t)
	otherServer, err := identity.Generate()
	require.NoError(t, err)
	clientKey, err := identity.Generate()
	require.NoError(t, err)

	cert := certificate.Build(clientKey, otherServer.PublicKey(), 1000)
	perr := r.Connect(clientKey.PublicKey(), cert, ClientInfo{Kind: KindThick})
	require.NotNil(t, perr)
}

func TestConnectRejectsStaleCertificate(t *testing.T) {
	r, serverKey := newTestRouter(t)
	clientKey, err := identity.Generate()
	require.NoError(t, err)

	newer := certificate.Build(clientKey, serverKey.PublicKey(), 2000)
	require.Nil(t, r.Connect(clientKey.PublicKey(), newer, ClientInfo{Kind: KindThick}))

	older := certificate.Build(clientKey, serverKey.PublicKey(), 1000)
	perr := r.Connect(clientKey.PublicKey(), older, ClientInfo{Kind: KindThick})
	require.NotNil(t, perr)

	client, ok, _ := r.LookupLocal(clientKey.PublicKey())
	require.True(t, ok)
	assert.Equal(t, uint64(2000), client.Certificate.Token.AuthDate)
}

func TestThinClientLivenessWindow(t *testing.T) {
	r, serverKey := newTestRouter(t)
	r.cfg.LivenessWindow = 10 * time.Millisecond
	clientKey, err := identity.Generate()
	require.NoError(t, err)

	cert := certificate.Build(clientKey, serverKey.PublicKey(), 1)
	require.Nil(t, r.Connect(clientKey.PublicKey(), cert, ClientInfo{Kind: KindThin}))

	_, ok, available := r.LookupLocal(clientKey.PublicKey())
	require.True(t, ok)
	assert.True(t, available)

	time.Sleep(20 * time.Millisecond)
	_, ok, available = r.LookupLocal(clientKey.PublicKey())
	require.True(t, ok)
	assert.False(t, available)
}

func TestObserveClientPopulatesRoutingTable(t *testing.T) {
	r, _ := newTestRouter(t)
	remoteServerKey, err := identity.Generate()
	require.NoError(t, err)
	clientKey, err := identity.Generate()
	require.NoError(t, err)

	cert := certificate.Build(clientKey, remoteServerKey.PublicKey(), 500)
	server := Server{PublicKey: remoteServerKey.PublicKey(), Address: "peer.example:9000"}
	client := Client{PublicKey: clientKey.PublicKey(), Certificate: cert, Info: ClientInfo{Kind: KindThick}}

	perr := r.ObserveClient(client, server, cert)
	require.Nil(t, perr)

	got, gotServer, ok, available := r.LookupRemote(clientKey.PublicKey())
	require.True(t, ok)
	assert.True(t, available)
	assert.Equal(t, server, gotServer)
	assert.Equal(t, clientKey.PublicKey(), got.PublicKey)
}

func TestConnectSupersedesRemoteBinding(t *testing.T) {
	r, serverKey := newTestRouter(t)
	remoteServerKey, err := identity.Generate()
	require.NoError(t, err)
	clientKey, err := identity.Generate()
	require.NoError(t, err)

	remoteCert := certificate.Build(clientKey, remoteServerKey.PublicKey(), 100)
	remoteServer := Server{PublicKey: remoteServerKey.PublicKey()}
	require.Nil(t, r.ObserveClient(Client{PublicKey: clientKey.PublicKey(), Certificate: remoteCert}, remoteServer, remoteCert))

	localCert := certificate.Build(clientKey, serverKey.PublicKey(), 200)
	require.Nil(t, r.Connect(clientKey.PublicKey(), localCert, ClientInfo{Kind: KindThick}))

	_, ok, _ := r.LookupLocal(clientKey.PublicKey())
	assert.True(t, ok)
	_, _, ok, _ = r.LookupRemote(clientKey.PublicKey())
	assert.False(t, ok, "connecting locally should clear the stale remote binding")
}

func TestEvictExpiredRemovesStaleRoutingEntries(t *testing.T) {
	r, _ := newTestRouter(t)
	r.cfg.EntryTTL = 10 * time.Millisecond

	remoteServerKey, err := identity.Generate()
	require.NoError(t, err)
	clientKey, err := identity.Generate()
	require.NoError(t, err)

	cert := certificate.Build(clientKey, remoteServerKey.PublicKey(), 1)
	server := Server{PublicKey: remoteServerKey.PublicKey()}
	require.Nil(t, r.ObserveClient(Client{PublicKey: clientKey.PublicKey(), Certificate: cert}, server, cert))

	r.EvictExpired(time.Now().Add(20 * time.Millisecond))

	_, _, ok, _ := r.LookupRemote(clientKey.PublicKey())
	assert.False(t, ok)
	assert.Equal(t, 0, r.Stats().KnownServers)
}

func TestRoutingTableCapacityEvictsLeastRecentlyUsed(t *testing.T) {
	r, _ := newTestRouter(t)
	r.cfg.RoutingTableCapacity = 2

	var firstClient identity.PublicKey
	for i := 0; i < 3; i++ {
		serverKey, err := identity.Generate()
		require.NoError(t, err)
		clientKey, err := identity.Generate()
		require.NoError(t, err)
		if i == 0 {
			firstClient = clientKey.PublicKey()
		}
		cert := certificate.Build(clientKey, serverKey.PublicKey(), uint64(i+1))
		server := Server{PublicKey: serverKey.PublicKey()}
		require.Nil(t, r.ObserveClient(Client{PublicKey: clientKey.PublicKey(), Certificate: cert}, server, cert))
	}

	assert.Equal(t, 2, r.Stats().RoutingTable)
	_, _, ok, _ := r.LookupRemote(firstClient)
	assert.False(t, ok, "oldest entry should have been evicted")
}

func TestHintOrdersByXORDistance(t *testing.T) {
	r, _ := newTestRouter(t)
	target, err := identity.Generate()
	require.NoError(t, err)

	servers := make([]identity.PublicKey, 5)
	for i := range servers {
		k, err := identity.Generate()
		require.NoError(t, err)
		servers[i] = k.PublicKey()
		r.ObserveServer(Server{PublicKey: k.PublicKey(), Address: "s"})
	}

	hinted := r.Hint(target.PublicKey(), 3, nil)
	require.Len(t, hinted, 3)

	var prev [identity.PublicKeySize]byte
	for i, s := range hinted {
		d := xorDistance(s.PublicKey, target.PublicKey())
		if i > 0 {
			assert.True(t, compareBytes(prev[:], d[:]) <= 0)
		}
		prev = d
	}
}

func compareBytes(a, b []byte) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	r, _ := newTestRouter(t)
	remoteServerKey, err := identity.Generate()
	require.NoError(t, err)
	clientKey, err := identity.Generate()
	require.NoError(t, err)

	cert := certificate.Build(clientKey, remoteServerKey.PublicKey(), 42)
	server := Server{PublicKey: remoteServerKey.PublicKey(), Address: "peer:9000"}
	require.Nil(t, r.ObserveClient(Client{PublicKey: clientKey.PublicKey(), Certificate: cert}, server, cert))

	snapshot := r.Snapshot()
	require.Len(t, snapshot, 1)

	r2, _ := newTestRouter(t)
	r2.Restore(snapshot)

	_, _, ok, _ := r2.LookupRemote(clientKey.PublicKey())
	assert.True(t, ok)
}
