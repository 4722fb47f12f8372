package inbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperborea-net/hyperborea/codec"
	"github.com/hyperborea-net/hyperborea/identity"
	"github.com/hyperborea-net/hyperborea/protoerr"
)

func testKeys(t *testing.T) (identity.PublicKey, identity.PublicKey) {
	t.Helper()
	sender, err := identity.Generate()
	require.NoError(t, err)
	recipient, err := identity.Generate()
	require.NoError(t, err)
	return sender.PublicKey(), recipient.PublicKey()
}

func TestPushThenPollReturnsInFIFOOrder(t *testing.T) {
	ib := New(DefaultConfig())
	sender, recipient := testKeys(t)

	for i := uint64(0); i < 3; i++ {
		entry := Entry{Sender: sender, Channel: "general", Seed: i, Message: codec.Message{Content: "x"}}
		require.Nil(t, ib.Push(recipient, "general", entry))
	}

	got := ib.Poll(recipient, "general", 10)
	require.Len(t, got, 3)
	assert.Equal(t, uint64(0), got[0].Seed)
	assert.Equal(t, uint64(1), got[1].Seed)
	assert.Equal(t, uint64(2), got[2].Seed)

	assert.Empty(t, ib.Poll(recipient, "general", 10))
}

func TestPollRespectsMaxAndLeavesRemainder(t *testing.T) {
	ib := New(DefaultConfig())
	sender, recipient := testKeys(t)

	for i := uint64(0); i < 5; i++ {
		require.Nil(t, ib.Push(recipient, "c", Entry{Sender: sender, Channel: "c", Seed: i}))
	}

	first := ib.Poll(recipient, "c", 2)
	require.Len(t, first, 2)
	rest := ib.Poll(recipient, "c", 10)
	require.Len(t, rest, 3)
}

func TestPushEnforcesPerChannelCapacity(t *testing.T) {
	ib := New(Config{PerChannelCapacity: 2, AggregateCapacity: 100})
	sender, recipient := testKeys(t)

	require.Nil(t, ib.Push(recipient, "c", Entry{Sender: sender}))
	require.Nil(t, ib.Push(recipient, "c", Entry{Sender: sender}))
	perr := ib.Push(recipient, "c", Entry{Sender: sender})
	require.NotNil(t, perr)
	assert.Equal(t, protoerr.KindInboxFull, perr.Kind)
}

func TestPushEnforcesAggregateCapacityAcrossChannels(t *testing.T) {
	ib := New(Config{PerChannelCapacity: 100, AggregateCapacity: 2})
	sender, recipient := testKeys(t)

	require.Nil(t, ib.Push(recipient, "a", Entry{Sender: sender}))
	require.Nil(t, ib.Push(recipient, "b", Entry{Sender: sender}))
	perr := ib.Push(recipient, "c", Entry{Sender: sender})
	require.NotNil(t, perr)
}

func TestStatsForReportsPerChannelAndAggregateDepth(t *testing.T) {
	ib := New(DefaultConfig())
	sender, recipient := testKeys(t)

	require.Nil(t, ib.Push(recipient, "a", Entry{Sender: sender}))
	require.Nil(t, ib.Push(recipient, "a", Entry{Sender: sender}))
	require.Nil(t, ib.Push(recipient, "b", Entry{Sender: sender}))

	stats := ib.StatsFor(recipient)
	assert.Equal(t, 2, stats.PerChannel["a"])
	assert.Equal(t, 1, stats.PerChannel["b"])
	assert.Equal(t, 3, stats.Aggregate)
	assert.Equal(t, 3, ib.TotalDepth())
}

func TestPollOnEmptyChannelReturnsNilNotError(t *testing.T) {
	ib := New(DefaultConfig())
	_, recipient := testKeys(t)
	assert.Empty(t, ib.Poll(recipient, "nonexistent", 5))
}
