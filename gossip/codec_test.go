package gossip

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCodec() *Codec {
	return NewCodec("t", 5)
}

func roundTrip(t *testing.T, c *Codec, g Gossip) Gossip {
	t.Helper()
	data, err := c.Marshal(Frame{Counter: 7, Gossip: g})
	require.NoError(t, err)

	frame, err := c.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), frame.Counter)
	return frame.Gossip
}

func TestRoundTripAllVariants(t *testing.T) {
	c := testCodec()

	t.Run("query", func(t *testing.T) {
		assert.Equal(t, Query{}, roundTrip(t, c, Query{}))
	})
	t.Run("passive", func(t *testing.T) {
		assert.Equal(t, Passive{}, roundTrip(t, c, Passive{}))
	})
	t.Run("forget", func(t *testing.T) {
		assert.Equal(t, Forget{}, roundTrip(t, c, Forget{}))
	})
	t.Run("index", func(t *testing.T) {
		idx := Index{Genesis: "G", Highest: "H", Height: 42, Timestamp: 1700000000, Peers: []string{"catena://u@host:1234/"}}
		got := roundTrip(t, c, IndexGossip{Index: idx})
		ig, ok := got.(IndexGossip)
		require.True(t, ok)
		assert.True(t, idx.Equal(ig.Index))
	})
	t.Run("block", func(t *testing.T) {
		b := Block{Block: map[string]interface{}{"hash": "H5", "previous": "H4"}}
		got := roundTrip(t, c, b)
		gb, ok := got.(Block)
		require.True(t, ok)
		assert.Equal(t, "H5", gb.Block["hash"])
	})
	t.Run("transaction", func(t *testing.T) {
		tx := Transaction{Tx: map[string]interface{}{"from": "a", "to": "b"}}
		got := roundTrip(t, c, tx)
		gt, ok := got.(Transaction)
		require.True(t, ok)
		assert.Equal(t, "a", gt.Tx["from"])
	})
	t.Run("fetch", func(t *testing.T) {
		f := Fetch{Hash: "H5", Extra: 3}
		got := roundTrip(t, c, f)
		assert.Equal(t, f, got)
	})
	t.Run("result", func(t *testing.T) {
		r := Result{
			Block: map[string]interface{}{"hash": "H5"},
			Extra: map[Hash]map[string]interface{}{
				"H4": {"hash": "H4"},
				"H3": {"hash": "H3"},
			},
		}
		got := roundTrip(t, c, r)
		gr, ok := got.(Result)
		require.True(t, ok)
		assert.Equal(t, "H5", gr.Block["hash"])
		assert.Len(t, gr.Extra, 2)
	})
	t.Run("error", func(t *testing.T) {
		e := ErrorGossip{Message: "not found"}
		assert.Equal(t, e, roundTrip(t, c, e))
	})
}

func TestMissingActionKey(t *testing.T) {
	c := testCodec()
	_, err := c.FromObject(map[string]interface{}{"notT": "query"})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindMissingActionKey))
}

func TestUnknownAction(t *testing.T) {
	c := testCodec()
	_, err := c.FromObject(map[string]interface{}{"t": "teleport"})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindUnknownAction))
}

func TestDeserializationFailedOnMissingField(t *testing.T) {
	c := testCodec()
	_, err := c.FromObject(map[string]interface{}{"t": "fetch"})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindDeserializationFailed))
}

func TestLimitExceededOnEncode(t *testing.T) {
	c := NewCodec("t", 2)
	r := Result{
		Block: map[string]interface{}{"hash": "H5"},
		Extra: map[Hash]map[string]interface{}{
			"H4": {}, "H3": {}, "H2": {},
		},
	}
	_, err := c.ToObject(r)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindLimitExceeded))
}

func TestLimitExceededOnDecode(t *testing.T) {
	c := NewCodec("t", 2)
	raw := `[2, {"t":"result","block":{"hash":"H5"},"extra":{"H4":{},"H3":{},"H2":{}}}]`
	_, err := c.Unmarshal([]byte(raw))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindLimitExceeded))
}

// Numeric fields must tolerate both small integers and values that only
// fit in an arbitrary-precision encoding.
func TestNumericToleranceBigAndSmall(t *testing.T) {
	c := testCodec()
	raw := `[340282366920938463463374607431768211455, {"t":"index","index":{"genesis":"G","highest":"H","height":18446744073709551615,"time":1700000000,"peers":[]}}]`
	_, err := c.Unmarshal([]byte(raw))
	require.Error(t, err) // counter overflows uint64, must fail cleanly not panic

	raw2 := `[2, {"t":"index","index":{"genesis":"G","highest":"H","height":18446744073709551615,"time":1700000000,"peers":[]}}]`
	frame, err := c.Unmarshal([]byte(raw2))
	require.NoError(t, err)
	ig := frame.Gossip.(IndexGossip)
	assert.Equal(t, uint64(18446744073709551615), ig.Index.Height)
}

func TestMarshalProducesOrderedPair(t *testing.T) {
	c := testCodec()
	data, err := c.Marshal(Frame{Counter: 4, Gossip: Query{}})
	require.NoError(t, err)

	var raw []json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 2)
	assert.Equal(t, "4", string(raw[0]))
}
