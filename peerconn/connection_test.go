package peerconn

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hilalh/catena/gossip"
)

type fakeTransport struct {
	mu     sync.Mutex
	sent   [][]byte
	closed bool
	onSend func([]byte)
}

func (f *fakeTransport) Send(frame []byte) error {
	f.mu.Lock()
	f.sent = append(f.sent, frame)
	cb := f.onSend
	f.mu.Unlock()
	if cb != nil {
		cb(frame)
	}
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

type fakeDelegate struct {
	mu        sync.Mutex
	received  []gossip.Gossip
	connected int
}

func (d *fakeDelegate) Receive(conn *Connection, g gossip.Gossip, counter uint64) {
	d.mu.Lock()
	d.received = append(d.received, g)
	d.mu.Unlock()
}
func (d *fakeDelegate) OnConnected(conn *Connection)    { d.mu.Lock(); d.connected++; d.mu.Unlock() }
func (d *fakeDelegate) OnDisconnected(conn *Connection) {}

func testConnection(t *testing.T, startingCounter uint64) (*Connection, *fakeTransport) {
	t.Helper()
	tr := &fakeTransport{}
	c := newConnection(tr, gossip.NewCodec("t", 5), startingCounter, nil)
	return c, tr
}

func TestCounterParityAndMonotonicity(t *testing.T) {
	incoming, _ := testConnection(t, 1)
	outgoing, _ := testConnection(t, 0)

	var lastIn, lastOut uint64
	for i := 0; i < 5; i++ {
		c, err := incoming.Request(gossip.Query{}, nil)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), c%2, "incoming counters must stay odd")
		assert.Greater(t, c, lastIn)
		lastIn = c

		c, err = outgoing.Request(gossip.Query{}, nil)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), c%2, "outgoing counters must stay even")
		assert.Greater(t, c, lastOut)
		lastOut = c
	}
}

func TestCallbackFiresAtMostOnceAndIsRemoved(t *testing.T) {
	c, _ := testConnection(t, 0)

	fired := make(chan gossip.Gossip, 2)
	counter, err := c.Request(gossip.Query{}, func(g gossip.Gossip) { fired <- g })
	require.NoError(t, err)
	assert.Equal(t, 1, c.PendingCount())

	data, err := c.codec.Marshal(gossip.Frame{Counter: counter, Gossip: gossip.Passive{}})
	require.NoError(t, err)
	c.Receive(data)

	select {
	case g := <-fired:
		assert.Equal(t, gossip.Passive{}, g)
	case <-time.After(time.Second):
		t.Fatal("callback never fired")
	}
	assert.Equal(t, 0, c.PendingCount(), "callback must be removed once fired")

	// Replaying the same frame must not fire the callback again (it is
	// gone from the pending table) — it falls through to the delegate
	// instead, which is nil here, so nothing happens.
	c.Receive(data)
	select {
	case <-fired:
		t.Fatal("callback fired a second time")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnsolicitedFrameGoesToDelegate(t *testing.T) {
	c, _ := testConnection(t, 1)
	d := &fakeDelegate{}
	c.SetDelegate(d)

	data, err := c.codec.Marshal(gossip.Frame{Counter: 0, Gossip: gossip.Forget{}})
	require.NoError(t, err)
	c.Receive(data)

	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return len(d.received) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestDispatchHappensOffReceiveCall(t *testing.T) {
	c, _ := testConnection(t, 0)
	block := make(chan struct{})
	counter, err := c.Request(gossip.Query{}, func(g gossip.Gossip) { <-block })
	require.NoError(t, err)

	data, err := c.codec.Marshal(gossip.Frame{Counter: counter, Gossip: gossip.Passive{}})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		c.Receive(data)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Receive must not block on a slow callback")
	}
	close(block)
}

func TestMalformedFrameDroppedConnectionStaysOpen(t *testing.T) {
	c, _ := testConnection(t, 0)
	c.Receive([]byte(`not json`))
	assert.True(t, c.Connected())
}

func TestNotConnectedFailsRequest(t *testing.T) {
	c, _ := testConnection(t, 0)
	require.NoError(t, c.Close())
	_, err := c.Request(gossip.Query{}, nil)
	assert.ErrorIs(t, err, ErrNotConnected)
}
