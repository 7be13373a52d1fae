// Package peerconn implements PeerConnection: a framed bidirectional
// channel that layers a symmetric request/reply correlation protocol on
// top of a message-oriented transport, the way the teacher's
// eth/handler.go layers eth's request/response message codes on top of
// a raw p2p.MsgReadWriter.
package peerconn

import (
	"sync"

	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"

	"github.com/hilalh/catena/gossip"
)

// Transport abstracts the raw bidirectional message channel a Connection
// rides on. NewIncoming and WebsocketDialer.Dial supply a websocket-backed
// implementation; tests supply an in-memory one.
type Transport interface {
	// Send transmits one already-framed message. It blocks until the
	// channel accepts it.
	Send(frame []byte) error
	Close() error
}

// Delegate receives unsolicited gossip and connection lifecycle events.
// The Connection holds this as a plain (non-owning, "weak") reference:
// the delegate's lifetime is managed by its owner (typically a Peer), not
// by the Connection.
type Delegate interface {
	Receive(conn *Connection, g gossip.Gossip, counter uint64)
	OnConnected(conn *Connection)
	OnDisconnected(conn *Connection)
}

// replyFunc is invoked when a reply to an outbound request arrives.
type replyFunc func(g gossip.Gossip)

// Connection is PeerConnection: it owns a Transport, a monotonic counter,
// a table of pending outbound-request callbacks, and a delegate for
// unsolicited gossip. All mutations of the counter and the callback table
// happen under mu; dispatch to callbacks and the delegate always happens
// on a goroutine distinct from the transport's read loop, so a slow
// handler never stalls the channel.
type Connection struct {
	mu        sync.Mutex
	transport Transport
	codec     *gossip.Codec
	counter   uint64
	pending   map[uint64]replyFunc
	connected bool
	delegate  Delegate

	connectFeed    event.Feed
	disconnectFeed event.Feed

	log log.Logger
}

// startingCounter values: incoming-initiated connections start at 1,
// outgoing-initiated connections start at 0; see NewIncoming and
// WebsocketDialer.Dial.
func newConnection(transport Transport, codec *gossip.Codec, startingCounter uint64, logger log.Logger) *Connection {
	if logger == nil {
		logger = log.Root()
	}
	return &Connection{
		transport: transport,
		codec:     codec,
		counter:   startingCounter,
		pending:   make(map[uint64]replyFunc),
		connected: true,
		log:       logger,
	}
}

// SetDelegate installs the receiver of unsolicited gossip and connection
// events. Safe to call before or after the connection is up.
func (c *Connection) SetDelegate(d Delegate) {
	c.mu.Lock()
	c.delegate = d
	c.mu.Unlock()
}

func (c *Connection) delegateRef() Delegate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delegate
}

// Connected reports whether the underlying transport is still usable.
func (c *Connection) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Connection) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

// Request assigns a new correlation counter, optionally registers a
// callback for the reply, and sends [counter, gossip]. It fails with
// ErrNotConnected if the transport is down.
func (c *Connection) Request(g gossip.Gossip, callback replyFunc) (uint64, error) {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return 0, ErrNotConnected
	}
	c.counter += 2
	counter := c.counter
	if callback != nil {
		c.pending[counter] = callback
	}
	c.mu.Unlock()

	if err := c.send(counter, g); err != nil {
		if callback != nil {
			c.mu.Lock()
			delete(c.pending, counter)
			c.mu.Unlock()
		}
		return 0, err
	}
	return counter, nil
}

// Reply sends [counter, gossip] echoing the counter of the request being
// answered.
func (c *Connection) Reply(counter uint64, g gossip.Gossip) error {
	if !c.Connected() {
		return ErrNotConnected
	}
	return c.send(counter, g)
}

func (c *Connection) send(counter uint64, g gossip.Gossip) error {
	data, err := c.codec.Marshal(gossip.Frame{Counter: counter, Gossip: g})
	if err != nil {
		return err
	}
	return c.transport.Send(data)
}

// Receive decodes one inbound frame and either fires the matching pending
// callback or hands the gossip to the delegate, always on a fresh
// goroutine so the caller (the transport's read loop) is never blocked.
// Malformed frames are logged and dropped; the connection stays open.
func (c *Connection) Receive(data []byte) {
	frame, err := c.codec.Unmarshal(data)
	if err != nil {
		c.log.Warn("dropping malformed gossip frame", "err", err)
		return
	}

	if frame.Counter != 0 {
		c.mu.Lock()
		cb, ok := c.pending[frame.Counter]
		if ok {
			delete(c.pending, frame.Counter)
		}
		c.mu.Unlock()
		if ok {
			go cb(frame.Gossip)
			return
		}
	}

	if d := c.delegateRef(); d != nil {
		go d.Receive(c, frame.Gossip, frame.Counter)
	}
}

// SubscribeConnected lets observers outside the delegate relationship
// (e.g. metrics, the server's connection registry) learn about channel
// establishment without being the PeerConnection's owning Peer.
func (c *Connection) SubscribeConnected(ch chan<- *Connection) event.Subscription {
	return c.connectFeed.Subscribe(ch)
}

// SubscribeDisconnected is the disconnect-side counterpart of
// SubscribeConnected.
func (c *Connection) SubscribeDisconnected(ch chan<- *Connection) event.Subscription {
	return c.disconnectFeed.Subscribe(ch)
}

// NotifyConnected drives the Delegate's OnConnected callback and fans
// the same event out to any event.Feed subscribers. WebsocketDialer.Dial does
// not call this itself: its caller must invoke it only once it has
// published conn as the delegate's active connection, so OnConnected's
// own conn-identity check doesn't race the assignment (see Peer.Advance).
func (c *Connection) NotifyConnected() {
	if d := c.delegateRef(); d != nil {
		d.OnConnected(c)
	}
	c.connectFeed.Send(c)
}

func (c *Connection) notifyDisconnected() {
	c.setConnected(false)
	if d := c.delegateRef(); d != nil {
		d.OnDisconnected(c)
	}
	c.disconnectFeed.Send(c)
}

// Close tears down the underlying transport. Pending callbacks are left
// to be garbage collected; nothing fires them.
func (c *Connection) Close() error {
	c.setConnected(false)
	return c.transport.Close()
}

// PendingCount reports the number of outbound requests awaiting a reply;
// exposed for tests asserting callback-table hygiene.
func (c *Connection) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Codec exposes the connection's wire codec, so callers that need to
// inspect raw frames sent to a fake Transport (tests) can decode them
// the same way the connection itself would.
func (c *Connection) Codec() *gossip.Codec {
	return c.codec
}

// NewForTest builds a Connection around a caller-supplied Transport,
// bypassing the Incoming/Outgoing handshake. Exported for use by other
// packages' tests (e.g. peer) that need to drive a Connection without a
// real websocket.
func NewForTest(transport Transport, codec *gossip.Codec, startingCounter uint64, logger log.Logger) *Connection {
	return newConnection(transport, codec, startingCounter, logger)
}
