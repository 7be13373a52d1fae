package server

import (
	"sync"

	"github.com/hilalh/catena/gossip"
	"github.com/hilalh/catena/peerconn"
)

// Incoming is the server-side handle for one accepted channel. It
// satisfies both peerconn.Delegate (installed on the Connection at
// construction, before Node has necessarily created a Peer for it) and
// catnode.Incoming (the minimal surface Node.AddIncoming consumes).
//
// The real delegate (typically a *peer.Peer) is installed later via
// SetDelegate once Node has located or constructed it; until then,
// lifecycle and gossip events are silently absorbed. This resolves the
// construction-order cycle where PeerConnection needs a delegate before
// the Peer that will own it can exist.
type Incoming struct {
	id     string
	uuid   string
	port   int
	server *Server
	conn   *peerconn.Connection

	mu       sync.Mutex
	delegate peerconn.Delegate
}

// RemoteUUID implements catnode.Incoming.
func (in *Incoming) RemoteUUID() string { return in.uuid }

// RemotePort implements catnode.Incoming.
func (in *Incoming) RemotePort() int { return in.port }

// Connection returns the underlying PeerConnection, so Node's
// AddIncoming implementation can install a Peer as its delegate.
func (in *Incoming) Connection() *peerconn.Connection { return in.conn }

// SetDelegate installs the real recipient of gossip and connection
// events for this channel.
func (in *Incoming) SetDelegate(d peerconn.Delegate) {
	in.mu.Lock()
	in.delegate = d
	in.mu.Unlock()
}

func (in *Incoming) delegateRef() peerconn.Delegate {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.delegate
}

func (in *Incoming) Receive(conn *peerconn.Connection, g gossip.Gossip, counter uint64) {
	if d := in.delegateRef(); d != nil {
		d.Receive(conn, g, counter)
	}
}

func (in *Incoming) OnConnected(conn *peerconn.Connection) {
	if d := in.delegateRef(); d != nil {
		d.OnConnected(conn)
	}
}

func (in *Incoming) OnDisconnected(conn *peerconn.Connection) {
	in.server.remove(in.id)
	if d := in.delegateRef(); d != nil {
		d.OnDisconnected(conn)
	}
}
