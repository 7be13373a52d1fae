// Package catnode declares the collaborator surface the gossip/peer core
// consumes from the owning blockchain node: the ledger it reads chain
// state from, and the node-level operations peer and server call into
// (adding peers, forgetting them, handing up received blocks and
// transactions). Nothing in this package implements a ledger; it is the
// contract, the way eth/handler.go's ProtocolManager is written against
// a blockchain interface rather than a concrete chain type.
package catnode

import (
	"net/url"
	"sync"
	"time"

	"github.com/hilalh/catena/gossip"
)

// Candidate reports a peer's claimed chain head as a potential better
// longest chain.
type Candidate struct {
	Hash   gossip.Hash
	Height uint64
	Peer   string // peer uuid
}

// Block and Transaction are opaque to the gossip core: parsing and
// validation are the ledger's responsibility. The core only moves these
// maps between the wire and the ledger.
type Block = map[string]interface{}
type Transaction = map[string]interface{}

// Ledger is the coarse-grained chain-state collaborator. Callers must
// hold Mutex for the duration of any read that must be atomic across
// multiple calls (e.g. reading Highest and then Get(Highest)).
//
// Lock order: callers already holding a Peer's mutex may acquire Mutex;
// Mutex must never be acquired before a Peer's mutex.
type Ledger interface {
	Mutex() *sync.Mutex

	// Genesis is the chain's genesis block hash.
	Genesis() gossip.Hash
	// Highest is the current longest chain's head hash.
	Highest() gossip.Hash
	// Height is the current longest chain's height.
	Height() uint64
	// Get looks up a block on the longest chain by hash.
	Get(hash gossip.Hash) (Block, bool)
}

// Node is the collaborator surface Peer and Server are written against.
type Node interface {
	UUID() string
	Port() int

	// AddPeerURL and AddIncoming register a peer learned either from an
	// Index's peers list (a bare URL) or from an accepted incoming channel.
	AddPeerURL(peerURL *url.URL)
	AddIncoming(incoming Incoming)

	Forget(peerUUID string)

	ReceiveBest(candidate Candidate) error
	ReceiveTransaction(tx Transaction, from string) error
	ReceiveBlock(block Block, from string, wasRequested bool) error

	// ValidPeers lists peer URLs advertised in this node's Index replies.
	ValidPeers() []string

	Ledger() Ledger

	// MedianNetworkTime estimates the network's clock, derived from
	// connected peers' measured time differences.
	MedianNetworkTime() time.Time
}

// Incoming is the minimal surface Server hands to Node.AddIncoming: an
// already-established inbound channel awaiting a Peer wrapper. Defined
// here (rather than importing peerconn) to keep catnode free of a
// dependency on the transport layer.
type Incoming interface {
	RemoteUUID() string
	RemotePort() int
}
