package main

import (
	"net/url"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/hilalh/catena/catnode"
	"github.com/hilalh/catena/catnodetest"
	"github.com/hilalh/catena/gossip"
	"github.com/hilalh/catena/peer"
	"github.com/hilalh/catena/peerconn"
)

// runtimeNode is the reference catnode.Node this binary runs against: a
// single-process peer registry backed by catnodetest's in-memory
// Ledger. A real deployment replaces this with a node wired to an
// actual blockchain engine; this type exists so `catenad` is a
// runnable, self-contained demonstration of the wiring rather than a
// library with no entrypoint.
type runtimeNode struct {
	mu sync.Mutex

	uuid   string
	port   int
	ledger *catnodetest.FakeLedger
	codec  *gossip.Codec
	params peerconn.Params
	cfg    peer.Config
	dialer peerconn.Dialer
	log    log.Logger

	peers map[string]*peer.Peer
}

func newRuntimeNode(uuid string, port int, ledger *catnodetest.FakeLedger, codec *gossip.Codec, params peerconn.Params, cfg peer.Config, dialer peerconn.Dialer, logger log.Logger) *runtimeNode {
	return &runtimeNode{
		uuid:   uuid,
		port:   port,
		ledger: ledger,
		codec:  codec,
		params: params,
		cfg:    cfg,
		dialer: dialer,
		log:    logger,
		peers:  make(map[string]*peer.Peer),
	}
}

func (n *runtimeNode) UUID() string { return n.uuid }
func (n *runtimeNode) Port() int    { return n.port }

func (n *runtimeNode) AddPeerURL(peerURL *url.URL) {
	peerUUID, err := peer.ValidateURL(peerURL)
	if err != nil {
		n.log.Debug("ignoring invalid peer url", "url", peerURL, "err", err)
		return
	}
	if peerUUID == n.uuid {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.peers[peerUUID]; ok {
		return
	}
	p, err := peer.New(peerURL, n, n.codec, n.dialer, n.params, n.cfg, n.log)
	if err != nil {
		n.log.Warn("failed to construct peer", "url", peerURL, "err", err)
		return
	}
	n.peers[peerUUID] = p
}

func (n *runtimeNode) AddIncoming(incoming catnode.Incoming) {
	remoteUUID := incoming.RemoteUUID()
	if remoteUUID == "" || remoteUUID == n.uuid {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if existing, ok := n.peers[remoteUUID]; ok {
		if setter, ok := incoming.(interface {
			SetDelegate(peerconn.Delegate)
			Connection() *peerconn.Connection
		}); ok {
			setter.SetDelegate(existing)
			existing.AttachIncoming(setter.Connection())
		}
		return
	}

	placeholderURL := &url.URL{Scheme: "ws", Host: "incoming.invalid:1"}
	placeholderURL.User = url.User(remoteUUID)
	p, err := peer.New(placeholderURL, n, n.codec, n.dialer, n.params, n.cfg, n.log)
	if err != nil {
		n.log.Warn("failed to construct peer for incoming channel", "uuid", remoteUUID, "err", err)
		return
	}
	n.peers[remoteUUID] = p

	if setter, ok := incoming.(interface {
		SetDelegate(peerconn.Delegate)
		Connection() *peerconn.Connection
	}); ok {
		setter.SetDelegate(p)
		p.AttachIncoming(setter.Connection())
	}
}

func (n *runtimeNode) Forget(peerUUID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if p, ok := n.peers[peerUUID]; ok {
		p.Destroy()
		delete(n.peers, peerUUID)
	}
}

func (n *runtimeNode) ReceiveBest(candidate catnode.Candidate) error {
	n.log.Info("candidate chain head reported", "hash", candidate.Hash, "height", candidate.Height, "peer", candidate.Peer)
	return nil
}

func (n *runtimeNode) ReceiveTransaction(tx catnode.Transaction, from string) error {
	n.log.Debug("transaction received", "from", from)
	return nil
}

func (n *runtimeNode) ReceiveBlock(block catnode.Block, from string, wasRequested bool) error {
	n.log.Debug("block received", "from", from, "requested", wasRequested)
	return nil
}

func (n *runtimeNode) ValidPeers() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	urls := make([]string, 0, len(n.peers))
	for _, p := range n.peers {
		urls = append(urls, p.URL().String())
	}
	return urls
}

func (n *runtimeNode) Ledger() catnode.Ledger { return n.ledger }

func (n *runtimeNode) MedianNetworkTime() time.Time { return time.Now() }

// advanceAll drives every known peer's state machine once.
func (n *runtimeNode) advanceAll() {
	n.mu.Lock()
	peers := make([]*peer.Peer, 0, len(n.peers))
	for _, p := range n.peers {
		peers = append(peers, p)
	}
	n.mu.Unlock()

	now := time.Now()
	for _, p := range peers {
		p.Advance(now)
	}
}
