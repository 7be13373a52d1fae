// Package catnodetest provides an in-memory catnode.Node/catnode.Ledger
// double, letting peer and server be tested without a real ledger or
// miner collaborator — the supplemented analogue of the fake backends
// the teacher pack tests its handler/manifest code against.
package catnodetest

import (
	"net/url"
	"sync"
	"time"

	"github.com/hilalh/catena/catnode"
	"github.com/hilalh/catena/gossip"
)

// FakeLedger is a minimal in-memory catnode.Ledger.
type FakeLedger struct {
	mu      sync.Mutex
	genesis gossip.Hash
	highest gossip.Hash
	height  uint64
	blocks  map[gossip.Hash]catnode.Block
}

// NewFakeLedger seeds the ledger with a single genesis block.
func NewFakeLedger(genesis gossip.Hash) *FakeLedger {
	return &FakeLedger{
		genesis: genesis,
		highest: genesis,
		blocks:  map[gossip.Hash]catnode.Block{genesis: {"hash": string(genesis)}},
	}
}

// Mutex returns the coarse lock guarding genesis/highest/height/blocks.
// Per catnode.Ledger, callers must hold it across Genesis/Highest/
// Height/Get — those accessors assume the lock is already held and do
// not take it themselves, so holding it a second time never deadlocks.
func (l *FakeLedger) Mutex() *sync.Mutex { return &l.mu }

func (l *FakeLedger) Genesis() gossip.Hash { return l.genesis }
func (l *FakeLedger) Highest() gossip.Hash { return l.highest }
func (l *FakeLedger) Height() uint64       { return l.height }
func (l *FakeLedger) Get(hash gossip.Hash) (catnode.Block, bool) {
	b, ok := l.blocks[hash]
	return b, ok
}

// PutBlock installs a block and advances the longest chain head, the way
// a real ledger would after accepting a new block. previous links the
// block to its parent for fetch-with-extra walks.
func (l *FakeLedger) PutBlock(hash, previous gossip.Hash, height uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.blocks[hash] = catnode.Block{"hash": string(hash), "previous": string(previous)}
	if height > l.height {
		l.height = height
		l.highest = hash
	}
}

// Fake is an in-memory catnode.Node recording every call the core makes
// into it, for assertions in peer/server tests.
type Fake struct {
	mu sync.Mutex

	uuid   string
	port   int
	ledger *FakeLedger

	AddedURLs     []*url.URL
	AddedIncoming []catnode.Incoming
	Forgotten     []string
	Candidates    []catnode.Candidate
	Transactions  []catnode.Transaction
	Blocks        []catnode.Block

	// ReceiveTransactionErr / ReceiveBlockErr let tests force a failure
	// path (peer → failed) without a real ledger rejecting anything.
	ReceiveTransactionErr error
	ReceiveBlockErr       error

	validPeers []string
}

// NewFake builds a Fake node with a given identity and ledger.
func NewFake(uuid string, port int, ledger *FakeLedger) *Fake {
	return &Fake{uuid: uuid, port: port, ledger: ledger}
}

func (n *Fake) UUID() string { return n.uuid }
func (n *Fake) Port() int    { return n.port }

func (n *Fake) AddPeerURL(peerURL *url.URL) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.AddedURLs = append(n.AddedURLs, peerURL)
}

func (n *Fake) AddIncoming(incoming catnode.Incoming) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.AddedIncoming = append(n.AddedIncoming, incoming)
}

func (n *Fake) Forget(peerUUID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Forgotten = append(n.Forgotten, peerUUID)
}

func (n *Fake) ReceiveBest(candidate catnode.Candidate) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Candidates = append(n.Candidates, candidate)
	return nil
}

func (n *Fake) ReceiveTransaction(tx catnode.Transaction, from string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.ReceiveTransactionErr != nil {
		return n.ReceiveTransactionErr
	}
	n.Transactions = append(n.Transactions, tx)
	return nil
}

func (n *Fake) ReceiveBlock(block catnode.Block, from string, wasRequested bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.ReceiveBlockErr != nil {
		return n.ReceiveBlockErr
	}
	n.Blocks = append(n.Blocks, block)
	return nil
}

func (n *Fake) ValidPeers() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.validPeers...)
}

// SetValidPeers installs the peer list advertised in Index replies.
func (n *Fake) SetValidPeers(peers []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.validPeers = peers
}

func (n *Fake) Ledger() catnode.Ledger { return n.ledger }

func (n *Fake) MedianNetworkTime() time.Time { return time.Now() }
