// Package gossip implements the wire-level message of the peer protocol:
// a tagged variant ("Gossip") serialized as a self-describing object paired
// with a correlation counter, the way the teacher's swarm/api hand-rolls
// JSON-tagged wire structs around encoding/json.
package gossip

import "fmt"

// Hash is a peer-protocol hash value in its canonical string form. The
// ledger's concrete hash type is opaque to the gossip core (spec design
// note "Generic ledger parameterization"); only string identity matters
// here.
type Hash string

// Action names the variant of a Gossip value. The field it is carried
// under in the wire object is configurable (Codec.ActionKey).
type Action string

const (
	ActionQuery       Action = "query"
	ActionIndex       Action = "index"
	ActionPassive     Action = "passive"
	ActionBlock       Action = "block"
	ActionTransaction Action = "tx"
	ActionFetch       Action = "fetch"
	ActionResult      Action = "result"
	ActionError       Action = "error"
	ActionForget      Action = "forget"
)

// Gossip is the tagged variant exchanged over a PeerConnection. Payloads
// that the gossip core does not interpret (blocks, transactions) are
// opaque structured values, left for the ledger to validate.
type Gossip interface {
	Action() Action
	isGossip()
}

// Query requests the remote's current Index.
type Query struct{}

func (Query) Action() Action { return ActionQuery }
func (Query) isGossip()      {}

// IndexGossip replies to a Query with the sender's chain snapshot.
type IndexGossip struct {
	Index Index
}

func (IndexGossip) Action() Action { return ActionIndex }
func (IndexGossip) isGossip()      {}

// Passive replies to a Query from a peer that exposes no Index.
type Passive struct{}

func (Passive) Action() Action { return ActionPassive }
func (Passive) isGossip()      {}

// Block carries an unsolicited, ledger-opaque block payload.
type Block struct {
	Block map[string]interface{}
}

func (Block) Action() Action { return ActionBlock }
func (Block) isGossip()      {}

// Transaction carries an unsolicited, ledger-opaque transaction payload.
type Transaction struct {
	Tx map[string]interface{}
}

func (Transaction) Action() Action { return ActionTransaction }
func (Transaction) isGossip()      {}

// Fetch requests a block by hash plus up to Extra ancestor blocks.
type Fetch struct {
	Hash  Hash
	Extra uint32
}

func (Fetch) Action() Action { return ActionFetch }
func (Fetch) isGossip()      {}

// Result replies to a Fetch. Extra maps predecessor hash to predecessor
// payload and must contain at most Codec.MaxExtraBlocks entries.
type Result struct {
	Block map[string]interface{}
	Extra map[Hash]map[string]interface{}
}

func (Result) Action() Action { return ActionResult }
func (Result) isGossip()      {}

// ErrorGossip carries failure text in reply to a request that could not
// be satisfied.
type ErrorGossip struct {
	Message string
}

func (ErrorGossip) Action() Action { return ActionError }
func (ErrorGossip) isGossip()      {}

// Forget asks the recipient to forget the sending peer.
type Forget struct{}

func (Forget) Action() Action { return ActionForget }
func (Forget) isGossip()      {}

// Frame is one unit of exchange on a PeerConnection: a correlation
// counter paired with a Gossip value. Counter 0 on an inbound frame
// marks it as unsolicited (a push); see peerconn.Connection.
type Frame struct {
	Counter uint64
	Gossip  Gossip
}

func (f Frame) String() string {
	return fmt.Sprintf("[%d %s]", f.Counter, f.Gossip.Action())
}
