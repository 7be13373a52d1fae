// Package peer implements the per-peer state machine, inbound request
// handler, and query driver — the core's busiest component. Structurally
// it mirrors eth/handler.go's peer handling: a mutex-guarded object
// driven both by a periodic ticker (advance, analogous to the teacher's
// broadcast loops) and by asynchronous channel events (Receive,
// analogous to handleMsg).
package peer

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/jpillora/backoff"
	"github.com/pkg/errors"

	"github.com/hilalh/catena/catnode"
	"github.com/hilalh/catena/gossip"
	"github.com/hilalh/catena/peerconn"
	"github.com/hilalh/catena/throttle"
)

// Config bundles the tunables a Peer needs from the embedder's
// parameter surface.
type Config struct {
	MaxExtraBlocks            int
	RequestRateInterval       time.Duration
	MaxRequestQueueSize       int
	RetryAfterFailureInterval time.Duration
}

// Request is one inbound delivery awaiting throttled handling.
type Request struct {
	Conn    *peerconn.Connection
	Gossip  gossip.Gossip
	Counter uint64
}

// Peer is the per-remote-node state machine. Advance is called by the
// node's polling loop; Receive is invoked by a PeerConnection off its read
// path.
type Peer struct {
	mu sync.Mutex

	url    *url.URL
	uuid   string
	node   catnode.Node
	codec  *gossip.Codec
	dialer peerconn.Dialer
	params peerconn.Params
	cfg    Config
	log    log.Logger

	state State
	conn  *peerconn.Connection

	lastSeen                time.Time
	lastIndexRequestLatency time.Duration
	timeDifference          time.Duration

	retry *backoff.Backoff
	queue *throttle.Queue

	knownBlocks mapset.Set
	knownTxs    mapset.Set

	closed bool
}

// New validates peerURL via ValidateURL and builds a Peer for it. The
// Peer starts in state new(now) and owns a ThrottlingQueue draining
// inbound requests at cfg.RequestRateInterval.
func New(peerURL *url.URL, node catnode.Node, codec *gossip.Codec, dialer peerconn.Dialer, params peerconn.Params, cfg Config, logger log.Logger) (*Peer, error) {
	peerUUID, err := ValidateURL(peerURL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Root()
	}
	now := time.Now()
	p := &Peer{
		url:         peerURL,
		uuid:        peerUUID,
		node:        node,
		codec:       codec,
		dialer:      dialer,
		params:      params,
		cfg:         cfg,
		log:         logger.New("peer", peerUUID),
		state:       New(now),
		retry:       &backoff.Backoff{Min: cfg.RetryAfterFailureInterval, Max: cfg.RetryAfterFailureInterval},
		knownBlocks: mapset.NewSet(),
		knownTxs:    mapset.NewSet(),
	}
	p.queue = throttle.New(cfg.RequestRateInterval, cfg.MaxRequestQueueSize, p.handleRequest, logger)
	return p, nil
}

// UUID returns the peer's node uuid, parsed from its URL.
func (p *Peer) UUID() string { return p.uuid }

// URL returns the peer's advertised URL.
func (p *Peer) URL() *url.URL { return p.url }

// State returns a snapshot of the current PeerState.
func (p *Peer) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Info is a point-in-time snapshot of a Peer's externally interesting
// fields, for introspection endpoints (the embedder's HTTP API, debug
// logging) — mirrored from the teacher's PeerInfo.
type Info struct {
	UUID                    string
	URL                     string
	State                   string
	LastSeen                time.Time
	LastIndexRequestLatency time.Duration
	TimeDifference          time.Duration
	QueueLength             int
}

// Info snapshots the peer's state under its mutex.
func (p *Peer) Info() Info {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Info{
		UUID:                    p.uuid,
		URL:                     p.url.String(),
		State:                   p.state.String(),
		LastSeen:                p.lastSeen,
		LastIndexRequestLatency: p.lastIndexRequestLatency,
		TimeDifference:          p.timeDifference,
		QueueLength:             p.queue.Len(),
	}
}

// retryDeadline is the fixed cooldown/deadline length configured on
// cfg.RetryAfterFailureInterval, read through a backoff.Backoff with
// Min==Max so the same primitive that would drive exponential retry
// elsewhere degenerates here to a constant interval.
func (p *Peer) retryDeadline() time.Duration {
	return p.retry.Duration()
}

// Destroy stops the peer's throttling queue and marks it closed; callers
// must not invoke Advance/Receive afterward.
func (p *Peer) Destroy() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.queue.Close()
}

// Advance drives the state-machine transitions described for the
// core's periodic poll. It returns true if it took an action.
func (p *Peer) Advance(now time.Time) bool {
	p.mu.Lock()

	if p.conn == nil {
		switch p.state.Kind {
		case KindConnected, KindConnecting, KindQueried, KindQuerying, KindPassive:
			p.state = New(now)
		}
	}

	switch p.state.Kind {
	case KindFailed:
		if now.Sub(p.state.At) > p.retryDeadline() {
			p.conn = nil
			p.state = New(p.state.At)
		}
		p.mu.Unlock()
		return false

	case KindNew:
		if !HasIncomingPort(p.url) {
			p.state = Ignored("does not accept incoming")
			p.mu.Unlock()
			return true
		}
		if p.dialer == nil {
			p.state = Ignored("cannot make outgoing connections")
			p.mu.Unlock()
			return true
		}
		// Dial without holding mu: it blocks on network I/O, and the
		// delegate callbacks of the connection it returns (OnDisconnected
		// from its read loop, OnConnected via NotifyConnected) acquire mu
		// themselves, so holding it here would self-deadlock.
		p.state = Connecting(now)
		dialer, peerURL := p.dialer, p.url
		p.mu.Unlock()

		conn, err := dialer.Dial(peerURL, p)

		p.mu.Lock()
		if err != nil {
			if p.state.Kind == KindConnecting {
				p.state = Failed(err, now)
			}
			p.mu.Unlock()
			return true
		}
		p.conn = conn
		p.mu.Unlock()
		// Fired only now that p.conn is published: OnConnected's
		// conn-identity check (see OnConnected below) would otherwise
		// race the assignment above and silently drop the transition.
		conn.NotifyConnected()
		return true

	case KindConnected, KindQueried:
		if err := p.queryLocked(now); err != nil {
			p.state = Failed(err, now)
		}
		p.mu.Unlock()
		return true

	case KindPassive, KindIgnored:
		p.mu.Unlock()
		return false

	case KindConnecting, KindQuerying:
		if now.Sub(p.state.Since) > p.retryDeadline() {
			p.conn = nil
			p.state = New(p.state.Since)
			p.mu.Unlock()
			return true
		}
		p.mu.Unlock()
		return false
	}
	p.mu.Unlock()
	return false
}

// queryLocked sends a query request and installs the reply callback. Must be
// called with mu held; the callback itself acquires mu independently
// since it runs on a different goroutine.
func (p *Peer) queryLocked(now time.Time) error {
	p.state = Querying(now)
	conn := p.conn
	tReq := now

	_, err := conn.Request(gossip.Query{}, func(g gossip.Gossip) {
		p.handleQueryReply(conn, g, tReq)
	})
	return err
}

func (p *Peer) handleQueryReply(conn *peerconn.Connection, g gossip.Gossip, tReq time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != conn {
		return // stale reply from a connection already replaced
	}

	now := time.Now()
	p.lastSeen = now
	p.lastIndexRequestLatency = now.Sub(tReq) / 2
	p.log.Debug("index query round trip", "latency", common.PrettyDuration(p.lastIndexRequestLatency))

	switch v := g.(type) {
	case gossip.IndexGossip:
		ledger := p.node.Ledger()
		ledger.Mutex().Lock()
		genesis := ledger.Genesis()
		ledger.Mutex().Unlock()

		if v.Index.Genesis != genesis {
			conn.Close()
			p.conn = nil
			p.state = Ignored("believes in other genesis")
			return
		}
		p.state = Queried()
		p.timeDifference = time.Unix(v.Index.Timestamp, 0).Sub(now)

		for _, peerURLStr := range v.Index.Peers {
			if parsed, err := url.Parse(peerURLStr); err == nil {
				p.node.AddPeerURL(parsed)
			}
		}
		p.node.ReceiveBest(catnode.Candidate{
			Hash:   v.Index.Highest,
			Height: v.Index.Height,
			Peer:   p.uuid,
		})

	case gossip.Passive:
		p.state = Passive()

	default:
		p.state = Failed(errors.New("invalid reply to query"), now)
	}
}

// AttachIncoming installs an already-established incoming connection as
// this peer's active channel and transitions straight to connected,
// skipping the connecting(since) phase that only applies to peers this
// node dialed out to. Used by a Node's AddIncoming wiring once it has
// located or constructed the Peer for an accepted channel.
func (p *Peer) AttachIncoming(conn *peerconn.Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conn = conn
	p.state = Connected()
}

// OnConnected implements peerconn.Delegate.
func (p *Peer) OnConnected(conn *peerconn.Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != conn {
		return
	}
	if p.state.Kind != KindConnecting {
		p.log.Warn("connected event while not connecting", "state", p.state)
		return
	}
	p.state = Connected()
}

// OnDisconnected implements peerconn.Delegate.
func (p *Peer) OnDisconnected(conn *peerconn.Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != conn {
		return
	}
	p.conn = nil
	p.state = Failed(errors.New("disconnected"), time.Now())
}

// Receive implements peerconn.Delegate: it enqueues the unsolicited
// frame for throttled handling and stamps lastSeen immediately, per the
// "every inbound delivery updates lastSeen at enqueue time" rule.
func (p *Peer) Receive(conn *peerconn.Connection, g gossip.Gossip, counter uint64) {
	p.mu.Lock()
	p.lastSeen = time.Now()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return
	}
	p.queue.Enqueue(Request{Conn: conn, Gossip: g, Counter: counter})
}

func (p *Peer) handleRequest(item interface{}) {
	req := item.(Request)
	switch v := req.Gossip.(type) {
	case gossip.Forget:
		p.node.Forget(p.uuid)
		p.setState(Ignored("peer requested to be forgotten"))

	case gossip.Transaction:
		if key, ok := payloadKey(v.Tx); ok {
			if p.knownTxs.Contains(key) {
				return
			}
			p.knownTxs.Add(key)
		}
		if err := p.node.ReceiveTransaction(v.Tx, p.uuid); err != nil {
			p.setState(Failed(err, time.Now()))
		}

	case gossip.Block:
		if key, ok := payloadKey(v.Block); ok {
			if p.knownBlocks.Contains(key) {
				return
			}
			p.knownBlocks.Add(key)
		}
		if err := p.node.ReceiveBlock(v.Block, p.uuid, false); err != nil {
			p.setState(Failed(errors.Wrap(err, "Received invalid unsolicited block"), time.Now()))
		}

	case gossip.Fetch:
		p.handleFetch(req.Conn, req.Counter, v)

	case gossip.Query:
		p.handleQuery(req.Conn, req.Counter)

	default:
		p.setState(Ignored("peer sent invalid request"))
	}
}

func (p *Peer) handleFetch(conn *peerconn.Connection, counter uint64, f gossip.Fetch) {
	if int(f.Extra) > p.cfg.MaxExtraBlocks {
		conn.Close()
		p.setState(Failed(fmt.Errorf("limit exceeded"), time.Now()))
		return
	}

	ledger := p.node.Ledger()
	ledger.Mutex().Lock()
	defer ledger.Mutex().Unlock()

	block, ok := ledger.Get(f.Hash)
	if !ok {
		conn.Reply(counter, gossip.ErrorGossip{Message: "not found"})
		return
	}

	extra := make(map[gossip.Hash]map[string]interface{}, f.Extra)
	genesis := ledger.Genesis()
	cursor := f.Hash
	cur := block
	for i := uint32(0); i < f.Extra; i++ {
		if cursor == genesis {
			break
		}
		prevRaw, ok := cur["previous"]
		if !ok {
			break
		}
		prev, ok := prevRaw.(string)
		if !ok {
			break
		}
		prevBlock, ok := ledger.Get(gossip.Hash(prev))
		if !ok {
			break
		}
		extra[gossip.Hash(prev)] = prevBlock
		cursor = gossip.Hash(prev)
		cur = prevBlock
	}

	conn.Reply(counter, gossip.Result{Block: block, Extra: extra})
}

func (p *Peer) handleQuery(conn *peerconn.Connection, counter uint64) {
	ledger := p.node.Ledger()
	ledger.Mutex().Lock()
	idx := gossip.Index{
		Genesis:   ledger.Genesis(),
		Highest:   ledger.Highest(),
		Height:    ledger.Height(),
		Timestamp: time.Now().Unix(),
		Peers:     p.node.ValidPeers(),
	}
	ledger.Mutex().Unlock()

	conn.Reply(counter, gossip.IndexGossip{Index: idx})
}

// payloadKey extracts the "hash" field a block or transaction payload is
// keyed by, if present, so this peer's knownBlocks/knownTxs sets can
// suppress reprocessing the same unsolicited gossip relayed by more than
// one connection.
func payloadKey(payload map[string]interface{}) (string, bool) {
	raw, ok := payload["hash"]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	return s, ok
}

func (p *Peer) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}
