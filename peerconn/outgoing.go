package peerconn

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/btcsuite/websocket"
	"github.com/ethereum/go-ethereum/log"

	"github.com/hilalh/catena/gossip"
)

// Dialer constructs outgoing connections. A nil Dialer passed to peer.New
// models a platform (or a deliberately pure-passive node) that cannot
// initiate outgoing channels; Peer.Advance treats that as
// ignored("cannot make outgoing connections") per spec §4.5.
//
// Dial must not call the returned Connection's NotifyConnected itself:
// the delegate has not yet recorded the connection as its active one,
// so OnConnected would race that assignment. The caller is responsible
// for calling NotifyConnected once it has done so.
type Dialer interface {
	Dial(peerURL *url.URL, delegate Delegate) (*Connection, error)
}

// WebsocketDialer is the production Dialer. It embeds the local node's
// uuid and listening port into the dial URL's query parameters so the
// remote can create its symmetric Peer entry. The caller fires
// NotifyConnected once the channel is up and recorded.
type WebsocketDialer struct {
	Codec     *gossip.Codec
	Params    Params
	LocalUUID string
	LocalPort int
	Logger    log.Logger
}

// Dial rejects construction when LocalPort <= 0: pure-passive mode
// disallows outgoing connections (spec §4.3).
func (d *WebsocketDialer) Dial(peerURL *url.URL, delegate Delegate) (*Connection, error) {
	if d.LocalPort <= 0 {
		return nil, ErrOutgoingDisabled
	}

	dialURL := *peerURL
	q := dialURL.Query()
	q.Set(d.Params.UUIDRequestKey, d.LocalUUID)
	q.Set(d.Params.PortRequestKey, strconv.Itoa(d.LocalPort))
	q.Set(protocolVersionQueryKey, d.Params.ProtocolVersion)
	dialURL.RawQuery = q.Encode()

	origin := fmt.Sprintf("ws://%s/", peerURL.Hostname())
	ws, err := websocket.Dial(dialURL.String(), "", origin)
	if err != nil {
		return nil, err
	}

	conn := newConnection(&wsTransport{ws: ws}, d.Codec, 0, d.Logger)
	conn.SetDelegate(delegate)
	go readLoop(conn, ws, d.Logger)
	// OnConnected is NOT fired here: the delegate (typically a Peer)
	// has not yet published conn as its active connection, so an
	// OnConnected callback firing this early would see a mismatch and
	// drop the connecting→connected transition. The caller fires
	// NotifyConnected once it has recorded conn.
	return conn, nil
}
