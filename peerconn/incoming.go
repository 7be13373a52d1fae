package peerconn

import (
	"strconv"

	"github.com/btcsuite/websocket"
	"github.com/ethereum/go-ethereum/log"

	"github.com/hilalh/catena/gossip"
)

// NewIncoming wraps a server-accepted websocket channel as a Connection.
// The caller (server.Server) has already completed the HTTP upgrade;
// NewIncoming validates the protocol-version tag carried in the request's
// query parameters (spec §4.2, §4.3) and, on success, starts the read
// loop. Destruction (Close) closes the underlying channel.
func NewIncoming(ws *websocket.Conn, codec *gossip.Codec, params Params, delegate Delegate, logger log.Logger) (*Connection, error) {
	got := ws.Request().URL.Query().Get(protocolVersionQueryKey)
	if got == "" {
		ws.Close()
		return nil, ErrProtocolVersionMissing
	}
	if got != params.ProtocolVersion {
		ws.Close()
		return nil, ErrProtocolVersionUnsupported
	}

	conn := newConnection(&wsTransport{ws: ws}, codec, 1, logger)
	conn.SetDelegate(delegate)
	go readLoop(conn, ws, logger)
	return conn, nil
}

// RemotePeerUUID reads the uuid query parameter an Outgoing connection's
// dial URL embedded, letting the accepting Server construct the
// symmetric Peer entry for the dialing node.
func RemotePeerUUID(ws *websocket.Conn, params Params) string {
	return ws.Request().URL.Query().Get(params.UUIDRequestKey)
}

// RemotePeerPort reads the port query parameter an Outgoing connection's
// dial URL embedded. Returns 0 if absent or malformed.
func RemotePeerPort(ws *websocket.Conn, params Params) int {
	p, err := strconv.Atoi(ws.Request().URL.Query().Get(params.PortRequestKey))
	if err != nil {
		return 0
	}
	return p
}
