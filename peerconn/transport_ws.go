package peerconn

import (
	"github.com/btcsuite/websocket"
	"github.com/ethereum/go-ethereum/log"
)

// wsTransport adapts a btcsuite/websocket connection to the Transport
// interface, the way the teacher adapts a raw p2p.MsgReadWriter behind
// metredMsgReadWriter in eth/handler.go.
type wsTransport struct {
	ws *websocket.Conn
}

func (t *wsTransport) Send(frame []byte) error {
	return websocket.Message.Send(t.ws, frame)
}

func (t *wsTransport) Close() error {
	return t.ws.Close()
}

// readLoop is the transport's read path: it decodes inbound messages and
// hands them to conn.Receive, which immediately dispatches off this
// goroutine. The loop itself terminates (and fires OnDisconnected) the
// moment the channel errors or closes.
func readLoop(conn *Connection, ws *websocket.Conn, logger log.Logger) {
	for {
		var data []byte
		if err := websocket.Message.Receive(ws, &data); err != nil {
			logger.Debug("peer channel closed", "err", err)
			conn.notifyDisconnected()
			return
		}
		conn.Receive(data)
	}
}
