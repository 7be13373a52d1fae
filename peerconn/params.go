package peerconn

// protocolVersionQueryKey is the query parameter an Outgoing connection's
// dial URL carries the handshake's protocol-version tag under (spec §4.2,
// §6).
const protocolVersionQueryKey = "protocolVersion"

// Params configures the handshake and outgoing-URL decoration shared by
// Incoming and Outgoing connections.
type Params struct {
	ProtocolVersion string
	UUIDRequestKey  string
	PortRequestKey  string
}
