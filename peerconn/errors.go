package peerconn

import "github.com/pkg/errors"

var (
	// ErrNotConnected is returned by Request/Reply when the underlying
	// transport has not (or no longer) got a live channel.
	ErrNotConnected = errors.New("peerconn: not connected")

	// ErrProtocolVersionMissing is returned when an incoming channel's
	// handshake carries no protocol-version tag at all.
	ErrProtocolVersionMissing = errors.New("peerconn: protocol version missing from handshake")

	// ErrProtocolVersionUnsupported is returned when an incoming channel's
	// protocol-version tag does not match the configured version.
	ErrProtocolVersionUnsupported = errors.New("peerconn: protocol version unsupported")

	// ErrOutgoingDisabled is returned by a Dialer when the local node is
	// configured for pure-passive mode (listen port <= 0).
	ErrOutgoingDisabled = errors.New("peerconn: outgoing connections disabled in passive mode")
)
