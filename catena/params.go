// Package catena wires the gossip, peerconn, throttle, peer, and server
// packages together into a runnable node configuration surface — the
// parameter set an embedder supplies, analogous to the teacher's
// eth.Config bundling protocol/network tunables for ProtocolManager.
package catena

import (
	"time"

	"github.com/hilalh/catena/gossip"
	"github.com/hilalh/catena/peer"
	"github.com/hilalh/catena/peerconn"
)

// Params is the full configuration surface the core consumes.
type Params struct {
	ActionKey       string
	ProtocolVersion string
	UUIDRequestKey  string
	PortRequestKey  string

	MaximumExtraBlocks            int
	MaximumPeerRequestRate        time.Duration
	MaximumPeerRequestQueueSize   int
	PeerRetryAfterFailureInterval time.Duration
}

// Defaults returns the parameter set the reference node ships with.
func Defaults() Params {
	return Params{
		ActionKey:                      "t",
		ProtocolVersion:                "1",
		UUIDRequestKey:                 "uuid",
		PortRequestKey:                 "port",
		MaximumExtraBlocks:             25,
		MaximumPeerRequestRate:         200 * time.Millisecond,
		MaximumPeerRequestQueueSize:    64,
		PeerRetryAfterFailureInterval:  30 * time.Second,
	}
}

// Codec builds the gossip.Codec these Params describe.
func (p Params) Codec() *gossip.Codec {
	return gossip.NewCodec(p.ActionKey, p.MaximumExtraBlocks)
}

// ConnectionParams builds the peerconn.Params these Params describe.
func (p Params) ConnectionParams() peerconn.Params {
	return peerconn.Params{
		ProtocolVersion: p.ProtocolVersion,
		UUIDRequestKey:  p.UUIDRequestKey,
		PortRequestKey:  p.PortRequestKey,
	}
}

// PeerConfig builds the peer.Config these Params describe.
func (p Params) PeerConfig() peer.Config {
	return peer.Config{
		MaxExtraBlocks:            p.MaximumExtraBlocks,
		RequestRateInterval:       p.MaximumPeerRequestRate,
		MaxRequestQueueSize:       p.MaximumPeerRequestQueueSize,
		RetryAfterFailureInterval: p.PeerRetryAfterFailureInterval,
	}
}
