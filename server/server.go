// Package server implements the accept side of the peer protocol: it
// upgrades incoming HTTP connections to websocket channels, wraps them
// as PeerConnections, and hands them to the owning Node — the same
// accept-loop-plus-registry shape as eth/handler.go's ProtocolManager,
// adapted from p2p.Server's peer dial/accept plumbing to an HTTP
// upgrade handler since this module targets a browser-reachable
// transport rather than a raw TCP devp2p listener.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/btcsuite/websocket"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/hilalh/catena/catnode"
	"github.com/hilalh/catena/gossip"
	"github.com/hilalh/catena/peerconn"
)

// Server accepts incoming PeerConnections and registers them by
// connection id. All mutations of the connection map happen under mu.
type Server struct {
	mu          sync.Mutex
	connections map[string]*Incoming

	port   int
	node   catnode.Node
	codec  *gossip.Codec
	params peerconn.Params
	log    log.Logger

	httpServer *http.Server
}

// New builds a Server listening on port. node.AddIncoming is called for
// every channel that completes the handshake.
func New(port int, node catnode.Node, codec *gossip.Codec, params peerconn.Params, logger log.Logger) *Server {
	if logger == nil {
		logger = log.Root()
	}
	return &Server{
		connections: make(map[string]*Incoming),
		port:        port,
		node:        node,
		codec:       codec,
		params:      params,
		log:         logger,
	}
}

// Handler returns the websocket upgrade handler the caller mounts on its
// HTTP mux (e.g. at "/peer").
func (s *Server) Handler() http.Handler {
	return websocket.Handler(s.accept)
}

func (s *Server) accept(ws *websocket.Conn) {
	remoteUUID := peerconn.RemotePeerUUID(ws, s.params)
	remotePort := peerconn.RemotePeerPort(ws, s.params)

	id := uuid.New().String()
	incoming := &Incoming{id: id, uuid: remoteUUID, port: remotePort, server: s}

	conn, err := peerconn.NewIncoming(ws, s.codec, s.params, incoming, s.log)
	if err != nil {
		s.log.Warn("rejecting incoming peer channel", "remote", remoteUUID, "err", err)
		return
	}
	incoming.conn = conn

	s.mu.Lock()
	s.connections[id] = incoming
	s.mu.Unlock()

	s.log.Debug("peer channel accepted", "id", id, "remote", remoteUUID)
	s.node.AddIncoming(incoming)
}

func (s *Server) remove(id string) {
	s.mu.Lock()
	delete(s.connections, id)
	s.mu.Unlock()
}

// ConnectionCount reports the number of registered incoming channels.
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.connections)
}

// Info is a point-in-time snapshot of the server's accepted channels,
// mirrored from the teacher's NodeInfo/PeerInfo introspection pattern.
type Info struct {
	Port        int
	Connections []ConnectionInfo
}

// ConnectionInfo describes one registered incoming channel.
type ConnectionInfo struct {
	ID         string
	RemoteUUID string
	RemotePort int
}

// Info snapshots the server's connection registry under its mutex.
func (s *Server) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := Info{Port: s.port, Connections: make([]ConnectionInfo, 0, len(s.connections))}
	for id, in := range s.connections {
		info.Connections = append(info.Connections, ConnectionInfo{ID: id, RemoteUUID: in.uuid, RemotePort: in.port})
	}
	return info
}

// ListenAndServe mounts Handler at "/" and blocks serving HTTP on Port.
func (s *Server) ListenAndServe() error {
	mux := http.NewServeMux()
	mux.Handle("/", s.Handler())
	s.httpServer = &http.Server{Addr: fmt.Sprintf(":%d", s.port), Handler: mux}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
