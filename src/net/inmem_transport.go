package net

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mosaicnetworks/tsae/src/common"
)

// NewInmemAddr returns a new in-memory addr with
// a randomly generate UUID as the ID.
func NewInmemAddr() string {
	return uuid.New().String()
}

// InmemTransport Implements the Transport interface, to allow TSAE nodes to be
// tested in-memory without going over a network. Connections are net.Pipe
// pairs, so messages go through the same framing as over TCP.
type InmemTransport struct {
	sync.RWMutex
	consumerCh chan Conn
	localAddr  string
	peers      map[string]*InmemTransport
	timeout    time.Duration
}

// NewInmemTransport is used to initialize a new transport
// and generates a random local address if none is specified
func NewInmemTransport(addr string, timeout time.Duration) (string, *InmemTransport) {
	if addr == "" {
		addr = NewInmemAddr()
	}
	trans := &InmemTransport{
		consumerCh: make(chan Conn, 16),
		localAddr:  addr,
		peers:      make(map[string]*InmemTransport),
		timeout:    timeout,
	}
	return addr, trans
}

// Listen implements the Transport interface. Inbound connections are handed
// over by the dialing transport, so there is nothing to do.
func (i *InmemTransport) Listen() {}

// Consumer implements the Transport interface.
func (i *InmemTransport) Consumer() <-chan Conn {
	return i.consumerCh
}

// LocalAddr implements the Transport interface.
func (i *InmemTransport) LocalAddr() string {
	return i.localAddr
}

// AdvertiseAddr implements the Transport interface.
func (i *InmemTransport) AdvertiseAddr() string {
	return i.localAddr
}

// Dial implements the Transport interface.
func (i *InmemTransport) Dial(target string) (Conn, error) {
	i.RLock()
	peer, ok := i.peers[target]
	i.RUnlock()

	if !ok {
		return nil, common.NewSessionErr(
			common.TransportFailure,
			0,
			fmt.Errorf("failed to connect to peer: %v", target),
		)
	}

	local, remote := net.Pipe()

	timeout := time.After(i.timeout)
	select {
	case peer.consumerCh <- newNetConn(i.localAddr, remote, i.timeout):
	case <-timeout:
		local.Close()
		remote.Close()
		return nil, common.NewSessionErr(
			common.TransportFailure,
			0,
			fmt.Errorf("connection to %v timed out", target),
		)
	}

	return newNetConn(target, local, i.timeout), nil
}

// Connect is used to connect this transport to another transport for
// a given peer name. This allows for local routing.
func (i *InmemTransport) Connect(peer string, t Transport) {
	trans := t.(*InmemTransport)
	i.Lock()
	defer i.Unlock()
	i.peers[peer] = trans
}

// Disconnect is used to remove the ability to route to a given peer.
func (i *InmemTransport) Disconnect(peer string) {
	i.Lock()
	defer i.Unlock()
	delete(i.peers, peer)
}

// DisconnectAll is used to remove all routes to peers.
func (i *InmemTransport) DisconnectAll() {
	i.Lock()
	defer i.Unlock()
	i.peers = make(map[string]*InmemTransport)
}

// Close is used to permanently disable the transport
func (i *InmemTransport) Close() error {
	i.DisconnectAll()
	return nil
}
