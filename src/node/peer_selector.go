package node

import (
	"math/rand"

	"github.com/mosaicnetworks/tsae/src/peers"
)

// PeerSelector defines an interface for Peer Selectors
type PeerSelector interface {
	Peers() *peers.PeerSet
	RandomPartners(n int) []*peers.Peer
}

// RandomPeerSelector selects partners uniformly at random among the
// participants other than this node.
type RandomPeerSelector struct {
	peers           *peers.PeerSet
	selfID          string
	selectablePeers []*peers.Peer
}

// NewRandomPeerSelector is a factory method that returns a new instance of
// RandomPeerSelector
func NewRandomPeerSelector(peerSet *peers.PeerSet, selfID string) *RandomPeerSelector {
	_, selectablePeers := peers.ExcludePeer(peerSet.Peers, selfID)
	return &RandomPeerSelector{
		peers:           peerSet,
		selfID:          selfID,
		selectablePeers: selectablePeers,
	}
}

// Peers returns the full peer set.
func (ps *RandomPeerSelector) Peers() *peers.PeerSet {
	return ps.peers
}

// RandomPartners returns up to n distinct peers, in random order. It returns
// every selectable peer when n is larger than their number.
func (ps *RandomPeerSelector) RandomPartners(n int) []*peers.Peer {
	if n <= 0 || len(ps.selectablePeers) == 0 {
		return []*peers.Peer{}
	}

	if n > len(ps.selectablePeers) {
		n = len(ps.selectablePeers)
	}

	res := make([]*peers.Peer, 0, n)
	for _, i := range rand.Perm(len(ps.selectablePeers))[:n] {
		res = append(res, ps.selectablePeers[i])
	}

	return res
}
