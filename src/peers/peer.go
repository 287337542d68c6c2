package peers

// Peer is a participant of a TSAE group.
type Peer struct {
	ID      string `json:"id"`
	NetAddr string `json:"net_addr"`
	Moniker string `json:"moniker,omitempty"`
}

// NewPeer ...
func NewPeer(id, netAddr, moniker string) *Peer {
	return &Peer{
		ID:      id,
		NetAddr: netAddr,
		Moniker: moniker,
	}
}

// ExcludePeer is used to exclude a single peer from a list of peers.
func ExcludePeer(peers []*Peer, peer string) (int, []*Peer) {
	index := -1
	otherPeers := make([]*Peer, 0, len(peers))
	for i, p := range peers {
		if p.ID != peer {
			otherPeers = append(otherPeers, p)
		} else {
			index = i
		}
	}
	return index, otherPeers
}
