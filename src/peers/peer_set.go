package peers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

//PeerSet is the fixed set of Peers forming a TSAE group
type PeerSet struct {
	Peers     []*Peer          `json:"peers"`
	ByID      map[string]*Peer `json:"-"`
	ByNetAddr map[string]*Peer `json:"-"`
}

/* Constructors */

//NewPeerSet creates a new PeerSet from a list of Peers
func NewPeerSet(peers []*Peer) *PeerSet {
	peerSet := &PeerSet{
		ByID:      make(map[string]*Peer),
		ByNetAddr: make(map[string]*Peer),
	}

	for _, peer := range peers {
		peerSet.ByID[peer.ID] = peer
		peerSet.ByNetAddr[peer.NetAddr] = peer
	}

	peerSet.Peers = peers

	return peerSet
}

/* ToSlice Methods */

//IDs returns the sorted IDs of the PeerSet. This is the participant set of
//every summary, ack and log.
func (peerSet *PeerSet) IDs() []string {
	res := make([]string, 0, len(peerSet.Peers))

	for _, peer := range peerSet.Peers {
		res = append(res, peer.ID)
	}

	sort.Strings(res)

	return res
}

/* Utilities */

//Len returns the number of Peers in the PeerSet
func (peerSet *PeerSet) Len() int {
	return len(peerSet.ByID)
}

//Validate checks that IDs and network addresses are present and unique
func (peerSet *PeerSet) Validate() error {
	ids := make(map[string]bool)
	addrs := make(map[string]bool)
	for i, p := range peerSet.Peers {
		if p.ID == "" {
			return fmt.Errorf("peer %d has no id", i)
		}
		if p.NetAddr == "" {
			return fmt.Errorf("peer %s has no net_addr", p.ID)
		}
		if ids[p.ID] {
			return fmt.Errorf("duplicate peer id %s", p.ID)
		}
		if addrs[p.NetAddr] {
			return fmt.Errorf("duplicate peer net_addr %s", p.NetAddr)
		}
		ids[p.ID] = true
		addrs[p.NetAddr] = true
	}
	return nil
}

//Marshal marshals the peerset
func (peerSet *PeerSet) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(peerSet.Peers); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
