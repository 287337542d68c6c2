package commands

import (
	"testing"

	"github.com/mosaicnetworks/tsae/src/peers"
)

func TestPeersCmd(t *testing.T) {
	dir := t.TempDir()

	cmd := NewPeersCmd()
	cmd.SetArgs([]string{
		"--datadir", dir,
		"--peer", "node0=127.0.0.1:1337=alice",
		"--peer", "node1=127.0.0.1:1338",
	})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}

	peerSet, err := peers.NewJSONPeerSet(dir).PeerSet()
	if err != nil {
		t.Fatal(err)
	}
	if peerSet.Len() != 2 {
		t.Fatalf("peers.json should list 2 peers, not %d", peerSet.Len())
	}
	if p := peerSet.ByID["node0"]; p == nil || p.NetAddr != "127.0.0.1:1337" || p.Moniker != "alice" {
		t.Fatalf("unexpected node0 %v", p)
	}

	// an existing file is kept unless --force is given
	cmd = NewPeersCmd()
	cmd.SetArgs([]string{"--datadir", dir, "--peer", "a=x:1", "--peer", "b=x:2"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("an existing peers.json should not be overwritten")
	}

	cmd = NewPeersCmd()
	cmd.SetArgs([]string{"--datadir", dir, "--force", "--peer", "a=x:1", "--peer", "b=x:2"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if peerSet, _ = peers.NewJSONPeerSet(dir).PeerSet(); peerSet.ByID["a"] == nil {
		t.Fatalf("peers.json should have been replaced, got %v", peerSet.Peers)
	}
}

func TestParsePeersMalformed(t *testing.T) {
	if _, err := parsePeers([]string{"node0"}); err == nil {
		t.Fatal("a peer without address should be rejected")
	}
}
