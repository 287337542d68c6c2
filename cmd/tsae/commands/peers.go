package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mosaicnetworks/tsae/src/peers"
	"github.com/spf13/cobra"
)

var (
	peersDataDir string
	peersList    []string
	peersForce   bool
)

// NewPeersCmd produces a PeersCmd which writes a peers.json file
func NewPeersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "peers",
		Short: "Create peers.json",
		Long: `Create the peers.json file listing the participants of the group.
Every participant is given as id=host:port, or id=host:port=moniker.`,
		RunE: writePeers,
	}

	AddPeersFlags(cmd)

	return cmd
}

//AddPeersFlags adds flags to the peers command
func AddPeersFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&peersDataDir, "datadir", _config.DataDir, "Directory where peers.json will be written")
	cmd.Flags().StringSliceVarP(&peersList, "peer", "p", nil, "Participant as id=host:port[=moniker] (repeatable)")
	cmd.Flags().BoolVar(&peersForce, "force", false, "Overwrite an existing peers.json")
}

func writePeers(cmd *cobra.Command, args []string) error {
	file := filepath.Join(peersDataDir, "peers.json")

	if _, err := os.Stat(file); err == nil && !peersForce {
		return fmt.Errorf("A peers.json already lives under: %s", peersDataDir)
	}

	pirs, err := parsePeers(peersList)
	if err != nil {
		return err
	}

	if len(pirs) < 2 {
		return fmt.Errorf("At least two peers are required")
	}

	if err := peers.NewPeerSet(pirs).Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(peersDataDir, 0700); err != nil {
		return fmt.Errorf("Writing peers.json: %s", err)
	}

	if err := peers.NewJSONPeerSet(peersDataDir).Write(pirs); err != nil {
		return fmt.Errorf("Writing peers.json: %s", err)
	}

	fmt.Printf("%d peers have been saved to: %s\n", len(pirs), file)

	return nil
}

func parsePeers(list []string) ([]*peers.Peer, error) {
	pirs := make([]*peers.Peer, 0, len(list))

	for _, s := range list {
		parts := strings.SplitN(s, "=", 3)
		if len(parts) < 2 {
			return nil, fmt.Errorf("Malformed peer %q, expected id=host:port", s)
		}

		moniker := ""
		if len(parts) == 3 {
			moniker = parts[2]
		}

		pirs = append(pirs, peers.NewPeer(parts[0], parts[1], moniker))
	}

	return pirs, nil
}
