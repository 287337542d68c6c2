package commands

import (
	"github.com/mosaicnetworks/tsae/src/config"
	"github.com/spf13/cobra"
)

var (
	_config = config.NewDefaultConfig()
)

//RootCmd is the root command for TSAE
var RootCmd = &cobra.Command{
	Use:              "tsae",
	Short:            "timestamped anti-entropy replication",
	TraverseChildren: true,
}
