package commands

import (
	"github.com/mosaicnetworks/murmur/src/config"
	"github.com/spf13/cobra"
)

var (
	_config = config.NewDefaultConfig()
)

// RootCmd is the root command for Murmur. The harness launches nodes without
// arguments, so on its own it behaves like the run command.
var RootCmd = &cobra.Command{
	Use:              "murmur",
	Short:            "murmur cluster node",
	TraverseChildren: true,
	PreRunE:          loadConfig,
	RunE:             runMurmur,
}

func init() {
	AddRunFlags(RootCmd)
}
