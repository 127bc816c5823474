package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mosaicnetworks/murmur/src/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewConfigCmd produces a ConfigCmd which writes the effective configuration,
// flags and environment included, to [datadir]/murmur.toml. Nodes started
// later from the same datadir pick it up.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Short:   "Write the configuration file",
		PreRunE: loadConfig,
		RunE:    writeConfig,
	}

	AddRunFlags(cmd)

	return cmd
}

func writeConfig(cmd *cobra.Command, args []string) error {
	if err := os.MkdirAll(_config.DataDir, 0700); err != nil {
		return err
	}

	file := filepath.Join(_config.DataDir, config.DefaultConfigFile+".toml")

	if err := viper.WriteConfigAs(file); err != nil {
		return err
	}

	fmt.Println(file)

	return nil
}
