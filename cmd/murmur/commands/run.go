package commands

import (
	"strings"

	"github.com/mosaicnetworks/murmur/src/config"
	"github.com/mosaicnetworks/murmur/src/kv"
	"github.com/mosaicnetworks/murmur/src/murmur"
	"github.com/mosaicnetworks/murmur/src/txn"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables read for configuration, as in
// MURMUR_WORKLOAD=broadcast.
const EnvPrefix = "MURMUR"

//NewRunCmd returns the command that starts a Murmur node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runMurmur,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runMurmur(cmd *cobra.Command, args []string) error {
	engine := murmur.NewMurmur(_config)

	if err := engine.Init(); err != nil {
		_config.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	if err := engine.Run(); err != nil {
		_config.Logger().Error("Node stopped:", err)
		return err
	}

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {
	cmd.Flags().String("datadir", _config.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().StringP("workload", "w", _config.Workload, "echo, broadcast, g-set, g-counter, pn-counter, txn-list-append or lin-kv")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.LogFile, "Also write logs to this file")

	// Node
	cmd.Flags().Duration("rpc-timeout", _config.RPCTimeout, "Timeout of requests sent by the node")

	// Workloads
	cmd.Flags().Duration("resend-interval", _config.ResendInterval, "Time before an unacknowledged broadcast is sent again")
	cmd.Flags().Duration("replicate-interval", _config.ReplicateInterval, "Time between CRDT anti-entropy rounds")
	cmd.Flags().String("txn-strategy", _config.TxnStrategy, "How transactions are stored: document or per-key")
	cmd.Flags().Bool("txn-cache", _config.TxnCache, "Reuse the last written document instead of reading it")
	cmd.Flags().String("kv-service", _config.KVService, "Node id of the key-value service")

	// Store
	cmd.Flags().String("store-dir", _config.StoreDir, "Database directory of the lin-kv workload")

	// Service
	cmd.Flags().StringP("service-listen", "s", _config.ServiceAddr, "Listen IP:Port for HTTP service, disabled if empty")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --store-dir, this will update
	// the default store dir to be inside the new datadir
	_config.SetDataDir(_config.DataDir)

	logFields := logrus.Fields{
		"DataDir":           _config.DataDir,
		"Workload":          _config.Workload,
		"LogLevel":          _config.LogLevel,
		"LogFile":           _config.LogFile,
		"RPCTimeout":        _config.RPCTimeout,
		"ResendInterval":    _config.ResendInterval,
		"ReplicateInterval": _config.ReplicateInterval,
		"ServiceAddr":       _config.ServiceAddr,
	}

	switch _config.Workload {
	case txn.Name:
		logFields["TxnStrategy"] = _config.TxnStrategy
		logFields["TxnCache"] = _config.TxnCache
		logFields["KVService"] = _config.KVService
	case kv.DefaultService:
		logFields["StoreDir"] = _config.StoreDir
	}

	if file := viper.ConfigFileUsed(); file != "" {
		logFields["ConfigFile"] = file
	}

	_config.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags, the environment, and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// first unmarshal to read from CLI flags and environment
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/murmur.toml (.json, .yaml also work)
	viper.SetConfigName(config.DefaultConfigFile) // name of config file (without extension)
	viper.AddConfigPath(_config.DataDir)          // search root directory

	// If a config file is found, read it in. The logger is not created until
	// the config is complete.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
