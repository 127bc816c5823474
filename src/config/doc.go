// Package config defines the configuration for a Murmur node.
//
// Regardless of how a node is started, directly from Go code or as a
// standalone process launched by the test harness, it uses the Config object
// defined in this package to store and forward configuration options. The
// harness starts nodes without arguments, so the command line also reads
// options from MURMUR_* environment variables and from an optional
// configuration file in Config.DataDir:
//
//	murmur.toml // (optional, .json and .yaml also work) configuration values.
//	badger_db/  // the lin-kv database, when the node serves the key-value store.
package config
