package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/mosaicnetworks/murmur/src/common"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database of the lin-kv service
	DefaultBadgerFile = "badger_db"

	// DefaultConfigFile is the name, without extension, of the optional
	// configuration file in the data directory
	DefaultConfigFile = "murmur"
)

// Default configuration values.
const (
	DefaultWorkload          = "echo"
	DefaultLogLevel          = "info"
	DefaultLogFile           = ""
	DefaultResendInterval    = 500 * time.Millisecond
	DefaultReplicateInterval = 2 * time.Second
	DefaultRPCTimeout        = 500 * time.Millisecond
	DefaultTxnStrategy       = "document"
	DefaultTxnCache          = false
	DefaultKVService         = "lin-kv"
	DefaultServiceAddr       = ""
)

// Config contains all the configuration properties of a Murmur node.
type Config struct {
	// DataDir is the top-level directory containing the configuration file
	// and data
	DataDir string `mapstructure:"datadir"`

	// Workload selects what the node does with client requests: echo,
	// broadcast, g-set, g-counter, pn-counter, txn-list-append, or lin-kv to
	// serve the key-value store itself.
	Workload string `mapstructure:"workload"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, receives a copy of the logs.
	LogFile string `mapstructure:"log-file"`

	// ResendInterval is how long a broadcast waits for an acknowledgement
	// before sending the message to a neighbor again.
	ResendInterval time.Duration `mapstructure:"resend-interval"`

	// ReplicateInterval is the period of CRDT anti-entropy.
	ReplicateInterval time.Duration `mapstructure:"replicate-interval"`

	// RPCTimeout bounds how long a node waits for the reply to one of its own
	// requests.
	RPCTimeout time.Duration `mapstructure:"rpc-timeout"`

	// TxnStrategy is how transactions are laid out in the key-value service:
	// "document" or "per-key".
	TxnStrategy string `mapstructure:"txn-strategy"`

	// TxnCache lets the document strategy reuse the last document it wrote
	// instead of reading it back.
	TxnCache bool `mapstructure:"txn-cache"`

	// KVService is the node id of the key-value service.
	KVService string `mapstructure:"kv-service"`

	// StoreDir is the directory of the badger database when the node serves
	// lin-kv.
	StoreDir string `mapstructure:"store-dir"`

	// ServiceAddr is the address:port of the optional HTTP service. It is
	// disabled when empty, since many nodes usually share a host.
	ServiceAddr string `mapstructure:"service-listen"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:           DefaultDataDir(),
		Workload:          DefaultWorkload,
		LogLevel:          DefaultLogLevel,
		LogFile:           DefaultLogFile,
		ResendInterval:    DefaultResendInterval,
		ReplicateInterval: DefaultReplicateInterval,
		RPCTimeout:        DefaultRPCTimeout,
		TxnStrategy:       DefaultTxnStrategy,
		TxnCache:          DefaultTxnCache,
		KVService:         DefaultKVService,
		StoreDir:          DefaultStoreDir(),
		ServiceAddr:       DefaultServiceAddr,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.DataDir = t.TempDir()
	config.StoreDir = filepath.Join(config.DataDir, DefaultBadgerFile)
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level directory, and updates the store directory if
// it is currently set to the default value. If the store directory is not
// the default, the user has explicitely set it, so leave it alone.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.StoreDir == DefaultStoreDir() {
		c.StoreDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// Logger returns a formatted logrus Entry, with prefix set to "murmur". Logs
// go to stderr because stdout carries the protocol.
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Out = os.Stderr
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			c.logger.Hooks.Add(lfshook.NewHook(
				c.LogFile,
				&logrus.JSONFormatter{},
			))
		}
	}
	return c.logger.WithField("prefix", "murmur")
}

// BaseLogger returns the logger behind Logger.
func (c *Config) BaseLogger() *logrus.Logger {
	c.Logger()
	return c.logger
}

// DefaultStoreDir returns the default path for the badger database files.
func DefaultStoreDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level Murmur
// config based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Murmur")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Murmur")
		} else {
			return filepath.Join(home, ".murmur")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
