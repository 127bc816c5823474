package node

import (
	"testing"
	"time"

	"github.com/mosaicnetworks/murmur/src/common"
	"github.com/sirupsen/logrus"
)

// DefaultRPCTimeout bounds how long Call waits for a correlated response.
const DefaultRPCTimeout = 500 * time.Millisecond

// Config contains the settings of the dispatch loop.
type Config struct {
	RPCTimeout time.Duration `mapstructure:"rpc-timeout"`
	Logger     *logrus.Logger
}

// NewConfig ...
func NewConfig(rpcTimeout time.Duration, logger *logrus.Logger) *Config {
	return &Config{
		RPCTimeout: rpcTimeout,
		Logger:     logger,
	}
}

// DefaultConfig ...
func DefaultConfig() *Config {
	logger := logrus.New()
	logger.Level = logrus.DebugLevel

	return &Config{
		RPCTimeout: DefaultRPCTimeout,
		Logger:     logger,
	}
}

// TestConfig returns a default configuration logging through t.
func TestConfig(t testing.TB) *Config {
	config := DefaultConfig()
	config.Logger = common.NewTestLogger(t, common.TestLogLevel)
	return config
}
