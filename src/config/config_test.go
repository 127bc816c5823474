package config

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestSetDataDir(t *testing.T) {
	conf := NewDefaultConfig()
	conf.SetDataDir("/tmp/murmur")

	if expected := filepath.Join("/tmp/murmur", DefaultBadgerFile); conf.StoreDir != expected {
		t.Fatalf("StoreDir should be %s, not %s", expected, conf.StoreDir)
	}

	conf.StoreDir = "/var/lib/kv"
	conf.SetDataDir("/tmp/other")
	if conf.StoreDir != "/var/lib/kv" {
		t.Fatalf("an explicit StoreDir should be kept, got %s", conf.StoreDir)
	}
}

func TestLogLevel(t *testing.T) {
	levels := map[string]logrus.Level{
		"debug": logrus.DebugLevel,
		"info":  logrus.InfoLevel,
		"warn":  logrus.WarnLevel,
		"error": logrus.ErrorLevel,
		"bogus": logrus.DebugLevel,
	}
	for s, l := range levels {
		if LogLevel(s) != l {
			t.Fatalf("%s should parse to %v, not %v", s, l, LogLevel(s))
		}
	}
}

func TestLogger_File(t *testing.T) {
	conf := NewDefaultConfig()
	conf.LogLevel = "warn"
	conf.LogFile = filepath.Join(t.TempDir(), "murmur.log")

	logger := conf.BaseLogger()
	if logger.Level != logrus.WarnLevel {
		t.Fatalf("level should be warn, not %v", logger.Level)
	}
	if len(logger.Hooks[logrus.WarnLevel]) != 1 {
		t.Fatalf("the log file hook should be installed")
	}

	if conf.Logger().Data["prefix"] != "murmur" {
		t.Fatalf("entries should carry the murmur prefix")
	}
}
