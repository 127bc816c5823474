package common

import (
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
)

// TestLogLevel is the level used by tests that do not need a specific one.
const TestLogLevel = logrus.DebugLevel

// This can be used as the destination for a logger and it'll
// map them into calls to testing.T.Log, so that you only see
// the logging for failed tests. Background routines may still log while a
// test is being torn down; those lines are dropped once the test is done.
type testLoggerAdapter struct {
	t      testing.TB
	prefix string
	done   int32
}

func (a *testLoggerAdapter) Write(d []byte) (int, error) {
	if atomic.LoadInt32(&a.done) == 1 {
		return len(d), nil
	}
	if len(d) > 0 && d[len(d)-1] == '\n' {
		d = d[:len(d)-1]
	}
	if a.prefix != "" {
		l := a.prefix + ": " + string(d)
		a.t.Log(l)
		return len(l), nil
	}
	a.t.Log(string(d))
	return len(d), nil
}

// NewTestLogger returns a logger that writes through t.Log.
func NewTestLogger(t testing.TB, level logrus.Level) *logrus.Logger {
	adapter := &testLoggerAdapter{t: t}
	t.Cleanup(func() { atomic.StoreInt32(&adapter.done, 1) })

	logger := logrus.New()
	logger.Out = adapter
	logger.Level = level
	return logger
}

// NewTestEntry returns a logrus Entry for testing, tagged with the test name.
func NewTestEntry(t testing.TB, level logrus.Level) *logrus.Entry {
	return NewTestLogger(t, level).WithField("test", t.Name())
}

// SkipBadgerUnderRace skips tests that open a badger database when the race
// detector is on. -race enables checkptr, which badger v1.6.0 fails inside its
// own unsafe code.
func SkipBadgerUnderRace(t testing.TB) {
	if RaceEnabled {
		t.Skip("badger v1.6.0 fails checkptr under -race")
	}
}
