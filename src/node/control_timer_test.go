package node

import (
	"testing"
	"time"
)

// manualTimer fires only when told to.
type manualTimer struct {
	armed chan time.Duration
	fire  chan time.Time
}

func newManualTimer() *manualTimer {
	return &manualTimer{
		armed: make(chan time.Duration, 16),
		fire:  make(chan time.Time),
	}
}

func (m *manualTimer) factory(d time.Duration) <-chan time.Time {
	m.armed <- d
	return m.fire
}

func TestControlTimer(t *testing.T) {
	m := newManualTimer()
	timer := NewControlTimer(m.factory)
	go timer.Run(time.Second)
	defer timer.Shutdown()

	if d := <-m.armed; d != time.Second {
		t.Fatalf("timer should be armed with 1s, not %s", d)
	}

	m.fire <- time.Now()

	select {
	case <-timer.TickCh():
	case <-time.After(time.Second):
		t.Fatalf("timer should tick")
	}

	timer.Reset(2 * time.Second)
	if d := <-m.armed; d != 2*time.Second {
		t.Fatalf("timer should be armed with 2s, not %s", d)
	}

	timer.Stop()

	select {
	case m.fire <- time.Now():
		t.Fatalf("a stopped timer should not listen")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestJitterControlTimer(t *testing.T) {
	timer := NewControlTimer(JitterFactory)
	go timer.Run(5 * time.Millisecond)
	defer timer.Shutdown()

	start := time.Now()
	select {
	case <-timer.TickCh():
	case <-time.After(time.Second):
		t.Fatalf("timer should tick")
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Fatalf("timer fired too early")
	}
}

func TestJitterFactory(t *testing.T) {
	if JitterFactory(0) != nil {
		t.Fatalf("a zero duration should never fire")
	}

	start := time.Now()
	<-JitterFactory(5 * time.Millisecond)
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Fatalf("fired after %v, before the minimum", elapsed)
	}
}
