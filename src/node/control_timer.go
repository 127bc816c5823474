package node

import (
	"math/rand"
	"time"
)

// TimerFactory produces the channel a timer fires on. Tests substitute their
// own to control time.
type TimerFactory func(time.Duration) <-chan time.Time

// AfterFactory is the TimerFactory backed by the system clock.
func AfterFactory(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// JitterFactory fires somewhere between d and 2d, so that nodes started
// together do not fire in lockstep.
func JitterFactory(d time.Duration) <-chan time.Time {
	if d <= 0 {
		return nil
	}
	extra := time.Duration(rand.Int63()) % d
	return time.After(d + extra)
}

// ControlTimer drives periodic background work. It signals on TickCh when the
// timer fires; it must be Reset to fire again.
type ControlTimer struct {
	timerFactory TimerFactory
	tickCh       chan struct{}      //sends a signal to listening process
	resetCh      chan time.Duration //receives instruction to reset the timer
	stopCh       chan struct{}      //receives instruction to stop the timer
	shutdownCh   chan struct{}      //receives instruction to exit Run loop
}

// NewControlTimer ...
func NewControlTimer(timerFactory TimerFactory) *ControlTimer {
	return &ControlTimer{
		timerFactory: timerFactory,
		tickCh:       make(chan struct{}),
		resetCh:      make(chan time.Duration),
		stopCh:       make(chan struct{}),
		shutdownCh:   make(chan struct{}),
	}
}

// Run arms the timer with init and serves resets until Shutdown.
func (c *ControlTimer) Run(init time.Duration) {
	timer := c.timerFactory(init)
	for {
		select {
		case <-timer:
			timer = nil
			select {
			case c.tickCh <- struct{}{}:
			case <-c.shutdownCh:
				return
			}
		case t := <-c.resetCh:
			timer = c.timerFactory(t)
		case <-c.stopCh:
			timer = nil
		case <-c.shutdownCh:
			return
		}
	}
}

// TickCh signals every time the timer fires.
func (c *ControlTimer) TickCh() <-chan struct{} {
	return c.tickCh
}

// Reset arms the timer to fire after d.
func (c *ControlTimer) Reset(d time.Duration) {
	select {
	case c.resetCh <- d:
	case <-c.shutdownCh:
	}
}

// Stop disarms the timer.
func (c *ControlTimer) Stop() {
	select {
	case c.stopCh <- struct{}{}:
	case <-c.shutdownCh:
	}
}

// Shutdown exits the Run loop.
func (c *ControlTimer) Shutdown() {
	close(c.shutdownCh)
}
