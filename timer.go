package coap

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// timer is a one-shot resettable deadline. Its readiness channel is one of
// the inputs to the exchange select loop, next to the endpoint's datagram
// channel and the caller's context.
//
// The timer is built on a clockwork.Clock so the retransmission schedule
// can be driven by a fake clock in tests.
type timer struct {
	clock clockwork.Clock
	inner clockwork.Timer
}

func newTimer(clock clockwork.Clock) *timer {
	return &timer{clock: clock}
}

// Arm sets the deadline to now + d, replacing any prior deadline and
// draining a pending expiry.
func (t *timer) Arm(d time.Duration) {
	if t.inner == nil {
		t.inner = t.clock.NewTimer(d)
		return
	}
	if !t.inner.Stop() {
		t.Acknowledge()
	}
	t.inner.Reset(d)
}

// Ready returns the readiness channel. It delivers once per armed
// deadline; before the first Arm it is nil and never ready.
func (t *timer) Ready() <-chan time.Time {
	if t.inner == nil {
		return nil
	}
	return t.inner.Chan()
}

// Acknowledge drains a pending expiry without blocking.
func (t *timer) Acknowledge() {
	if t.inner == nil {
		return
	}
	select {
	case <-t.inner.Chan():
	default:
	}
}

// Stop cancels the deadline and drains any pending expiry.
func (t *timer) Stop() {
	if t.inner == nil {
		return
	}
	if !t.inner.Stop() {
		t.Acknowledge()
	}
}
