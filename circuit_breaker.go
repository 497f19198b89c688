package coap

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/pior/coap/message"
)

// NewBreakerFactory returns a function that creates circuit breakers for
// peers, for use as PoolConfig.NewBreaker.
//
// The trip policy follows the transmission parameters rather than a
// generic failure ratio. A confirmable exchange only fails with Timeout
// after the full retransmission schedule (1+MAX_RETRANSMIT sends spread
// over roughly 45 s of backoff at the RFC defaults), so every counted
// failure is already a sustained probe of the peer: two in a row are
// enough to declare it unreachable. Once open, further exchanges fail
// fast with gobreaker.ErrOpenState instead of burning another schedule.
//
// Only unreachability counts. A RST (PeerResetError) is the peer speaking,
// and InvalidArgument or a cancelled context say nothing about the peer at
// all; none of them trip the breaker.
func NewBreakerFactory(maxRequests uint32, interval, timeout time.Duration) func(string) *gobreaker.CircuitBreaker[*message.Message] {
	return func(peerAddr string) *gobreaker.CircuitBreaker[*message.Message] {
		settings := gobreaker.Settings{
			Name:        peerAddr,
			MaxRequests: maxRequests,
			Interval:    interval,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 2
			},
			IsSuccessful: isPeerReachable,
		}
		return gobreaker.NewCircuitBreaker[*message.Message](settings)
	}
}

// isPeerReachable classifies an exchange error for the breaker: transport
// failures and timeouts mean the peer is unreachable, everything else
// (including a RST) means it answered.
func isPeerReachable(err error) bool {
	if err == nil {
		return true
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return false
	}
	return !IsTimeout(err)
}
