package coap

import "time"

// Transmission parameter defaults from RFC 7252 §4.8.
const (
	// DefaultAckTimeout is the minimum delay before retransmitting a
	// confirmable request.
	DefaultAckTimeout = 2 * time.Second

	// DefaultAckRandomFactor spreads the initial acknowledgement timeout
	// over [AckTimeout, AckTimeout*factor) so clients sharing a congested
	// path do not retransmit in lockstep.
	DefaultAckRandomFactor = 1.5

	// DefaultMaxRetransmit is the number of retransmissions after the
	// initial send of a confirmable request.
	DefaultMaxRetransmit = 4

	// DefaultResponseTimeout bounds the wait for a separate response, or
	// for any response to a non-confirmable request. Not randomized.
	DefaultResponseTimeout = 30 * time.Second
)

const (
	// MaxMessageSize is the datagram buffer size, per the RFC 7252 §4.6
	// guidance without block-wise transfer. Inbound datagrams larger than
	// this are truncated by the endpoint.
	MaxMessageSize = 1024

	// DefaultPort is the CoAP UDP port.
	DefaultPort = 5683

	// tokenLength is the number of random token bytes assigned to each
	// request.
	tokenLength = 4
)
