// Package coap implements a client-side CoAP engine over an unreliable
// datagram transport: the RFC 7252 message codec (package message) and the
// request/response exchange state machine with retransmission, separate
// responses and reset handling.
package coap

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/pior/coap/message"
)

// Client is a CoAP client bound to a single peer. It owns one endpoint and
// one timer, multiplexed by the exchange loop.
//
// A client runs one exchange at a time; concurrent Exchange calls are
// serialized. Use a Pool for concurrent exchanges.
type Client struct {
	endpoint Endpoint
	timer    *timer
	rand     *randSource
	logger   *zap.Logger
	params   TransmissionParameters
	stats    *statsCollector

	exchangeMu sync.Mutex // a client runs one exchange at a time
	mu         sync.Mutex // guards closed
	closed     bool
	sendBuf    [MaxMessageSize]byte
}

// Dial connects to the peer at addr ("[::1]:5683") over UDP.
func Dial(addr string, config Config) (*Client, error) {
	endpoint, err := DialUDP(addr)
	if err != nil {
		return nil, err
	}
	client, err := NewClientWithEndpoint(endpoint, config)
	if err != nil {
		endpoint.Close()
		return nil, err
	}
	return client, nil
}

// NewClientWithEndpoint builds a client over a caller-supplied endpoint.
// This is the seam for alternative transports (DTLS, in-memory test
// peers): anything satisfying the Endpoint contract works. The client
// takes ownership of the endpoint and closes it with Close.
func NewClientWithEndpoint(endpoint Endpoint, config Config) (*Client, error) {
	params := config.Parameters.withDefaults()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	clock := config.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rnd := config.rand
	if rnd == nil {
		rnd = newRandSource(clock.Now().UnixNano())
	}

	c := &Client{
		endpoint: endpoint,
		timer:    newTimer(clock),
		rand:     rnd,
		logger:   logger,
		params:   params,
		stats:    newStatsCollector(),
	}
	c.logger.Info("connected", zap.String("peer", endpoint.RemoteAddr()))
	return c, nil
}

// Close releases the endpoint. An in-flight exchange fails with a
// transport error once the endpoint reports the closed socket.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	return c.endpoint.Close()
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// RemoteAddr returns the peer address.
func (c *Client) RemoteAddr() string {
	return c.endpoint.RemoteAddr()
}

// Stats returns a snapshot of exchange statistics.
func (c *Client) Stats() Stats {
	return c.stats.snapshot()
}

// Exchange sends the request and blocks until a response arrives, the
// exchange fails, or ctx is cancelled.
//
// The request must be confirmable or non-confirmable and carry a request
// method code; Exchange assigns the message-ID and token, overwriting any
// prior values. Confirmable requests are retransmitted with exponential
// backoff until acknowledged; after an empty ACK the engine keeps waiting
// for the separate response. The returned message is the token-matching
// response, which may carry any response code.
func (c *Client) Exchange(ctx context.Context, req *message.Message) (*message.Message, error) {
	c.exchangeMu.Lock()
	defer c.exchangeMu.Unlock()
	if c.isClosed() {
		return nil, ErrClientClosed
	}

	if req.Type != message.Confirmable && req.Type != message.NonConfirmable {
		return nil, &InvalidArgumentError{Message: "request type must be CON or NON"}
	}
	if !req.Code.IsRequest() {
		return nil, &InvalidArgumentError{Message: "request code must be a request method"}
	}

	req.MessageID = c.rand.messageID()
	if err := req.SetToken(c.rand.token()); err != nil {
		return nil, &InvalidArgumentError{Message: "assigning token", Err: err}
	}

	n, err := req.MarshalTo(c.sendBuf[:])
	if err != nil {
		return nil, &InvalidArgumentError{Message: "serializing request", Err: err}
	}
	wire := c.sendBuf[:n]

	c.stats.recordExchange()
	c.logger.Info("sending request",
		zap.String("peer", c.endpoint.RemoteAddr()),
		zap.Stringer("type", req.Type),
		zap.Stringer("code", req.Code),
		zap.Uint16("message_id", req.MessageID))

	if err := c.send(wire); err != nil {
		return nil, err
	}

	ex := &exchange{client: c, req: req, wire: wire}
	if req.Type == message.Confirmable {
		return ex.waitAck(ctx)
	}
	return ex.waitResponse(ctx)
}

// Get performs a confirmable GET exchange for path.
func (c *Client) Get(ctx context.Context, path string) (*message.Message, error) {
	req, err := NewGetRequest(path)
	if err != nil {
		return nil, err
	}
	return c.Exchange(ctx, req)
}

// Post performs a confirmable POST exchange for path with the given
// payload.
func (c *Client) Post(ctx context.Context, path string, payload []byte) (*message.Message, error) {
	req, err := NewPostRequest(path, payload)
	if err != nil {
		return nil, err
	}
	return c.Exchange(ctx, req)
}

// Put performs a confirmable PUT exchange for path with the given payload.
func (c *Client) Put(ctx context.Context, path string, payload []byte) (*message.Message, error) {
	req, err := NewPutRequest(path, payload)
	if err != nil {
		return nil, err
	}
	return c.Exchange(ctx, req)
}

// Delete performs a confirmable DELETE exchange for path.
func (c *Client) Delete(ctx context.Context, path string) (*message.Message, error) {
	req, err := NewDeleteRequest(path)
	if err != nil {
		return nil, err
	}
	return c.Exchange(ctx, req)
}

// send transmits one datagram, wrapping endpoint failures.
func (c *Client) send(p []byte) error {
	if err := c.endpoint.Send(p); err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	c.stats.recordSend()
	return nil
}

// initialAckInterval draws the jittered initial retransmission interval,
// uniform over [AckTimeout, AckTimeout*AckRandomFactor) with millisecond
// granularity. The draw happens once per exchange; doubling preserves it.
func (c *Client) initialAckInterval() time.Duration {
	base := c.params.AckTimeout
	spreadMS := int64(float64(base) * (c.params.AckRandomFactor - 1.0) / float64(time.Millisecond))
	if spreadMS <= 0 {
		return base
	}
	return base + time.Duration(c.rand.int63n(spreadMS))*time.Millisecond
}
