package coap

import (
	"context"

	"go.uber.org/zap"

	"github.com/pior/coap/message"
)

// exchange is the per-request state machine. Two states wait on the
// multiplex (the select over datagrams, timer and context): waitAck for
// the acknowledgement of a confirmable request, waitResponse for the
// response itself. Both terminate by returning the response or an error.
type exchange struct {
	client *Client
	req    *message.Message
	wire   []byte // serialized request, retained for retransmission

	retransmits int
}

// waitAck waits for the acknowledgement of a confirmable request,
// retransmitting with exponential backoff. It resolves piggy-backed
// responses directly and falls through to waitResponse after an empty ACK.
func (e *exchange) waitAck(ctx context.Context) (*message.Message, error) {
	c := e.client
	interval := c.initialAckInterval()
	c.timer.Arm(interval)
	c.logger.Debug("acknowledgement timer armed", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			return nil, &CancelledError{Err: ctx.Err()}

		case <-c.timer.Ready():
			if e.retransmits >= c.params.MaxRetransmit {
				c.stats.recordTimeout()
				c.logger.Info("no acknowledgement received",
					zap.String("peer", c.endpoint.RemoteAddr()),
					zap.Int("retransmits", e.retransmits))
				return nil, &TimeoutError{Phase: PhaseAcknowledgement, Retransmits: e.retransmits}
			}
			interval *= 2
			c.timer.Arm(interval)
			e.retransmits++
			c.stats.recordRetransmit()
			c.logger.Debug("retransmitting",
				zap.String("peer", c.endpoint.RemoteAddr()),
				zap.Int("attempt", e.retransmits),
				zap.Duration("next_interval", interval))
			if err := c.send(e.wire); err != nil {
				return nil, err
			}

		case d, ok := <-c.endpoint.Datagrams():
			resp, err := e.receive(d, ok)
			if err != nil {
				return nil, err
			}
			if resp == nil {
				continue
			}

			if resp.MessageID == e.req.MessageID {
				switch resp.Type {
				case message.Acknowledgement:
					if resp.IsEmpty() {
						// Separate response expected.
						c.logger.Info("acknowledgement received", zap.String("peer", c.endpoint.RemoteAddr()))
						return e.waitResponse(ctx)
					}
					if resp.TokenMatches(e.req) {
						c.logger.Info("piggy-backed response received",
							zap.String("peer", c.endpoint.RemoteAddr()),
							zap.Stringer("code", resp.Code))
						return resp, nil
					}
				case message.Reset:
					c.stats.recordPeerReset()
					c.logger.Info("reset received", zap.String("peer", c.endpoint.RemoteAddr()))
					return nil, &PeerResetError{MessageID: resp.MessageID}
				}
			} else if resp.TokenMatches(e.req) {
				// The datagram transport may reorder: a confirmable
				// response can overtake the acknowledgement. It also
				// terminates the retransmission sequence.
				switch resp.Type {
				case message.Confirmable:
					c.logger.Info("confirmable response received", zap.String("peer", c.endpoint.RemoteAddr()))
					if err := e.sendAck(resp); err != nil {
						return nil, err
					}
					return resp, nil
				case message.NonConfirmable:
					c.logger.Info("non-confirmable response received", zap.String("peer", c.endpoint.RemoteAddr()))
					return resp, nil
				}
			}

			if err := e.reject(resp); err != nil {
				return nil, err
			}
		}
	}
}

// waitResponse waits for a token-matching response: the whole exchange for
// a non-confirmable request, the separate-response phase for a confirmable
// one. The response timer is fixed, not jittered.
func (e *exchange) waitResponse(ctx context.Context) (*message.Message, error) {
	c := e.client
	c.timer.Arm(c.params.ResponseTimeout)
	c.logger.Debug("response timer armed", zap.Duration("interval", c.params.ResponseTimeout))

	for {
		select {
		case <-ctx.Done():
			return nil, &CancelledError{Err: ctx.Err()}

		case <-c.timer.Ready():
			c.stats.recordTimeout()
			c.logger.Info("no response received", zap.String("peer", c.endpoint.RemoteAddr()))
			return nil, &TimeoutError{Phase: PhaseResponse, Retransmits: e.retransmits}

		case d, ok := <-c.endpoint.Datagrams():
			resp, err := e.receive(d, ok)
			if err != nil {
				return nil, err
			}
			if resp == nil {
				continue
			}

			if resp.Type == message.Reset && resp.MessageID == e.req.MessageID {
				c.stats.recordPeerReset()
				c.logger.Info("reset received", zap.String("peer", c.endpoint.RemoteAddr()))
				return nil, &PeerResetError{MessageID: resp.MessageID}
			}
			if resp.TokenMatches(e.req) {
				switch resp.Type {
				case message.Confirmable:
					c.logger.Info("confirmable response received", zap.String("peer", c.endpoint.RemoteAddr()))
					if err := e.sendAck(resp); err != nil {
						return nil, err
					}
					return resp, nil
				case message.NonConfirmable:
					c.logger.Info("non-confirmable response received", zap.String("peer", c.endpoint.RemoteAddr()))
					return resp, nil
				}
			}

			if err := e.reject(resp); err != nil {
				return nil, err
			}
		}
	}
}

// receive turns one datagram into a parsed message. It returns (nil, nil)
// when the datagram was malformed and absorbed: format errors never fail
// the exchange, but a malformed confirmable datagram is answered with a
// RST built from its partially parsed header.
func (e *exchange) receive(d Datagram, ok bool) (*message.Message, error) {
	c := e.client
	if !ok {
		return nil, &TransportError{Op: "recv", Err: ErrClientClosed}
	}
	if d.Err != nil {
		return nil, &TransportError{Op: "recv", Err: d.Err}
	}
	c.stats.recordReceive()

	resp, err := message.Parse(d.Data)
	if err != nil {
		c.logger.Debug("dropping malformed datagram",
			zap.String("peer", c.endpoint.RemoteAddr()),
			zap.Error(err))
		e.handleFormatError(d.Data)
		return nil, nil
	}
	return resp, nil
}

// handleFormatError recovers the type and message-ID from a malformed
// datagram and resets it when it was confirmable. Malformed
// non-confirmable datagrams are dropped without a RST (RFC 7252 §4.2
// allows RST only in reply to CON). The RST send is best-effort.
func (e *exchange) handleFormatError(data []byte) {
	typ, messageID, err := message.ParseTypeAndMessageID(data)
	if err != nil || typ != message.Confirmable {
		return
	}
	if err := e.sendReset(messageID); err != nil {
		e.client.logger.Warn("failed to reset malformed message", zap.Error(err))
	}
}

// reject refuses a received message that does not belong to this exchange:
// confirmable messages are answered with a RST, everything else is logged
// and dropped. A failed RST send aborts the exchange.
func (e *exchange) reject(m *message.Message) error {
	c := e.client
	c.stats.recordReject()
	if m.Type != message.Confirmable {
		c.logger.Info("rejecting message",
			zap.String("peer", c.endpoint.RemoteAddr()),
			zap.Stringer("type", m.Type))
		return nil
	}
	c.logger.Info("rejecting confirmable message", zap.String("peer", c.endpoint.RemoteAddr()))
	return e.sendReset(m.MessageID)
}

// sendReset sends an empty RST carrying the given message-ID.
func (e *exchange) sendReset(messageID uint16) error {
	rst := &message.Message{
		Type:      message.Reset,
		Code:      message.CodeEmpty,
		MessageID: messageID,
	}
	return e.sendEmpty(rst)
}

// sendAck acknowledges a received confirmable response: empty ACK, copied
// message-ID, no token, no options, no payload.
func (e *exchange) sendAck(m *message.Message) error {
	e.client.logger.Info("acknowledging confirmable message", zap.String("peer", e.client.endpoint.RemoteAddr()))
	ack := &message.Message{
		Type:      message.Acknowledgement,
		Code:      message.CodeEmpty,
		MessageID: m.MessageID,
	}
	return e.sendEmpty(ack)
}

func (e *exchange) sendEmpty(m *message.Message) error {
	var buf [8]byte
	n, err := m.MarshalTo(buf[:])
	if err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	return e.client.send(buf[:n])
}
