package coap

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/pior/coap/message"
)

// waitTimeout bounds real-time waits in tests; everything protocol-timed
// runs on the fake clock and resolves far faster than this.
const waitTimeout = 5 * time.Second

// fakeEndpoint is a scriptable in-memory peer. Tests deliver inbound
// datagrams on the channel and observe outbound ones on sends; an optional
// respond hook turns it into an auto-answering server for pool tests.
type fakeEndpoint struct {
	in    chan Datagram
	sends chan []byte

	mu      sync.Mutex
	sendErr error
	respond func(req *message.Message) []*message.Message
	closed  bool
}

func newFakeEndpoint() *fakeEndpoint {
	return &fakeEndpoint{
		in:    make(chan Datagram, 16),
		sends: make(chan []byte, 64),
	}
}

func (f *fakeEndpoint) Send(p []byte) error {
	f.mu.Lock()
	sendErr := f.sendErr
	respond := f.respond
	f.mu.Unlock()

	if sendErr != nil {
		return sendErr
	}
	data := append([]byte(nil), p...)
	f.sends <- data

	if respond != nil {
		if req, err := message.Parse(data); err == nil {
			for _, m := range respond(req) {
				wire, err := m.Marshal()
				if err == nil {
					f.in <- Datagram{Data: wire}
				}
			}
		}
	}
	return nil
}

func (f *fakeEndpoint) Datagrams() <-chan Datagram {
	return f.in
}

func (f *fakeEndpoint) RemoteAddr() string {
	return "fake-peer:5683"
}

func (f *fakeEndpoint) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeEndpoint) setSendErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendErr = err
}

func (f *fakeEndpoint) deliver(t *testing.T, m *message.Message) {
	t.Helper()
	wire, err := m.Marshal()
	require.NoError(t, err)
	f.in <- Datagram{Data: wire}
}

func (f *fakeEndpoint) deliverRaw(data []byte) {
	f.in <- Datagram{Data: data}
}

func (f *fakeEndpoint) deliverErr(err error) {
	f.in <- Datagram{Err: err}
}

// takeSent returns the next outbound datagram, parsed.
func (f *fakeEndpoint) takeSent(t *testing.T) *message.Message {
	t.Helper()
	select {
	case data := <-f.sends:
		m, err := message.Parse(data)
		require.NoError(t, err)
		return m
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for an outbound datagram")
		return nil
	}
}

// assertNoSend checks that nothing goes out within a short grace period.
func (f *fakeEndpoint) assertNoSend(t *testing.T) {
	t.Helper()
	select {
	case data := <-f.sends:
		t.Fatalf("unexpected outbound datagram: %x", data)
	case <-time.After(50 * time.Millisecond):
	}
}

// newTestClient wires a client to a fake endpoint, a fake clock and a
// seeded random source.
func newTestClient(t *testing.T) (*Client, *fakeEndpoint, *clockwork.FakeClock) {
	t.Helper()
	fc := clockwork.NewFakeClock()
	ep := newFakeEndpoint()
	client, err := NewClientWithEndpoint(ep, Config{
		Clock: fc,
		rand:  newRandSource(1),
	})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, ep, fc
}

type exchangeResult struct {
	resp *message.Message
	err  error
}

// startExchange runs Exchange in a goroutine; the result arrives on the
// returned channel.
func startExchange(ctx context.Context, c *Client, req *message.Message) <-chan exchangeResult {
	ch := make(chan exchangeResult, 1)
	go func() {
		resp, err := c.Exchange(ctx, req)
		ch <- exchangeResult{resp: resp, err: err}
	}()
	return ch
}

func awaitResult(t *testing.T, ch <-chan exchangeResult) exchangeResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for the exchange to finish")
		return exchangeResult{}
	}
}

// pendingResult checks that the exchange has not finished yet.
func pendingResult(t *testing.T, ch <-chan exchangeResult) {
	t.Helper()
	select {
	case r := <-ch:
		t.Fatalf("exchange finished early: resp=%v err=%v", r.resp, r.err)
	case <-time.After(50 * time.Millisecond):
	}
}

// piggybackResponder answers every request with a piggy-backed ACK.
func piggybackResponder(code message.Code, payload []byte) func(*message.Message) []*message.Message {
	return func(req *message.Message) []*message.Message {
		resp := &message.Message{
			Type:      message.Acknowledgement,
			Code:      code,
			MessageID: req.MessageID,
		}
		if err := resp.SetToken(req.Token()); err != nil {
			return nil
		}
		resp.SetPayload(payload)
		return []*message.Message{resp}
	}
}
