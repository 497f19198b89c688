package coap

import (
	"io"
	"net"
	"sync"
)

// Datagram is one inbound datagram, or a terminal transport error when Err
// is set. After an error datagram the endpoint delivers nothing further.
type Datagram struct {
	Data []byte
	Err  error
}

// Endpoint is a connected datagram peer.
//
// Send transmits one whole datagram; short writes are an error. The
// Datagrams channel is both the readiness signal and the receive path: it
// is ready exactly when a datagram (or a terminal error) is available,
// which lets the exchange engine multiplex it against the retransmission
// timer and the caller's context in a single select. Datagrams larger than
// MaxMessageSize arrive truncated and are treated as whole messages.
type Endpoint interface {
	Send(p []byte) error
	Datagrams() <-chan Datagram
	RemoteAddr() string
	Close() error
}

// datagramBacklog bounds the inbound queue. A client runs one exchange at
// a time; anything beyond a small burst of reordered or duplicated
// datagrams is better dropped by the kernel than buffered here.
const datagramBacklog = 8

// UDPEndpoint is the production Endpoint: a connected UDP socket. IPv6
// literals ("[::1]:5683") are the reference configuration; hostnames and
// IPv4 work through the same code path.
type UDPEndpoint struct {
	conn      *net.UDPConn
	remote    string
	datagrams chan Datagram
	closed    chan struct{}
	closeOnce sync.Once
}

// DialUDP connects to the peer at addr ("host:port").
func DialUDP(addr string) (*UDPEndpoint, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, err
	}
	e := &UDPEndpoint{
		conn:      conn,
		remote:    conn.RemoteAddr().String(),
		datagrams: make(chan Datagram, datagramBacklog),
		closed:    make(chan struct{}),
	}
	go e.readLoop()
	return e, nil
}

// readLoop pumps the socket into the datagram channel. One allocation per
// datagram keeps parsed messages valid after the next receive.
func (e *UDPEndpoint) readLoop() {
	for {
		buf := make([]byte, MaxMessageSize)
		n, err := e.conn.Read(buf)
		if err != nil {
			// Deliver the terminal error, then close the channel so a
			// waiting exchange observes the end of the stream.
			select {
			case e.datagrams <- Datagram{Err: err}:
			default:
			}
			close(e.datagrams)
			return
		}
		select {
		case e.datagrams <- Datagram{Data: buf[:n]}:
		case <-e.closed:
			return
		}
	}
}

// Send transmits one datagram. The whole buffer must go out in a single
// write.
func (e *UDPEndpoint) Send(p []byte) error {
	n, err := e.conn.Write(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return io.ErrShortWrite
	}
	return nil
}

func (e *UDPEndpoint) Datagrams() <-chan Datagram {
	return e.datagrams
}

func (e *UDPEndpoint) RemoteAddr() string {
	return e.remote
}

// Close releases the socket. Safe to call more than once.
func (e *UDPEndpoint) Close() error {
	var err error
	e.closeOnce.Do(func() {
		close(e.closed)
		err = e.conn.Close()
	})
	return err
}
