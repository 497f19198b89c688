package coap

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/puddle/v2"
	"github.com/sony/gobreaker/v2"

	"github.com/pior/coap/message"
)

var ErrPoolClosed = errors.New("coap: pool closed")

const defaultMaxClientsPerPeer = 4

// PoolConfig configures a Pool.
type PoolConfig struct {
	// MaxClientsPerPeer is the maximum number of clients (and therefore
	// concurrent exchanges) per peer. Zero means a small default.
	MaxClientsPerPeer int32

	// Selector picks which peer handles a request. If nil, uses
	// DefaultSelector (xxh3 + jump hash over the request path).
	Selector Selector

	// Client is the configuration applied to every pooled client.
	Client Config

	// NewBreaker creates a circuit breaker for a peer. Called once per
	// peer address when its pool is created. If nil, no breaker is used.
	NewBreaker func(peerAddr string) *gobreaker.CircuitBreaker[*message.Message]

	// for testing purposes only
	dial func(ctx context.Context, addr string) (*Client, error)
}

// peerPool wraps one peer's client pool with its breaker.
type peerPool struct {
	addr    string
	pool    *puddle.Pool[*Client]
	breaker *gobreaker.CircuitBreaker[*message.Message] // nil if not configured
}

// Pool distributes exchanges over a set of peers, keeping a pool of
// clients per peer. A Client runs one exchange at a time, so pooled
// clients are how concurrent exchanges are expressed; per-peer pools are
// created lazily on first use.
type Pool struct {
	peers    Peers
	selector Selector

	mu    sync.RWMutex
	pools map[string]*peerPool

	maxClients int32
	newBreaker func(string) *gobreaker.CircuitBreaker[*message.Message]
	dial       func(ctx context.Context, addr string) (*Client, error)

	closed bool
}

// NewPool creates a pool over the given peers.
func NewPool(peers Peers, config PoolConfig) (*Pool, error) {
	if len(peers.List()) == 0 {
		return nil, ErrNoPeers
	}

	selector := config.Selector
	if selector == nil {
		selector = DefaultSelector
	}
	maxClients := config.MaxClientsPerPeer
	if maxClients <= 0 {
		maxClients = defaultMaxClientsPerPeer
	}
	dial := config.dial
	if dial == nil {
		clientConfig := config.Client
		dial = func(_ context.Context, addr string) (*Client, error) {
			return Dial(addr, clientConfig)
		}
	}

	return &Pool{
		peers:      peers,
		selector:   selector,
		pools:      make(map[string]*peerPool),
		maxClients: maxClients,
		newBreaker: config.NewBreaker,
		dial:       dial,
	}, nil
}

// Exchange routes the request to a peer chosen by its path and performs
// the exchange on a pooled client.
func (p *Pool) Exchange(ctx context.Context, req *message.Message) (*message.Message, error) {
	addrs := p.peers.List()
	if len(addrs) == 0 {
		return nil, ErrNoPeers
	}
	addr := addrs[p.selector(req.Options().Path(), len(addrs))]

	pp, err := p.getOrCreatePool(addr)
	if err != nil {
		return nil, err
	}

	if pp.breaker != nil {
		return pp.breaker.Execute(func() (*message.Message, error) {
			return p.exchange(ctx, pp, req)
		})
	}
	return p.exchange(ctx, pp, req)
}

// exchange acquires a client, runs the exchange, and releases the client.
// Transport failures destroy the client so the next acquire reconnects.
func (p *Pool) exchange(ctx context.Context, pp *peerPool, req *message.Message) (*message.Message, error) {
	resource, err := pp.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := resource.Value().Exchange(ctx, req)
	if err != nil {
		var transportErr *TransportError
		if errors.As(err, &transportErr) {
			resource.Destroy()
		} else {
			resource.Release()
		}
		return nil, err
	}

	resource.Release()
	return resp, nil
}

// getOrCreatePool gets or creates the pool for the given peer address.
func (p *Pool) getOrCreatePool(addr string) (*peerPool, error) {
	// Fast path: read lock
	p.mu.RLock()
	pp, exists := p.pools[addr]
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, ErrPoolClosed
	}
	if exists {
		return pp, nil
	}

	// Slow path: write lock and create
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}
	if pp, exists := p.pools[addr]; exists {
		return pp, nil
	}

	peerAddr := addr
	pool, err := puddle.NewPool(&puddle.Config[*Client]{
		Constructor: func(ctx context.Context) (*Client, error) {
			return p.dial(ctx, peerAddr)
		},
		Destructor: func(c *Client) {
			_ = c.Close()
		},
		MaxSize: p.maxClients,
	})
	if err != nil {
		return nil, err
	}

	pp = &peerPool{addr: addr, pool: pool}
	if p.newBreaker != nil {
		pp.breaker = p.newBreaker(addr)
	}
	p.pools[addr] = pp
	return pp, nil
}

// Close closes every per-peer pool and its clients.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true

	for _, pp := range p.pools {
		pp.pool.Close()
	}
}
