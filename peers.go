package coap

import "errors"

var ErrNoPeers = errors.New("coap: no peers available")

// Peers supplies the set of peer addresses a Pool distributes exchanges
// over. Implementations may be static or backed by discovery.
type Peers interface {
	List() []string
}

type staticPeers struct {
	addresses []string
}

// PeersFromAddr builds a static peer set.
func PeersFromAddr(addresses ...string) Peers {
	if len(addresses) == 0 {
		panic("PeersFromAddr requires at least one address")
	}
	return &staticPeers{addresses: addresses}
}

func (p *staticPeers) List() []string {
	return p.addresses
}
