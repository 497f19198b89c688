package coap

import (
	"github.com/zeebo/xxh3"

	"github.com/pior/coap/internal"
)

// Selector picks a peer index for a request key (its URI path).
type Selector func(key string, peerCount int) int

// DefaultSelector uses Jump Hash over an xxh3 digest for consistent peer
// selection: good distribution and few key movements when peers are added
// or removed.
func DefaultSelector(key string, peerCount int) int {
	return internal.JumpHash(xxh3.HashString(key), peerCount)
}

// staticSelector is used in tests to always select a specific peer.
func staticSelector(index int) Selector {
	return func(key string, peerCount int) int {
		return index % peerCount
	}
}
