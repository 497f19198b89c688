package coap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultSelector(t *testing.T) {
	// Deterministic and in range.
	for _, count := range []int{1, 2, 5, 16} {
		for _, key := range []string{"/", "/sensors/temp", "/actuators/led"} {
			index := DefaultSelector(key, count)
			assert.GreaterOrEqual(t, index, 0)
			assert.Less(t, index, count)
			assert.Equal(t, index, DefaultSelector(key, count))
		}
	}

	// Distinct keys spread over peers.
	seen := make(map[int]bool)
	keys := []string{"/a", "/b", "/c", "/d", "/e", "/f", "/g", "/h"}
	for _, key := range keys {
		seen[DefaultSelector(key, 4)] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestStaticSelector(t *testing.T) {
	selector := staticSelector(1)
	assert.Equal(t, 1, selector("anything", 3))
	assert.Equal(t, 1, selector("other", 2))
	assert.Equal(t, 0, selector("x", 1))
}

func TestPeersFromAddr(t *testing.T) {
	peers := PeersFromAddr("[::1]:5683", "[::1]:5684")
	assert.Equal(t, []string{"[::1]:5683", "[::1]:5684"}, peers.List())

	assert.Panics(t, func() { PeersFromAddr() })
}
