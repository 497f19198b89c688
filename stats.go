package coap

import "sync/atomic"

// Stats contains counters for client operations. All fields are safe for
// concurrent access.
//
// For Prometheus integration, expose Exchanges, Sends, Receives,
// Retransmits, Timeouts, PeerResets and Rejected as counters.
type Stats struct {
	Exchanges   uint64 // exchanges started
	Sends       uint64 // datagrams sent, including retransmissions and RST/ACK
	Receives    uint64 // datagrams received, including malformed ones
	Retransmits uint64 // confirmable request retransmissions
	Timeouts    uint64 // exchanges failed by timer expiry
	PeerResets  uint64 // RSTs matching our request
	Rejected    uint64 // parsed inbound messages rejected or dropped; malformed datagrams are not counted
}

// statsCollector provides internal methods for updating stats.
// Not exported - the client updates its own stats.
type statsCollector struct {
	stats *Stats
}

func newStatsCollector() *statsCollector {
	return &statsCollector{stats: &Stats{}}
}

func (c *statsCollector) recordExchange() {
	atomic.AddUint64(&c.stats.Exchanges, 1)
}

func (c *statsCollector) recordSend() {
	atomic.AddUint64(&c.stats.Sends, 1)
}

func (c *statsCollector) recordReceive() {
	atomic.AddUint64(&c.stats.Receives, 1)
}

func (c *statsCollector) recordRetransmit() {
	atomic.AddUint64(&c.stats.Retransmits, 1)
}

func (c *statsCollector) recordTimeout() {
	atomic.AddUint64(&c.stats.Timeouts, 1)
}

func (c *statsCollector) recordPeerReset() {
	atomic.AddUint64(&c.stats.PeerResets, 1)
}

func (c *statsCollector) recordReject() {
	atomic.AddUint64(&c.stats.Rejected, 1)
}

func (c *statsCollector) snapshot() Stats {
	return Stats{
		Exchanges:   atomic.LoadUint64(&c.stats.Exchanges),
		Sends:       atomic.LoadUint64(&c.stats.Sends),
		Receives:    atomic.LoadUint64(&c.stats.Receives),
		Retransmits: atomic.LoadUint64(&c.stats.Retransmits),
		Timeouts:    atomic.LoadUint64(&c.stats.Timeouts),
		PeerResets:  atomic.LoadUint64(&c.stats.PeerResets),
		Rejected:    atomic.LoadUint64(&c.stats.Rejected),
	}
}
