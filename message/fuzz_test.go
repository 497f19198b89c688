package message

import (
	"bytes"
	"testing"
)

func FuzzParse(f *testing.F) {
	// Seed corpus: well-formed messages and near-misses.
	f.Add([]byte{0x40, 0x00, 0x00, 0x01})                               // empty CON
	f.Add([]byte{0x60, 0x00, 0x12, 0x34})                               // empty ACK
	f.Add([]byte{0x42, 0x01, 0x00, 0x01, 0xCA, 0xFE})                   // GET with token
	f.Add([]byte{0x40, 0x45, 0x00, 0x01, 0xB1, 't', 0xFF, 'o', 'k'})    // response with option and payload
	f.Add([]byte{0x40, 0x01, 0x00, 0x01, 0xD0, 0x00})                   // one-byte delta extension
	f.Add([]byte{0x40, 0x01, 0x00, 0x01, 0xE0, 0x00, 0x01})             // two-byte delta extension
	f.Add([]byte{0x49, 0x01, 0xBE, 0xEF})                               // reserved token length
	f.Add([]byte{0x40, 0x01, 0x00, 0x01, 0xFF})                         // marker without payload

	f.Fuzz(func(t *testing.T, data []byte) {
		// Parsing must never panic.
		m, err := Parse(data)
		if err != nil {
			return
		}

		// Anything that parses must serialize back to the same bytes:
		// the codec is canonical for well-formed datagrams.
		wire, err := m.Marshal()
		if err != nil {
			t.Fatalf("parsed message failed to marshal: %v", err)
		}
		if !bytes.Equal(wire, data) {
			t.Fatalf("re-marshal mismatch:\n in:  %x\n out: %x", data, wire)
		}
	})
}
