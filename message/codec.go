package message

import "encoding/binary"

const (
	headerLength  = 4
	payloadMarker = 0xFF

	// Extension escape values for option deltas and lengths.
	extendOneByte  = 13
	extendTwoBytes = 14
	reservedNibble = 15

	oneByteBias  = 13
	twoBytesBias = 269
)

// Parse decodes one datagram into a Message.
//
// Token, option values and payload borrow from data; the caller must not
// reuse the buffer while the message is alive. Parse validates everything
// the wire format constrains: version, token length, option delta/length
// encoding, the payload marker, and the empty-message invariant.
func Parse(data []byte) (*Message, error) {
	if len(data) < headerLength {
		return nil, ErrShortHeader
	}
	first := data[0]
	if first>>6 != Version {
		return nil, ErrBadVersion
	}
	tokenLength := int(first & 0x0f)
	if tokenLength > MaxTokenLength {
		return nil, ErrBadTokenLength
	}

	m := &Message{
		Type:      Type(first >> 4 & 0x03),
		Code:      Code(data[1]),
		MessageID: binary.BigEndian.Uint16(data[2:4]),
	}

	r := &reader{buf: data, pos: headerLength}
	token, ok := r.readBytes(tokenLength)
	if !ok {
		return nil, ErrTruncatedToken
	}
	if tokenLength > 0 {
		m.token = token
	}

	if err := parseOptionsAndPayload(m, r); err != nil {
		return nil, err
	}

	if m.Code == CodeEmpty && (tokenLength != 0 || len(m.opts) != 0 || m.payload != nil) {
		return nil, ErrBadEmptyMessage
	}
	return m, nil
}

func parseOptionsAndPayload(m *Message, r *reader) error {
	var number uint32
	for r.remaining() > 0 {
		first, _ := r.readByte()
		if first == payloadMarker {
			if r.remaining() == 0 {
				return ErrMissingPayload
			}
			m.payload = r.rest()
			return nil
		}

		deltaNibble := first >> 4
		lengthNibble := first & 0x0f
		if deltaNibble == reservedNibble {
			return ErrBadOptionDelta
		}
		if lengthNibble == reservedNibble {
			return ErrBadOptionLength
		}

		delta, ok := r.readExtended(deltaNibble)
		if !ok {
			return ErrTruncatedOption
		}
		length, ok := r.readExtended(lengthNibble)
		if !ok {
			return ErrTruncatedOption
		}

		number += delta
		if number > MaxOptionNumber {
			return ErrBadOptionNumber
		}
		value, ok := r.readBytes(int(length))
		if !ok {
			return ErrTruncatedOption
		}
		m.opts = append(m.opts, Option{ID: OptionID(number), Value: value})
	}
	return nil
}

// readExtended resolves a delta or length nibble into its absolute value,
// consuming the 1- or 2-byte extension field when the nibble is an escape.
func (r *reader) readExtended(nibble byte) (uint32, bool) {
	switch nibble {
	case extendOneByte:
		b, ok := r.readByte()
		if !ok {
			return 0, false
		}
		return oneByteBias + uint32(b), true
	case extendTwoBytes:
		v, ok := r.readUint16()
		if !ok {
			return 0, false
		}
		return twoBytesBias + uint32(v), true
	default:
		return uint32(nibble), true
	}
}

// ParseTypeAndMessageID decodes only the fixed header. It succeeds whenever
// the first four bytes are present with a valid version, regardless of
// whether the full message would parse; the exchange engine uses it to
// build a RST for a malformed confirmable datagram.
func ParseTypeAndMessageID(data []byte) (Type, uint16, error) {
	if len(data) < headerLength {
		return 0, 0, ErrShortHeader
	}
	if data[0]>>6 != Version {
		return 0, 0, ErrBadVersion
	}
	return Type(data[0] >> 4 & 0x03), binary.BigEndian.Uint16(data[2:4]), nil
}

// MarshalTo serializes the message into out and returns the number of
// bytes written. Options are emitted in ascending number order with delta
// encoding; repeated numbers keep insertion order.
func (m *Message) MarshalTo(out []byte) (int, error) {
	if len(m.token) > MaxTokenLength {
		return 0, ErrInvalidTokenLength
	}
	if m.Code == CodeEmpty && (len(m.token) != 0 || len(m.opts) != 0 || len(m.payload) != 0) {
		return 0, ErrBadEmptyMessage
	}

	w := &writer{buf: out}
	if err := w.writeByte(Version<<6 | byte(m.Type)<<4 | byte(len(m.token))); err != nil {
		return 0, err
	}
	if err := w.writeByte(byte(m.Code)); err != nil {
		return 0, err
	}
	if err := w.writeUint16(m.MessageID); err != nil {
		return 0, err
	}
	if err := w.writeBytes(m.token); err != nil {
		return 0, err
	}

	var number uint32
	for _, opt := range m.opts.sortedForWire() {
		if opt.ID > MaxOptionNumber {
			return 0, ErrBadOptionNumber
		}
		if len(opt.Value) > MaxOptionValueLength {
			return 0, ErrOptionValueTooLong
		}
		if err := writeOption(w, uint32(opt.ID)-number, opt.Value); err != nil {
			return 0, err
		}
		number = uint32(opt.ID)
	}

	if len(m.payload) > 0 {
		if err := w.writeByte(payloadMarker); err != nil {
			return 0, err
		}
		if err := w.writeBytes(m.payload); err != nil {
			return 0, err
		}
	}
	return w.pos, nil
}

func writeOption(w *writer, delta uint32, value []byte) error {
	deltaNibble, deltaExt := encodeExtended(delta)
	lengthNibble, lengthExt := encodeExtended(uint32(len(value)))
	if err := w.writeByte(deltaNibble<<4 | lengthNibble); err != nil {
		return err
	}
	if err := w.writeBytes(deltaExt); err != nil {
		return err
	}
	if err := w.writeBytes(lengthExt); err != nil {
		return err
	}
	return w.writeBytes(value)
}

// encodeExtended splits an absolute delta or length into its header nibble
// and extension bytes per the RFC 7252 §3.1 table.
func encodeExtended(v uint32) (nibble byte, ext []byte) {
	switch {
	case v < oneByteBias:
		return byte(v), nil
	case v < twoBytesBias:
		return extendOneByte, []byte{byte(v - oneByteBias)}
	default:
		ext = make([]byte, 2)
		binary.BigEndian.PutUint16(ext, uint16(v-twoBytesBias))
		return extendTwoBytes, ext
	}
}

// Marshal serializes the message into a freshly sized buffer.
func (m *Message) Marshal() ([]byte, error) {
	out := make([]byte, m.wireSize())
	n, err := m.MarshalTo(out)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

// wireSize returns the exact serialized length, assuming the message passes
// validation. Used only to size Marshal's allocation; MarshalTo still
// bounds-checks every write.
func (m *Message) wireSize() int {
	size := headerLength + len(m.token)
	var number uint32
	for _, opt := range m.opts.sortedForWire() {
		size += 1 + extendedSize(uint32(opt.ID)-number) + extendedSize(uint32(len(opt.Value))) + len(opt.Value)
		number = uint32(opt.ID)
	}
	if len(m.payload) > 0 {
		size += 1 + len(m.payload)
	}
	return size
}

func extendedSize(v uint32) int {
	switch {
	case v < oneByteBias:
		return 0
	case v < twoBytesBias:
		return 1
	default:
		return 2
	}
}
