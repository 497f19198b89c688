package message

import "errors"

// Parse errors. All are matchable with errors.Is. A datagram that fails to
// parse yields exactly one of these; the caller may still recover the type
// and message-ID with ParseTypeAndMessageID to reject the message.
var (
	// ErrShortHeader: fewer than the 4 fixed header bytes.
	ErrShortHeader = errors.New("coap: message shorter than 4-byte header")

	// ErrBadVersion: version bits differ from 01.
	ErrBadVersion = errors.New("coap: unsupported version")

	// ErrBadTokenLength: token length nibble in the reserved 9-15 range.
	ErrBadTokenLength = errors.New("coap: reserved token length")

	// ErrTruncatedToken: datagram ends inside the token.
	ErrTruncatedToken = errors.New("coap: truncated token")

	// ErrTruncatedOption: datagram ends inside an option header, extension
	// or value.
	ErrTruncatedOption = errors.New("coap: truncated option")

	// ErrBadOptionDelta: reserved delta nibble 15 outside the payload
	// marker.
	ErrBadOptionDelta = errors.New("coap: reserved option delta")

	// ErrBadOptionLength: reserved length nibble 15.
	ErrBadOptionLength = errors.New("coap: reserved option length")

	// ErrBadOptionNumber: accumulated option number above MaxOptionNumber.
	ErrBadOptionNumber = errors.New("coap: option number out of range")

	// ErrMissingPayload: payload marker 0xFF followed by zero bytes.
	// A non-empty payload runs to the end of the datagram, so this is the
	// only detectable payload truncation.
	ErrMissingPayload = errors.New("coap: payload marker with no payload")

	// ErrBadEmptyMessage: code 0.00 carrying a token, options or payload.
	ErrBadEmptyMessage = errors.New("coap: empty message with token, options or payload")
)

// Encode errors.
var (
	// ErrBufferTooSmall: the output buffer cannot hold the serialized
	// message.
	ErrBufferTooSmall = errors.New("coap: buffer too small")

	// ErrInvalidTokenLength: token longer than MaxTokenLength.
	ErrInvalidTokenLength = errors.New("coap: token longer than 8 bytes")

	// ErrOptionValueTooLong: option value longer than
	// MaxOptionValueLength.
	ErrOptionValueTooLong = errors.New("coap: option value too long")
)
