package coap

import (
	"strings"

	"github.com/pior/coap/message"
)

// Request constructors. All build confirmable requests; flip Type to
// message.NonConfirmable on the result for fire-and-forget semantics.
// Message-ID and token are left zero: Exchange assigns both.

// NewRequest builds a request with the given method and Uri-Path/Uri-Query
// options derived from path ("/sensors/temp?unit=C&window=60").
func NewRequest(code message.Code, path string, payload []byte) (*message.Message, error) {
	if !code.IsRequest() {
		return nil, &InvalidArgumentError{Message: "code is not a request method"}
	}
	m := &message.Message{
		Type: message.Confirmable,
		Code: code,
	}
	path, query, _ := strings.Cut(path, "?")
	if err := m.SetPath(path); err != nil {
		return nil, &InvalidArgumentError{Message: "building path options", Err: err}
	}
	if err := m.SetQuery(query); err != nil {
		return nil, &InvalidArgumentError{Message: "building query options", Err: err}
	}
	m.SetPayload(payload)
	return m, nil
}

// NewGetRequest builds a confirmable GET for path.
func NewGetRequest(path string) (*message.Message, error) {
	return NewRequest(message.GET, path, nil)
}

// NewPostRequest builds a confirmable POST for path carrying payload.
func NewPostRequest(path string, payload []byte) (*message.Message, error) {
	return NewRequest(message.POST, path, payload)
}

// NewPutRequest builds a confirmable PUT for path carrying payload.
func NewPutRequest(path string, payload []byte) (*message.Message, error) {
	return NewRequest(message.PUT, path, payload)
}

// NewDeleteRequest builds a confirmable DELETE for path.
func NewDeleteRequest(path string) (*message.Message, error) {
	return NewRequest(message.DELETE, path, nil)
}
