package coap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pior/coap/message"
)

func TestExchangeInvalidArguments(t *testing.T) {
	client, _, _ := newTestClient(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  *message.Message
	}{
		{
			name: "ACK type",
			req:  &message.Message{Type: message.Acknowledgement, Code: message.GET},
		},
		{
			name: "RST type",
			req:  &message.Message{Type: message.Reset, Code: message.GET},
		},
		{
			name: "response code",
			req:  &message.Message{Type: message.Confirmable, Code: message.Content},
		},
		{
			name: "empty code",
			req:  &message.Message{Type: message.Confirmable, Code: message.CodeEmpty},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Exchange(ctx, tt.req)
			var invalidErr *InvalidArgumentError
			assert.ErrorAs(t, err, &invalidErr)
		})
	}
}

func TestExchangeAssignsMessageIDAndToken(t *testing.T) {
	client, ep, _ := newTestClient(t)
	ep.mu.Lock()
	ep.respond = piggybackResponder(message.Content, nil)
	ep.mu.Unlock()

	req, err := NewGetRequest("/x")
	require.NoError(t, err)
	require.NoError(t, req.SetToken([]byte{1}))
	req.MessageID = 42

	_, err = client.Exchange(context.Background(), req)
	require.NoError(t, err)

	// Prior values are overwritten.
	assert.Len(t, req.Token(), 4)
	assert.NotEqual(t, []byte{1}, req.Token())

	// A second exchange draws fresh values.
	firstID, firstToken := req.MessageID, append([]byte(nil), req.Token()...)
	_, err = client.Exchange(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, firstID == req.MessageID && string(firstToken) == string(req.Token()))
}

func TestClientClosed(t *testing.T) {
	client, _, _ := newTestClient(t)
	require.NoError(t, client.Close())
	require.NoError(t, client.Close()) // idempotent

	req, err := NewGetRequest("/x")
	require.NoError(t, err)
	_, err = client.Exchange(context.Background(), req)
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestClientConvenienceMethods(t *testing.T) {
	client, ep, _ := newTestClient(t)
	ep.mu.Lock()
	ep.respond = piggybackResponder(message.Content, []byte("body"))
	ep.mu.Unlock()

	ctx := context.Background()

	resp, err := client.Get(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, []byte("body"), resp.Payload())

	_, err = client.Post(ctx, "/a", []byte("data"))
	require.NoError(t, err)

	_, err = client.Put(ctx, "/a", []byte("data"))
	require.NoError(t, err)

	_, err = client.Delete(ctx, "/a")
	require.NoError(t, err)

	assert.Equal(t, uint64(4), client.Stats().Exchanges)
}

func TestInitialAckIntervalJitterRange(t *testing.T) {
	client, _, _ := newTestClient(t)

	low := DefaultAckTimeout
	high := time.Duration(float64(DefaultAckTimeout) * DefaultAckRandomFactor)

	seen := make(map[time.Duration]bool)
	for i := 0; i < 1000; i++ {
		interval := client.initialAckInterval()
		require.GreaterOrEqual(t, interval, low)
		require.Less(t, interval, high)
		seen[interval] = true
	}
	// The draw is jittered, not constant.
	assert.Greater(t, len(seen), 100)
}

func TestInitialAckIntervalNoJitter(t *testing.T) {
	fc := newFakeEndpoint()
	client, err := NewClientWithEndpoint(fc, Config{
		Parameters: TransmissionParameters{AckRandomFactor: 1.0},
	})
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, DefaultAckTimeout, client.initialAckInterval())
}

func TestNewClientRejectsBadParameters(t *testing.T) {
	_, err := NewClientWithEndpoint(newFakeEndpoint(), Config{
		Parameters: TransmissionParameters{AckRandomFactor: 0.5},
	})
	assert.Error(t, err)

	_, err = NewClientWithEndpoint(newFakeEndpoint(), Config{
		Parameters: TransmissionParameters{AckTimeout: -time.Second},
	})
	assert.Error(t, err)
}
