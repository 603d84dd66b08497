package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"cross/domain/orderbook"
)

func TestPayloadSkipsUnknownFields(t *testing.T) {
	b := encodeRequest(orderbook.Request{Owner: "alice", Side: orderbook.Bid, Size: 7, Price: 12345})
	b = protowire.AppendTag(b, 42, protowire.BytesType)
	b = protowire.AppendString(b, "future field")

	req, id, err := decodePayload(b)
	require.NoError(t, err)
	assert.Zero(t, id)
	assert.Equal(t, "alice", req.Owner)
	assert.Equal(t, orderbook.Bid, req.Side)
	assert.EqualValues(t, 7, req.Size)
	assert.EqualValues(t, 12345, req.Price)
}

func TestPayloadCancelAndTruncation(t *testing.T) {
	_, id, err := decodePayload(encodeCancel(77))
	require.NoError(t, err)
	assert.EqualValues(t, 77, id)

	b := encodeRequest(orderbook.Request{Owner: "bob", Side: orderbook.Ask, Size: 1})
	_, _, err = decodePayload(b[:len(b)-1])
	assert.Error(t, err)
}
