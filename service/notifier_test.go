package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cross/domain/orderbook"
	"cross/infra/logger"
	exitwal "cross/infra/wal/exit"
)

type fakePusher struct {
	mu     sync.Mutex
	online map[string]bool
	got    map[string][][]byte
}

func newFakePusher(online ...string) *fakePusher {
	p := &fakePusher{online: map[string]bool{}, got: map[string][][]byte{}}
	for _, o := range online {
		p.online[o] = true
	}
	return p
}

func (p *fakePusher) Push(owner string, payload []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.online[owner] {
		return false
	}
	p.got[owner] = append(p.got[owner], payload)
	return true
}

func decode(t *testing.T, b []byte) Notification {
	t.Helper()
	var n Notification
	require.NoError(t, json.Unmarshal(b, &n))
	return n
}

func queued(t *testing.T, w *exitwal.ExitWAL, topic string) [][]byte {
	t.Helper()
	var out [][]byte
	require.NoError(t, w.Scan(topic, func(e exitwal.Entry) error {
		out = append(out, e.Payload)
		return nil
	}))
	return out
}

func TestDispatcherRoutesOnlineAndOffline(t *testing.T) {
	outbox, err := exitwal.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = outbox.Close() })

	pusher := newFakePusher("bob")
	d := NewDispatcher(pusher, outbox, "BTC-USD", 3, WithTape(true), WithDispatchLogger(logger.Discard()))
	s := startService(t, WithNotifier(d))
	ctx := context.Background()

	_, err = s.SubmitLimit(ctx, "alice", orderbook.Ask, 2, 100500)
	require.NoError(t, err)
	_, err = s.SubmitLimit(ctx, "carol", orderbook.Ask, 2, 100600)
	require.NoError(t, err)
	res, err := s.SubmitLimit(ctx, "bob", orderbook.Bid, 3, 100600)
	require.NoError(t, err)
	require.Len(t, res.Fills, 2)
	require.Empty(t, res.Warnings)

	require.Len(t, pusher.got["bob"], 1)
	bob := decode(t, pusher.got["bob"][0])
	assert.Equal(t, EventFill, bob.Event)
	assert.Equal(t, "BTC-USD", bob.Symbol)
	assert.NotEmpty(t, bob.ID)
	require.Len(t, bob.Trades, 2)
	assert.Equal(t, "bid", bob.Trades[0].Type)
	assert.Equal(t, "limit", bob.Trades[0].OrderType)
	assert.Equal(t, "100.500", bob.Trades[0].DisplayPrice)
	assert.Equal(t, "100.600", bob.Trades[1].DisplayPrice)

	alice := queued(t, outbox, exitwal.UserTopic("alice"))
	require.Len(t, alice, 1)
	n := decode(t, alice[0])
	assert.Equal(t, "alice", n.Owner)
	require.Len(t, n.Trades, 1)
	assert.EqualValues(t, 1, n.Trades[0].OrderID)
	assert.Equal(t, "ask", n.Trades[0].Type)
	assert.EqualValues(t, 2, n.Trades[0].Size)

	carol := queued(t, outbox, exitwal.UserTopic("carol"))
	require.Len(t, carol, 1)
	assert.EqualValues(t, 1, decode(t, carol[0]).Trades[0].Size)

	tape := queued(t, outbox, exitwal.TapeTopic)
	require.Len(t, tape, 2)
	var ev TapeEvent
	require.NoError(t, json.Unmarshal(tape[1], &ev))
	assert.Equal(t, TapeEvent{
		Symbol:       "BTC-USD",
		Seq:          3,
		MakerID:      2,
		TakerID:      3,
		TakerSide:    "bid",
		Size:         1,
		Price:        100600,
		DisplayPrice: "100.600",
		Timestamp:    t0.UnixMilli(),
	}, ev)
}

func TestDispatcherTriggeredEvent(t *testing.T) {
	outbox, err := exitwal.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = outbox.Close() })

	pusher := newFakePusher("maker", "stopper")
	d := NewDispatcher(pusher, outbox, "X", 0, WithDispatchLogger(logger.Discard()))
	s := startService(t, WithNotifier(d))
	ctx := context.Background()

	_, err = s.SubmitLimit(ctx, "maker", orderbook.Ask, 1, 10)
	require.NoError(t, err)
	stop, err := s.SubmitStop(ctx, "stopper", orderbook.Bid, 1, 10)
	require.NoError(t, err)
	require.Len(t, stop.Triggered, 1)

	require.Len(t, pusher.got["stopper"], 1)
	n := decode(t, pusher.got["stopper"][0])
	assert.Equal(t, EventTriggered, n.Event)
	assert.Equal(t, stop.Order.ID, n.StopID)
	assert.Equal(t, "stop", n.Trades[0].OrderType)
	assert.Equal(t, "10", n.Trades[0].DisplayPrice)

	require.Len(t, pusher.got["maker"], 1)
	assert.Equal(t, EventFill, decode(t, pusher.got["maker"][0]).Event)
	assert.Empty(t, queued(t, outbox, exitwal.TapeTopic))
}
