package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cross/domain/orderbook"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func req(owner string, side orderbook.Side, size, price int64) orderbook.Request {
	return orderbook.Request{Owner: owner, Side: side, Size: size, Price: price, At: t0}
}

func TestCaptureWriteLoadApply(t *testing.T) {
	engine := orderbook.NewMatchingEngine()
	stops := orderbook.NewStopMonitor()

	_, err := engine.PlaceLimit(req("a", orderbook.Ask, 5, 101))
	require.NoError(t, err)
	_, err = engine.PlaceLimit(req("b", orderbook.Ask, 3, 101))
	require.NoError(t, err)
	_, err = engine.PlaceLimit(req("c", orderbook.Bid, 4, 99))
	require.NoError(t, err)
	_, err = engine.PlaceLimit(req("d", orderbook.Bid, 2, 100))
	require.NoError(t, err)
	_, err = engine.PlaceMarket(orderbook.Request{Owner: "e", Side: orderbook.Bid, Size: 1, At: t0})
	require.NoError(t, err)
	stop, err := engine.NewStop(req("f", orderbook.Ask, 1, 80))
	require.NoError(t, err)
	stops.Add(stop)

	s := Capture(42, engine, stops)
	dir := t.TempDir()
	require.NoError(t, (&Writer{Dir: dir}).Write(s))

	loaded, err := Load(dir)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.EqualValues(t, 42, loaded.Seq)
	assert.EqualValues(t, 6, loaded.LastOrderID)
	require.Len(t, loaded.Stops, 1)

	engine2 := orderbook.NewMatchingEngine()
	stops2 := orderbook.NewStopMonitor()
	loaded.Apply(engine2, stops2)

	require.NoError(t, engine2.Ladder().Verify())
	assert.Equal(t, engine.Ladder().Depth(0), engine2.Ladder().Depth(0))
	assert.EqualValues(t, 6, engine2.LastID())
	assert.Equal(t, 1, stops2.Len())

	// FIFO at 101 survives: order 1 was partially filled and stays ahead.
	head := engine2.Ladder().QueueAt(orderbook.Ask, 101).Head()
	assert.EqualValues(t, 1, head.ID)
	assert.EqualValues(t, 4, head.Size)
	assert.EqualValues(t, 1, head.Filled)
	assert.Equal(t, "a", head.Owner)
}

func TestLoadMissing(t *testing.T) {
	s, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestWriteReplaces(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{Dir: dir}
	require.NoError(t, w.Write(&Snapshot{Version: Version, Seq: 1}))
	require.NoError(t, w.Write(&Snapshot{Version: Version, Seq: 2}))

	s, err := Load(dir)
	require.NoError(t, err)
	assert.EqualValues(t, 2, s.Seq)
}
