package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cross/domain/orderbook"
	entrywal "cross/infra/wal/entry"
	"cross/snapshot"
)

type dirs struct{ wal, snap string }

func openJournal(t *testing.T, dir string) *entrywal.WAL {
	t.Helper()
	w, err := entrywal.Open(entrywal.Config{Dir: dir, SegmentSize: 256})
	require.NoError(t, err)
	return w
}

// runSession recovers from d, runs fn against the live service and shuts
// it down again.
func runSession(t *testing.T, d dirs, fn func(*OrderService)) *OrderService {
	t.Helper()
	journal := openJournal(t, d.wal)
	s := newService(WithJournal(journal))
	require.NoError(t, s.Recover(d.snap, d.wal))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { _ = s.Run(ctx); close(done) }()

	fn(s)

	cancel()
	<-done
	require.NoError(t, journal.Close())
	return s
}

func TestRecoverFromSnapshotAndJournal(t *testing.T) {
	d := dirs{wal: t.TempDir(), snap: t.TempDir()}
	ctx := context.Background()
	var before orderbook.Depth

	first := runSession(t, d, func(s *OrderService) {
		_, err := s.SubmitLimit(ctx, "a", orderbook.Ask, 5, 105)
		require.NoError(t, err)
		_, err = s.SubmitLimit(ctx, "b", orderbook.Bid, 5, 95)
		require.NoError(t, err)

		snap, err := s.TakeSnapshot(ctx, &snapshot.Writer{Dir: d.snap})
		require.NoError(t, err)
		assert.EqualValues(t, 2, snap.Seq)

		_, err = s.SubmitLimit(ctx, "c", orderbook.Ask, 2, 104)
		require.NoError(t, err)
		_, err = s.SubmitMarket(ctx, "d", orderbook.Bid, 3)
		require.NoError(t, err)
		_, err = s.SubmitStop(ctx, "e", orderbook.Ask, 1, 90)
		require.NoError(t, err)
		_, err = s.Cancel(ctx, 999)
		require.ErrorIs(t, err, orderbook.ErrOrderNotFound)
		_, err = s.Cancel(ctx, 2)
		require.NoError(t, err)

		before, err = s.Depth(ctx, 0)
		require.NoError(t, err)
	})

	second := runSession(t, d, func(s *OrderService) {
		after, err := s.Depth(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, before, after)

		res, err := s.SubmitLimit(ctx, "f", orderbook.Bid, 1, 50)
		require.NoError(t, err)
		assert.EqualValues(t, 8, res.Seq)
		assert.EqualValues(t, 6, res.Order.ID)
	})

	assert.Equal(t, first.stops.Len(), 1)
	assert.Equal(t, second.stops.Pending()[0].Owner, "e")
	assert.Equal(t, first.engine.LastID()+1, second.engine.LastID())
}

func TestRecoverWithoutState(t *testing.T) {
	s := newService()
	require.NoError(t, s.Recover(t.TempDir(), t.TempDir()))
	assert.Zero(t, s.seq.Current())
	assert.Zero(t, s.engine.LastID())
}

func TestReplayKeepsCommandTimes(t *testing.T) {
	d := dirs{wal: t.TempDir(), snap: t.TempDir()}
	at := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)

	journal := openJournal(t, d.wal)
	t.Cleanup(func() { _ = journal.Close() })
	s := newService(WithJournal(journal), WithClock(func() time.Time { return at }))
	start(t, s)
	_, err := s.SubmitLimit(context.Background(), "a", orderbook.Bid, 1, 10)
	require.NoError(t, err)

	replayed := newService()
	require.NoError(t, replayed.Recover(d.snap, d.wal))
	orders := replayed.engine.Ladder().Orders(orderbook.Bid)
	require.Len(t, orders, 1)
	assert.True(t, orders[0].CreatedAt.Equal(at))
}

// cutNewestSegment drops the last n bytes of the newest non-empty segment,
// as a crash in the middle of a write would.
func cutNewestSegment(t *testing.T, dir string, n int64) {
	t.Helper()
	paths, err := filepath.Glob(filepath.Join(dir, "segment-*.wal"))
	require.NoError(t, err)
	for i := len(paths) - 1; i >= 0; i-- {
		st, err := os.Stat(paths[i])
		require.NoError(t, err)
		if st.Size() > 0 {
			require.NoError(t, os.Truncate(paths[i], st.Size()-n))
			return
		}
	}
	t.Fatal("no segment with data")
}

func TestRecoverAfterCrashMidRecord(t *testing.T) {
	d := dirs{wal: t.TempDir(), snap: t.TempDir()}
	ctx := context.Background()

	runSession(t, d, func(s *OrderService) {
		for _, price := range []int64{101, 102, 103} {
			_, err := s.SubmitLimit(ctx, "a", orderbook.Ask, 1, price)
			require.NoError(t, err)
		}
	})
	cutNewestSegment(t, d.wal, 3)

	for restart := 0; restart < 2; restart++ {
		runSession(t, d, func(s *OrderService) {
			depth, err := s.Depth(ctx, 0)
			require.NoError(t, err)
			if restart == 0 {
				assert.Equal(t, []orderbook.LevelView{
					{Price: 101, Size: 1, Orders: 1},
					{Price: 102, Size: 1, Orders: 1},
				}, depth.Asks)

				res, err := s.SubmitLimit(ctx, "b", orderbook.Ask, 1, 104)
				require.NoError(t, err)
				assert.EqualValues(t, 3, res.Seq)
				assert.EqualValues(t, 3, res.Order.ID)
				return
			}
			require.Len(t, depth.Asks, 3)
			assert.EqualValues(t, 104, depth.Asks[2].Price)
		})
	}
}
