package service

import (
	"github.com/cockroachdb/errors"

	"cross/domain/orderbook"
	entrywal "cross/infra/wal/entry"
	"cross/snapshot"
)

// Recover rebuilds the book from the latest snapshot in snapshotDir and
// the entry WAL records in walDir that follow it. It must run before Run.
// Sinks are not invoked: replayed commands already reached them, or were
// lost with the process.
//
// An empty walDir skips replay.
func (s *OrderService) Recover(snapshotDir, walDir string) error {
	snap, err := snapshot.Load(snapshotDir)
	if err != nil {
		return err
	}
	var after uint64
	if snap != nil {
		snap.Apply(s.engine, s.stops)
		after = snap.Seq
		s.log.Info("snapshot loaded",
			"seq", snap.Seq,
			"orders", len(snap.Orders),
			"stops", len(snap.Stops),
			"last_order_id", snap.LastOrderID,
		)
	}
	if walDir == "" {
		s.seq.Resume(after)
		return nil
	}

	replayed := 0
	lastSeq, err := entrywal.Replay(walDir, after, func(rec *entrywal.Record) error {
		op, err := opOf(rec.Type)
		if err != nil {
			return errors.Wrapf(err, "seq %d", rec.Seq)
		}
		req, id, err := decodePayload(rec.Data)
		if err != nil {
			return errors.Wrapf(err, "seq %d", rec.Seq)
		}
		// Cancels are journaled before the lookup, so a miss replays as a miss.
		if _, err := s.execute(rec.Seq, rec.At(), op, req, id); err != nil && !errors.Is(err, orderbook.ErrOrderNotFound) {
			return errors.Wrapf(err, "replay seq %d (%s)", rec.Seq, op)
		}
		replayed++
		return nil
	})
	if err != nil {
		return err
	}

	s.seq.Resume(lastSeq)
	s.log.Info("wal replay completed", "records", replayed, "last_seq", lastSeq, "last_order_id", s.engine.LastID())
	return nil
}
