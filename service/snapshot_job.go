package service

import (
	"context"
	"time"

	"cross/snapshot"
)

// TakeSnapshot writes a consistent image and drops the journal segments it
// covers.
func (s *OrderService) TakeSnapshot(ctx context.Context, w *snapshot.Writer) (*snapshot.Snapshot, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if err := w.Write(snap); err != nil {
		return nil, err
	}
	if s.journal != nil {
		removed, err := s.journal.TruncateBefore(snap.Seq)
		if err != nil {
			s.log.Warn("journal truncate failed", "seq", snap.Seq, "err", err)
		} else if removed > 0 {
			s.log.Debug("journal truncated", "seq", snap.Seq, "segments", removed)
		}
	}
	return snap, nil
}

// RunSnapshots takes a snapshot every interval until ctx is done.
func (s *OrderService) RunSnapshots(ctx context.Context, w *snapshot.Writer, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			snap, err := s.TakeSnapshot(ctx, w)
			if err != nil {
				if ctx.Err() == nil {
					s.log.Warn("snapshot failed", "err", err)
				}
				continue
			}
			s.log.Debug("snapshot written", "seq", snap.Seq, "orders", len(snap.Orders), "stops", len(snap.Stops))
		}
	}
}
