package service

import (
	"context"
	"testing"

	"cross/domain/orderbook"
	entrywal "cross/infra/wal/entry"
)

func BenchmarkSubmitLimit_Core(b *testing.B) {
	s := newService()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := int64(0)
		for pb.Next() {
			side := orderbook.Bid
			if i%2 == 0 {
				side = orderbook.Ask
			}
			if _, err := s.SubmitLimit(ctx, "bench", side, 1, 100+i%5); err != nil {
				b.Fatal(err)
			}
			i++
		}
	})
}

func BenchmarkSubmitLimit_Journaled(b *testing.B) {
	journal, err := entrywal.Open(entrywal.Config{Dir: b.TempDir(), SegmentSize: 64 << 20})
	if err != nil {
		b.Fatal(err)
	}
	defer journal.Close()

	s := newService(WithJournal(journal))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.SubmitLimit(ctx, "bench", orderbook.Bid, 1, 100); err != nil {
			b.Fatal(err)
		}
	}
}
