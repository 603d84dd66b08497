package orderbook

import "testing"

func BenchmarkPlaceLimit_Resting(b *testing.B) {
	e := NewMatchingEngine()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = e.PlaceLimit(Request{Owner: "b", Side: Bid, Size: 1, Price: int64(1000 + i%512)})
	}
}

func BenchmarkPlaceLimit_Crossing(b *testing.B) {
	e := NewMatchingEngine()
	for i := 0; i < 1024; i++ {
		_, _ = e.PlaceLimit(Request{Owner: "mm", Side: Ask, Size: 1 << 30, Price: int64(100 + i)})
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.PlaceLimit(Request{Owner: "t", Side: Bid, Size: 3, Price: 200})
	}
}

func BenchmarkStopEvaluate(b *testing.B) {
	e := NewMatchingEngine()
	m := NewStopMonitor()
	_, _ = e.PlaceLimit(Request{Owner: "mm", Side: Bid, Size: 1 << 40, Price: 100})
	for i := 0; i < 256; i++ {
		o, _ := e.NewStop(Request{Owner: "s", Side: Ask, Size: 1, Price: int64(10 + i%50)})
		m.Add(o)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Evaluate(e, t0)
	}
}
