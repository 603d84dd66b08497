package snapshot

import (
	"time"

	"cross/domain/orderbook"
)

// Version is bumped whenever the gob layout changes incompatibly.
const Version = 1

type Snapshot struct {
	Version     int
	Seq         uint64
	LastOrderID uint64
	Created     time.Time
	// Orders are resting limits, best level first and FIFO within a level.
	Orders []OrderEntry
	// Stops are pending stops in submission order.
	Stops []OrderEntry
}

type OrderEntry struct {
	ID            uint64
	Side          uint8
	Kind          uint8
	Owner         string
	Price         int64
	Size          int64
	Requested     int64
	Filled        int64
	CreatedAt     time.Time
	NotifyTargets []uint64
}

func entryOf(o orderbook.Order) OrderEntry {
	return OrderEntry{
		ID:            o.ID,
		Side:          uint8(o.Side),
		Kind:          uint8(o.Kind),
		Owner:         o.Owner,
		Price:         o.Price,
		Size:          o.Size,
		Requested:     o.Requested,
		Filled:        o.Filled,
		CreatedAt:     o.CreatedAt,
		NotifyTargets: o.NotifyTargets,
	}
}

func (e OrderEntry) order() orderbook.Order {
	return orderbook.Order{
		ID:            e.ID,
		Side:          orderbook.Side(e.Side),
		Kind:          orderbook.Kind(e.Kind),
		Owner:         e.Owner,
		Price:         e.Price,
		Size:          e.Size,
		Requested:     e.Requested,
		Filled:        e.Filled,
		CreatedAt:     e.CreatedAt,
		NotifyTargets: e.NotifyTargets,
	}
}

// Capture copies the state of engine and stops as of command seq. The
// caller must hold exclusive access to both.
func Capture(seq uint64, engine *orderbook.MatchingEngine, stops *orderbook.StopMonitor) *Snapshot {
	s := &Snapshot{
		Version:     Version,
		Seq:         seq,
		LastOrderID: engine.LastID(),
		Created:     time.Now().UTC(),
	}
	for _, side := range []orderbook.Side{orderbook.Bid, orderbook.Ask} {
		for _, o := range engine.Ladder().Orders(side) {
			s.Orders = append(s.Orders, entryOf(o))
		}
	}
	for _, o := range stops.Pending() {
		s.Stops = append(s.Stops, entryOf(o))
	}
	return s
}

// Apply loads the image into an empty engine and stop monitor.
func (s *Snapshot) Apply(engine *orderbook.MatchingEngine, stops *orderbook.StopMonitor) {
	for _, e := range s.Orders {
		engine.Restore(e.order())
	}
	for _, e := range s.Stops {
		stops.Restore(e.order())
	}
	if s.LastOrderID > engine.LastID() {
		engine.ResetIDs(s.LastOrderID)
	}
}
