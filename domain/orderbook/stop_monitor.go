package orderbook

import (
	"slices"
	"time"
)

// Trigger pairs a retired stop with the market execution it produced.
type Trigger struct {
	Stop   Order
	Report *Report
}

// StopMonitor holds pending stop orders in submission order. Like the
// ladder it relies on the caller for exclusive access.
type StopMonitor struct {
	pending []*Order
}

func NewStopMonitor() *StopMonitor {
	return &StopMonitor{}
}

func (m *StopMonitor) Add(o *Order) {
	mustf(o.Kind == Stop && o.Status == Pending, "STOP_CORRUPTION: order %d (%s/%s) is not a pending stop", o.ID, o.Kind, o.Status)
	m.pending = append(m.pending, o)
}

// Cancel retires a pending stop without executing it.
func (m *StopMonitor) Cancel(id uint64) (Order, bool) {
	i := slices.IndexFunc(m.pending, func(o *Order) bool { return o.ID == id })
	if i < 0 {
		return Order{}, false
	}
	o := m.pending[i]
	m.pending = slices.Delete(m.pending, i, i+1)
	o.Status = Canceled
	return o.Snapshot(), true
}

func (m *StopMonitor) Len() int { return len(m.pending) }

func (m *StopMonitor) Pending() []Order {
	out := make([]Order, len(m.pending))
	for i, o := range m.pending {
		out[i] = o.Snapshot()
	}
	return out
}

// Evaluate fires every stop whose condition holds against the engine's
// current book, forwarding each as a market order stamped at. A trigger
// moves the book, so the scan restarts until a full pass fires nothing.
func (m *StopMonitor) Evaluate(e *MatchingEngine, at time.Time) []Trigger {
	var fired []Trigger
	for {
		i := slices.IndexFunc(m.pending, func(o *Order) bool { return armed(e.ladder, o) })
		if i < 0 {
			return fired
		}
		stop := m.pending[i]
		m.pending = slices.Delete(m.pending, i, i+1)
		stop.Status = Triggered

		rep, err := e.PlaceMarket(Request{
			Owner: stop.Owner,
			Side:  stop.Side,
			Kind:  Market,
			Size:  stop.Size,
			At:    at,
		})
		mustf(err == nil, "STOP_CORRUPTION: stop %d produced invalid market order: %v", stop.ID, err)
		mustf(rep.Executed(), "STOP_CORRUPTION: stop %d triggered against an empty book", stop.ID)

		fired = append(fired, Trigger{Stop: stop.Snapshot(), Report: rep})
	}
}

// armed reports whether stop should trigger. An ask stop fires once a
// market sell of its size would execute at or below its price; a bid stop
// once a market buy would execute at or above it.
func armed(l *Ladder, stop *Order) bool {
	price, ok := l.AbsorbPrice(stop.Side.Opposite(), stop.Size)
	if !ok {
		return false
	}
	if stop.Side == Ask {
		return price <= stop.Price
	}
	return price >= stop.Price
}

// Restore re-registers a pending stop taken from a snapshot.
func (m *StopMonitor) Restore(o Order) {
	o.Status = Pending
	o.next, o.prev = nil, nil
	m.Add(&o)
}
