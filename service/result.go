package service

import (
	"time"

	"cross/domain/history"
	"cross/domain/orderbook"
)

// Result is the outcome of one sequenced command.
type Result struct {
	Seq uint64
	At  time.Time

	// Order is the submitted or canceled order. It is nil when a market
	// order found no liquidity.
	Order     *orderbook.Order
	Fills     []orderbook.Fill
	Touched   []orderbook.Order
	Triggered []orderbook.Trigger

	// Warnings lists sink failures. They never undo the command.
	Warnings []string
}

// AllFills returns the command's own fills followed by those of every
// stop it triggered, in execution order.
func (r *Result) AllFills() []orderbook.Fill {
	out := append([]orderbook.Fill(nil), r.Fills...)
	for _, t := range r.Triggered {
		out = append(out, t.Report.Fills...)
	}
	return out
}

func (r *Result) historyEntry() history.Entry {
	e := history.Entry{Seq: r.Seq, At: r.At, Fills: r.AllFills()}
	if r.Order != nil {
		e.Orders = append(e.Orders, *r.Order)
	}
	e.Orders = append(e.Orders, r.Touched...)
	for _, t := range r.Triggered {
		e.Orders = append(e.Orders, t.Stop)
		if t.Report.Order != nil {
			e.Orders = append(e.Orders, *t.Report.Order)
		}
		e.Orders = append(e.Orders, t.Report.Touched...)
	}
	return e
}
