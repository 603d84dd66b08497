package orderbook

import (
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
)

// MatchingEngine owns one instrument's ladder and applies limit, market and
// cancel operations with price-time priority. It is single-writer: callers
// serialize access (see service.OrderService).
type MatchingEngine struct {
	ladder *Ladder
	lastID atomic.Uint64
	now    func() time.Time
}

type Option func(*MatchingEngine)

// WithClock overrides the timestamp source for requests without one.
func WithClock(now func() time.Time) Option {
	return func(e *MatchingEngine) { e.now = now }
}

func NewMatchingEngine(opts ...Option) *MatchingEngine {
	e := &MatchingEngine{
		ladder: NewLadder(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *MatchingEngine) Ladder() *Ladder { return e.ladder }

// LastID is the most recently issued order ID.
func (e *MatchingEngine) LastID() uint64 { return e.lastID.Load() }

// ResetIDs resumes ID issuance after last. Only used while restoring state.
func (e *MatchingEngine) ResetIDs(last uint64) { e.lastID.Store(last) }

func (e *MatchingEngine) newOrder(req Request) *Order {
	at := req.At
	if at.IsZero() {
		at = e.now()
	}
	return &Order{
		ID:        e.lastID.Add(1),
		Side:      req.Side,
		Kind:      req.Kind,
		Owner:     req.Owner,
		Price:     req.Price,
		Size:      req.Size,
		Requested: req.Size,
		CreatedAt: at,
	}
}

// PlaceLimit matches the order against the opposite side while its limit
// allows and rests any remainder at the limit price.
func (e *MatchingEngine) PlaceLimit(req Request) (*Report, error) {
	req.Kind = Limit
	if err := req.Validate(); err != nil {
		return nil, err
	}

	o := e.newOrder(req)
	rep := &Report{}
	e.match(o, true, rep)

	if o.Size > 0 {
		o.Status = Resting
		e.ladder.UpsertLevel(o.Side, o.Price).Enqueue(o)
	} else {
		o.Status = Filled
	}

	snap := o.Snapshot()
	rep.Order = &snap
	return rep, nil
}

// PlaceMarket walks the opposite side until the order is filled or the side
// is exhausted. The unfilled remainder is dropped. With no opposite
// liquidity nothing is created and the report carries no order.
func (e *MatchingEngine) PlaceMarket(req Request) (*Report, error) {
	req.Kind = Market
	req.Price = 0
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if e.ladder.BestLevel(req.Side.Opposite()) == nil {
		return &Report{}, nil
	}

	o := e.newOrder(req)
	rep := &Report{}
	last := e.match(o, false, rep)

	mustf(o.Filled > 0, "LADDER_CORRUPTION: market order %d found liquidity but traded nothing", o.ID)
	o.Price = last
	o.Size = o.Requested
	if o.Filled == o.Requested {
		o.Status = Filled
	} else {
		o.Status = Partial
	}

	snap := o.Snapshot()
	rep.Order = &snap
	return rep, nil
}

// NewStop validates and stamps a stop order. The order does not touch the
// ladder; the caller hands it to a StopMonitor.
func (e *MatchingEngine) NewStop(req Request) (*Order, error) {
	req.Kind = Stop
	if err := req.Validate(); err != nil {
		return nil, err
	}
	o := e.newOrder(req)
	o.Status = Pending
	return o, nil
}

// Cancel removes a resting order. Anything not resting, including filled
// and already canceled orders, is ErrOrderNotFound.
func (e *MatchingEngine) Cancel(id uint64) (Order, error) {
	for _, s := range []Side{Ask, Bid} {
		var (
			found *Order
			level *PriceLevel
		)
		e.ladder.Walk(s, func(lvl *PriceLevel) bool {
			for o := lvl.Head(); o != nil; o = o.Next() {
				if o.ID == id {
					found, level = o, lvl
					return false
				}
			}
			return true
		})
		if found == nil {
			continue
		}
		level.Remove(found)
		e.ladder.RemoveIfEmpty(s, level.Price)
		found.Status = Canceled
		return found.Snapshot(), nil
	}
	return Order{}, errors.Wrapf(ErrOrderNotFound, "id %d", id)
}

// Restore rests a previously accepted order without matching it.
func (e *MatchingEngine) Restore(o Order) {
	mustf(o.Kind == Limit && o.Size > 0 && o.Side.Valid(), "RESTORE_CORRUPTION: order %d is not a resting limit", o.ID)
	o.Status = Resting
	o.next, o.prev = nil, nil
	e.ladder.UpsertLevel(o.Side, o.Price).Enqueue(&o)
	if o.ID > e.lastID.Load() {
		e.lastID.Store(o.ID)
	}
}

// match trades taker against the best opposite levels. With limit set the
// walk stops at the first level the taker's price does not cross. It
// returns the price of the last level traded.
func (e *MatchingEngine) match(taker *Order, limit bool, rep *Report) (last int64) {
	opp := taker.Side.Opposite()

	for taker.Size > 0 {
		level := e.ladder.BestLevel(opp)
		if level == nil {
			return last
		}
		if limit && !crosses(taker.Side, taker.Price, level.Price) {
			return last
		}

		maker := level.Head()
		mustf(maker != nil, "LADDER_CORRUPTION: empty %s level %d observable", opp, level.Price)

		qty := min(taker.Size, maker.Size)
		level.take(maker, qty)
		taker.Size -= qty
		taker.Filled += qty

		taker.notify(maker.ID)
		// a resting maker reports only the execution that touched it now
		maker.NotifyTargets = append(maker.NotifyTargets[:0], taker.ID)

		rep.Fills = append(rep.Fills, Fill{
			MakerID:    maker.ID,
			TakerID:    taker.ID,
			MakerOwner: maker.Owner,
			TakerOwner: taker.Owner,
			TakerSide:  taker.Side,
			Price:      level.Price,
			Size:       qty,
			At:         taker.CreatedAt,
		})

		if maker.Size == 0 {
			level.PopHead()
			maker.Status = Filled
		}
		rep.Touched = append(rep.Touched, maker.Snapshot())

		last = level.Price
		e.ladder.RemoveIfEmpty(opp, level.Price)
	}
	return last
}

// crosses reports whether a taker limit on side s at price may trade
// against a resting opposite level at best.
func crosses(s Side, price, best int64) bool {
	if s == Bid {
		return best <= price
	}
	return best >= price
}
