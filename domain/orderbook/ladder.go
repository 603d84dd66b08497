package orderbook

import "github.com/cockroachdb/errors"

// Ladder holds both sides of the book. Asks are best at the lowest price,
// bids at the highest. It has no lock of its own; the engine's caller
// guarantees exclusive access.
type Ladder struct {
	asks *priceTree
	bids *priceTree
}

func NewLadder() *Ladder {
	return &Ladder{
		asks: newPriceTree(Ask),
		bids: newPriceTree(Bid),
	}
}

func (l *Ladder) tree(s Side) *priceTree {
	switch s {
	case Ask:
		return l.asks
	case Bid:
		return l.bids
	}
	panic(errors.AssertionFailedf("INVALID_SIDE: ladder has no %s book", s))
}

// BestLevel returns the most aggressive level of side s, or nil.
func (l *Ladder) BestLevel(s Side) *PriceLevel {
	if s == Ask {
		return l.asks.lowest()
	}
	return l.tree(s).highest()
}

func (l *Ladder) BestPrice(s Side) (int64, bool) {
	lvl := l.BestLevel(s)
	if lvl == nil {
		return 0, false
	}
	return lvl.Price, true
}

// SizeAt is the aggregate resting size at price, 0 when no level exists.
func (l *Ladder) SizeAt(s Side, price int64) int64 {
	if lvl := l.tree(s).find(price); lvl != nil {
		return lvl.TotalSize()
	}
	return 0
}

// QueueAt returns the live FIFO at price or nil.
func (l *Ladder) QueueAt(s Side, price int64) *PriceLevel {
	return l.tree(s).find(price)
}

func (l *Ladder) UpsertLevel(s Side, price int64) *PriceLevel {
	return l.tree(s).upsert(price)
}

// RemoveIfEmpty drops the level at price once its queue has drained.
func (l *Ladder) RemoveIfEmpty(s Side, price int64) bool {
	t := l.tree(s)
	lvl := t.find(price)
	if lvl == nil || !lvl.Empty() {
		return false
	}
	return t.delete(price)
}

// Walk visits the levels of side s from best to worst until fn returns false.
func (l *Ladder) Walk(s Side, fn func(*PriceLevel) bool) {
	if s == Ask {
		l.asks.ascend(fn)
		return
	}
	l.tree(s).descend(fn)
}

// AbsorbPrice returns the worst price a market order of size would have to
// reach on side s. If s cannot absorb size entirely, the worst resting price
// is returned. ok is false only when s is empty.
func (l *Ladder) AbsorbPrice(s Side, size int64) (price int64, ok bool) {
	var cum int64
	l.Walk(s, func(lvl *PriceLevel) bool {
		price, ok = lvl.Price, true
		cum += lvl.TotalSize()
		return cum < size
	})
	return price, ok
}

func (l *Ladder) Levels(s Side) int {
	return l.tree(s).len()
}

// LevelView is an aggregated, read-only price level.
type LevelView struct {
	Price  int64
	Size   int64
	Orders int
}

type Depth struct {
	Asks []LevelView
	Bids []LevelView
}

// Depth aggregates the top n levels of each side; n <= 0 means all.
func (l *Ladder) Depth(n int) Depth {
	collect := func(s Side) []LevelView {
		out := make([]LevelView, 0, min(max(n, 0), l.Levels(s)))
		l.Walk(s, func(lvl *PriceLevel) bool {
			out = append(out, LevelView{Price: lvl.Price, Size: lvl.TotalSize(), Orders: lvl.Len()})
			return n <= 0 || len(out) < n
		})
		return out
	}
	return Depth{Asks: collect(Ask), Bids: collect(Bid)}
}

// Orders returns snapshots of every resting order in price-time priority.
func (l *Ladder) Orders(s Side) []Order {
	var out []Order
	l.Walk(s, func(lvl *PriceLevel) bool {
		for o := lvl.Head(); o != nil; o = o.Next() {
			out = append(out, o.Snapshot())
		}
		return true
	})
	return out
}

// Verify checks the structural invariants of both sides and returns the
// first violation found.
func (l *Ladder) Verify() error {
	for _, t := range []*priceTree{l.asks, l.bids} {
		if t.root.color != black || t.blackHeight(t.root) < 0 {
			return errors.Newf("%s tree violates red-black properties", t.side)
		}
		var (
			prev   int64
			levels int
			err    error
		)
		t.ascend(func(lvl *PriceLevel) bool {
			if levels > 0 && lvl.Price <= prev {
				err = errors.Newf("%s levels out of order: %d after %d", t.side, lvl.Price, prev)
				return false
			}
			if lvl.Empty() {
				err = errors.Newf("%s level %d is empty", t.side, lvl.Price)
				return false
			}
			var sum int64
			var count int
			var back *Order
			for o := lvl.Head(); o != nil; o = o.Next() {
				if o.Size <= 0 {
					err = errors.Newf("order %d rests with size %d", o.ID, o.Size)
					return false
				}
				if o.Side != t.side || o.Price != lvl.Price {
					err = errors.Newf("order %d (%s@%d) misplaced at %s level %d", o.ID, o.Side, o.Price, t.side, lvl.Price)
					return false
				}
				if o.prev != back {
					err = errors.Newf("order %d has a broken back link", o.ID)
					return false
				}
				if back != nil && back.ID >= o.ID {
					err = errors.Newf("level %d not in insertion order: %d before %d", lvl.Price, back.ID, o.ID)
					return false
				}
				back = o
				sum += o.Size
				count++
			}
			if lvl.tail != back || sum != lvl.TotalSize() || count != lvl.Len() {
				err = errors.Newf("level %d aggregates drifted: total %d/%d count %d/%d", lvl.Price, lvl.TotalSize(), sum, lvl.Len(), count)
				return false
			}
			prev = lvl.Price
			levels++
			return true
		})
		if err != nil {
			return err
		}
		if levels != t.len() {
			return errors.Newf("%s tree size %d but %d levels reachable", t.side, t.len(), levels)
		}
	}
	return nil
}
