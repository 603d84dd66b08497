package orderbook

import (
	"slices"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

type Side uint8
type Kind uint8
type Status uint8

const (
	Ask Side = iota + 1
	Bid
)

const (
	Limit Kind = iota + 1
	Market
	Stop
)

const (
	Resting Status = iota + 1
	Filled
	Partial
	Canceled
	Pending
	Triggered
)

func (s Side) Valid() bool { return s == Ask || s == Bid }

// Opposite returns the book an order on side s trades against.
func (s Side) Opposite() Side {
	switch s {
	case Ask:
		return Bid
	case Bid:
		return Ask
	}
	panic(errors.AssertionFailedf("INVALID_SIDE: no opposite for %s", s))
}

func (s Side) String() string {
	switch s {
	case Ask:
		return "ask"
	case Bid:
		return "bid"
	default:
		return "unknown"
	}
}

func ParseSide(v string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "ask", "sell":
		return Ask, nil
	case "bid", "buy":
		return Bid, nil
	}
	return 0, errors.Wrapf(ErrInvalidSide, "%q", v)
}

func (k Kind) Valid() bool { return k >= Limit && k <= Stop }

func (k Kind) String() string {
	switch k {
	case Limit:
		return "limit"
	case Market:
		return "market"
	case Stop:
		return "stop"
	default:
		return "unknown"
	}
}

func ParseKind(v string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "limit":
		return Limit, nil
	case "market":
		return Market, nil
	case "stop":
		return Stop, nil
	}
	return 0, errors.Wrapf(ErrInvalidKind, "%q", v)
}

func (s Status) String() string {
	switch s {
	case Resting:
		return "resting"
	case Filled:
		return "filled"
	case Partial:
		return "partial"
	case Canceled:
		return "canceled"
	case Pending:
		return "pending"
	case Triggered:
		return "triggered"
	default:
		return "unknown"
	}
}

// Order is a pure domain entity. Only the engine mutates a live Order;
// everything outside the book sees value copies from Snapshot.
type Order struct {
	ID     uint64
	Side   Side
	Kind   Kind
	Status Status
	Owner  string

	// Price is the limit or stop price. For market orders it is the
	// price of the last level traded against.
	Price int64

	// Size is the remaining quantity for limit and stop orders and the
	// requested quantity for executed market orders.
	Size      int64
	Requested int64
	Filled    int64

	CreatedAt time.Time

	// NotifyTargets lists the counter-party orders of the latest execution
	// this order took part in: every maker a taker traded with, or the one
	// taker that just hit a resting maker.
	NotifyTargets []uint64

	next *Order
	prev *Order
}

// Next walks the owning price level in FIFO order.
func (o *Order) Next() *Order {
	return o.next
}

// Snapshot returns a detached copy safe to hand to other goroutines.
func (o *Order) Snapshot() Order {
	c := *o
	c.next, c.prev = nil, nil
	c.NotifyTargets = slices.Clone(o.NotifyTargets)
	return c
}

func (o *Order) notify(id uint64) {
	if !slices.Contains(o.NotifyTargets, id) {
		o.NotifyTargets = append(o.NotifyTargets, id)
	}
}

// Request is an order submission before the engine assigns an ID.
type Request struct {
	Owner string
	Side  Side
	Kind  Kind
	Size  int64
	Price int64
	At    time.Time
}

// Validate rejects malformed requests before they reach the ladder.
// Market requests carry no price.
func (r Request) Validate() error {
	if !r.Side.Valid() {
		return errors.Wrapf(ErrInvalidSide, "side %d", r.Side)
	}
	if !r.Kind.Valid() {
		return errors.Wrapf(ErrInvalidKind, "kind %d", r.Kind)
	}
	if r.Size <= 0 {
		return errors.Wrapf(ErrInvalidSize, "size %d", r.Size)
	}
	if r.Kind != Market && r.Price <= 0 {
		return errors.Wrapf(ErrInvalidPrice, "price %d", r.Price)
	}
	if strings.TrimSpace(r.Owner) == "" {
		return ErrInvalidOwner
	}
	return nil
}

// Fill is one trade between an incoming taker and a resting maker.
type Fill struct {
	MakerID    uint64
	TakerID    uint64
	MakerOwner string
	TakerOwner string
	TakerSide  Side
	Price      int64
	Size       int64
	At         time.Time
}

// Report is the outcome of one engine operation.
type Report struct {
	// Order is nil when a market order found no liquidity.
	Order   *Order
	Fills   []Fill
	Touched []Order
}

func (r *Report) Executed() bool { return r != nil && len(r.Fills) > 0 }

// Traded is the total quantity exchanged across all fills.
func (r *Report) Traded() int64 {
	var n int64
	for _, f := range r.Fills {
		n += f.Size
	}
	return n
}
