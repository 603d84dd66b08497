package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cross/domain/orderbook"
	exitwal "cross/infra/wal/exit"
)

// Pusher delivers a payload to an owner's live session, reporting false
// when the owner has none.
type Pusher interface {
	Push(owner string, payload []byte) bool
}

// Outbox durably queues payloads per topic.
type Outbox interface {
	Put(topic string, payloads ...[]byte) ([]uint64, error)
}

const (
	EventFill      = "fill"
	EventTriggered = "triggered"
)

// Notification is what an owner receives for one command.
type Notification struct {
	ID     string  `json:"id"`
	Owner  string  `json:"owner"`
	Event  string  `json:"event"`
	Symbol string  `json:"symbol"`
	Seq    uint64  `json:"seq"`
	StopID uint64  `json:"stopId,omitempty"`
	Trades []Trade `json:"trades"`
}

// Trade is one side of a fill, seen from the receiving owner's order.
type Trade struct {
	OrderID      uint64 `json:"orderId"`
	Type         string `json:"type"`
	OrderType    string `json:"orderType"`
	Size         int64  `json:"size"`
	Price        int64  `json:"price"`
	DisplayPrice string `json:"displayPrice"`
	Timestamp    int64  `json:"timestamp"`
}

// TapeEvent is one execution on the public trade tape.
type TapeEvent struct {
	Symbol       string `json:"symbol"`
	Seq          uint64 `json:"seq"`
	MakerID      uint64 `json:"makerId"`
	TakerID      uint64 `json:"takerId"`
	TakerSide    string `json:"takerSide"`
	Size         int64  `json:"size"`
	Price        int64  `json:"price"`
	DisplayPrice string `json:"displayPrice"`
	Timestamp    int64  `json:"timestamp"`
}

// Dispatcher routes a result's fills to their owners: pushed live when the
// owner is connected, otherwise queued in the outbox under the owner's
// topic. With the tape enabled every fill is also queued for the broker.
type Dispatcher struct {
	pusher Pusher
	outbox Outbox
	symbol string
	scale  int32
	tape   bool

	log *slog.Logger
}

type DispatcherOption func(*Dispatcher)

func WithTape(enabled bool) DispatcherOption { return func(d *Dispatcher) { d.tape = enabled } }

func WithDispatchLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.log = l }
}

// NewDispatcher formats prices with scale decimal places.
func NewDispatcher(pusher Pusher, outbox Outbox, symbol string, scale int32, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		pusher: pusher,
		outbox: outbox,
		symbol: symbol,
		scale:  scale,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.With("component", "dispatcher")
	return d
}

func (d *Dispatcher) Notify(_ context.Context, res *Result) error {
	var errs error
	for _, n := range d.notifications(res) {
		payload, err := json.Marshal(n)
		if err != nil {
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "encode notification for %s", n.Owner))
			continue
		}
		if d.pusher != nil && d.pusher.Push(n.Owner, payload) {
			continue
		}
		if _, err := d.outbox.Put(exitwal.UserTopic(n.Owner), payload); err != nil {
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "queue notification for %s", n.Owner))
			continue
		}
		d.log.Debug("owner offline, notification queued", "owner", n.Owner, "seq", res.Seq)
	}

	if d.tape {
		if err := d.queueTape(res); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	return errs
}

// notifications groups trades by receiving owner and event, in the order
// owners first appear in the execution.
func (d *Dispatcher) notifications(res *Result) []*Notification {
	var out []*Notification
	index := map[[2]string]*Notification{}
	add := func(owner, event string, stopID uint64, t Trade) {
		key := [2]string{owner, event}
		n, ok := index[key]
		if !ok {
			n = &Notification{
				ID:     uuid.NewString(),
				Owner:  owner,
				Event:  event,
				Symbol: d.symbol,
				Seq:    res.Seq,
				StopID: stopID,
			}
			index[key] = n
			out = append(out, n)
		}
		n.Trades = append(n.Trades, t)
	}

	takerKind := orderbook.Limit
	if res.Order != nil {
		takerKind = res.Order.Kind
	}
	for _, f := range res.Fills {
		add(f.TakerOwner, EventFill, 0, d.trade(f.TakerID, f.TakerSide, takerKind, f))
		add(f.MakerOwner, EventFill, 0, d.trade(f.MakerID, f.TakerSide.Opposite(), orderbook.Limit, f))
	}
	for _, t := range res.Triggered {
		for _, f := range t.Report.Fills {
			add(f.TakerOwner, EventTriggered, t.Stop.ID, d.trade(f.TakerID, f.TakerSide, orderbook.Stop, f))
			add(f.MakerOwner, EventFill, 0, d.trade(f.MakerID, f.TakerSide.Opposite(), orderbook.Limit, f))
		}
	}
	return out
}

func (d *Dispatcher) trade(orderID uint64, side orderbook.Side, kind orderbook.Kind, f orderbook.Fill) Trade {
	return Trade{
		OrderID:      orderID,
		Type:         side.String(),
		OrderType:    kind.String(),
		Size:         f.Size,
		Price:        f.Price,
		DisplayPrice: d.display(f.Price),
		Timestamp:    f.At.UnixMilli(),
	}
}

func (d *Dispatcher) queueTape(res *Result) error {
	fills := res.AllFills()
	if len(fills) == 0 {
		return nil
	}
	payloads := make([][]byte, 0, len(fills))
	for _, f := range fills {
		b, err := json.Marshal(TapeEvent{
			Symbol:       d.symbol,
			Seq:          res.Seq,
			MakerID:      f.MakerID,
			TakerID:      f.TakerID,
			TakerSide:    f.TakerSide.String(),
			Size:         f.Size,
			Price:        f.Price,
			DisplayPrice: d.display(f.Price),
			Timestamp:    f.At.UnixMilli(),
		})
		if err != nil {
			return errors.Wrap(err, "encode tape event")
		}
		payloads = append(payloads, b)
	}
	if _, err := d.outbox.Put(exitwal.TapeTopic, payloads...); err != nil {
		return errors.Wrapf(err, "queue %d tape events", len(payloads))
	}
	return nil
}

func (d *Dispatcher) display(price int64) string {
	return decimal.New(price, -d.scale).StringFixed(d.scale)
}
