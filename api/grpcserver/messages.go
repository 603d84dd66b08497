package grpcserver

import (
	"cross/domain/history"
	"cross/domain/orderbook"
	"cross/service"
)

// -------------------- Requests --------------------

type LimitRequest struct {
	Owner string `json:"owner"`
	Side  string `json:"side"`
	Size  int64  `json:"size"`
	Price int64  `json:"price"`
}

type MarketRequest struct {
	Owner string `json:"owner"`
	Side  string `json:"side"`
	Size  int64  `json:"size"`
}

type StopRequest struct {
	Owner string `json:"owner"`
	Side  string `json:"side"`
	Size  int64  `json:"size"`
	Price int64  `json:"price"`
}

type CancelRequest struct {
	OrderID uint64 `json:"orderId"`
}

type DepthRequest struct {
	// Levels per side; 0 returns the whole book.
	Levels int `json:"levels"`
}

type PriceHistoryRequest struct {
	// Year 0 folds the month across every year.
	Year  int `json:"year"`
	Month int `json:"month"`
}

// -------------------- Responses --------------------

type Order struct {
	ID            uint64   `json:"id"`
	Owner         string   `json:"owner"`
	Side          string   `json:"side"`
	Kind          string   `json:"kind"`
	Status        string   `json:"status"`
	Price         int64    `json:"price"`
	Size          int64    `json:"size"`
	Requested     int64    `json:"requested"`
	Filled        int64    `json:"filled"`
	CreatedAt     int64    `json:"createdAt"`
	NotifyTargets []uint64 `json:"notifyTargets,omitempty"`
}

type Fill struct {
	MakerID   uint64 `json:"makerId"`
	TakerID   uint64 `json:"takerId"`
	TakerSide string `json:"takerSide"`
	Price     int64  `json:"price"`
	Size      int64  `json:"size"`
}

type Trigger struct {
	Stop   Order  `json:"stop"`
	Market *Order `json:"market,omitempty"`
	Fills  []Fill `json:"fills"`
}

type SubmitResponse struct {
	Seq       uint64    `json:"seq"`
	Order     *Order    `json:"order,omitempty"`
	Fills     []Fill    `json:"fills,omitempty"`
	Touched   []Order   `json:"touched,omitempty"`
	Triggered []Trigger `json:"triggered,omitempty"`
	Warnings  []string  `json:"warnings,omitempty"`
}

// CancelResponse reports a missing order as Found=false rather than an
// error status, so cancel stays idempotent for clients.
type CancelResponse struct {
	Found     bool      `json:"found"`
	Seq       uint64    `json:"seq,omitempty"`
	Order     *Order    `json:"order,omitempty"`
	Triggered []Trigger `json:"triggered,omitempty"`
	Warnings  []string  `json:"warnings,omitempty"`
}

type Level struct {
	Price  int64 `json:"price"`
	Size   int64 `json:"size"`
	Orders int   `json:"orders"`
}

type DepthResponse struct {
	Asks []Level `json:"asks"`
	Bids []Level `json:"bids"`
}

type PriceHistoryResponse struct {
	Days []history.DayPrice `json:"days"`
}

// -------------------- Converters --------------------

func orderOf(o orderbook.Order) Order {
	return Order{
		ID:            o.ID,
		Owner:         o.Owner,
		Side:          o.Side.String(),
		Kind:          o.Kind.String(),
		Status:        o.Status.String(),
		Price:         o.Price,
		Size:          o.Size,
		Requested:     o.Requested,
		Filled:        o.Filled,
		CreatedAt:     o.CreatedAt.UnixMilli(),
		NotifyTargets: o.NotifyTargets,
	}
}

func orderPtr(o *orderbook.Order) *Order {
	if o == nil {
		return nil
	}
	v := orderOf(*o)
	return &v
}

func fillsOf(fills []orderbook.Fill) []Fill {
	out := make([]Fill, 0, len(fills))
	for _, f := range fills {
		out = append(out, Fill{
			MakerID:   f.MakerID,
			TakerID:   f.TakerID,
			TakerSide: f.TakerSide.String(),
			Price:     f.Price,
			Size:      f.Size,
		})
	}
	return out
}

func triggersOf(ts []orderbook.Trigger) []Trigger {
	out := make([]Trigger, 0, len(ts))
	for _, t := range ts {
		out = append(out, Trigger{
			Stop:   orderOf(t.Stop),
			Market: orderPtr(t.Report.Order),
			Fills:  fillsOf(t.Report.Fills),
		})
	}
	return out
}

func submitResponse(res *service.Result) *SubmitResponse {
	out := &SubmitResponse{
		Seq:       res.Seq,
		Order:     orderPtr(res.Order),
		Fills:     fillsOf(res.Fills),
		Triggered: triggersOf(res.Triggered),
		Warnings:  res.Warnings,
	}
	for _, o := range res.Touched {
		out.Touched = append(out.Touched, orderOf(o))
	}
	return out
}

func levelsOf(views []orderbook.LevelView) []Level {
	out := make([]Level, 0, len(views))
	for _, v := range views {
		out = append(out, Level{Price: v.Price, Size: v.Size, Orders: v.Orders})
	}
	return out
}
