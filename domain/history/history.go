// Package history defines the append-only record of accepted orders and
// executions, and the daily price fold computed over it.
package history

import (
	"sort"
	"time"

	"cross/domain/orderbook"
)

// Entry is everything one sequenced command produced, handed to the
// history sink after the book has been released.
type Entry struct {
	Seq    uint64
	At     time.Time
	Orders []orderbook.Order
	Fills  []orderbook.Fill
}

func (e Entry) Empty() bool { return len(e.Orders) == 0 && len(e.Fills) == 0 }

// Execution is a persisted trade used for price history.
type Execution struct {
	Seq   uint64
	At    time.Time
	Price int64
	Size  int64
}

// DayPrice is the open/close/high/low of one UTC day.
type DayPrice struct {
	Day   int   `json:"day"`
	Open  int64 `json:"open"`
	Close int64 `json:"close"`
	High  int64 `json:"high"`
	Low   int64 `json:"low"`

	trades int
}

func (d *DayPrice) update(price int64) {
	if d.trades == 0 {
		d.Open, d.High, d.Low = price, price, price
	}
	d.trades++
	d.Close = price
	d.High = max(d.High, price)
	d.Low = min(d.Low, price)
}

// Fold aggregates executions of the given month into per-day prices. With
// year 0 every year's executions for that month are folded together.
// Executions are ordered by time, then sequence, before folding.
func Fold(execs []Execution, year int, month time.Month) []DayPrice {
	sorted := make([]Execution, 0, len(execs))
	for _, x := range execs {
		at := x.At.UTC()
		if at.Month() != month || (year != 0 && at.Year() != year) {
			continue
		}
		sorted = append(sorted, x)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].At.Equal(sorted[j].At) {
			return sorted[i].At.Before(sorted[j].At)
		}
		return sorted[i].Seq < sorted[j].Seq
	})

	days := map[int]*DayPrice{}
	for _, x := range sorted {
		d := x.At.UTC().Day()
		dp, ok := days[d]
		if !ok {
			dp = &DayPrice{Day: d}
			days[d] = dp
		}
		dp.update(x.Price)
	}

	out := make([]DayPrice, 0, len(days))
	for _, dp := range days {
		out = append(out, *dp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}

// MonthRange returns the half-open UTC interval covering month of year.
func MonthRange(year int, month time.Month) (from, to time.Time) {
	from = time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}
