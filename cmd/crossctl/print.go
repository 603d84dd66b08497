package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"cross/api/grpcserver"
)

func (c *cli) printSubmit(res *grpcserver.SubmitResponse) {
	fmt.Printf("seq %d\n", res.Seq)
	if res.Order != nil {
		c.printOrders("order", []grpcserver.Order{*res.Order})
	}
	if len(res.Fills) > 0 {
		c.printFills("fills", res.Fills)
	}
	for _, t := range res.Triggered {
		fmt.Printf("stop %d triggered\n", t.Stop.ID)
		c.printFills("triggered fills", t.Fills)
	}
	for _, w := range res.Warnings {
		fmt.Println("warning:", w)
	}
}

func (c *cli) printOrders(title string, orders []grpcserver.Order) {
	writer := tablewriter.NewWriter(os.Stdout)
	writer.SetHeader([]string{"ID", "owner", "side", "kind", "status", "price", "size", "filled", "time"})
	for _, o := range orders {
		writer.Append([]string{
			strconv.FormatUint(o.ID, 10), o.Owner, o.Side, o.Kind, o.Status,
			c.display(o.Price), strconv.FormatInt(o.Size, 10), strconv.FormatInt(o.Filled, 10),
			time.UnixMilli(o.CreatedAt).UTC().Format(time.RFC3339),
		})
	}
	writer.SetCaption(true, title)
	writer.Render()
}

func (c *cli) printFills(title string, fills []grpcserver.Fill) {
	writer := tablewriter.NewWriter(os.Stdout)
	writer.SetHeader([]string{"maker", "taker", "taker side", "size", "price"})
	for _, f := range fills {
		writer.Append([]string{
			strconv.FormatUint(f.MakerID, 10), strconv.FormatUint(f.TakerID, 10), f.TakerSide,
			strconv.FormatInt(f.Size, 10), c.display(f.Price),
		})
	}
	writer.SetCaption(true, title)
	writer.Render()
}

func (c *cli) printLevels(title string, levels []grpcserver.Level) {
	writer := tablewriter.NewWriter(os.Stdout)
	writer.SetHeader([]string{"price", "size", "orders"})
	for _, l := range levels {
		writer.Append([]string{c.display(l.Price), strconv.FormatInt(l.Size, 10), strconv.Itoa(l.Orders)})
	}
	writer.SetCaption(true, title)
	writer.Render()
}

func (c *cli) printHistory(res *grpcserver.PriceHistoryResponse) {
	writer := tablewriter.NewWriter(os.Stdout)
	writer.SetHeader([]string{"day", "open", "close", "high", "low"})
	for _, d := range res.Days {
		writer.Append([]string{
			strconv.Itoa(d.Day), c.display(d.Open), c.display(d.Close), c.display(d.High), c.display(d.Low),
		})
	}
	writer.SetCaption(true, "price history")
	writer.Render()
}
