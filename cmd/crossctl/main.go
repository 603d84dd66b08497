// Command crossctl is a terminal client for the cross engine. With a
// command it runs once; without one it reads commands from stdin.
//
//	limit  <owner> <ask|bid> <size> <price>
//	market <owner> <ask|bid> <size>
//	stop   <owner> <ask|bid> <size> <price>
//	cancel <order id>
//	depth  [levels]
//	history <month> [year]
//	watch  <owner>
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"

	"cross/api/grpcserver"
)

type cli struct {
	client  *grpcserver.Client
	scale   int32
	httpURL string
	timeout time.Duration
}

func main() {
	addr := flag.String("addr", "localhost:50051", "gRPC address of the engine")
	httpAddr := flag.String("http", "localhost:8080", "HTTP address of the engine, used by watch")
	scale := flag.Int("scale", 3, "price decimal places of the instrument")
	timeout := flag.Duration("timeout", 5*time.Second, "per-request timeout")
	flag.Parse()

	conn, err := grpcserver.Dial(*addr)
	if err != nil {
		log.Fatalf("dial %s: %v", *addr, err)
	}
	defer conn.Close()

	c := &cli{
		client:  grpcserver.NewClient(conn),
		scale:   int32(*scale),
		httpURL: *httpAddr,
		timeout: *timeout,
	}

	if flag.NArg() > 0 {
		if err := c.exec(flag.Args()); err != nil {
			log.Fatal(err)
		}
		return
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("cross> ")
		if !scanner.Scan() {
			return
		}
		text := strings.TrimSpace(scanner.Text())
		if i := strings.Index(text, "#"); i >= 0 {
			text = strings.TrimSpace(text[:i])
		}
		if text == "" {
			continue
		}
		if text == "exit" || text == "quit" {
			return
		}
		if err := c.exec(strings.Fields(text)); err != nil {
			fmt.Println("error:", err)
		}
	}
}

func (c *cli) exec(args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	switch args[0] {
	case "limit", "stop":
		if len(args) != 5 {
			return errors.Newf("usage: %s <owner> <ask|bid> <size> <price>", args[0])
		}
		size, err := strconv.ParseInt(args[3], 10, 64)
		if err != nil {
			return errors.Wrap(err, "size")
		}
		price, err := c.ticks(args[4])
		if err != nil {
			return err
		}
		var res *grpcserver.SubmitResponse
		if args[0] == "limit" {
			res, err = c.client.SubmitLimit(ctx, &grpcserver.LimitRequest{Owner: args[1], Side: args[2], Size: size, Price: price})
		} else {
			res, err = c.client.SubmitStop(ctx, &grpcserver.StopRequest{Owner: args[1], Side: args[2], Size: size, Price: price})
		}
		if err != nil {
			return err
		}
		c.printSubmit(res)

	case "market":
		if len(args) != 4 {
			return errors.New("usage: market <owner> <ask|bid> <size>")
		}
		size, err := strconv.ParseInt(args[3], 10, 64)
		if err != nil {
			return errors.Wrap(err, "size")
		}
		res, err := c.client.SubmitMarket(ctx, &grpcserver.MarketRequest{Owner: args[1], Side: args[2], Size: size})
		if err != nil {
			return err
		}
		if res.Order == nil {
			fmt.Println("no liquidity, nothing executed")
			return nil
		}
		c.printSubmit(res)

	case "cancel":
		if len(args) != 2 {
			return errors.New("usage: cancel <order id>")
		}
		id, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return errors.Wrap(err, "order id")
		}
		res, err := c.client.Cancel(ctx, &grpcserver.CancelRequest{OrderID: id})
		if err != nil {
			return err
		}
		if !res.Found {
			fmt.Printf("order %d not found\n", id)
			return nil
		}
		c.printOrders("canceled", []grpcserver.Order{*res.Order})

	case "depth":
		levels := 0
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return errors.Wrap(err, "levels")
			}
			levels = n
		}
		res, err := c.client.Depth(ctx, &grpcserver.DepthRequest{Levels: levels})
		if err != nil {
			return err
		}
		c.printLevels("asks", res.Asks)
		c.printLevels("bids", res.Bids)

	case "history":
		if len(args) < 2 {
			return errors.New("usage: history <month> [year]")
		}
		month, err := strconv.Atoi(args[1])
		if err != nil {
			return errors.Wrap(err, "month")
		}
		year := 0
		if len(args) > 2 {
			if year, err = strconv.Atoi(args[2]); err != nil {
				return errors.Wrap(err, "year")
			}
		}
		res, err := c.client.PriceHistory(ctx, &grpcserver.PriceHistoryRequest{Year: year, Month: month})
		if err != nil {
			return err
		}
		c.printHistory(res)

	case "watch":
		if len(args) != 2 {
			return errors.New("usage: watch <owner>")
		}
		return c.watch(args[1])

	default:
		return errors.Newf("unknown command %q", args[0])
	}
	return nil
}

// ticks converts a decimal price to integer ticks, rejecting prices finer
// than the instrument scale.
func (c *cli) ticks(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, errors.Wrapf(err, "price %q", s)
	}
	shifted := d.Shift(c.scale)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, errors.Newf("price %s has more than %d decimals", s, c.scale)
	}
	return shifted.IntPart(), nil
}

func (c *cli) display(ticks int64) string {
	return decimal.New(ticks, -c.scale).StringFixed(c.scale)
}
