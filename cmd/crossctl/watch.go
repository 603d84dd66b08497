package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	"github.com/olekukonko/tablewriter"

	"cross/service"
)

// watch prints the owner's notifications until the connection drops.
// Notifications queued while the owner was offline arrive first.
func (c *cli) watch(owner string) error {
	u := url.URL{Scheme: "ws", Host: c.httpURL, Path: "/ws", RawQuery: url.Values{"owner": {owner}}.Encode()}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return errors.Wrapf(err, "connect %s", u.String())
	}
	defer conn.Close()
	fmt.Printf("watching %s, ctrl-c to stop\n", owner)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return errors.Wrap(err, "read notification")
		}
		var n service.Notification
		if err := json.Unmarshal(msg, &n); err != nil {
			fmt.Println(string(msg))
			continue
		}

		writer := tablewriter.NewWriter(os.Stdout)
		writer.SetHeader([]string{"order", "type", "order type", "size", "price"})
		for _, t := range n.Trades {
			writer.Append([]string{strconv.FormatUint(t.OrderID, 10), t.Type, t.OrderType, strconv.FormatInt(t.Size, 10), t.DisplayPrice})
		}
		writer.SetCaption(true, fmt.Sprintf("%s %s seq %d", n.Symbol, n.Event, n.Seq))
		writer.Render()
	}
}
