package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/urfave/cli/v2"
)

var watchCmd = cli.Command{
	Name:   "watch",
	Usage:  "subscribe to the live feed and print price updates and trades",
	Action: watchAction,
}

func watchAction(ctx *cli.Context) error {
	conn, _, err := websocket.DefaultDialer.Dial(ctx.String("feedserver"), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	done := make(chan error, 1)
	go func() {
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				done <- err
				return
			}

			pretty := &bytes.Buffer{}
			if err := json.Indent(pretty, message, "", "  "); err != nil {
				continue
			}
			fmt.Println(pretty.String())
		}
	}()

	select {
	case <-sigChan:
		// nolint:errcheck
		conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return nil
	case err := <-done:
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil
		}
		return err
	}
}
