package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/urfave/cli/v2"
)

var getPriceCmd = cli.Command{
	Name:   "getprice",
	Usage:  "fetch the current aggregated price from the daemon",
	Action: getPriceAction,
}

func getPriceAction(ctx *cli.Context) error {
	url := fmt.Sprintf("%s/api/price", ctx.String("rpcserver"))

	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon replied with status %d: %s", resp.StatusCode, body)
	}

	pretty := &bytes.Buffer{}
	if err := json.Indent(pretty, body, "", "  "); err != nil {
		return err
	}

	fmt.Println(pretty.String())
	return nil
}
