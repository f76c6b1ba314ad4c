package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.NewApp()

	app.Version = "0.1.0"
	app.Name = "oracle CLI"
	app.Usage = "Command line interface for oracled daemon operators"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:  "rpcserver",
			Usage: "address of the oracled HTTP interface",
			Value: "http://localhost:9946",
		},
		&cli.StringFlag{
			Name:  "feedserver",
			Usage: "address of the oracled websocket feed interface",
			Value: "ws://localhost:9945/ws",
		},
	}
	app.Commands = append(
		app.Commands,
		&getPriceCmd,
		&watchCmd,
	)

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[oracle] %v\n", err)
	os.Exit(1)
}
