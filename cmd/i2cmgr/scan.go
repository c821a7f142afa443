package main

import (
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/i2cmgr/cmd/i2cmgr/console"
)

var scanCmd = cli.Command{
	Name:  "scan",
	Usage: "initialize the bus and report every responding device address",
	Flags: backendFlags,
	Action: func(c *cli.Context) error {
		m, err := openManager(c)
		if err != nil {
			return console.Exit(1, "bus initialization error: %s", console.Red(err))
		}
		// Begin runs the address scan and reports findings through the
		// diagnostic logger.
		err = m.Begin()
		if err != nil {
			return console.Exit(1, "bus scan error: %s", console.Red(err))
		}
		console.PInfof(console.PictoFinish, "scan complete")
		return nil
	},
}
