package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/i2cmgr"
	"github.com/mklimuk/i2cmgr/cmd/i2cmgr/console"
)

var probeCmd = cli.Command{
	Name:      "probe",
	Usage:     "check whether a device answers at the given address",
	ArgsUsage: "<address>",
	Flags:     backendFlags,
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return console.Exit(1, "usage: i2cmgr probe <address>")
		}
		addr, err := parseAddress(c.Args().Get(0))
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		m, err := openManager(c)
		if err != nil {
			return console.Exit(1, "bus initialization error: %s", console.Red(err))
		}
		status := m.CheckAddress(addr)
		if status != i2cmgr.StatusOK {
			console.PInfof(console.PictoStop, "no device at %s: %s", console.White(fmt.Sprintf("%#x", addr)), console.Yellow(i2cmgr.ErrorMessage(status)))
			return nil
		}
		console.PInfof(console.PictoPin, "device found at %s", console.Green(fmt.Sprintf("%#x", addr)))
		return nil
	},
}
