package main

import (
	"encoding/hex"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/i2cmgr"
	"github.com/mklimuk/i2cmgr/cmd/i2cmgr/console"
)

var writeCmd = cli.Command{
	Name:      "write",
	Usage:     "write bytes to a device",
	ArgsUsage: "<address> <hex data>",
	Flags: append([]cli.Flag{
		&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "skip the confirmation prompt"},
		&cli.BoolFlag{Name: "no-retry", Usage: "fail on the first recoverable error"},
	}, backendFlags...),
	Action: func(c *cli.Context) error {
		if c.NArg() < 2 {
			return console.Exit(1, "usage: i2cmgr write <address> <hex data>")
		}
		addr, err := parseAddress(c.Args().Get(0))
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		data, err := parseHexBytes(c.Args().Get(1))
		if err != nil {
			return console.Exit(1, "invalid data hex string: %s", console.Red(err))
		}
		if !c.Bool("yes") {
			console.Printf("about to write to %#x:\n%s", addr, hex.Dump(data))
			answer, err := console.YesOrNo("proceed?")
			if err != nil {
				return console.Exit(1, "prompt error: %s", console.Red(err))
			}
			if answer != console.Yes {
				console.PInfof(console.PictoStop, "aborted")
				return nil
			}
		}
		m, err := openManager(c)
		if err != nil {
			return console.Exit(1, "bus initialization error: %s", console.Red(err))
		}
		var rb i2cmgr.Request
		rb.SetWriteParams(addr, data)
		rb.SuppressRetries(c.Bool("no-retry"))
		if err := m.QueueRequest(&rb); err != nil {
			return console.Exit(1, "request rejected: %s", console.Red(err))
		}
		status := rb.Wait()
		if status != i2cmgr.StatusOK {
			return console.Exit(1, "write failed: %s", console.Red(i2cmgr.ErrorMessage(status)))
		}
		console.PInfof(console.PictoFinish, "wrote %s bytes to %s", console.White(len(data)), console.White(fmt.Sprintf("%#x", addr)))
		return nil
	},
}
