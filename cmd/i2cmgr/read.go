package main

import (
	"encoding/hex"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/i2cmgr"
	"github.com/mklimuk/i2cmgr/cmd/i2cmgr/console"
)

var readCmd = cli.Command{
	Name:      "read",
	Usage:     "read bytes from a device, optionally after command bytes",
	ArgsUsage: "<address>",
	Flags: append([]cli.Flag{
		&cli.IntFlag{Name: "length", Aliases: []string{"l"}, Usage: "number of bytes to read", Value: 1},
		&cli.StringFlag{Name: "command", Usage: "hex command bytes written before the read (e.g. '0f')"},
	}, backendFlags...),
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return console.Exit(1, "usage: i2cmgr read <address>")
		}
		addr, err := parseAddress(c.Args().Get(0))
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		length := c.Int("length")
		if length <= 0 {
			return console.Exit(1, "length out of range: %d", length)
		}
		var command []byte
		if s := c.String("command"); s != "" {
			command, err = parseHexBytes(s)
			if err != nil {
				return console.Exit(1, "invalid command hex string: %s", console.Red(err))
			}
		}
		m, err := openManager(c)
		if err != nil {
			return console.Exit(1, "bus initialization error: %s", console.Red(err))
		}

		var rb i2cmgr.Request
		buf := make([]byte, length)
		if len(command) == 0 {
			rb.SetReadParams(addr, buf)
		} else {
			rb.SetRequestParams(addr, buf, command)
		}
		if err := m.QueueRequest(&rb); err != nil {
			return console.Exit(1, "request rejected: %s", console.Red(err))
		}
		status := rb.Wait()
		if status != i2cmgr.StatusOK && status != i2cmgr.StatusTruncated {
			return console.Exit(1, "read failed: %s", console.Red(i2cmgr.ErrorMessage(status)))
		}
		if status == i2cmgr.StatusTruncated {
			console.Warnf("short read: %d of %d bytes", rb.Received(), length)
		}
		console.Print(hex.Dump(rb.Data()))
		return nil
	},
}
