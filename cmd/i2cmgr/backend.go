package main

import (
	"fmt"
	"strconv"

	chlog "github.com/charmbracelet/log"
	"github.com/urfave/cli/v2"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"

	"github.com/mklimuk/i2cmgr"
	"github.com/mklimuk/i2cmgr/adapter"
	"github.com/mklimuk/i2cmgr/i2c"
)

var backendFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "backend",
		Aliases: []string{"b"},
		Usage:   "bus access method (periph, mcp2221, gobot)",
		Value:   "periph",
	},
	&cli.StringFlag{
		Name:    "device",
		Aliases: []string{"d"},
		Usage:   "bus name for the periph backend",
		Value:   "/dev/i2c-1",
	},
	&cli.IntFlag{
		Name:  "bus",
		Usage: "bus number for the gobot backend (-1 for platform default)",
		Value: -1,
	},
	&cli.UintFlag{
		Name:  "clock",
		Usage: "bus clock rate in Hz",
	},
	&cli.DurationFlag{
		Name:  "timeout",
		Usage: "per-attempt transaction timeout",
	},
}

// openManager builds a manager over the selected backend and brings the
// backend up without triggering the full startup scan; scan does that
// itself through Begin.
func openManager(c *cli.Context) (*i2cmgr.Manager, error) {
	be, opts, err := openBackend(c)
	if err != nil {
		return nil, err
	}
	if err := be.Initialize(); err != nil {
		return nil, fmt.Errorf("backend initialization error: %w", err)
	}
	// the charm logger satisfies the manager's diagnostic contract
	opts = append(opts, i2cmgr.WithDiag(chlog.Default()))
	m := i2cmgr.New(be, opts...)
	if hz := c.Uint("clock"); hz > 0 {
		m.SetClock(uint32(hz))
	}
	if d := c.Duration("timeout"); d > 0 {
		m.SetTimeout(d)
	}
	return m, nil
}

func openBackend(c *cli.Context) (i2cmgr.Backend, []i2cmgr.Option, error) {
	switch c.String("backend") {
	case "mcp2221":
		mcp := adapter.NewMCP2221()
		return mcp, []i2cmgr.Option{i2cmgr.WithLines(adapter.NewMCP2221Lines(mcp))}, nil
	case "gobot":
		npi := nanopi.NewNeoAdaptor()
		if err := npi.I2cBusAdaptor.Connect(); err != nil {
			return nil, nil, fmt.Errorf("adaptor connect error: %w", err)
		}
		return adapter.NewGobot(npi, c.Int("bus")), nil, nil
	case "periph":
		return i2c.NewBackend(c.String("device")), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", c.String("backend"))
	}
}

func parseAddress(arg string) (byte, error) {
	addr, err := strconv.ParseUint(arg, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid device address %q: %w", arg, err)
	}
	if addr < i2cmgr.FirstAddress || addr > i2cmgr.LastAddress {
		return 0, fmt.Errorf("device address %#x out of range", addr)
	}
	return byte(addr), nil
}

// parseHexBytes decodes a compact hex string ("01ff23") into bytes.
func parseHexBytes(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("hex string must have even length")
	}
	b := make([]byte, len(s)/2)
	for i := 0; i < len(b); i++ {
		v, err := strconv.ParseUint(s[2*i:2*i+2], 16, 8)
		if err != nil {
			return nil, err
		}
		b[i] = byte(v)
	}
	return b, nil
}
