package i2c

import (
	"fmt"
	"strings"

	"github.com/mklimuk/i2cmgr"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

var _ i2cmgr.Backend = &Backend{}

// Backend drives a kernel-exposed I2C bus through periph.io. The bus
// transaction itself is blocking at the driver level, so it runs on a
// worker goroutine behind the non-blocking backend contract.
type Backend struct {
	dev  string
	bus  i2c.BusCloser
	done i2cmgr.Completion
}

// NewBackend prepares a backend for the named bus (e.g. "/dev/i2c-1" or
// "1"). The bus is opened by Initialize.
func NewBackend(dev string) *Backend {
	return &Backend{dev: dev}
}

func (b *Backend) Initialize() error {
	if b.bus != nil {
		return nil
	}
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("could not init host: %w", err)
	}
	bus, err := i2creg.Open(b.dev)
	if err != nil {
		return fmt.Errorf("could not open i2c bus: %w", err)
	}
	b.bus = bus
	return nil
}

func (b *Backend) SetClockRate(hz uint32) {
	if b.bus == nil {
		return
	}
	_ = b.bus.SetSpeed(physic.Frequency(hz) * physic.Hertz)
}

func (b *Backend) StartTransfer(t i2cmgr.Transfer) {
	gen := b.done.Begin()
	go func() {
		var w, r []byte
		switch t.Op {
		case i2cmgr.OpSend:
			w = t.W
		case i2cmgr.OpRead:
			r = t.R
		case i2cmgr.OpRequest:
			w, r = t.W, t.R
		}
		err := b.bus.Tx(uint16(t.Addr), w, r)
		if err != nil {
			b.done.Post(gen, i2cmgr.Result{Status: mapStatus(err)})
			return
		}
		b.done.Post(gen, i2cmgr.Result{Bytes: len(r), Status: i2cmgr.StatusOK})
	}()
}

func (b *Backend) Poll() (i2cmgr.Result, bool) {
	return b.done.Poll()
}

func (b *Backend) Close() error {
	if b.bus == nil {
		return nil
	}
	return b.bus.Close()
}

// mapStatus maps driver errors onto the status taxonomy. The kernel does
// not report failure modes precisely, so this goes by the error text;
// extend the heuristics per platform.
func mapStatus(err error) i2cmgr.Status {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "remote i/o"), strings.Contains(msg, "no such device"), strings.Contains(msg, "nak"):
		return i2cmgr.StatusNegativeAcknowledge
	case strings.Contains(msg, "arbitration"):
		return i2cmgr.StatusArbitrationLost
	case strings.Contains(msg, "timed out"), strings.Contains(msg, "timeout"):
		return i2cmgr.StatusTimeout
	case strings.Contains(msg, "input/output error"):
		return i2cmgr.StatusBusError
	default:
		return i2cmgr.StatusOtherBusError
	}
}

var _ i2cmgr.LineProbe = &Lines{}

// Lines reads the SDA/SCL logic levels through GPIO, for the stuck-bus
// check at startup. Both pins must be readable while the bus is idle.
type Lines struct {
	sda gpio.PinIO
	scl gpio.PinIO
}

func NewLines(sda, scl string) (*Lines, error) {
	sdaPin := gpioreg.ByName(sda)
	if sdaPin == nil {
		return nil, fmt.Errorf("unknown SDA pin %q", sda)
	}
	sclPin := gpioreg.ByName(scl)
	if sclPin == nil {
		return nil, fmt.Errorf("unknown SCL pin %q", scl)
	}
	return &Lines{sda: sdaPin, scl: sclPin}, nil
}

func (l *Lines) SDA() bool {
	return l.sda.Read() == gpio.High
}

func (l *Lines) SCL() bool {
	return l.scl.Read() == gpio.High
}
