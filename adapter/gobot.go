package adapter

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/mklimuk/i2cmgr"
	"gobot.io/x/gobot/v2/drivers/i2c"
)

var _ i2cmgr.Backend = &Gobot{}

// Gobot drives an I2C bus through any gobot platform adaptor (nanopi,
// raspi, ...). The adaptor must be connected before Begin is called on
// the manager; connection setup is platform-specific and stays with the
// caller. Connections are opened lazily per device address and cached.
type Gobot struct {
	mx        sync.Mutex
	connector i2c.Connector
	busNr     int
	conns     map[byte]i2c.Connection
	done      i2cmgr.Completion
}

// NewGobot wraps connector for the given bus number. Pass a negative
// busNr to use the platform default.
func NewGobot(connector i2c.Connector, busNr int) *Gobot {
	if busNr < 0 {
		busNr = connector.DefaultI2cBus()
	}
	return &Gobot{
		connector: connector,
		busNr:     busNr,
		conns:     make(map[byte]i2c.Connection),
	}
}

func (g *Gobot) Initialize() error {
	return nil
}

func (g *Gobot) SetClockRate(hz uint32) {
	// gobot's sysfs connections run at the rate fixed by the platform;
	// the request is noted but cannot be applied.
	slog.Debug("clock rate request ignored by gobot backend", "hz", hz)
}

func (g *Gobot) StartTransfer(t i2cmgr.Transfer) {
	gen := g.done.Begin()
	go func() {
		conn, err := g.connection(t.Addr)
		if err != nil {
			slog.Debug("connection error", "addr", t.Addr, "error", err)
			g.done.Post(gen, i2cmgr.Result{Status: i2cmgr.StatusNegativeAcknowledge})
			return
		}
		g.done.Post(gen, g.exchange(conn, t))
	}()
}

func (g *Gobot) Poll() (i2cmgr.Result, bool) {
	return g.done.Poll()
}

func (g *Gobot) exchange(conn i2c.Connection, t i2cmgr.Transfer) i2cmgr.Result {
	if t.Op == i2cmgr.OpSend || t.Op == i2cmgr.OpRequest {
		n, err := conn.Write(t.W)
		if err != nil {
			return i2cmgr.Result{Status: i2cmgr.StatusNegativeAcknowledge}
		}
		if n < len(t.W) {
			return i2cmgr.Result{Bytes: 0, Status: i2cmgr.StatusTransmitError}
		}
	}
	if t.Op == i2cmgr.OpRead || t.Op == i2cmgr.OpRequest {
		n, err := conn.Read(t.R)
		if err != nil {
			return i2cmgr.Result{Status: i2cmgr.StatusNegativeAcknowledge}
		}
		return i2cmgr.Result{Bytes: n, Status: i2cmgr.StatusOK}
	}
	return i2cmgr.Result{Status: i2cmgr.StatusOK}
}

func (g *Gobot) connection(addr byte) (i2c.Connection, error) {
	g.mx.Lock()
	defer g.mx.Unlock()
	if conn, ok := g.conns[addr]; ok {
		return conn, nil
	}
	conn, err := g.connector.GetI2cConnection(int(addr), g.busNr)
	if err != nil {
		return nil, fmt.Errorf("could not open connection to %#x on bus %d: %w", addr, g.busNr, err)
	}
	g.conns[addr] = conn
	return conn, nil
}

func (g *Gobot) Close() error {
	g.mx.Lock()
	defer g.mx.Unlock()
	var first error
	for addr, conn := range g.conns {
		if err := conn.Close(); err != nil && first == nil {
			first = fmt.Errorf("could not close connection to %#x: %w", addr, err)
		}
		delete(g.conns, addr)
	}
	return first
}
