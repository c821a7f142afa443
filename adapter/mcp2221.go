package adapter

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/karalabe/hid"
	"github.com/mklimuk/i2cmgr"
)

const VendorID = 0x04D8
const ProductID = 0x00DD

var ErrDeviceNotFound = errors.New("MCP2221 device not found")
var ErrCommandFailed = errors.New("command failed")

// MCP2221 command report codes.
const (
	cmdStatus    = 0x10
	cmdReadData  = 0x40
	cmdWriteData = 0x90
	cmdReadStart = 0x91
)

// Status report layout offsets (response to cmdStatus).
const (
	statusEngineState = 8
	statusRequested   = 9  // 16-bit LE
	statusTransferred = 11 // 16-bit LE
	statusBufCounter  = 13
	statusDivider     = 14
	statusTimeoutVal  = 15
	statusAddress     = 16 // 16-bit LE
	statusAckFlags    = 20
	statusSCL         = 22
	statusSDA         = 23
	statusReadPending = 25
)

const engineIdle = 0x00
const ackNakMask = 0b01000000

// The adapter's internal bus clock from which the I2C rate is divided.
const busClockHz = 12_000_000

var _ i2cmgr.Backend = &MCP2221{}

// MCP2221 drives an I2C bus through the Microchip MCP2221 USB-HID
// bridge. Commands travel as 64-byte HID reports; transfer completion is
// observed by polling the adapter's status report, so the whole exchange
// runs on a worker goroutine behind the non-blocking backend contract.
type MCP2221 struct {
	mx           sync.Mutex
	dev          *hid.Device
	request      []byte
	response     []byte
	responseWait time.Duration
	done         i2cmgr.Completion
}

// MCP2221Status mirrors the interesting fields of the adapter's status
// report, for operator inspection.
type MCP2221Status struct {
	EngineState            int
	I2CDataBufferCounter   int
	I2CSpeedDivider        int
	I2CTimeout             int
	CurrentAddress         string
	LastWriteRequestedSize uint16
	LastWriteSentSize      uint16
	ReadPending            int
	SCLHigh                bool
	SDAHigh                bool
}

func NewMCP2221() *MCP2221 {
	return &MCP2221{
		request:      make([]byte, 64),
		response:     make([]byte, 64),
		responseWait: 10 * time.Millisecond,
	}
}

func (d *MCP2221) Initialize() error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.dev != nil {
		return nil
	}
	devs := hid.Enumerate(VendorID, ProductID)
	if len(devs) == 0 {
		return ErrDeviceNotFound
	}
	dev, err := devs[0].Open()
	if err != nil {
		return fmt.Errorf("error opening device: %w", err)
	}
	d.dev = dev
	// Cancel any transfer left over from a previous run.
	d.resetBuffers()
	d.request[0] = cmdStatus
	d.request[2] = 0x10
	return d.exchange()
}

// SetClockRate programs the adapter's I2C clock divider.
func (d *MCP2221) SetClockRate(hz uint32) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.dev == nil || hz == 0 {
		return
	}
	d.resetBuffers()
	d.request[0] = cmdStatus
	d.request[3] = 0x20
	d.request[4] = byte(busClockHz/hz - 3)
	if err := d.exchange(); err != nil {
		slog.Debug("clock divider update failed", "error", err)
	}
}

func (d *MCP2221) StartTransfer(t i2cmgr.Transfer) {
	gen := d.done.Begin()
	go d.run(gen, t)
}

func (d *MCP2221) Poll() (i2cmgr.Result, bool) {
	return d.done.Poll()
}

func (d *MCP2221) run(gen uint64, t i2cmgr.Transfer) {
	d.mx.Lock()
	defer d.mx.Unlock()
	var bytes int
	st := i2cmgr.StatusOK
	if t.Op == i2cmgr.OpSend || t.Op == i2cmgr.OpRequest {
		st = d.writePhase(t.Addr, t.W)
	}
	if st == i2cmgr.StatusOK && (t.Op == i2cmgr.OpRead || t.Op == i2cmgr.OpRequest) {
		bytes, st = d.readPhase(t.Addr, t.R)
	}
	d.done.Post(gen, i2cmgr.Result{Bytes: bytes, Status: st})
}

func (d *MCP2221) writePhase(addr byte, buf []byte) i2cmgr.Status {
	d.resetBuffers()
	d.request[0] = cmdWriteData
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buf)))
	d.request[3] = addr << 1
	copy(d.request[4:], buf)
	if err := d.exchange(); err != nil {
		slog.Debug("write command failed", "error", err)
		return i2cmgr.StatusOtherBusError
	}
	if d.response[1] == 0x01 {
		// engine busy, surface as a bus error and let the manager retry
		return i2cmgr.StatusOtherBusError
	}
	return d.awaitIdle()
}

func (d *MCP2221) readPhase(addr byte, buf []byte) (int, i2cmgr.Status) {
	d.resetBuffers()
	d.request[0] = cmdReadStart
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buf)))
	d.request[3] = addr<<1 + 1
	if err := d.exchange(); err != nil {
		slog.Debug("read command failed", "error", err)
		return 0, i2cmgr.StatusOtherBusError
	}
	if d.response[1] == 0x01 {
		return 0, i2cmgr.StatusOtherBusError
	}
	if st := d.awaitIdle(); st != i2cmgr.StatusOK {
		return 0, st
	}
	d.resetBuffers()
	d.request[0] = cmdReadData
	if err := d.exchange(); err != nil {
		return 0, i2cmgr.StatusOtherBusError
	}
	if d.response[1] == 0x41 {
		return 0, i2cmgr.StatusOtherBusError
	}
	n := int(d.response[3])
	if n == 127 {
		// adapter reports no valid data
		return 0, i2cmgr.StatusTransmitError
	}
	if n > len(buf) {
		n = len(buf)
	}
	copy(buf, d.response[4:4+n])
	return n, i2cmgr.StatusOK
}

// awaitIdle polls the status report until the I2C engine returns to the
// idle state, mapping the final engine flags to a status code. The
// manager owns the real deadline; the cap here only bounds the worker.
func (d *MCP2221) awaitIdle() i2cmgr.Status {
	for i := 0; i < 50; i++ {
		d.resetBuffers()
		d.request[0] = cmdStatus
		if err := d.exchange(); err != nil {
			return i2cmgr.StatusOtherBusError
		}
		if d.response[statusAckFlags]&ackNakMask != 0 {
			return i2cmgr.StatusNegativeAcknowledge
		}
		if d.response[statusEngineState] == engineIdle {
			requested := binary.LittleEndian.Uint16(d.response[statusRequested : statusRequested+2])
			sent := binary.LittleEndian.Uint16(d.response[statusTransferred : statusTransferred+2])
			if sent < requested {
				return i2cmgr.StatusTransmitError
			}
			return i2cmgr.StatusOK
		}
		time.Sleep(2 * time.Millisecond)
	}
	return i2cmgr.StatusTimeout
}

// Status queries the adapter and returns a decoded status report.
func (d *MCP2221) Status() (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.dev == nil {
		return nil, ErrDeviceNotFound
	}
	d.resetBuffers()
	d.request[0] = cmdStatus
	if err := d.exchange(); err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return decodeStatus(d.response), nil
}

// Release cancels any in-flight transfer and frees the bus, returning
// the adapter status after cancellation.
func (d *MCP2221) Release() (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.dev == nil {
		return nil, ErrDeviceNotFound
	}
	d.resetBuffers()
	d.request[0] = cmdStatus
	d.request[2] = 0x10
	if err := d.exchange(); err != nil {
		return nil, fmt.Errorf("cancel request failed: %w", err)
	}
	return decodeStatus(d.response), nil
}

func (d *MCP2221) Close() error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.dev == nil {
		return nil
	}
	err := d.dev.Close()
	d.dev = nil
	return err
}

func decodeStatus(buffer []byte) *MCP2221Status {
	return &MCP2221Status{
		EngineState:            int(buffer[statusEngineState]),
		I2CDataBufferCounter:   int(buffer[statusBufCounter]),
		I2CSpeedDivider:        int(buffer[statusDivider]),
		I2CTimeout:             int(buffer[statusTimeoutVal]),
		CurrentAddress:         hex.EncodeToString(buffer[statusAddress : statusAddress+2]),
		LastWriteRequestedSize: binary.LittleEndian.Uint16(buffer[statusRequested : statusRequested+2]),
		LastWriteSentSize:      binary.LittleEndian.Uint16(buffer[statusTransferred : statusTransferred+2]),
		ReadPending:            int(buffer[statusReadPending]),
		SCLHigh:                buffer[statusSCL] != 0,
		SDAHigh:                buffer[statusSDA] != 0,
	}
}

var _ i2cmgr.LineProbe = &MCP2221Lines{}

// MCP2221Lines exposes the SCL/SDA levels reported by the adapter's
// status command as a line probe for the startup short-circuit check.
type MCP2221Lines struct {
	dev *MCP2221
}

func NewMCP2221Lines(dev *MCP2221) *MCP2221Lines {
	return &MCP2221Lines{dev: dev}
}

func (l *MCP2221Lines) SDA() bool {
	st, err := l.dev.Status()
	if err != nil {
		return true
	}
	return st.SDAHigh
}

func (l *MCP2221Lines) SCL() bool {
	st, err := l.dev.Status()
	if err != nil {
		return true
	}
	return st.SCLHigh
}

func (d *MCP2221) exchange() error {
	n, err := d.dev.Write(d.request)
	if err != nil {
		return fmt.Errorf("could not write request: %w", err)
	}
	if n != 64 {
		return fmt.Errorf("short write: %d", n)
	}
	time.Sleep(d.responseWait)
	n, err = d.dev.Read(d.response)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}
	if n != 64 {
		return fmt.Errorf("short read: %d", n)
	}
	return nil
}

func (d *MCP2221) resetBuffers() {
	resetBuffer(d.request)
	resetBuffer(d.response)
}

func resetBuffer(buf []byte) {
	for i := range buf {
		buf[i] = 0x00
	}
}
