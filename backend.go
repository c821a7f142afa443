package i2cmgr

import "sync"

// Operation selects the transfer direction of a request.
type Operation uint8

const (
	// OpNone is the zero value and is rejected at submission.
	OpNone Operation = iota
	// OpSend transmits the write buffer to the device.
	OpSend
	// OpRead receives into the read buffer from the device.
	OpRead
	// OpRequest transmits the write buffer then receives into the read
	// buffer within a single addressed transaction (register-read idiom).
	OpRequest
)

func (op Operation) String() string {
	switch op {
	case OpSend:
		return "SEND"
	case OpRead:
		return "READ"
	case OpRequest:
		return "REQUEST"
	default:
		return "NONE"
	}
}

// Transfer describes one physical transfer handed to a backend. Both
// buffers are borrowed from the request block; the backend must not
// retain them past completion.
type Transfer struct {
	Addr byte
	Op   Operation
	W    []byte
	R    []byte
}

// Result is a backend's report of a completed transfer. Bytes counts the
// bytes actually received for read operations.
type Result struct {
	Bytes  int
	Status Status
}

// Backend performs the bit-level transfer for one hardware platform.
// StartTransfer must return immediately; completion is observed through
// Poll. The manager is the only caller and never overlaps transfers.
type Backend interface {
	Initialize() error
	SetClockRate(hz uint32)
	StartTransfer(t Transfer)
	Poll() (Result, bool)
}

// Diag receives formatted diagnostic lines from the manager. It is
// write-only and optional; *log.Logger from charmbracelet/log satisfies
// it directly.
type Diag interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

type nopDiag struct{}

func (nopDiag) Infof(string, ...interface{}) {}
func (nopDiag) Warnf(string, ...interface{}) {}

// LineProbe reads the instantaneous logic level of the two bus lines.
// Used only by Begin's short-circuit check; a healthy idle bus reads
// high on both lines.
type LineProbe interface {
	SDA() bool
	SCL() bool
}

// Completion is a single-transfer latch for backends that run the
// physical transfer on an internal goroutine. StartTransfer calls Begin
// and hands the returned token to the worker, the worker calls Post
// once, and the backend's Poll delegates here. The token guards against
// a transfer that outlived its timeout posting into a later transfer.
type Completion struct {
	mu      sync.Mutex
	gen     uint64
	running bool
	done    bool
	res     Result
}

func (c *Completion) Begin() uint64 {
	c.mu.Lock()
	c.gen++
	c.running = true
	c.done = false
	c.res = Result{}
	gen := c.gen
	c.mu.Unlock()
	return gen
}

func (c *Completion) Post(gen uint64, res Result) {
	c.mu.Lock()
	if gen == c.gen {
		c.res = res
		c.done = true
	}
	c.mu.Unlock()
}

func (c *Completion) Poll() (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running || !c.done {
		return Result{}, false
	}
	c.running = false
	return c.res, true
}
