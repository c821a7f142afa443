package i2cmgr

import (
	"fmt"
	"time"
)

var ErrQueueFull = fmt.Errorf("request queue is full")
var ErrInvalidRequest = fmt.Errorf("invalid request parameters")
var ErrRequestPending = fmt.Errorf("request is already pending")

const (
	// QueueDepth bounds the number of requests awaiting the bus. The
	// queue never grows; submissions beyond this are rejected.
	QueueDepth = 8

	// RetryLimit is the total number of dispatch attempts granted to a
	// request that fails with a recoverable error.
	RetryLimit = 2

	// FirstAddress and LastAddress delimit the valid 7-bit device
	// address range. 0x00 (general call) and 0x7F are excluded.
	FirstAddress = 0x01
	LastAddress  = 0x7E

	// DefaultClock is the negotiated clock rate before any consumer
	// lowers it with SetClock.
	DefaultClock = 400_000

	// DefaultTimeout is the per-attempt completion budget. A full
	// 32-byte transmission takes about 8 ms at 100 kHz, so this leaves
	// plenty of headroom. When retries are enabled the timeout applies
	// to each attempt, and a timed-out attempt is not retried.
	DefaultTimeout = 100 * time.Millisecond

	// Address scans run in standard mode with a short probe timeout.
	scanClock   = 100_000
	scanTimeout = time.Millisecond
)

// Manager serializes access to one physical bus. It owns the pending
// request queue, drives the active request through the backend and
// applies the retry and timeout policy. Exactly one Manager must exist
// per physical bus.
//
// The scheduling model is cooperative and single-threaded: progress is
// made only inside Loop, which callers (or the blocking helpers) invoke
// repeatedly. The Manager itself takes no locks; mutual exclusion on the
// backend is structural, only the active request ever touches it.
type Manager struct {
	backend Backend
	diag    Diag
	lines   LineProbe

	queue [QueueDepth]*Request
	qhead int
	qlen  int

	active   *Request
	attempts int
	deadline time.Time

	timeout    time.Duration
	clock      uint32
	clockFixed bool
	begun      bool
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithDiag routes diagnostic lines (scan results, stuck-line warnings,
// clock changes) to d. The manager never reads from it.
func WithDiag(d Diag) Option {
	return func(m *Manager) { m.diag = d }
}

// WithLines enables the short-circuit check in Begin using the given
// line probe.
func WithLines(lines LineProbe) Option {
	return func(m *Manager) { m.lines = lines }
}

func New(backend Backend, opts ...Option) *Manager {
	m := &Manager{
		backend: backend,
		diag:    nopDiag{},
		timeout: DefaultTimeout,
		clock:   DefaultClock,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Begin performs one-time initialization: backend bring-up, a check that
// neither bus line is stuck low, and a full address scan reported to the
// diagnostic collaborator. Subsequent calls are no-ops.
func (m *Manager) Begin() error {
	if m.begun {
		return nil
	}
	m.begun = true
	err := m.backend.Initialize()
	if err != nil {
		return fmt.Errorf("backend initialization failed: %w", err)
	}
	if m.lines != nil {
		if !m.lines.SDA() {
			m.diag.Warnf("possible short-circuit on SDA line")
		}
		if !m.lines.SCL() {
			m.diag.Warnf("possible short-circuit on SCL line")
		}
	}
	// Probe in standard mode for best device compatibility, with a
	// short timeout so absent devices do not stall startup.
	m.backend.SetClockRate(scanClock)
	saved := m.timeout
	m.timeout = scanTimeout
	found := false
	for addr := byte(FirstAddress); addr <= LastAddress; addr++ {
		if m.CheckAddress(addr) == StatusOK {
			found = true
			m.diag.Infof("device found at %#x", addr)
		}
	}
	if !found {
		m.diag.Infof("no devices found")
	}
	m.timeout = saved
	m.backend.SetClockRate(m.clock)
	return nil
}

// SetClock lowers the negotiated clock rate to hz if hz is below the
// current rate. Multiple drivers each request the fastest rate their
// device tolerates; the bus keeps the minimum ever requested. The rate
// never goes up again unless ForceClock is used.
func (m *Manager) SetClock(hz uint32) {
	if hz < m.clock && !m.clockFixed {
		m.clock = hz
		m.diag.Infof("bus clock set to %d Hz", hz)
	}
	m.backend.SetClockRate(m.clock)
}

// ForceClock unconditionally sets the clock rate and locks it; later
// SetClock calls become no-ops.
func (m *Manager) ForceClock(hz uint32) {
	m.clock = hz
	m.clockFixed = true
	m.backend.SetClockRate(hz)
	m.diag.Infof("bus clock forced to %d Hz", hz)
}

// SetTimeout sets the per-attempt completion budget.
func (m *Manager) SetTimeout(d time.Duration) {
	m.timeout = d
}

// QueueRequest submits a request block. It never blocks: if the bus is
// idle the request is dispatched immediately, otherwise it joins the
// tail of the FIFO queue. On rejection the block's status is set to a
// terminal error and a sentinel error is returned; the block never
// enters the PENDING state.
func (m *Manager) QueueRequest(rb *Request) error {
	if rb.status == StatusPending {
		return ErrRequestPending
	}
	switch rb.op {
	case OpSend, OpRead, OpRequest:
	default:
		rb.status = StatusUnexpectedError
		return ErrInvalidRequest
	}
	if rb.addr < FirstAddress || rb.addr > LastAddress {
		rb.status = StatusUnexpectedError
		return ErrInvalidRequest
	}
	if m.qlen == QueueDepth {
		rb.status = StatusUnexpectedError
		return ErrQueueFull
	}
	rb.status = StatusPending
	rb.received = 0
	rb.mgr = m
	m.queue[(m.qhead+m.qlen)%QueueDepth] = rb
	m.qlen++
	if m.active == nil {
		m.dispatchNext()
	}
	return nil
}

// Loop is the single scheduler advancement step. If no request is
// active it dispatches the head of the queue; otherwise it polls the
// backend and applies the retry and timeout policy. It must be called
// regularly from the firmware's main loop (the blocking helpers call it
// internally).
func (m *Manager) Loop() {
	if m.active == nil {
		m.dispatchNext()
		return
	}
	rb := m.active
	if res, done := m.backend.Poll(); done {
		st := res.Status
		if st.recoverable() && !rb.noRetry && m.attempts < RetryLimit {
			// Re-attempt in place: the request keeps its position at
			// the head of the line.
			m.attempts++
			m.deadline = time.Now().Add(m.timeout)
			m.backend.StartTransfer(m.transfer(rb))
			return
		}
		n := res.Bytes
		if n > len(rb.read) {
			n = len(rb.read)
		}
		if st == StatusOK && len(rb.read) > 0 && n < len(rb.read) {
			st = StatusTruncated
		}
		rb.received = n
		m.finalize(rb, st)
		return
	}
	if time.Now().After(m.deadline) {
		m.finalize(rb, StatusTimeout)
	}
}

// CheckAddress probes addr with a zero-length write and retries
// suppressed: a minimal "is anything there" check. Blocking.
func (m *Manager) CheckAddress(addr byte) Status {
	var rb Request
	rb.SetWriteParams(addr, nil)
	rb.SuppressRetries(true)
	return m.finish(&rb)
}

func (m *Manager) transfer(rb *Request) Transfer {
	return Transfer{Addr: rb.addr, Op: rb.op, W: rb.write, R: rb.read}
}

func (m *Manager) dispatchNext() {
	if m.qlen == 0 {
		return
	}
	rb := m.queue[m.qhead]
	m.queue[m.qhead] = nil
	m.qhead = (m.qhead + 1) % QueueDepth
	m.qlen--
	m.active = rb
	m.attempts = 1
	m.deadline = time.Now().Add(m.timeout)
	m.backend.StartTransfer(m.transfer(rb))
}

func (m *Manager) finalize(rb *Request, st Status) {
	rb.status = st
	m.active = nil
	m.dispatchNext()
}
