package i2cmgr

// TransferBehaviorFunc decides the outcome of one dispatched transfer.
// attempt is the 1-based global dispatch count. Returning ok=false makes
// the transfer hang forever, which is how timeout behaviour is
// exercised.
type TransferBehaviorFunc func(t Transfer, attempt int) (Result, bool)

// MockBackend is a scripted backend for tests and examples. It records
// every initialization, clock change and dispatched transfer, and
// resolves transfers through a behavior function so no hardware is
// needed.
//
// Example usage:
//
//	be := NewMockBackend(func(t Transfer, attempt int) (Result, bool) {
//		return Result{Bytes: len(t.R), Status: StatusOK}, true
//	})
type MockBackend struct {
	behavior  TransferBehaviorFunc
	initCalls int
	clocks    []uint32
	transfers []Transfer

	pending bool
	done    bool
	result  Result
}

func NewMockBackend(behavior TransferBehaviorFunc) *MockBackend {
	return &MockBackend{behavior: behavior}
}

func (m *MockBackend) Initialize() error {
	m.initCalls++
	return nil
}

func (m *MockBackend) SetClockRate(hz uint32) {
	m.clocks = append(m.clocks, hz)
}

func (m *MockBackend) StartTransfer(t Transfer) {
	m.transfers = append(m.transfers, t)
	m.pending = true
	m.result, m.done = m.behavior(t, len(m.transfers))
}

func (m *MockBackend) Poll() (Result, bool) {
	if !m.pending || !m.done {
		return Result{}, false
	}
	m.pending = false
	return m.result, true
}

// InitCalls returns how many times Initialize was invoked.
func (m *MockBackend) InitCalls() int {
	return m.initCalls
}

// ClockRates returns every rate passed to SetClockRate, in order.
func (m *MockBackend) ClockRates() []uint32 {
	return m.clocks
}

// Transfers returns every dispatched transfer, in order. Retries appear
// as separate entries.
func (m *MockBackend) Transfers() []Transfer {
	return m.transfers
}

// Dispatches returns the total number of dispatched transfers.
func (m *MockBackend) Dispatches() int {
	return len(m.transfers)
}
