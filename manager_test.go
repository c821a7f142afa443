package i2cmgr

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type diagRecorder struct {
	infos []string
	warns []string
}

func (d *diagRecorder) Infof(format string, args ...interface{}) {
	d.infos = append(d.infos, fmt.Sprintf(format, args...))
}

func (d *diagRecorder) Warnf(format string, args ...interface{}) {
	d.warns = append(d.warns, fmt.Sprintf(format, args...))
}

type fixedLines struct {
	sda bool
	scl bool
}

func (l fixedLines) SDA() bool { return l.sda }
func (l fixedLines) SCL() bool { return l.scl }

func alwaysOK(t Transfer, attempt int) (Result, bool) {
	return Result{Bytes: len(t.R), Status: StatusOK}, true
}

func alwaysNAK(t Transfer, attempt int) (Result, bool) {
	return Result{Status: StatusNegativeAcknowledge}, true
}

func neverCompletes(t Transfer, attempt int) (Result, bool) {
	return Result{}, false
}

func TestQueueRequest_PendingTransition(t *testing.T) {
	be := NewMockBackend(neverCompletes)
	m := New(be)
	var rb Request
	rb.SetWriteParams(0x20, []byte{0x01})
	require.Equal(t, StatusOK, rb.Status())
	require.NoError(t, m.QueueRequest(&rb))
	assert.Equal(t, StatusPending, rb.Status())
	// idle bus dispatches immediately
	assert.Equal(t, 1, be.Dispatches())
}

func TestQueueRequest_Rejections(t *testing.T) {
	t.Run("invalid operation", func(t *testing.T) {
		m := New(NewMockBackend(alwaysOK))
		var rb Request
		assert.ErrorIs(t, m.QueueRequest(&rb), ErrInvalidRequest)
		assert.Equal(t, StatusUnexpectedError, rb.Status())
	})
	t.Run("address out of range", func(t *testing.T) {
		m := New(NewMockBackend(alwaysOK))
		var rb Request
		rb.SetWriteParams(0x7F, nil)
		assert.ErrorIs(t, m.QueueRequest(&rb), ErrInvalidRequest)
		assert.Equal(t, StatusUnexpectedError, rb.Status())
	})
	t.Run("resubmission while pending", func(t *testing.T) {
		m := New(NewMockBackend(neverCompletes))
		var rb Request
		rb.SetWriteParams(0x20, nil)
		require.NoError(t, m.QueueRequest(&rb))
		assert.ErrorIs(t, m.QueueRequest(&rb), ErrRequestPending)
		assert.Equal(t, StatusPending, rb.Status())
	})
	t.Run("queue full", func(t *testing.T) {
		m := New(NewMockBackend(neverCompletes))
		// one request goes active, QueueDepth wait in line
		blocks := make([]Request, QueueDepth+2)
		for i := range blocks {
			blocks[i].SetWriteParams(0x20, nil)
		}
		for i := 0; i <= QueueDepth; i++ {
			require.NoError(t, m.QueueRequest(&blocks[i]))
		}
		last := &blocks[QueueDepth+1]
		assert.ErrorIs(t, m.QueueRequest(last), ErrQueueFull)
		assert.Equal(t, StatusUnexpectedError, last.Status())
	})
}

func TestLoop_FIFOOrderWithRetries(t *testing.T) {
	// the first request NAKs on every attempt; later requests must not
	// overtake it while it is being retried in place
	be := NewMockBackend(func(tr Transfer, attempt int) (Result, bool) {
		if tr.Addr == 0x20 {
			return Result{Status: StatusNegativeAcknowledge}, true
		}
		return Result{Status: StatusOK}, true
	})
	m := New(be)
	var a, b, c Request
	a.SetWriteParams(0x20, []byte{0x01})
	b.SetWriteParams(0x21, []byte{0x02})
	c.SetWriteParams(0x22, []byte{0x03})
	require.NoError(t, m.QueueRequest(&a))
	require.NoError(t, m.QueueRequest(&b))
	require.NoError(t, m.QueueRequest(&c))
	c.Wait()
	a.Wait()
	assert.Equal(t, StatusNegativeAcknowledge, a.Status())
	assert.Equal(t, StatusOK, b.Status())
	assert.Equal(t, StatusOK, c.Status())
	var order []byte
	for _, tr := range be.Transfers() {
		order = append(order, tr.Addr)
	}
	assert.Equal(t, []byte{0x20, 0x20, 0x21, 0x22}, order)
}

func TestLoop_RetryBound(t *testing.T) {
	t.Run("retries enabled", func(t *testing.T) {
		be := NewMockBackend(alwaysNAK)
		m := New(be)
		var rb Request
		rb.SetWriteParams(0x20, []byte{0x01})
		require.NoError(t, m.QueueRequest(&rb))
		assert.Equal(t, StatusNegativeAcknowledge, rb.Wait())
		assert.Equal(t, RetryLimit, be.Dispatches())
	})
	t.Run("retries suppressed", func(t *testing.T) {
		be := NewMockBackend(alwaysNAK)
		m := New(be)
		var rb Request
		rb.SetWriteParams(0x20, []byte{0x01})
		rb.SuppressRetries(true)
		require.NoError(t, m.QueueRequest(&rb))
		assert.Equal(t, StatusNegativeAcknowledge, rb.Wait())
		assert.Equal(t, 1, be.Dispatches())
	})
}

func TestLoop_TimeoutNotRetried(t *testing.T) {
	be := NewMockBackend(neverCompletes)
	m := New(be)
	m.SetTimeout(time.Millisecond)
	var rb Request
	rb.SetReadParams(0x10, make([]byte, 4))
	require.NoError(t, m.QueueRequest(&rb))
	time.Sleep(3 * time.Millisecond)
	m.Loop()
	assert.Equal(t, StatusTimeout, rb.Status())
	m.Loop()
	assert.Equal(t, 1, be.Dispatches())
}

func TestClock_MonotonicDecrease(t *testing.T) {
	be := NewMockBackend(alwaysOK)
	m := New(be)
	m.SetClock(5000)
	m.SetClock(9000)
	rates := be.ClockRates()
	assert.Equal(t, uint32(5000), rates[len(rates)-1])
	m.ForceClock(9000)
	m.SetClock(100)
	rates = be.ClockRates()
	assert.Equal(t, uint32(9000), rates[len(rates)-1])
}

func TestBegin_Idempotent(t *testing.T) {
	be := NewMockBackend(alwaysNAK)
	rec := &diagRecorder{}
	m := New(be, WithDiag(rec))
	require.NoError(t, m.Begin())
	scanned := be.Dispatches()
	assert.Equal(t, int(LastAddress-FirstAddress)+1, scanned)
	assert.Contains(t, rec.infos, "no devices found")
	require.NoError(t, m.Begin())
	assert.Equal(t, 1, be.InitCalls())
	assert.Equal(t, scanned, be.Dispatches())
}

func TestBegin_ScanReportsDevices(t *testing.T) {
	be := NewMockBackend(func(tr Transfer, attempt int) (Result, bool) {
		if tr.Addr == 0x3C {
			return Result{Status: StatusOK}, true
		}
		return Result{Status: StatusNegativeAcknowledge}, true
	})
	rec := &diagRecorder{}
	m := New(be, WithDiag(rec))
	require.NoError(t, m.Begin())
	assert.Contains(t, rec.infos, "device found at 0x3c")
	assert.NotContains(t, rec.infos, "no devices found")
	// scan runs in standard mode, then the negotiated rate is restored
	rates := be.ClockRates()
	assert.Equal(t, uint32(100_000), rates[0])
	assert.Equal(t, uint32(DefaultClock), rates[len(rates)-1])
}

func TestBegin_StuckLineWarnings(t *testing.T) {
	be := NewMockBackend(alwaysNAK)
	rec := &diagRecorder{}
	m := New(be, WithDiag(rec), WithLines(fixedLines{sda: false, scl: true}))
	require.NoError(t, m.Begin())
	require.Len(t, rec.warns, 1)
	assert.Contains(t, rec.warns[0], "SDA")
}

func TestWrite_NAKThenSuccess(t *testing.T) {
	be := NewMockBackend(func(tr Transfer, attempt int) (Result, bool) {
		if attempt == 1 {
			return Result{Status: StatusNegativeAcknowledge}, true
		}
		return Result{Status: StatusOK}, true
	})
	m := New(be)
	var rb Request
	rb.SetWriteParams(0x20, []byte{0x01, 0x02, 0x03})
	require.NoError(t, m.QueueRequest(&rb))
	assert.Equal(t, StatusOK, rb.Wait())
	assert.Equal(t, 2, be.Dispatches())
}

func TestCheckAddress_AlwaysNAK(t *testing.T) {
	be := NewMockBackend(alwaysNAK)
	m := New(be)
	assert.Equal(t, StatusNegativeAcknowledge, m.CheckAddress(0x50))
	assert.Equal(t, 1, be.Dispatches())
	tr := be.Transfers()[0]
	assert.Equal(t, OpSend, tr.Op)
	assert.Empty(t, tr.W)
}

func TestRead_Truncated(t *testing.T) {
	be := NewMockBackend(func(tr Transfer, attempt int) (Result, bool) {
		return Result{Bytes: 2, Status: StatusOK}, true
	})
	m := New(be)
	var rb Request
	rb.SetReadParams(0x10, make([]byte, 4))
	require.NoError(t, m.QueueRequest(&rb))
	assert.Equal(t, StatusTruncated, rb.Wait())
	assert.Equal(t, 2, rb.Received())
	assert.Len(t, rb.Data(), 2)
}
