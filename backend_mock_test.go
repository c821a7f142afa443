package i2cmgr

import (
	"testing"
)

func TestMockBackend_RecordsActivity(t *testing.T) {
	be := NewMockBackend(func(tr Transfer, attempt int) (Result, bool) {
		return Result{Status: StatusOK}, true
	})
	if err := be.Initialize(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	be.SetClockRate(100_000)
	be.StartTransfer(Transfer{Addr: 0x20, Op: OpSend, W: []byte{0x01}})
	if be.InitCalls() != 1 {
		t.Errorf("expected 1 init call, got %d", be.InitCalls())
	}
	if len(be.ClockRates()) != 1 || be.ClockRates()[0] != 100_000 {
		t.Errorf("unexpected clock history: %v", be.ClockRates())
	}
	if be.Dispatches() != 1 {
		t.Errorf("expected 1 dispatch, got %d", be.Dispatches())
	}
	if _, done := be.Poll(); !done {
		t.Error("expected completed transfer")
	}
	if _, done := be.Poll(); done {
		t.Error("second poll must not report completion again")
	}
}

func TestMockBackend_Hang(t *testing.T) {
	be := NewMockBackend(func(tr Transfer, attempt int) (Result, bool) {
		return Result{}, false
	})
	be.StartTransfer(Transfer{Addr: 0x20, Op: OpSend})
	for i := 0; i < 3; i++ {
		if _, done := be.Poll(); done {
			t.Fatal("hanging transfer must never complete")
		}
	}
}

func TestMockBackend_AttemptNumbers(t *testing.T) {
	var attempts []int
	be := NewMockBackend(func(tr Transfer, attempt int) (Result, bool) {
		attempts = append(attempts, attempt)
		return Result{Status: StatusOK}, true
	})
	be.StartTransfer(Transfer{Addr: 0x20, Op: OpSend})
	be.Poll()
	be.StartTransfer(Transfer{Addr: 0x20, Op: OpSend})
	be.Poll()
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("unexpected attempt numbering: %v", attempts)
	}
}
