package i2cmgr

// Status is the outcome code of a bus transaction. StatusPending is the
// only non-terminal value; a queued request starts at StatusOK, becomes
// StatusPending on submission and resolves to exactly one terminal value.
type Status uint8

const (
	StatusOK Status = iota
	StatusTruncated
	StatusNegativeAcknowledge
	StatusTransmitError
	StatusOtherBusError
	StatusTimeout
	StatusArbitrationLost
	StatusBusError
	StatusUnexpectedError
	StatusPending
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusTruncated:
		return "TRUNCATED"
	case StatusNegativeAcknowledge:
		return "NEGATIVE_ACKNOWLEDGE"
	case StatusTransmitError:
		return "TRANSMIT_ERROR"
	case StatusOtherBusError:
		return "OTHER_BUS_ERROR"
	case StatusTimeout:
		return "TIMEOUT"
	case StatusArbitrationLost:
		return "ARBITRATION_LOST"
	case StatusBusError:
		return "BUS_ERROR"
	case StatusUnexpectedError:
		return "UNEXPECTED_ERROR"
	case StatusPending:
		return "PENDING"
	default:
		return "UNKNOWN"
	}
}

// ErrorMessage returns a human-readable description of a status code.
// Unrecognised codes get a generic description rather than a panic.
func ErrorMessage(s Status) string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusTruncated:
		return "transmission truncated"
	case StatusNegativeAcknowledge:
		return "no response from device (address NAK)"
	case StatusTransmitError:
		return "transmit error (data NAK)"
	case StatusOtherBusError:
		return "other bus error"
	case StatusTimeout:
		return "timeout"
	case StatusArbitrationLost:
		return "arbitration lost"
	case StatusBusError:
		return "bus error"
	case StatusUnexpectedError:
		return "unexpected error"
	case StatusPending:
		return "request pending"
	default:
		return "error code not recognised"
	}
}

// recoverable reports whether a status is eligible for automatic retry.
// Timeouts are deliberately excluded: a timed-out bus needs external
// intervention, not repetition.
func (s Status) recoverable() bool {
	switch s {
	case StatusNegativeAcknowledge, StatusTransmitError, StatusArbitrationLost, StatusBusError, StatusOtherBusError:
		return true
	}
	return false
}
