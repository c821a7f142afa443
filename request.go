package i2cmgr

// Request describes one bus transaction and its outcome. It is owned by
// the caller, cheap to stack-allocate and reusable: prepare it with one
// of the Set*Params methods, hand it to Manager.QueueRequest and observe
// the terminal status through Wait, IsBusy or Status.
//
// Buffers passed to the setters are borrowed, not copied. The caller
// must keep them valid and unmodified until the request leaves the
// PENDING state. A request must not be resubmitted while PENDING; after
// any terminal status it may be reused for a new transaction.
type Request struct {
	addr     byte
	op       Operation
	noRetry  bool
	write    []byte
	read     []byte
	received int
	status   Status
	mgr      *Manager
}

// SetWriteParams prepares the request to send buf to addr.
func (rb *Request) SetWriteParams(addr byte, buf []byte) {
	rb.addr = addr
	rb.write = buf
	rb.read = nil
	rb.op = OpSend
	rb.status = StatusOK
}

// SetReadParams prepares the request to read len(buf) bytes from addr.
func (rb *Request) SetReadParams(addr byte, buf []byte) {
	rb.addr = addr
	rb.write = nil
	rb.read = buf
	rb.op = OpRead
	rb.status = StatusOK
}

// SetRequestParams prepares a write-then-read transaction: write is sent
// to addr, then len(read) bytes are received in the same transaction.
func (rb *Request) SetRequestParams(addr byte, read []byte, write []byte) {
	rb.addr = addr
	rb.write = write
	rb.read = read
	rb.op = OpRequest
	rb.status = StatusOK
}

// SuppressRetries toggles the no-retry modifier. It is orthogonal to the
// operation kind and survives across Set*Params calls on the same block.
func (rb *Request) SuppressRetries(suppress bool) {
	rb.noRetry = suppress
}

// Status returns the request's current status code.
func (rb *Request) Status() Status {
	return rb.status
}

// Received returns the number of bytes actually read by the completed
// transaction. It is only meaningful after a terminal status.
func (rb *Request) Received() int {
	return rb.received
}

// Data returns the valid portion of the read buffer after completion.
func (rb *Request) Data() []byte {
	return rb.read[:rb.received]
}

// Wait advances the owning manager's scheduler until this request leaves
// the PENDING state, then returns the terminal status. Other firmware
// work is starved for the duration; latency-sensitive callers should
// poll with IsBusy instead.
func (rb *Request) Wait() Status {
	for rb.status == StatusPending {
		rb.mgr.Loop()
	}
	return rb.status
}

// IsBusy performs a single scheduler advancement step and reports
// whether the request was still in progress.
func (rb *Request) IsBusy() bool {
	if rb.status == StatusPending {
		rb.mgr.Loop()
		return true
	}
	return false
}
