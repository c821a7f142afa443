package i2cmgr

// Blocking convenience calls. Each constructs a transient request block,
// submits it and waits for the terminal status. They add no policy of
// their own; call sites needing overlap or latency control should manage
// a Request explicitly and poll with IsBusy.

// Write sends the given bytes to addr and blocks until completion.
func (m *Manager) Write(addr byte, data ...byte) Status {
	return m.WriteBytes(addr, data)
}

// WriteBytes sends buf to addr and blocks until completion.
func (m *Manager) WriteBytes(addr byte, buf []byte) Status {
	var rb Request
	rb.SetWriteParams(addr, buf)
	return m.finish(&rb)
}

// Read receives len(buf) bytes from addr and blocks until completion.
// If command bytes are given they are written first in the same
// transaction, the usual register-read idiom.
func (m *Manager) Read(addr byte, buf []byte, command ...byte) Status {
	var rb Request
	if len(command) == 0 {
		rb.SetReadParams(addr, buf)
	} else {
		rb.SetRequestParams(addr, buf, command)
	}
	return m.finish(&rb)
}

func (m *Manager) finish(rb *Request) Status {
	if err := m.QueueRequest(rb); err != nil {
		return rb.status
	}
	return rb.Wait()
}
