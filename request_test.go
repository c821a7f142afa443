package i2cmgr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_Setters(t *testing.T) {
	var rb Request
	rb.SetWriteParams(0x20, []byte{0x01, 0x02})
	assert.Equal(t, OpSend, rb.op)
	assert.Equal(t, StatusOK, rb.Status())

	rb.SetReadParams(0x21, make([]byte, 4))
	assert.Equal(t, OpRead, rb.op)
	assert.Nil(t, rb.write)

	rb.SetRequestParams(0x22, make([]byte, 2), []byte{0x0F})
	assert.Equal(t, OpRequest, rb.op)
	assert.Len(t, rb.write, 1)
	assert.Len(t, rb.read, 2)
}

func TestRequest_SuppressRetriesOrthogonal(t *testing.T) {
	var rb Request
	rb.SuppressRetries(true)
	rb.SetWriteParams(0x20, nil)
	assert.True(t, rb.noRetry)
	rb.SuppressRetries(false)
	assert.False(t, rb.noRetry)
}

func TestRequest_ReuseAfterTerminal(t *testing.T) {
	be := NewMockBackend(alwaysOK)
	m := New(be)
	var rb Request
	rb.SetWriteParams(0x20, []byte{0x01})
	require.NoError(t, m.QueueRequest(&rb))
	require.Equal(t, StatusOK, rb.Wait())

	rb.SetReadParams(0x20, make([]byte, 1))
	require.NoError(t, m.QueueRequest(&rb))
	assert.Equal(t, StatusOK, rb.Wait())
	assert.Equal(t, 2, be.Dispatches())
}

func TestRequest_WaitWithoutSubmission(t *testing.T) {
	var rb Request
	rb.SetWriteParams(0x20, nil)
	// never queued, so there is nothing to wait for
	assert.Equal(t, StatusOK, rb.Wait())
	assert.False(t, rb.IsBusy())
}

func TestRequest_IsBusyAdvancesScheduler(t *testing.T) {
	be := NewMockBackend(alwaysOK)
	m := New(be)

	var first, second Request
	first.SetWriteParams(0x20, nil)
	second.SetWriteParams(0x21, nil)
	require.NoError(t, m.QueueRequest(&first))
	require.NoError(t, m.QueueRequest(&second))

	// the first poll observes the completion of the active request
	assert.True(t, second.IsBusy())
	for second.IsBusy() {
	}
	assert.Equal(t, StatusOK, first.Status())
	assert.Equal(t, StatusOK, second.Status())
}
