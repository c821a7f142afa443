package i2cmgr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite_InlineBytes(t *testing.T) {
	be := NewMockBackend(alwaysOK)
	m := New(be)
	assert.Equal(t, StatusOK, m.Write(0x20, 0x01, 0x02, 0x03))
	require.Equal(t, 1, be.Dispatches())
	tr := be.Transfers()[0]
	assert.Equal(t, OpSend, tr.Op)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, tr.W)
}

func TestRead_PlainAndWithCommand(t *testing.T) {
	be := NewMockBackend(alwaysOK)
	m := New(be)

	buf := make([]byte, 2)
	assert.Equal(t, StatusOK, m.Read(0x48, buf))
	tr := be.Transfers()[0]
	assert.Equal(t, OpRead, tr.Op)
	assert.Nil(t, tr.W)

	assert.Equal(t, StatusOK, m.Read(0x48, buf, 0x0F))
	tr = be.Transfers()[1]
	assert.Equal(t, OpRequest, tr.Op)
	assert.Equal(t, []byte{0x0F}, tr.W)
}

func TestWriteBytes_RejectionSurfacesStatus(t *testing.T) {
	be := NewMockBackend(alwaysOK)
	m := New(be)
	assert.Equal(t, StatusUnexpectedError, m.WriteBytes(0x00, []byte{0x01}))
	assert.Equal(t, 0, be.Dispatches())
}
