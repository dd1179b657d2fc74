package http2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamOpenLocal(t *testing.T) {
	s := newStream(1, 65535, 65535)
	require.NoError(t, s.openLocal(false))
	assert.Equal(t, StreamOpen, s.State())

	s2 := newStream(3, 65535, 65535)
	require.NoError(t, s2.openLocal(true))
	assert.Equal(t, StreamHalfClosedLocal, s2.State())
}

func TestStreamOpenLocalRejectsNonIdle(t *testing.T) {
	s := newStream(1, 65535, 65535)
	require.NoError(t, s.openLocal(false))
	err := s.openLocal(false)
	require.Error(t, err)
	assert.Equal(t, ProtocolError, err.(*Error).Code)
}

func TestStreamPushReservation(t *testing.T) {
	s := newStream(2, 65535, 65535)
	require.NoError(t, s.reserveRemote())
	assert.Equal(t, StreamReservedRemote, s.State())

	require.NoError(t, s.recvHeaders(false))
	assert.Equal(t, StreamHalfClosedLocal, s.State())

	require.NoError(t, s.recvEndStream())
	assert.Equal(t, StreamClosed, s.State())
}

func TestStreamFullLifecycle(t *testing.T) {
	s := newStream(1, 65535, 65535)
	require.NoError(t, s.openLocal(false))
	require.NoError(t, s.recvHeaders(false))
	assert.Equal(t, StreamOpen, s.State())

	require.NoError(t, s.closeLocal())
	assert.Equal(t, StreamHalfClosedLocal, s.State())

	require.NoError(t, s.recvEndStream())
	assert.True(t, s.isClosed())
}

func TestStreamRecvHeadersRejectsClosed(t *testing.T) {
	s := newStream(1, 65535, 65535)
	s.reset()
	err := s.recvHeaders(false)
	require.Error(t, err)
	assert.Equal(t, StreamClosedError, err.(*Error).Code)
}

func TestStreamCanAcceptFrames(t *testing.T) {
	s := newStream(1, 65535, 65535)
	assert.False(t, s.canAcceptFrames())

	require.NoError(t, s.openLocal(false))
	assert.True(t, s.canAcceptFrames())

	s.reset()
	assert.False(t, s.canAcceptFrames())
}

func TestStreamRegistry(t *testing.T) {
	r := newStreamRegistry()
	s1 := newStream(1, 65535, 65535)
	require.NoError(t, s1.openLocal(false))
	s3 := newStream(3, 65535, 65535)
	require.NoError(t, s3.openLocal(true))

	r.Insert(s1)
	r.Insert(s3)
	assert.Equal(t, 2, r.Len())

	got, ok := r.Get(1)
	require.True(t, ok)
	assert.Equal(t, s1, got)

	assert.Equal(t, 2, r.countOpen())

	r.Delete(1)
	assert.Equal(t, 1, r.Len())
	_, ok = r.Get(1)
	assert.False(t, ok)
}
