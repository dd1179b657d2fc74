package http2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlowControlOnWindowUpdate(t *testing.T) {
	fc := newFlowControl(65535, 65535)
	require.NoError(t, fc.onWindowUpdate(1000))
	assert.EqualValues(t, 66535, fc.sendWindow)
}

func TestFlowControlOnWindowUpdateOverflow(t *testing.T) {
	fc := newFlowControl(maxWindowSize, 65535)
	err := fc.onWindowUpdate(1)
	require.Error(t, err)
	assert.Equal(t, FlowControlError, err.(*Error).Code)
}

func TestFlowControlCanSendAndDebit(t *testing.T) {
	fc := newFlowControl(100, 65535)
	assert.True(t, fc.canSend(100))
	assert.False(t, fc.canSend(101))
	fc.debitSend(50)
	assert.EqualValues(t, 50, fc.sendWindow)
}

func TestWindowReplenishBelowHalf(t *testing.T) {
	window := int64(65535)
	replenish, should := windowReplenish(&window, 65535, 40000)
	require.True(t, should)
	assert.EqualValues(t, 65535, window)
	assert.EqualValues(t, 40000, replenish)
}

func TestWindowReplenishAboveHalf(t *testing.T) {
	window := int64(65535)
	replenish, should := windowReplenish(&window, 65535, 1000)
	require.False(t, should)
	assert.EqualValues(t, 0, replenish)
	assert.EqualValues(t, 64535, window)
}

func TestWindowReplenishZeroIsNoop(t *testing.T) {
	window := int64(65535)
	_, should := windowReplenish(&window, 65535, 0)
	assert.False(t, should)
	assert.EqualValues(t, 65535, window)
}

func TestOnSettingsInitialWindowChange(t *testing.T) {
	streams := newStreamRegistry()
	s := newStream(1, 65535, 65535)
	require.NoError(t, s.openLocal(false))
	streams.Insert(s)

	require.NoError(t, onSettingsInitialWindowChange(streams, 65535, 100))
	assert.EqualValues(t, 100, s.sendWindow)
}

func TestOnSettingsInitialWindowChangeOverflow(t *testing.T) {
	streams := newStreamRegistry()
	s := newStream(1, maxWindowSize, 65535)
	require.NoError(t, s.openLocal(false))
	streams.Insert(s)

	err := onSettingsInitialWindowChange(streams, 0, maxWindowSize)
	require.Error(t, err)
	assert.Equal(t, FlowControlError, err.(*Error).Code)
}
