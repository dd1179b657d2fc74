package http2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPending() *pendingRequest {
	return &pendingRequest{done: make(chan error, 1)}
}

func TestAdmissionQueueSubmitAndNext(t *testing.T) {
	q := newAdmissionQueue()
	p := newPending()
	q.submit(p)
	assert.True(t, p.queued)

	_, ok := q.next()
	assert.False(t, ok, "no credit yet")

	q.grant(1)
	got, ok := q.next()
	require.True(t, ok)
	assert.Same(t, p, got)
	assert.False(t, p.queued)
}

func TestAdmissionQueueCancelBeforeDispatch(t *testing.T) {
	q := newAdmissionQueue()
	p := newPending()
	q.submit(p)

	assert.True(t, q.cancel(p))
	assert.Equal(t, 0, q.len())
	assert.False(t, q.cancel(p), "cancel is not idempotent once removed")
}

func TestAdmissionQueueGrantIgnoresNonPositive(t *testing.T) {
	q := newAdmissionQueue()
	q.grant(0)
	q.grant(-5)
	assert.Equal(t, 0, q.credits)
}

func TestAdmissionQueueFIFO(t *testing.T) {
	q := newAdmissionQueue()
	p1, p2 := newPending(), newPending()
	q.submit(p1)
	q.submit(p2)
	q.grant(2)

	first, _ := q.next()
	second, _ := q.next()
	assert.Same(t, p1, first)
	assert.Same(t, p2, second)
}

func TestAdmissionQueueDrainInto(t *testing.T) {
	q := newAdmissionQueue()
	p1, p2 := newPending(), newPending()
	q.submit(p1)
	q.submit(p2)

	q.drainInto(ErrConnClosed)

	assert.Equal(t, ErrConnClosed, <-p1.done)
	assert.Equal(t, ErrConnClosed, <-p2.done)
	assert.Equal(t, 0, q.len())
}
