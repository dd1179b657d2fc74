package http2

import (
	"context"

	"github.com/valyala/fasthttp"
)

// pendingRequest is one admission-queue entry: a caller-submitted
// request awaiting a stream id, the response it will be decoded into,
// and the channel RoundTrip blocks on for completion.
type pendingRequest struct {
	ctx  context.Context
	req  *fasthttp.Request
	resp *fasthttp.Response
	done chan error

	queued   bool   // true while still sitting in the queue, cleared once dispatched
	streamID uint32 // set once a stream id has been allocated for this request
}

// admissionQueue is component F: a FIFO of pending requests gated by a
// credit counter driven entirely by settings- and stream-close events
// (spec §4.F). It holds no timers and performs no I/O itself; Conn
// drains it by calling next in a loop after every credit grant.
type admissionQueue struct {
	pending []*pendingRequest
	credits int
}

func newAdmissionQueue() *admissionQueue {
	return &admissionQueue{}
}

// submit appends p to the queue; non-blocking, per spec §4.F.
func (q *admissionQueue) submit(p *pendingRequest) {
	p.queued = true
	q.pending = append(q.pending, p)
}

// cancel removes p from the queue if it is still waiting, without
// consuming a credit (spec §4.F rationale). Reports whether p was
// found; a false result means p has already been dispatched.
func (q *admissionQueue) cancel(p *pendingRequest) bool {
	for i, c := range q.pending {
		if c == p {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			p.queued = false
			return true
		}
	}
	return false
}

// grant adds n credits; a non-positive n is ignored (spec §4.F
// "clamped to ≥ 0").
func (q *admissionQueue) grant(n int) {
	if n <= 0 {
		return
	}
	q.credits += n
}

// reconcile sets the outstanding credit pool to target (clamped to
// ≥0), replacing rather than accumulating onto whatever credit is
// already outstanding. Used whenever a fresh
// SETTINGS_MAX_CONCURRENT_STREAMS arrives: credits must always reflect
// limit-countOpen at the moment of the newest SETTINGS, not the sum of
// every SETTINGS frame ever received, or a repeated/raised limit would
// double-count surplus credit never consumed from an earlier grant.
func (q *admissionQueue) reconcile(target int) {
	if target < 0 {
		target = 0
	}
	q.credits = target
}

// next pops the head of the queue and consumes one credit, or reports
// false if either the queue is empty or no credit remains.
func (q *admissionQueue) next() (*pendingRequest, bool) {
	if q.credits <= 0 || len(q.pending) == 0 {
		return nil, false
	}
	p := q.pending[0]
	q.pending = q.pending[1:]
	q.credits--
	p.queued = false
	return p, true
}

func (q *admissionQueue) len() int { return len(q.pending) }

// drainInto fails every still-queued request with err, used when the
// connection tears down with requests never admitted (spec §7:
// "admission queue is drained with error").
func (q *admissionQueue) drainInto(err error) {
	for _, p := range q.pending {
		p.queued = false
		p.done <- err
	}
	q.pending = nil
}
