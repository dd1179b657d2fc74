package http2

// flowControl tracks the four flow-control windows spec §3/§4.C
// describes: one connection-level send/receive pair, owned directly by
// Conn, plus one send/receive pair per Stream (held on the Stream
// itself). All mutation happens on the connection's single actor
// goroutine, so no locking is needed (spec §5).
//
// Window values are signed per RFC 7540 §6.9.1: SETTINGS_INITIAL_WINDOW_SIZE
// changes can drive a stream's send window negative, and further sends
// must wait until WINDOW_UPDATEs bring it back above zero.
type flowControl struct {
	sendWindow int64 // connection-level send window (ours to spend)
	recvWindow int64 // connection-level receive window (ours to replenish)

	initialSend uint32 // initial connection-level send window; later SETTINGS do not change it
	initialRecv uint32 // our own advertised initial receive window
}

const maxWindowSize = 1<<31 - 1

func newFlowControl(initialSend, initialRecv uint32) *flowControl {
	return &flowControl{
		sendWindow:  int64(initialSend),
		recvWindow:  int64(initialRecv),
		initialSend: initialSend,
		initialRecv: initialRecv,
	}
}

// canSend reports whether n bytes of DATA can be debited from the
// connection-level send window without driving it negative.
func (fc *flowControl) canSend(n int64) bool { return n <= fc.sendWindow }

// debitSend subtracts n from the connection send window. Callers must
// call canSend first; this never checks for negative results, matching
// spec §4.C's consume_send contract (stream window checked separately
// by the Stream itself).
func (fc *flowControl) debitSend(n int64) { fc.sendWindow -= n }

// onWindowUpdate applies an inbound WINDOW_UPDATE increment (RFC 7540
// §6.9) to the connection send window. inc == 0 is rejected by the
// frame codec before this is ever called (spec §4.A).
func (fc *flowControl) onWindowUpdate(inc uint32) error {
	fc.sendWindow += int64(inc)
	if fc.sendWindow > maxWindowSize {
		return NewError(FlowControlError, "connection send window overflowed 2^31-1")
	}
	return nil
}

// onDataReceived debits n bytes from the connection receive window and
// reports whether a WINDOW_UPDATE replenishing it to full should now be
// sent. This core adopts the "replenish to full once below half the
// initial window" policy (SPEC_FULL.md Open Question 1), not the
// simpler per-DATA echo some implementations use.
func (fc *flowControl) onDataReceived(n int64) (replenish uint32, shouldSend bool) {
	return windowReplenish(&fc.recvWindow, fc.initialRecv, n)
}

// windowReplenish applies the shared receive-window accounting policy
// (spec §4.C on_data_received / SPEC_FULL.md Open Question 1) to any
// window, connection- or stream-scoped: debit n, and once the window
// has fallen below half of initial, replenish it to full and report
// the increment to send. n is the frame's full wire payload length,
// padding included (Open Question 2), so only a DATA frame with no
// payload and no padding (n == 0) is a no-op.
func windowReplenish(window *int64, initial uint32, n int64) (replenish uint32, shouldSend bool) {
	if n == 0 {
		return 0, false
	}
	*window -= n
	half := int64(initial) / 2
	if *window < half {
		replenish = uint32(int64(initial) - *window)
		*window = int64(initial)
		return replenish, true
	}
	return 0, false
}

// onSettingsInitialWindowChange adjusts every open stream's send window
// by the signed delta between the peer's old and new
// SETTINGS_INITIAL_WINDOW_SIZE (spec §4.C on_settings_change). The
// connection-level window is left as it is; streams opened afterward
// take their send window from the peer settings directly.
func onSettingsInitialWindowChange(streams *streamRegistry, oldInitial, newInitial uint32) error {
	delta := int64(newInitial) - int64(oldInitial)
	if delta == 0 {
		return nil
	}
	var rangeErr error
	streams.Range(func(s *Stream) bool {
		next := s.sendWindow + delta
		if next > maxWindowSize || next < -maxWindowSize {
			rangeErr = NewStreamError(s.id, FlowControlError, "SETTINGS_INITIAL_WINDOW_SIZE change overflowed stream send window")
			return false
		}
		s.sendWindow = next
		return true
	})
	return rangeErr
}
