package http2

// streamRegistry is the connection's stream_id -> stream_state mapping
// (SPEC_FULL.md §9 design note), replacing the teacher's sorted-slice
// Streams registry with a direct map: stream ids are sparse, monotonic
// and long-lived rather than densely packed, so a map avoids the
// shift-on-delete cost of a slice kept sorted by id.
type streamRegistry struct {
	m map[uint32]*Stream
}

func newStreamRegistry() *streamRegistry {
	return &streamRegistry{m: make(map[uint32]*Stream, 16)}
}

func (r *streamRegistry) Get(id uint32) (*Stream, bool) {
	s, ok := r.m[id]
	return s, ok
}

func (r *streamRegistry) Insert(s *Stream) {
	r.m[s.id] = s
}

func (r *streamRegistry) Delete(id uint32) {
	delete(r.m, id)
}

func (r *streamRegistry) Len() int { return len(r.m) }

// Range calls fn for every registered stream in unspecified order,
// stopping early if fn returns false. fn must not mutate the registry
// itself (Insert/Delete); mutating a Stream's own fields is fine.
func (r *streamRegistry) Range(fn func(s *Stream) bool) {
	for _, s := range r.m {
		if !fn(s) {
			return
		}
	}
}

// countOpen reports the number of streams the admission queue must
// count against SETTINGS_MAX_CONCURRENT_STREAMS: open plus
// half-closed streams still occupy a concurrency slot, per RFC 7540
// §5.1.2; idle/reserved/closed do not.
func (r *streamRegistry) countOpen() int {
	n := 0
	for _, s := range r.m {
		switch s.state {
		case StreamOpen, StreamHalfClosedLocal, StreamHalfClosedRemote:
			n++
		}
	}
	return n
}
