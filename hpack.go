package http2

import (
	"sync"

	"github.com/rfc7540/h2core/h2utils"
)

// hpackEntry is one row of a dynamic table: a name/value pair plus its
// RFC 7541 §4.1 accounting size (name + value + 32).
type hpackEntry struct {
	name, value []byte
}

func (e *hpackEntry) size() uint32 { return uint32(len(e.name) + len(e.value) + 32) }

// staticTable is the fixed table of RFC 7541 Appendix A. Index 0 here is
// wire-index 1.
var staticTable = [...]hpackEntry{
	{name: []byte(":authority")},
	{name: []byte(":method"), value: []byte("GET")},
	{name: []byte(":method"), value: []byte("POST")},
	{name: []byte(":path"), value: []byte("/")},
	{name: []byte(":path"), value: []byte("/index.html")},
	{name: []byte(":scheme"), value: []byte("http")},
	{name: []byte(":scheme"), value: []byte("https")},
	{name: []byte(":status"), value: []byte("200")},
	{name: []byte(":status"), value: []byte("204")},
	{name: []byte(":status"), value: []byte("206")},
	{name: []byte(":status"), value: []byte("304")},
	{name: []byte(":status"), value: []byte("400")},
	{name: []byte(":status"), value: []byte("404")},
	{name: []byte(":status"), value: []byte("500")},
	{name: []byte("accept-charset")},
	{name: []byte("accept-encoding"), value: []byte("gzip, deflate")},
	{name: []byte("accept-language")},
	{name: []byte("accept-ranges")},
	{name: []byte("accept")},
	{name: []byte("access-control-allow-origin")},
	{name: []byte("age")},
	{name: []byte("allow")},
	{name: []byte("authorization")},
	{name: []byte("cache-control")},
	{name: []byte("content-disposition")},
	{name: []byte("content-encoding")},
	{name: []byte("content-language")},
	{name: []byte("content-length")},
	{name: []byte("content-location")},
	{name: []byte("content-range")},
	{name: []byte("content-type")},
	{name: []byte("cookie")},
	{name: []byte("date")},
	{name: []byte("etag")},
	{name: []byte("expect")},
	{name: []byte("expires")},
	{name: []byte("from")},
	{name: []byte("host")},
	{name: []byte("if-match")},
	{name: []byte("if-modified-since")},
	{name: []byte("if-none-match")},
	{name: []byte("if-range")},
	{name: []byte("if-unmodified-since")},
	{name: []byte("last-modified")},
	{name: []byte("link")},
	{name: []byte("location")},
	{name: []byte("max-forwards")},
	{name: []byte("proxy-authenticate")},
	{name: []byte("proxy-authorization")},
	{name: []byte("range")},
	{name: []byte("referer")},
	{name: []byte("refresh")},
	{name: []byte("retry-after")},
	{name: []byte("server")},
	{name: []byte("set-cookie")},
	{name: []byte("strict-transport-security")},
	{name: []byte("transfer-encoding")},
	{name: []byte("user-agent")},
	{name: []byte("vary")},
	{name: []byte("via")},
	{name: []byte("www-authenticate")},
}

// HPACK is one direction's (encoder or decoder) HPACK context: the
// dynamic table plus whatever table-size-update bookkeeping RFC 7541
// §6.3 requires. A Conn holds two independent instances, enc and dec
// (spec §4.B/§3), never shared across connections.
//
// Use AcquireHPACK/ReleaseHPACK to reuse allocations across Conns.
type HPACK struct {
	dynamic []hpackEntry // newest entry at index 0, like RFC 7541 §2.3.2
	size    uint32
	maxSize uint32

	// pendingSize/pendingUpdate implement the encoder side of RFC 7541
	// §6.3: a dynamic table size update must be emitted as the first
	// representation of the next header block after the peer advertises
	// a new SETTINGS_HEADER_TABLE_SIZE (spec §4.B update_max_size).
	pendingSize   uint32
	pendingUpdate bool
}

var hpackPool = sync.Pool{
	New: func() interface{} { return &HPACK{maxSize: DefaultHeaderTableSize} },
}

// AcquireHPACK returns a reset HPACK context from the pool.
func AcquireHPACK() *HPACK {
	hp := hpackPool.Get().(*HPACK)
	return hp
}

// ReleaseHPACK resets hp and returns it to the pool.
func ReleaseHPACK(hp *HPACK) {
	hp.Reset()
	hpackPool.Put(hp)
}

// Reset empties the dynamic table and any pending size update.
func (hp *HPACK) Reset() {
	hp.dynamic = hp.dynamic[:0]
	hp.size = 0
	hp.maxSize = DefaultHeaderTableSize
	hp.pendingSize = 0
	hp.pendingUpdate = false
}

// SetMaxTableSize changes hp's own table bound immediately; used by a
// decoder context reacting to an inbound dynamic-table-size-update, and
// by tests. It evicts immediately, unlike UpdateMaxSize.
func (hp *HPACK) SetMaxTableSize(n uint32) {
	hp.maxSize = n
	hp.evict()
}

// UpdateMaxSize queues a dynamic table size update to be emitted at the
// start of the next call to AppendHeader (spec §4.B update_max_size),
// used by the encoder context when the peer's SETTINGS_HEADER_TABLE_SIZE
// changes.
func (hp *HPACK) UpdateMaxSize(n uint32) {
	hp.pendingSize = n
	hp.pendingUpdate = true
}

func (hp *HPACK) add(name, value []byte) {
	e := hpackEntry{name: append([]byte(nil), name...), value: append([]byte(nil), value...)}
	hp.dynamic = append([]hpackEntry{e}, hp.dynamic...)
	hp.size += e.size()
	hp.evict()
}

func (hp *HPACK) evict() {
	for hp.size > hp.maxSize && len(hp.dynamic) > 0 {
		last := len(hp.dynamic) - 1
		hp.size -= hp.dynamic[last].size()
		hp.dynamic = hp.dynamic[:last]
	}
}

// lookup resolves a 1-based wire index against the static table then
// the dynamic table (RFC 7541 §2.3.3).
func (hp *HPACK) lookup(index uint64) (name, value []byte, ok bool) {
	if index < 1 {
		return nil, nil, false
	}
	if index <= uint64(len(staticTable)) {
		e := &staticTable[index-1]
		return e.name, e.value, true
	}
	di := int(index) - len(staticTable) - 1
	if di < 0 || di >= len(hp.dynamic) {
		return nil, nil, false
	}
	return hp.dynamic[di].name, hp.dynamic[di].value, true
}

// search looks for an exact (name,value) match, falling back to a
// name-only match, across static then dynamic tables (used by the
// encoder to pick the most compact representation).
func (hp *HPACK) search(name, value []byte) (index uint64, nameOnly bool, found bool) {
	for i := range staticTable {
		if h2utils.EqualFold(staticTable[i].name, name) {
			if string(staticTable[i].value) == string(value) {
				return uint64(i + 1), false, true
			}
			if !nameOnly {
				index, nameOnly, found = uint64(i+1), true, true
			}
		}
	}
	for i := range hp.dynamic {
		if h2utils.EqualFold(hp.dynamic[i].name, name) {
			if string(hp.dynamic[i].value) == string(value) {
				return uint64(i + 1 + len(staticTable)), false, true
			}
			if !found || !nameOnly {
				if !nameOnly {
					index, nameOnly, found = uint64(i+1+len(staticTable)), true, true
				}
			}
		}
	}
	return index, nameOnly, found
}

// AppendHeader HPACK-encodes hf and appends its wire representation to
// dst. incrementalIndexing requests a "literal with incremental
// indexing" representation when no exact match exists; it is ignored
// (forced to never-indexed) when hf is marked sensitive (spec §4.B:
// "never-indexed and sensitive hints honored for authorization-class
// headers").
func (hp *HPACK) AppendHeader(dst []byte, hf *HeaderField, incrementalIndexing bool) []byte {
	if hp.pendingUpdate {
		dst = appendInt(dst, 5, 0x20, uint64(hp.pendingSize))
		hp.maxSize = hp.pendingSize
		hp.evict()
		hp.pendingUpdate = false
	}

	name, value := hf.KeyBytes(), hf.ValueBytes()
	index, nameOnly, found := hp.search(name, value)

	if found && !nameOnly && !hf.IsSensible() {
		return appendInt(dst, 7, 0x80, index)
	}

	if hf.IsSensible() {
		if found {
			dst = appendInt(dst, 4, 0x10, index)
		} else {
			dst = append(dst, 0x10)
			dst = appendString(dst, name)
		}
		return appendString(dst, value)
	}

	if !incrementalIndexing {
		if found {
			dst = appendInt(dst, 4, 0x00, index)
		} else {
			dst = append(dst, 0x00)
			dst = appendString(dst, name)
		}
		return appendString(dst, value)
	}

	if found {
		dst = appendInt(dst, 6, 0x40, index)
	} else {
		dst = append(dst, 0x40)
		dst = appendString(dst, name)
	}
	dst = appendString(dst, value)
	hp.add(name, value)
	return dst
}

// Decode parses a complete, CONTINUATION-assembled HPACK header block
// into a list of pooled HeaderFields, enforcing RFC 7541 §4.1's
// cumulative "header list size" bound against maxHeaderListSize (0
// means unbounded). Callers must ReleaseHeaderField each returned
// field. Any error is fatal per spec §4.B ("any decode error is fatal:
// CONNECTION close with GOAWAY COMPRESSION_ERROR").
func (hp *HPACK) Decode(block []byte, maxHeaderListSize uint32) ([]*HeaderField, error) {
	var out []*HeaderField
	var total uint64

	release := func() {
		for _, hf := range out {
			ReleaseHeaderField(hf)
		}
	}

	for len(block) > 0 {
		c := block[0]
		var (
			name, value []byte
			sensitive   bool
			err         error
		)

		switch {
		case c&0x80 != 0: // indexed header field
			var idx uint64
			block, idx, err = readInt(7, block)
			if err == nil {
				var ok bool
				name, value, ok = hp.lookup(idx)
				if !ok {
					err = NewError(CompressionError, "HPACK: indexed field not found")
				}
				name = append([]byte(nil), name...)
				value = append([]byte(nil), value...)
			}

		case c&0xc0 == 0x40: // literal with incremental indexing
			var idx uint64
			block, idx, err = readInt(6, block)
			if err == nil {
				name, value, err = hp.readLiteral(idx, block, &block)
			}
			if err == nil {
				hp.add(name, value)
			}

		case c&0xe0 == 0x20: // dynamic table size update
			var sz uint64
			block, sz, err = readInt(5, block)
			if err == nil {
				hp.SetMaxTableSize(uint32(sz))
				continue
			}

		case c&0xf0 == 0x10: // literal never indexed
			var idx uint64
			block, idx, err = readInt(4, block)
			if err == nil {
				name, value, err = hp.readLiteral(idx, block, &block)
				sensitive = true
			}

		default: // literal without indexing, c&0xf0 == 0x00
			var idx uint64
			block, idx, err = readInt(4, block)
			if err == nil {
				name, value, err = hp.readLiteral(idx, block, &block)
			}
		}

		if err != nil {
			release()
			return nil, err
		}

		total += uint64(len(name)) + uint64(len(value)) + 32
		if maxHeaderListSize != 0 && total > uint64(maxHeaderListSize) {
			release()
			return nil, NewError(CompressionError, "HPACK: decoded header list exceeds SETTINGS_MAX_HEADER_LIST_SIZE")
		}

		hf := AcquireHeaderField()
		hf.SetKeyBytes(name)
		hf.SetValueBytes(value)
		hf.SetSensible(sensitive)
		out = append(out, hf)
	}

	return out, nil
}

// readLiteral decodes the name (indexed or literal) and value of a
// literal representation whose index prefix has already been consumed
// into idx, then advances *rest past the value.
func (hp *HPACK) readLiteral(idx uint64, b []byte, rest *[]byte) (name, value []byte, err error) {
	if idx == 0 {
		b, name, err = readString(b)
		if err != nil {
			return nil, nil, err
		}
	} else {
		var ok bool
		n, _, lookupOK := hp.lookup(idx)
		ok = lookupOK
		if !ok {
			return nil, nil, NewError(CompressionError, "HPACK: literal with unknown name index")
		}
		name = append([]byte(nil), n...)
	}

	b, value, err = readString(b)
	*rest = b
	return name, value, err
}

// --- RFC 7541 §5.1/§5.2 integer and string primitives ---
//
// This core never emits Huffman-coded strings (H=0 always) and rejects
// Huffman-coded input from a peer with COMPRESSION_ERROR rather than
// attempt a lossy decode: see DESIGN.md for why no Huffman table is
// wired in.

func appendInt(dst []byte, n uint, prefix byte, v uint64) []byte {
	max := uint64(1)<<n - 1
	if v < max {
		return append(dst, prefix|byte(v))
	}
	dst = append(dst, prefix|byte(max))
	v -= max
	for v >= 128 {
		dst = append(dst, byte(v&0x7f)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

func readInt(n uint, b []byte) ([]byte, uint64, error) {
	if len(b) == 0 {
		return b, 0, ErrNeedMore
	}
	max := uint64(1)<<n - 1
	v := uint64(b[0]) & max
	b = b[1:]
	if v < max {
		return b, v, nil
	}
	var m uint
	for {
		if len(b) == 0 {
			return b, 0, ErrNeedMore
		}
		c := b[0]
		b = b[1:]
		v += uint64(c&0x7f) << m
		if c&0x80 == 0 {
			break
		}
		m += 7
		if m >= 63 {
			return b, 0, NewError(CompressionError, "HPACK: integer overflow")
		}
	}
	return b, v, nil
}

func appendString(dst []byte, s []byte) []byte {
	dst = appendInt(dst, 7, 0x00, uint64(len(s)))
	return append(dst, s...)
}

func readString(b []byte) ([]byte, []byte, error) {
	if len(b) == 0 {
		return b, nil, ErrNeedMore
	}
	huffman := b[0]&0x80 != 0

	b, length, err := readInt(7, b)
	if err != nil {
		return b, nil, err
	}
	if uint64(len(b)) < length {
		return b, nil, ErrNeedMore
	}

	if huffman {
		return b[length:], nil, NewError(CompressionError, "HPACK: Huffman-coded string literals are not supported")
	}

	return b[length:], append([]byte(nil), b[:length]...), nil
}
