package http2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hf(k, v string) *HeaderField {
	h := AcquireHeaderField()
	h.Set(k, v)
	return h
}

func TestHPACKStaticTableLookup(t *testing.T) {
	hp := AcquireHPACK()
	defer ReleaseHPACK(hp)

	name, value, ok := hp.lookup(2) // :method GET
	require.True(t, ok)
	assert.Equal(t, ":method", string(name))
	assert.Equal(t, "GET", string(value))
}

func TestHPACKEncodeDecodeRoundTrip(t *testing.T) {
	enc := AcquireHPACK()
	dec := AcquireHPACK()
	defer ReleaseHPACK(enc)
	defer ReleaseHPACK(dec)

	fields := []*HeaderField{
		hf(":status", "200"),
		hf("content-type", "application/json"),
		hf("x-custom", "some-value"),
	}

	var block []byte
	for _, f := range fields {
		block = enc.AppendHeader(block, f, true)
	}
	for _, f := range fields {
		ReleaseHeaderField(f)
	}

	out, err := dec.Decode(block, 0)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "200", out[0].Value())
	assert.Equal(t, "application/json", out[1].Value())
	assert.Equal(t, "some-value", out[2].Value())
	for _, f := range out {
		ReleaseHeaderField(f)
	}
}

func TestHPACKIndexedFieldHitsStaticTable(t *testing.T) {
	enc := AcquireHPACK()
	defer ReleaseHPACK(enc)

	f := hf(":method", "GET")
	defer ReleaseHeaderField(f)

	block := enc.AppendHeader(nil, f, true)
	require.Len(t, block, 1, "exact static table hit must encode as a single indexed byte")
	assert.Equal(t, byte(0x80|2), block[0])
}

func TestHPACKDynamicTableEntryReusedOnSecondEncode(t *testing.T) {
	enc := AcquireHPACK()
	defer ReleaseHPACK(enc)

	f := hf("x-request-id", "abc-123")
	defer ReleaseHeaderField(f)

	first := enc.AppendHeader(nil, f, true)
	second := enc.AppendHeader(nil, f, true)

	assert.Greater(t, len(first), len(second), "second occurrence should reference the dynamic table entry added by the first")
}

func TestHPACKSensitiveHeaderNeverIndexed(t *testing.T) {
	enc := AcquireHPACK()
	dec := AcquireHPACK()
	defer ReleaseHPACK(enc)
	defer ReleaseHPACK(dec)

	f := hf("authorization", "Bearer secret")
	f.SetSensible(true)
	defer ReleaseHeaderField(f)

	block := enc.AppendHeader(nil, f, true)
	assert.Equal(t, byte(0x10), block[0]&0xf0, "sensitive headers must use the never-indexed representation")
	assert.Zero(t, len(enc.dynamic), "sensitive headers must never enter the dynamic table")

	out, err := dec.Decode(block, 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Bearer secret", out[0].Value())
	ReleaseHeaderField(out[0])
}

func TestHPACKDynamicTableEviction(t *testing.T) {
	hp := AcquireHPACK()
	defer ReleaseHPACK(hp)

	hp.SetMaxTableSize(64)
	hp.add([]byte("a"), []byte("1")) // size 1+1+32 = 34
	hp.add([]byte("b"), []byte("2")) // pushes total to 68, evicts "a"

	// newest entry ("b") is wire index 62, so "a" would be 63.
	_, _, ok := hp.lookup(uint64(len(staticTable) + 2))
	assert.False(t, ok, "oldest entry should have been evicted once the table exceeded its max size")
}

func TestHPACKUpdateMaxSizeEmitsPendingSizeUpdate(t *testing.T) {
	enc := AcquireHPACK()
	dec := AcquireHPACK()
	defer ReleaseHPACK(enc)
	defer ReleaseHPACK(dec)

	enc.UpdateMaxSize(0)
	f := hf("x-a", "1")
	defer ReleaseHeaderField(f)
	block := enc.AppendHeader(nil, f, true)

	assert.Equal(t, byte(0x20), block[0], "a queued table size update must be emitted as the first byte of the next header block")

	out, err := dec.Decode(block, 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	ReleaseHeaderField(out[0])
}

func TestHPACKDecodeRejectsHuffmanString(t *testing.T) {
	hp := AcquireHPACK()
	defer ReleaseHPACK(hp)

	// literal without indexing, name index 0 (literal name), Huffman bit set on the name length.
	block := []byte{0x00, 0x80 | 0x01, 'x'}
	_, err := hp.Decode(block, 0)
	require.Error(t, err)
	assert.Equal(t, CompressionError, err.(*Error).Code)
}

func TestHPACKDecodeRejectsHeaderListSizeOverflow(t *testing.T) {
	enc := AcquireHPACK()
	dec := AcquireHPACK()
	defer ReleaseHPACK(enc)
	defer ReleaseHPACK(dec)

	f := hf("x-large", "this-value-is-long-enough-to-exceed-a-tiny-budget")
	defer ReleaseHeaderField(f)
	block := enc.AppendHeader(nil, f, true)

	_, err := dec.Decode(block, 16)
	require.Error(t, err)
	assert.Equal(t, CompressionError, err.(*Error).Code)
}
