package http2

import "sync"

// FrameType is the 8-bit frame type field of RFC 7540 §4.1.
type FrameType uint8

const (
	FrameData        FrameType = 0x0
	FrameHeaders     FrameType = 0x1
	FramePriority    FrameType = 0x2
	FrameRstStream   FrameType = 0x3
	FrameSettings    FrameType = 0x4
	FramePushPromise FrameType = 0x5
	FramePing        FrameType = 0x6
	FrameGoAway      FrameType = 0x7
	FrameWindowUpdate FrameType = 0x8
	FrameContinuation FrameType = 0x9

	maxKnownFrameType = FrameContinuation
)

func (t FrameType) String() string {
	switch t {
	case FrameData:
		return "DATA"
	case FrameHeaders:
		return "HEADERS"
	case FramePriority:
		return "PRIORITY"
	case FrameRstStream:
		return "RST_STREAM"
	case FrameSettings:
		return "SETTINGS"
	case FramePushPromise:
		return "PUSH_PROMISE"
	case FramePing:
		return "PING"
	case FrameGoAway:
		return "GOAWAY"
	case FrameWindowUpdate:
		return "WINDOW_UPDATE"
	case FrameContinuation:
		return "CONTINUATION"
	default:
		return "UNKNOWN"
	}
}

// FrameFlags is the 8-bit flags field of RFC 7540 §4.1. The concrete
// meaning of each bit depends on the frame type it is attached to.
type FrameFlags uint8

const (
	FlagAck        FrameFlags = 0x1
	FlagEndStream  FrameFlags = 0x1
	FlagEndHeaders FrameFlags = 0x4
	FlagPadded     FrameFlags = 0x8
	FlagPriority   FrameFlags = 0x20
)

// Has reports whether f contains flag.
func (f FrameFlags) Has(flag FrameFlags) bool { return f&flag == flag }

// Add returns f with flag set.
func (f FrameFlags) Add(flag FrameFlags) FrameFlags { return f | flag }

// Frame is implemented by every concrete frame payload type (Data,
// Headers, Priority, ...). A FrameHeader carries exactly one Frame as
// its Body.
type Frame interface {
	Type() FrameType
	Reset()
	// Deserialize populates the frame from fh's raw payload and flags.
	Deserialize(fh *FrameHeader) error
	// Serialize encodes the frame's fields into fh's flags and payload.
	Serialize(fh *FrameHeader)
}

var framePools = map[FrameType]*sync.Pool{
	FrameData:         {New: func() interface{} { return &Data{} }},
	FrameHeaders:      {New: func() interface{} { return &Headers{} }},
	FramePriority:     {New: func() interface{} { return &Priority{} }},
	FrameRstStream:    {New: func() interface{} { return &RstStream{} }},
	FrameSettings:     {New: func() interface{} { return &Settings{} }},
	FramePushPromise:  {New: func() interface{} { return &PushPromise{} }},
	FramePing:         {New: func() interface{} { return &Ping{} }},
	FrameGoAway:       {New: func() interface{} { return &GoAway{} }},
	FrameWindowUpdate: {New: func() interface{} { return &WindowUpdate{} }},
	FrameContinuation: {New: func() interface{} { return &Continuation{} }},
}

// AcquireFrame returns a pooled, reset Frame body of the given type, or
// nil if kind is outside the RFC 7540 baseline (spec §3: unknown frame
// types MUST be discarded, never constructed).
func AcquireFrame(kind FrameType) Frame {
	pool, ok := framePools[kind]
	if !ok {
		return nil
	}
	fr := pool.Get().(Frame)
	fr.Reset()
	return fr
}

// ReleaseFrame returns fr to its type's pool.
func ReleaseFrame(fr Frame) {
	if fr == nil {
		return
	}
	if pool, ok := framePools[fr.Type()]; ok {
		pool.Put(fr)
	}
}
