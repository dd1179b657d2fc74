package http2

import "github.com/rfc7540/h2core/h2utils"

var _ Frame = (*Settings)(nil)

// Settings parameter identifiers, RFC 7540 §6.5.2.
type SettingID uint16

const (
	SettingHeaderTableSize      SettingID = 0x1
	SettingEnablePush           SettingID = 0x2
	SettingMaxConcurrentStreams SettingID = 0x3
	SettingInitialWindowSize    SettingID = 0x4
	SettingMaxFrameSize         SettingID = 0x5
	SettingMaxHeaderListSize    SettingID = 0x6
)

// RFC 7540 §6.5.2 defaults, used whenever a parameter has not been
// explicitly advertised by either side.
const (
	DefaultHeaderTableSize   = 4096
	DefaultInitialWindowSize = 65535
	DefaultMaxFrameSize      = 1 << 14
)

// DefaultMaxConcurrentStreamsCeiling bounds the value this client will
// treat SETTINGS_MAX_CONCURRENT_STREAMS as, when a peer sends no such
// parameter (RFC 7540 leaves "unbounded" legal, but an admission queue
// needs a finite credit pool to hand out). See SPEC_FULL.md Open
// Question 3.
const DefaultMaxConcurrentStreamsCeiling = 4096

const settingsEntryLen = 6

// present-field bitmap bits, one per SettingID above.
const (
	bitHeaderTableSize = 1 << iota
	bitEnablePush
	bitMaxConcurrentStreams
	bitInitialWindowSize
	bitMaxFrameSize
	bitMaxHeaderListSize
)

// Settings is both the SETTINGS frame body (RFC 7540 §6.5) and the
// value object a Conn uses to track its own and its peer's current
// parameters (spec §3: "two instances exist per connection: the
// peer-advertised settings and the locally advertised settings").
// A field that was never explicitly set reads back as its RFC 7540
// default through the Xxx() accessors; the present bitmap records which
// parameters were set explicitly, and Serialize emits only those.
type Settings struct {
	ack bool

	present uint8

	headerTableSize      uint32
	enablePush           bool
	maxConcurrentStreams uint32
	initialWindowSize    uint32
	maxFrameSize         uint32
	maxHeaderListSize    uint32
}

func (s *Settings) Type() FrameType { return FrameSettings }

func (s *Settings) Reset() {
	s.ack = false
	s.present = 0
	s.headerTableSize = 0
	s.enablePush = false
	s.maxConcurrentStreams = 0
	s.initialWindowSize = 0
	s.maxFrameSize = 0
	s.maxHeaderListSize = 0
}

func (s *Settings) Ack() bool     { return s.ack }
func (s *Settings) SetAck(v bool) { s.ack = v }

func (s *Settings) HeaderTableSize() uint32 {
	if s.present&bitHeaderTableSize == 0 {
		return DefaultHeaderTableSize
	}
	return s.headerTableSize
}

func (s *Settings) SetHeaderTableSize(n uint32) {
	s.headerTableSize = n
	s.present |= bitHeaderTableSize
}

// EnablePush defaults to true: a client advertises 0 explicitly if it
// will refuse pushed streams.
func (s *Settings) EnablePush() bool {
	if s.present&bitEnablePush == 0 {
		return true
	}
	return s.enablePush
}

func (s *Settings) SetEnablePush(v bool) {
	s.enablePush = v
	s.present |= bitEnablePush
}

// MaxConcurrentStreams returns DefaultMaxConcurrentStreamsCeiling when
// the peer has not advertised a value, rather than RFC 7540's literal
// "unbounded" (see SPEC_FULL.md Open Question 3).
func (s *Settings) MaxConcurrentStreams() uint32 {
	if s.present&bitMaxConcurrentStreams == 0 {
		return DefaultMaxConcurrentStreamsCeiling
	}
	return s.maxConcurrentStreams
}

func (s *Settings) HasMaxConcurrentStreams() bool {
	return s.present&bitMaxConcurrentStreams != 0
}

func (s *Settings) SetMaxConcurrentStreams(n uint32) {
	s.maxConcurrentStreams = n
	s.present |= bitMaxConcurrentStreams
}

func (s *Settings) InitialWindowSize() uint32 {
	if s.present&bitInitialWindowSize == 0 {
		return DefaultInitialWindowSize
	}
	return s.initialWindowSize
}

func (s *Settings) SetInitialWindowSize(n uint32) {
	s.initialWindowSize = n
	s.present |= bitInitialWindowSize
}

func (s *Settings) MaxFrameSize() uint32 {
	if s.present&bitMaxFrameSize == 0 {
		return DefaultMaxFrameSize
	}
	return s.maxFrameSize
}

func (s *Settings) SetMaxFrameSize(n uint32) {
	s.maxFrameSize = n
	s.present |= bitMaxFrameSize
}

// MaxHeaderListSize returns 0 when unset, meaning "no limit" per
// RFC 7540 §6.5.2.
func (s *Settings) MaxHeaderListSize() uint32 {
	if s.present&bitMaxHeaderListSize == 0 {
		return 0
	}
	return s.maxHeaderListSize
}

func (s *Settings) SetMaxHeaderListSize(n uint32) {
	s.maxHeaderListSize = n
	s.present |= bitMaxHeaderListSize
}

// CopyTo replaces dst's tracked values with s's, used by Conn to fold
// a freshly-received SETTINGS frame into its peer-settings record.
func (s *Settings) CopyTo(dst *Settings) {
	dst.present = s.present
	dst.headerTableSize = s.headerTableSize
	dst.enablePush = s.enablePush
	dst.maxConcurrentStreams = s.maxConcurrentStreams
	dst.initialWindowSize = s.initialWindowSize
	dst.maxFrameSize = s.maxFrameSize
	dst.maxHeaderListSize = s.maxHeaderListSize
}

func (s *Settings) Deserialize(fh *FrameHeader) error {
	if fh.stream != 0 {
		return NewError(ProtocolError, "SETTINGS frame with non-zero stream id")
	}

	if fh.flags.Has(FlagAck) {
		if len(fh.payload) != 0 {
			return NewError(FrameSizeError, "SETTINGS ACK must carry no payload")
		}
		s.ack = true
		return nil
	}

	if len(fh.payload)%settingsEntryLen != 0 {
		return NewError(FrameSizeError, "SETTINGS frame length not a multiple of 6")
	}

	payload := fh.payload
	for len(payload) > 0 {
		id := SettingID(uint16(payload[0])<<8 | uint16(payload[1]))
		val := h2utils.BytesToUint32(payload[2:6])
		payload = payload[settingsEntryLen:]

		switch id {
		case SettingHeaderTableSize:
			s.SetHeaderTableSize(val)
		case SettingEnablePush:
			if val > 1 {
				return NewError(ProtocolError, "SETTINGS_ENABLE_PUSH must be 0 or 1")
			}
			s.SetEnablePush(val == 1)
		case SettingMaxConcurrentStreams:
			s.SetMaxConcurrentStreams(val)
		case SettingInitialWindowSize:
			if val > 1<<31-1 {
				return NewError(FlowControlError, "SETTINGS_INITIAL_WINDOW_SIZE exceeds the maximum flow-control window")
			}
			s.SetInitialWindowSize(val)
		case SettingMaxFrameSize:
			if val < DefaultMaxFrameSize || val > 1<<24-1 {
				return NewError(ProtocolError, "SETTINGS_MAX_FRAME_SIZE out of range")
			}
			s.SetMaxFrameSize(val)
		case SettingMaxHeaderListSize:
			s.SetMaxHeaderListSize(val)
		default:
			// unknown parameter, ignore per RFC 7540 §6.5.2
		}
	}

	return nil
}

func (s *Settings) Serialize(fh *FrameHeader) {
	if s.ack {
		fh.flags = fh.flags.Add(FlagAck)
		fh.setPayload(nil)
		return
	}

	payload := make([]byte, 0, settingsEntryLen*6)
	payload = appendSetting(payload, SettingHeaderTableSize, s.present&bitHeaderTableSize != 0, s.headerTableSize)
	if s.present&bitEnablePush != 0 {
		v := uint32(0)
		if s.enablePush {
			v = 1
		}
		payload = appendSetting(payload, SettingEnablePush, true, v)
	}
	payload = appendSetting(payload, SettingMaxConcurrentStreams, s.present&bitMaxConcurrentStreams != 0, s.maxConcurrentStreams)
	payload = appendSetting(payload, SettingInitialWindowSize, s.present&bitInitialWindowSize != 0, s.initialWindowSize)
	payload = appendSetting(payload, SettingMaxFrameSize, s.present&bitMaxFrameSize != 0, s.maxFrameSize)
	payload = appendSetting(payload, SettingMaxHeaderListSize, s.present&bitMaxHeaderListSize != 0, s.maxHeaderListSize)

	fh.setPayload(payload)
}

func appendSetting(dst []byte, id SettingID, present bool, val uint32) []byte {
	if !present {
		return dst
	}
	dst = append(dst, byte(id>>8), byte(id))
	return h2utils.AppendUint32Bytes(dst, val)
}
