// RTMP chunk stream framing: header parse/emit and cross-chunk reassembly

package main

import "errors"

var errChannelTableExhausted = errors.New("rtmp: channel slot table exhausted")
var errBadMessageType = errors.New("rtmp: message type exceeds Metadata (22)")

var chunkExtraHeaderLen = [4]int{11, 7, 3, 0}

// MessageHeader describes one reassembled RTMP message.
type MessageHeader struct {
	Type      uint8  // message type ID
	CID       uint32 // chunk stream ID it arrived on
	Timestamp uint32 // raw absolute timestamp (fmt 0) or delta (fmt 1/2/3)
	Clock     uint32 // accumulated absolute playback clock
	SID       uint32 // message stream ID
	Length    uint32 // payload length
}

// chunkSlot memoizes the currently-assembling (or most recently completed)
// message for one chunk stream ID. Header fields persist across messages
// on the same channel so fmt 1/2/3 chunks can inherit them; only the
// payload buffer is cleared on completion.
type chunkSlot struct {
	cid     uint32
	header  MessageHeader
	clock   uint64 // wide accumulator; header.Clock is the truncated view
	payload *ByteBuffer
}

// ChunkFramer parses RTMP chunk-stream framing off an accumulating input
// buffer and reassembles per-channel messages. It is a pure decoder: it
// never touches a socket, so it can be driven with arbitrary fragmentation
// in tests.
type ChunkFramer struct {
	slots [N_CHUNK_STREAM]chunkSlot
	// cur is the slot whose current chunk payload was only partly available
	// when the last Feed returned; nil when the next bytes are a header.
	cur *chunkSlot
}

// NewChunkFramer creates an empty framer.
func NewChunkFramer() *ChunkFramer {
	return &ChunkFramer{}
}

// selectSlot implements the cid%8 + linear-probe slot selection of the
// chunk-stream channel table.
func (f *ChunkFramer) selectSlot(cid uint32) (int, error) {
	idx := int(cid % N_CHUNK_STREAM)
	if f.slots[idx].cid == 0 || f.slots[idx].cid == cid {
		return idx, nil
	}
	for i := 0; i < N_CHUNK_STREAM; i++ {
		j := (idx + i) % N_CHUNK_STREAM
		if f.slots[j].cid == 0 {
			return j, nil
		}
	}
	return 0, errChannelTableExhausted
}

// Feed consumes as many complete chunk headers and payload fragments as
// are available in `in`, invoking onMessage once per fully reassembled
// message. It returns nil when it has consumed everything it can given
// the currently available bytes (waiting for more), or a non-nil error on
// a protocol violation (channel table exhaustion, message type > 22).
// Bytes it cannot yet interpret are left untouched in `in` for the next
// Feed call — callers drive this from a read loop that appends freshly
// read bytes and calls Feed again.
func (f *ChunkFramer) Feed(in *ByteBuffer, chunkSize uint32, onMessage func(MessageHeader, []byte) error) error {
	if chunkSize == 0 {
		chunkSize = RTMP_CHUNK_SIZE
	}
	for {
		slot := f.cur
		f.cur = nil
		if slot == nil {
			s, totalHeaderLen, ok, err := f.tryDecodeHeader(in.Readable())
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			in.Erase(totalHeaderLen)
			slot = s
		}

		for {
			data := in.Readable()
			remMsg := int(slot.header.Length) - slot.payload.ReadableLen()
			if remMsg < 0 {
				remMsg = 0
			}
			if remMsg == 0 {
				break
			}
			mod := slot.payload.ReadableLen() % int(chunkSize)
			remChunk := int(chunkSize) - mod
			if remChunk > remMsg {
				remChunk = remMsg
			}
			n := remChunk
			if len(data) < n {
				n = len(data)
			}
			if n == 0 {
				f.cur = slot
				return nil
			}
			slot.payload.Append(data[:n])
			in.Erase(n)

			if slot.payload.ReadableLen() == int(slot.header.Length) {
				if err := f.completeMessage(slot, onMessage); err != nil {
					return err
				}
				break
			}
			if slot.payload.ReadableLen()%int(chunkSize) == 0 {
				// Chunk boundary reached with the message still incomplete:
				// go back to header parsing for the continuation chunk.
				break
			}
		}
	}
}

// tryDecodeHeader attempts to parse one basic header + message header
// (+ optional extended timestamp) from data without consuming it from the
// caller's buffer. On success it returns the updated slot and the number
// of header bytes to erase.
func (f *ChunkFramer) tryDecodeHeader(data []byte) (slot *chunkSlot, headerLen int, ok bool, err error) {
	if len(data) < 1 {
		return nil, 0, false, nil
	}
	b0 := data[0]
	fmtType := b0 >> 6
	cidLow := uint32(b0 & 0x3f)

	basicLen := 1
	var cid uint32
	switch cidLow {
	case 0:
		if len(data) < 2 {
			return nil, 0, false, nil
		}
		cid = 64 + uint32(data[1])
		basicLen = 2
	case 1:
		if len(data) < 3 {
			return nil, 0, false, nil
		}
		cid = 64 + uint32(GetUint16LE(data[1:3]))
		basicLen = 3
	default:
		cid = cidLow
	}

	extraLen := chunkExtraHeaderLen[fmtType]
	if len(data) < basicLen+extraLen {
		return nil, 0, false, nil
	}

	// fmt 0/1 carry a fresh type byte; reject a bad one immediately, before
	// a slot is claimed or any payload byte is consumed, rather than only
	// once the whole declared-length message has been buffered.
	if fmtType <= 1 {
		if data[basicLen+6] > RTMP_TYPE_METADATA {
			return nil, 0, false, errBadMessageType
		}
	}

	var tsField uint32
	if fmtType <= 2 {
		tsField = GetUint24BE(data[basicLen : basicLen+3])
	}
	useExt := fmtType <= 2 && tsField == 0xFFFFFF
	total := basicLen + extraLen
	if useExt {
		total += 4
	}
	if len(data) < total {
		return nil, 0, false, nil
	}
	if useExt {
		tsField = GetUint32BE(data[basicLen+extraLen : basicLen+extraLen+4])
	}

	idx, serr := f.selectSlot(cid)
	if serr != nil {
		return nil, 0, false, serr
	}
	s := &f.slots[idx]
	s.cid = cid
	s.header.CID = cid

	switch fmtType {
	case 0:
		s.header.Timestamp = tsField
		s.header.Length = GetUint24BE(data[basicLen+3 : basicLen+6])
		s.header.Type = data[basicLen+6]
		s.header.SID = GetUint32LE(data[basicLen+7 : basicLen+11])
	case 1:
		s.header.Timestamp = tsField
		s.header.Length = GetUint24BE(data[basicLen+3 : basicLen+6])
		s.header.Type = data[basicLen+6]
	case 2:
		s.header.Timestamp = tsField
	case 3:
		// Nothing new; all fields inherited from the slot.
	}

	if s.payload == nil || s.payload.ReadableLen() == 0 {
		if fmtType == 0 {
			s.clock = uint64(s.header.Timestamp)
		} else {
			s.clock += uint64(s.header.Timestamp)
		}
		if s.payload == nil {
			s.payload = NewByteBuffer(int(s.header.Length))
		} else {
			s.payload.Clear()
		}
		s.payload.Reserve(int(s.header.Length))
	}

	return s, total, true, nil
}

// completeMessage finalizes a fully-assembled message: dispatches it
// (unless it is a validation-warning case to be dropped) and clears the
// slot's payload for the next message on that channel. The message type
// was already validated in tryDecodeHeader, before any payload byte of
// this message was consumed.
func (f *ChunkFramer) completeMessage(s *chunkSlot, onMessage func(MessageHeader, []byte) error) error {
	h := s.header

	payload := make([]byte, s.payload.ReadableLen())
	copy(payload, s.payload.Readable())
	s.payload.Clear()

	if s.clock > 0xFFFFFFFF {
		LogWarning("rtmp: dropping message with clock overflowing 32 bits on cid")
		return nil
	}
	h.Clock = uint32(s.clock)

	return onMessage(h, payload)
}

// basicHeaderEncode serializes a chunk basic header for the given fmt/CID.
func basicHeaderEncode(fmtType uint8, cid uint32) []byte {
	switch {
	case cid >= 64+256:
		rel := cid - 64
		return []byte{(fmtType << 6) | 1, byte(rel), byte(rel >> 8)}
	case cid >= 64:
		return []byte{fmtType << 6, byte(cid - 64)}
	default:
		return []byte{(fmtType << 6) | byte(cid)}
	}
}

// EncodeMessage serializes a complete message as one fmt-0 chunk header
// plus as many fmt-3 continuations as needed to exhaust the payload at
// outChunkSize bytes per chunk. No header compression is used on output.
func EncodeMessage(h MessageHeader, payload []byte, outChunkSize uint32) []byte {
	if outChunkSize == 0 {
		outChunkSize = RTMP_CHUNK_SIZE
	}
	useExt := h.Clock >= 0xFFFFFF

	basic0 := basicHeaderEncode(RTMP_CHUNK_TYPE_0, h.CID)
	basic3 := basicHeaderEncode(RTMP_CHUNK_TYPE_3, h.CID)

	msgHeader := make([]byte, 0, 11)
	tsField := h.Clock
	if useExt {
		tsField = 0xFFFFFF
	}
	tsb := make([]byte, 3)
	PutUint24BE(tsb, tsField)
	msgHeader = append(msgHeader, tsb...)
	lenb := make([]byte, 3)
	PutUint24BE(lenb, h.Length)
	msgHeader = append(msgHeader, lenb...)
	msgHeader = append(msgHeader, h.Type)
	sidb := make([]byte, 4)
	PutUint32LE(sidb, h.SID)
	msgHeader = append(msgHeader, sidb...)

	var ext []byte
	if useExt {
		ext = make([]byte, 4)
		PutUint32BE(ext, h.Clock)
	}

	out := NewByteBuffer(len(basic0) + len(msgHeader) + len(ext) + len(payload) + len(payload)/int(outChunkSize)*(len(basic3)+len(ext)) + 16)
	out.Append(basic0)
	out.Append(msgHeader)
	out.Append(ext)

	remaining := payload
	for len(remaining) > 0 {
		n := int(outChunkSize)
		if n > len(remaining) {
			n = len(remaining)
		}
		out.Append(remaining[:n])
		remaining = remaining[n:]
		if len(remaining) > 0 {
			out.Append(basic3)
			out.Append(ext)
		}
	}

	result := make([]byte, out.ReadableLen())
	copy(result, out.Readable())
	return result
}
