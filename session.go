// RTMP session: handshake, chunk loop, command dispatch

package main

import (
	"io"
	"math/rand"
	"net"
	"sync"
	"time"
)

const (
	dirNone = iota
	dirInput
	dirOutput
)

// protocolError marks a failure that should tear the session down, as
// opposed to a validation warning that is merely logged and ignored.
type protocolError struct{ msg string }

func (e protocolError) Error() string { return e.msg }

func newProtocolError(msg string) error { return protocolError{msg: msg} }

// Session represents one accepted TCP connection carrying one RTMP
// connection's worth of state: handshake progress, chunk-stream
// reassembly, the connect/publish/play command state, and (once attached)
// a non-owning reference to the Stream it publishes to or plays from.
type Session struct {
	server *Server
	conn   net.Conn
	id     uint64
	ip     string

	writeMu      sync.Mutex
	outChunkSize uint32
	inChunkSize  uint32

	framer  *ChunkFramer
	readBuf *ByteBuffer

	app       string
	streamKey string
	dir       int
	msid      uint32

	stream *Stream

	closeOnce sync.Once
}

func newSession(server *Server, id uint64, ip string, conn net.Conn) *Session {
	return &Session{
		server:       server,
		conn:         conn,
		id:           id,
		ip:           ip,
		inChunkSize:  RTMP_CHUNK_SIZE,
		outChunkSize: RTMP_CHUNK_SIZE,
		framer:       NewChunkFramer(),
		readBuf:      NewByteBuffer(server.cfg.ReadBufferSize),
	}
}

// run performs the handshake and then drives the chunk-stream read loop
// until the connection closes or a protocol error occurs.
func (s *Session) run() {
	if err := s.handshake(); err != nil {
		LogDebugSession(s.id, s.ip, "handshake failed: "+err.Error())
		return
	}
	LogRequest(s.id, s.ip, "connected")

	readChunk := make([]byte, s.server.cfg.ReadBufferSize)
	for {
		n, err := s.conn.Read(readChunk)
		if n > 0 {
			s.readBuf.Append(readChunk[:n])
			if ferr := s.framer.Feed(s.readBuf, s.inChunkSize, s.onMessage); ferr != nil {
				LogDebugSession(s.id, s.ip, "closing: "+ferr.Error())
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				LogDebugSession(s.id, s.ip, "read error: "+err.Error())
			}
			return
		}
	}
}

// handshake implements the plain (non-digest) handshake: one echo of C1
// back as S2, with S1 carrying a wall-clock epoch second plus padding.
// A nonzero complex-handshake marker in C1 is rejected outright.
func (s *Session) handshake() error {
	c0c1 := make([]byte, 1+RTMP_HANDSHAKE_SIZE)
	if _, err := io.ReadFull(s.conn, c0c1); err != nil {
		return err
	}
	if c0c1[0] != RTMP_VERSION {
		return newProtocolError("unsupported handshake version")
	}
	c1 := c0c1[1:]
	if GetUint32BE(c1[4:8]) != 0 {
		return newProtocolError("complex handshake not supported")
	}

	out := make([]byte, 1+RTMP_HANDSHAKE_SIZE+RTMP_HANDSHAKE_SIZE)
	out[0] = RTMP_VERSION
	s1 := out[1 : 1+RTMP_HANDSHAKE_SIZE]
	PutUint32BE(s1[0:4], uint32(time.Now().Unix()))
	rand.New(rand.NewSource(time.Now().UnixNano())).Read(s1[8:])
	copy(out[1+RTMP_HANDSHAKE_SIZE:], c1)

	if _, err := s.conn.Write(out); err != nil {
		return err
	}

	c2 := make([]byte, RTMP_HANDSHAKE_SIZE)
	_, err := io.ReadFull(s.conn, c2)
	return err
}

// onMessage dispatches one fully reassembled RTMP message.
func (s *Session) onMessage(h MessageHeader, payload []byte) error {
	switch h.Type {
	case RTMP_TYPE_SET_CHUNK_SIZE:
		if len(payload) >= 4 {
			s.inChunkSize = GetUint32BE(payload[:4])
		}
	case RTMP_TYPE_ABORT, RTMP_TYPE_ACKNOWLEDGEMENT, RTMP_TYPE_WINDOW_ACKNOWLEDGEMENT_SIZE, RTMP_TYPE_SET_PEER_BANDWIDTH:
		// Acknowledged implicitly; this relay does not enforce bandwidth caps.
	case RTMP_TYPE_EVENT:
		return s.onUserControl(payload)
	case RTMP_TYPE_AUDIO:
		if s.dir == dirInput && s.stream != nil {
			s.stream.OnAudio(payload, h.Clock)
		}
	case RTMP_TYPE_VIDEO:
		if s.dir == dirInput && s.stream != nil {
			s.stream.OnVideo(payload, h.Clock)
		}
	case RTMP_TYPE_FLEX_STREAM:
		if len(payload) >= 1 {
			return s.onNotify(payload[1:])
		}
	case RTMP_TYPE_DATA:
		return s.onNotify(payload)
	case RTMP_TYPE_FLEX_MESSAGE:
		if len(payload) >= 1 {
			return s.onInvoke(payload[1:])
		}
	case RTMP_TYPE_INVOKE:
		return s.onInvoke(payload)
	}
	return nil
}

func (s *Session) onUserControl(payload []byte) error {
	if len(payload) < 2 {
		return nil
	}
	event := GetUint16BE(payload[:2])
	if event == eventPingRequest {
		body := encodeUserControlEvent(eventPingResponse, uint32(time.Now().UnixMilli()), true)
		s.writeRaw(s.framed(mkHeader(RTMP_TYPE_EVENT, RTMP_CHANNEL_PROTOCOL, 0, 0, body), body))
	}
	return nil
}

// onInvoke decodes and dispatches an AMF0 command message.
func (s *Session) onInvoke(payload []byte) error {
	d := NewAMF0Decoder(payload)
	cmdItem, err := d.Get()
	if err != nil || !cmdItem.IsString() {
		return nil
	}
	cmd := cmdItem.StringValue()
	tidItem, err := d.Get()
	if err != nil || tidItem.Type != AMF0Number {
		return nil
	}
	tid := tidItem.Num

	switch cmd {
	case "connect":
		return s.handleConnect(d, tid)
	case "createStream":
		s.msid = msidDefault
		s.writeRaw(s.invokeFramed(encodeBody(func(buf *ByteBuffer) { encodeCreateStreamResult(buf, tid) })))
	case "publish":
		return s.handlePublish(d, tid)
	case "play":
		return s.handlePlay(d, tid)
	case "_checkbw":
		s.writeRaw(s.invokeFramed(encodeBody(func(buf *ByteBuffer) { encodeCheckBWResult(buf, tid) })))
	case "deleteStream", "onBWDone", "_result", "onStatus":
		// No-ops for a relay.
	default:
		LogDebugSession(s.id, s.ip, "unhandled command: "+cmd)
	}
	return nil
}

func (s *Session) handleConnect(d *AMF0Decoder, tid float64) error {
	isObj, err := d.ExpectObjectTag()
	if err != nil || !isObj {
		return newProtocolError("connect: missing argument object")
	}
	items := []AMF0Value{{Key: "app"}, {Key: "tcUrl"}, {Key: "objectEncoding"}}
	if err := d.GetObjectInto(items); err != nil {
		return newProtocolError("connect: malformed argument object")
	}
	if items[2].Val.Type != AMF0Unknown {
		return newProtocolError("connect: AMF3 object encoding not supported")
	}
	s.app = items[0].Val.StringValue()

	buf := NewByteBuffer(256)
	winAck := encodeWindowAckSizeBody(5000000)
	appendFramed(buf, mkHeader(RTMP_TYPE_WINDOW_ACKNOWLEDGEMENT_SIZE, RTMP_CHANNEL_PROTOCOL, 0, 0,
		winAck), winAck, s.outChunkSize)
	peerBw := encodeSetPeerBandwidthBody(5000000, peerBandwidthDynamic)
	appendFramed(buf, mkHeader(RTMP_TYPE_SET_PEER_BANDWIDTH, RTMP_CHANNEL_PROTOCOL, 0, 0,
		peerBw), peerBw, s.outChunkSize)
	streamBegin := encodeUserControlEvent(eventStreamBegin, 0, true)
	appendFramed(buf, mkHeader(RTMP_TYPE_EVENT, RTMP_CHANNEL_PROTOCOL, 0, 0,
		streamBegin), streamBegin, s.outChunkSize)
	chunkSize := encodeSetChunkSizeBody(s.server.cfg.ChunkSize)
	appendFramed(buf, mkHeader(RTMP_TYPE_SET_CHUNK_SIZE, RTMP_CHANNEL_PROTOCOL, 0, 0,
		chunkSize), chunkSize, s.outChunkSize)
	s.outChunkSize = s.server.cfg.ChunkSize
	result := encodeBody(func(b *ByteBuffer) { encodeConnectResult(b, tid) })
	appendFramed(buf, mkHeader(RTMP_TYPE_INVOKE, RTMP_CHANNEL_INVOKE, 0, 0,
		result), result, s.outChunkSize)

	s.writeRaw(copyOut(buf))
	return nil
}

func (s *Session) handlePublish(d *AMF0Decoder, tid float64) error {
	if _, err := d.Get(); err != nil { // null
		return nil
	}
	nameItem, err := d.Get()
	if err != nil {
		return nil
	}
	if _, err := d.Get(); err != nil { // publish type, ignored
		return nil
	}
	name := nameItem.StringValue()

	s.msid = msidDefault
	s.writeRaw(s.streamInvokeFramed(encodeBody(func(buf *ByteBuffer) {
		encodeOnStatus(buf, "NetStream.Publish.Start", "Start publishing")
	})))

	s.dir = dirInput
	key := s.app + "/" + name
	if !s.server.publish(s, key) {
		return newProtocolError("publish: stream already has a publisher")
	}
	s.streamKey = key
	return nil
}

func (s *Session) handlePlay(d *AMF0Decoder, tid float64) error {
	if _, err := d.Get(); err != nil { // null
		return nil
	}
	nameItem, err := d.Get()
	if err != nil {
		return nil
	}
	name := nameItem.StringValue()

	s.writeRaw(s.streamInvokeFramed(encodeBody(func(buf *ByteBuffer) {
		encodeOnStatus(buf, "NetStream.Play.Start", "Start playing")
	})))

	s.dir = dirOutput
	key := s.app + "/" + name
	s.server.subscribe(s, key)
	s.streamKey = key
	return nil
}

// onNotify decodes an AMF0 data message. Only publishers' notifications
// are processed; a subscriber sending one is ignored rather than rejected.
func (s *Session) onNotify(payload []byte) error {
	if s.dir != dirInput {
		return nil
	}
	d := NewAMF0Decoder(payload)
	first, err := d.Get()
	if err != nil || !first.IsString() {
		return nil
	}
	name := first.StringValue()
	if name == "@setDataFrame" {
		if _, err := d.Get(); err != nil { // "onMetaData"
			return nil
		}
	} else if name != "onMetaData" {
		return nil
	}
	raw := payload[d.Pos():]
	if s.stream != nil {
		s.stream.OnMeta(raw)
	}
	return nil
}

// onClose detaches the session from whatever stream it was attached to.
func (s *Session) onClose() {
	s.closeOnce.Do(func() {
		if s.stream != nil {
			s.stream.StopSession(s)
		}
		LogRequest(s.id, s.ip, "disconnected")
	})
}

// --- outgoing message helpers ---

func mkHeader(typ uint8, cid uint32, sid uint32, clock uint32, payload []byte) MessageHeader {
	return MessageHeader{Type: typ, CID: cid, SID: sid, Clock: clock, Length: uint32(len(payload))}
}

func encodeBody(fn func(*ByteBuffer)) []byte {
	buf := NewByteBuffer(256)
	fn(buf)
	out := make([]byte, buf.ReadableLen())
	copy(out, buf.Readable())
	return out
}

func appendFramed(buf *ByteBuffer, h MessageHeader, payload []byte, outChunkSize uint32) {
	h.Length = uint32(len(payload))
	buf.Append(EncodeMessage(h, payload, outChunkSize))
}

func copyOut(buf *ByteBuffer) []byte {
	out := make([]byte, buf.ReadableLen())
	copy(out, buf.Readable())
	return out
}

// framed encodes one message for this session's current outgoing chunk
// size.
func (s *Session) framed(h MessageHeader, payload []byte) []byte {
	h.Length = uint32(len(payload))
	return EncodeMessage(h, payload, s.outChunkSize)
}

// invokeFramed is a convenience for NetConnection-level AMF0 command
// replies (connect, createStream), which carry SID 0.
func (s *Session) invokeFramed(payload []byte) []byte {
	return s.framed(mkHeader(RTMP_TYPE_INVOKE, RTMP_CHANNEL_INVOKE, 0, 0, payload), payload)
}

// streamInvokeFramed is the NetStream-level counterpart: publish/play
// status replies carry the session's message stream ID (1, after
// createStream), not 0.
func (s *Session) streamInvokeFramed(payload []byte) []byte {
	return s.framed(mkHeader(RTMP_TYPE_INVOKE, RTMP_CHANNEL_INVOKE, s.msid, 0, payload), payload)
}

// writeRaw serializes concurrent writers: audio/video fan-out from other
// sessions' goroutines can race with this session's own command replies.
func (s *Session) writeRaw(data []byte) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.conn.Write(data); err != nil {
		LogDebugSession(s.id, s.ip, "write error: "+err.Error())
	}
}

func (s *Session) sendAudio(payload []byte, clock uint32) {
	s.writeRaw(s.framed(mkHeader(RTMP_TYPE_AUDIO, RTMP_CHANNEL_AUDIO, s.msid, clock, payload), payload))
}

func (s *Session) sendVideo(payload []byte, clock uint32) {
	s.writeRaw(s.framed(mkHeader(RTMP_TYPE_VIDEO, RTMP_CHANNEL_VIDEO, s.msid, clock, payload), payload))
}

func (s *Session) sendMeta(raw []byte) {
	body := encodeBody(func(buf *ByteBuffer) { encodeMetaBody(buf, raw) })
	s.writeRaw(s.framed(mkHeader(RTMP_TYPE_DATA, RTMP_CHANNEL_DATA, s.msid, 0, body), body))
}
