package main

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{Host: "", Port: 0, ReadBufferSize: 4096, ChunkSize: 128, GopCache: false}
}

// startSession wires a Session to conn the same way Server.handleConnection
// does, minus the accept-loop bookkeeping irrelevant to these tests.
func startSession(server *Server, conn net.Conn) {
	id := server.nextID()
	s := newSession(server, id, "test", conn)
	go func() {
		defer conn.Close()
		s.run()
		s.onClose()
	}()
}

func doHandshake(t *testing.T, conn net.Conn) {
	t.Helper()
	c0c1 := make([]byte, 1+RTMP_HANDSHAKE_SIZE)
	c0c1[0] = RTMP_VERSION
	if _, err := conn.Write(c0c1); err != nil {
		t.Fatalf("write C0C1: %v", err)
	}

	s0s1s2 := make([]byte, 1+RTMP_HANDSHAKE_SIZE+RTMP_HANDSHAKE_SIZE)
	if _, err := io.ReadFull(conn, s0s1s2); err != nil {
		t.Fatalf("read S0S1S2: %v", err)
	}
	if s0s1s2[0] != RTMP_VERSION {
		t.Fatalf("S0 version = %d, want %d", s0s1s2[0], RTMP_VERSION)
	}

	c2 := make([]byte, RTMP_HANDSHAKE_SIZE)
	if _, err := conn.Write(c2); err != nil {
		t.Fatalf("write C2: %v", err)
	}
}

func sendInvoke(t *testing.T, conn net.Conn, body []byte) {
	t.Helper()
	wire := buildChunkWire(RTMP_TYPE_INVOKE, RTMP_CHANNEL_INVOKE, 0, 0, body, 128)
	if _, err := conn.Write(wire); err != nil {
		t.Fatalf("write invoke: %v", err)
	}
}

func encodeConnectCmd(app, tcURL string, tid float64) []byte {
	buf := NewByteBuffer(128)
	e := NewAMF0Encoder(buf)
	e.PutString("connect")
	e.PutNumber(tid)
	e.PutObjectBegin()
	e.PutObjectValueString("app", app)
	e.PutObjectValueString("tcUrl", tcURL)
	e.PutObjectEnd()
	return copyOut(buf)
}

func encodeCreateStreamCmd(tid float64) []byte {
	buf := NewByteBuffer(32)
	e := NewAMF0Encoder(buf)
	e.PutString("createStream")
	e.PutNumber(tid)
	e.PutNull()
	return copyOut(buf)
}

func encodePublishCmd(name string, tid float64) []byte {
	buf := NewByteBuffer(64)
	e := NewAMF0Encoder(buf)
	e.PutString("publish")
	e.PutNumber(tid)
	e.PutNull()
	e.PutString(name)
	e.PutString("live")
	return copyOut(buf)
}

func encodePlayCmd(name string, tid float64) []byte {
	buf := NewByteBuffer(64)
	e := NewAMF0Encoder(buf)
	e.PutString("play")
	e.PutNumber(tid)
	e.PutNull()
	e.PutString(name)
	return copyOut(buf)
}

type recvMsg struct {
	h MessageHeader
	p []byte
}

type clientReader struct {
	conn   net.Conn
	framer *ChunkFramer
	buf    *ByteBuffer
}

func newClientReader(conn net.Conn) *clientReader {
	return &clientReader{conn: conn, framer: NewChunkFramer(), buf: NewByteBuffer(4096)}
}

func (c *clientReader) readN(t *testing.T, n int) []recvMsg {
	t.Helper()
	var got []recvMsg
	tmp := make([]byte, 4096)
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for len(got) < n {
		nn, err := c.conn.Read(tmp)
		if err != nil {
			t.Fatalf("client read error (have %d/%d messages): %v", len(got), n, err)
		}
		c.buf.Append(tmp[:nn])
		if err := c.framer.Feed(c.buf, 128, func(h MessageHeader, p []byte) error {
			got = append(got, recvMsg{h: h, p: append([]byte(nil), p...)})
			return nil
		}); err != nil {
			t.Fatalf("client framer error: %v", err)
		}
	}
	return got
}

// Scenario 1: a bad handshake version byte closes the connection with no
// S0 ever written.
func TestSessionHandshakeRejectsBadVersion(t *testing.T) {
	server := NewServer(testConfig())
	clientConn, serverConn := net.Pipe()
	startSession(server, serverConn)

	bad := make([]byte, 1+RTMP_HANDSHAKE_SIZE)
	bad[0] = 0x04
	if _, err := clientConn.Write(bad); err != nil {
		t.Fatalf("write: %v", err)
	}

	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 16)
	if _, err := clientConn.Read(buf); err == nil {
		t.Fatal("expected connection closed after bad handshake version")
	}
}

// Scenarios 2-4: handshake, connect/createStream/publish, then fan-out of
// a latched codec header plus a live frame to a subscriber joining later.
func TestEndToEndConnectCreateStreamPublishPlayFanOut(t *testing.T) {
	server := NewServer(testConfig())

	pubClientConn, pubServerConn := net.Pipe()
	startSession(server, pubServerConn)
	doHandshake(t, pubClientConn)
	pubReader := newClientReader(pubClientConn)

	sendInvoke(t, pubClientConn, encodeConnectCmd("live", "rtmp://h/live", 1))
	connectReplies := pubReader.readN(t, 5)
	if last := connectReplies[len(connectReplies)-1]; last.h.Type != RTMP_TYPE_INVOKE {
		t.Fatalf("connect reply sequence ended in type %d, want Invoke _result", last.h.Type)
	}

	sendInvoke(t, pubClientConn, encodeCreateStreamCmd(2))
	createReplies := pubReader.readN(t, 1)
	if createReplies[0].h.Type != RTMP_TYPE_INVOKE {
		t.Fatalf("createStream reply type = %d, want Invoke", createReplies[0].h.Type)
	}

	sendInvoke(t, pubClientConn, encodePublishCmd("cam", 3))
	publishReplies := pubReader.readN(t, 1)
	if publishReplies[0].h.SID != 1 {
		t.Fatalf("publish onStatus SID = %d, want 1", publishReplies[0].h.SID)
	}

	audioHeader := []byte{0xAF, 0x00, 0x12, 0x34}
	audioHeaderWire := buildChunkWire(RTMP_TYPE_AUDIO, RTMP_CHANNEL_AUDIO, 1, 100, audioHeader, 128)
	if _, err := pubClientConn.Write(audioHeaderWire); err != nil {
		t.Fatalf("write audio header: %v", err)
	}
	// Let the server's read loop latch the header before the subscriber joins.
	time.Sleep(50 * time.Millisecond)

	subClientConn, subServerConn := net.Pipe()
	startSession(server, subServerConn)
	doHandshake(t, subClientConn)
	subReader := newClientReader(subClientConn)

	sendInvoke(t, subClientConn, encodeConnectCmd("live", "rtmp://h/live", 1))
	subReader.readN(t, 5)
	sendInvoke(t, subClientConn, encodeCreateStreamCmd(2))
	subReader.readN(t, 1)
	sendInvoke(t, subClientConn, encodePlayCmd("cam", 3))
	playReply := subReader.readN(t, 1)
	if playReply[0].h.SID != 1 {
		t.Fatalf("play onStatus SID = %d, want 1", playReply[0].h.SID)
	}

	// Scenario 4: the subscriber must get the latched audio header before
	// any other media, even though it arrived before the subscriber joined.
	headerReplay := subReader.readN(t, 1)
	if headerReplay[0].h.Type != RTMP_TYPE_AUDIO {
		t.Fatalf("first message to subscriber = type %d, want Audio", headerReplay[0].h.Type)
	}
	if !bytes.Equal(headerReplay[0].p, audioHeader) {
		t.Fatalf("replayed audio header = %x, want %x", headerReplay[0].p, audioHeader)
	}

	frame := []byte{0xAF, 0x01, 0xAA, 0xBB}
	frameWire := buildChunkWire(RTMP_TYPE_AUDIO, RTMP_CHANNEL_AUDIO, 1, 200, frame, 128)
	if _, err := pubClientConn.Write(frameWire); err != nil {
		t.Fatalf("write audio frame: %v", err)
	}
	liveFrame := subReader.readN(t, 1)
	if !bytes.Equal(liveFrame[0].p, frame) {
		t.Fatalf("live frame payload = %x, want %x", liveFrame[0].p, frame)
	}

	pubClientConn.Close()
	subClientConn.Close()
}

// Scenario 6: a second publish to an already-published app/name is torn
// down right after its reply, leaving no continued publishing session.
func TestPublishCollisionTearsDownSecondPublisher(t *testing.T) {
	server := NewServer(testConfig())

	c1, s1 := net.Pipe()
	startSession(server, s1)
	doHandshake(t, c1)
	r1 := newClientReader(c1)
	sendInvoke(t, c1, encodeConnectCmd("live", "rtmp://h/live", 1))
	r1.readN(t, 5)
	sendInvoke(t, c1, encodeCreateStreamCmd(2))
	r1.readN(t, 1)
	sendInvoke(t, c1, encodePublishCmd("dup", 3))
	r1.readN(t, 1)

	c2, s2 := net.Pipe()
	startSession(server, s2)
	doHandshake(t, c2)
	r2 := newClientReader(c2)
	sendInvoke(t, c2, encodeConnectCmd("live", "rtmp://h/live", 1))
	r2.readN(t, 5)
	sendInvoke(t, c2, encodeCreateStreamCmd(2))
	r2.readN(t, 1)
	sendInvoke(t, c2, encodePublishCmd("dup", 3))

	c2.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4096)
	n, err := c2.Read(buf)
	if n == 0 {
		t.Fatalf("expected onStatus bytes before teardown, read err=%v", err)
	}

	c2.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := c2.Read(buf); err == nil {
		t.Fatal("expected second publisher's connection to be closed after the collision")
	}

	c1.Close()
}
