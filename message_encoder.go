// Message encoders: control-plane and command/notify-plane message bodies

package main

const (
	eventStreamBegin  = 0
	eventStreamEof    = 1
	eventPingRequest  = 6
	eventPingResponse = 7

	peerBandwidthHard    = 0
	peerBandwidthSoft    = 1
	peerBandwidthDynamic = 2

	msidDefault = 1
)

func encodeUserControlEvent(event uint16, param uint32, hasParam bool) []byte {
	b := make([]byte, 2, 6)
	PutUint16BE(b, event)
	if hasParam {
		pb := make([]byte, 4)
		PutUint32BE(pb, param)
		b = append(b, pb...)
	}
	return b
}

func encodeWindowAckSizeBody(size uint32) []byte {
	b := make([]byte, 4)
	PutUint32BE(b, size)
	return b
}

func encodeAckBody(size uint32) []byte {
	b := make([]byte, 4)
	PutUint32BE(b, size)
	return b
}

func encodeSetPeerBandwidthBody(size uint32, limitType byte) []byte {
	b := make([]byte, 5)
	PutUint32BE(b[:4], size)
	b[4] = limitType
	return b
}

func encodeSetChunkSizeBody(size uint32) []byte {
	b := make([]byte, 4)
	PutUint32BE(b, size)
	return b
}

// encodeConnectResult builds the `_result` AMF0 body replying to `connect`.
func encodeConnectResult(buf *ByteBuffer, tid float64) {
	e := NewAMF0Encoder(buf)
	e.PutString("_result")
	e.PutNumber(tid)
	e.PutObjectBegin()
	e.PutObjectValueString("fmsVer", "FMS/3,0,1,123")
	e.PutObjectValueNumber("capabilities", 31)
	e.PutObjectEnd()
	e.PutObjectBegin()
	e.PutObjectValueString("level", "status")
	e.PutObjectValueString("code", "NetConnection.Connect.Success")
	e.PutObjectValueString("description", "Connection succeeded.")
	e.PutObjectValueNumber("objectEncoding", 0)
	e.PutObjectEnd()
}

// encodeCreateStreamResult builds the `_result` AMF0 body replying to
// `createStream`.
func encodeCreateStreamResult(buf *ByteBuffer, tid float64) {
	e := NewAMF0Encoder(buf)
	e.PutString("_result")
	e.PutNumber(tid)
	e.PutNull()
	e.PutNumber(msidDefault)
}

// encodeOnStatus builds a single-object onStatus AMF0 body.
func encodeOnStatus(buf *ByteBuffer, code string, description string) {
	e := NewAMF0Encoder(buf)
	e.PutString("onStatus")
	e.PutNumber(0)
	e.PutNull()
	e.PutObjectBegin()
	e.PutObjectValueString("level", "status")
	e.PutObjectValueString("code", code)
	e.PutObjectValueString("description", description)
	e.PutObjectEnd()
}

// encodeCheckBWResult builds the `_result` body replying to `_checkbw`.
func encodeCheckBWResult(buf *ByteBuffer, tid float64) {
	e := NewAMF0Encoder(buf)
	e.PutString("_result")
	e.PutNumber(tid)
	e.PutNull()
}

// encodeMetaBody builds the @setDataFrame/onMetaData wrapper around a
// raw, already-AMF0-encoded metadata value captured from a publisher.
func encodeMetaBody(buf *ByteBuffer, rawMetaValue []byte) {
	e := NewAMF0Encoder(buf)
	e.PutString("@setDataFrame")
	e.PutString("onMetaData")
	buf.Append(rawMetaValue)
}

// --- client-mode encoders: kept for completeness, not exercised on the
// accept-only path this relay implements (see Non-goals). ---

func encodeConnectCommand(buf *ByteBuffer, app, swfURL, tcURL string, tid float64) {
	e := NewAMF0Encoder(buf)
	e.PutString("connect")
	e.PutNumber(tid)
	e.PutObjectBegin()
	e.PutObjectValueString("app", app)
	e.PutObjectValueString("swfUrl", swfURL)
	e.PutObjectValueString("tcUrl", tcURL)
	e.PutObjectEnd()
}

func encodeReleaseStreamCommand(buf *ByteBuffer, streamName string, tid float64) {
	e := NewAMF0Encoder(buf)
	e.PutString("releaseStream")
	e.PutNumber(tid)
	e.PutNull()
	e.PutString(streamName)
}

func encodeFCPublishCommand(buf *ByteBuffer, streamName string, tid float64) {
	e := NewAMF0Encoder(buf)
	e.PutString("FCPublish")
	e.PutNumber(tid)
	e.PutNull()
	e.PutString(streamName)
}

func encodeCreateStreamCommand(buf *ByteBuffer, tid float64) {
	e := NewAMF0Encoder(buf)
	e.PutString("createStream")
	e.PutNumber(tid)
	e.PutNull()
}

func encodePublishCommand(buf *ByteBuffer, app, streamName string, streamID float64, tid float64) {
	e := NewAMF0Encoder(buf)
	e.PutString("publish")
	e.PutNumber(tid)
	e.PutNull()
	e.PutString(streamName)
	e.PutString(app)
}

func encodePlayCommand(buf *ByteBuffer, streamName string, streamID float64, tid float64) {
	e := NewAMF0Encoder(buf)
	e.PutString("play")
	e.PutNumber(tid)
	e.PutNull()
	e.PutString(streamName)
}
