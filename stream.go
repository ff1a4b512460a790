// Stream registry entry: one publisher, many subscribers

package main

import "sync"

// Stream is keyed by "app/name" in the Server's registry. It tracks at most
// one attached publisher and a roster of subscriber sessions, plus the
// latched codec-header/metadata state needed to bootstrap a subscriber that
// joins mid-stream. Streams are created lazily and never destroyed by the
// registry; see Server.getOrCreateStream.
type Stream struct {
	mutex sync.Mutex

	key       string
	publisher *Session
	subs      map[uint64]*Session

	audioHeader []byte
	videoHeader []byte
	metaData    []byte
}

func newStream(key string) *Stream {
	return &Stream{
		key:  key,
		subs: make(map[uint64]*Session),
	}
}

// Publish attaches s as the stream's publisher. It fails if another
// publisher is already attached. The previous publisher's latched
// audio/video headers and metadata are left in place: a subscriber
// joining before the new publisher's first codec header arrives still
// gets something to initialize its decoder with, and OnAudio/OnVideo/
// OnMeta naturally overwrite the stale values once real data arrives.
func (st *Stream) Publish(s *Session) bool {
	st.mutex.Lock()
	defer st.mutex.Unlock()
	if st.publisher != nil {
		return false
	}
	st.publisher = s
	return true
}

// Subscribe attaches s as a subscriber and replays any latched headers so
// the new subscriber can decode frames without waiting for the next
// keyframe-adjacent codec header.
func (st *Stream) Subscribe(s *Session) {
	st.mutex.Lock()
	audioHeader := st.audioHeader
	videoHeader := st.videoHeader
	metaData := st.metaData
	st.subs[s.id] = s
	st.mutex.Unlock()

	if metaData != nil {
		s.sendMeta(metaData)
	}
	if audioHeader != nil {
		s.sendAudio(audioHeader, 0)
	}
	if videoHeader != nil {
		s.sendVideo(videoHeader, 0)
	}
}

// StopSession detaches s from the stream, whether it was the publisher or
// a subscriber. Identity is checked by session pointer/ID, correcting the
// publisher-identity check error present in the algorithm this is derived
// from.
func (st *Stream) StopSession(s *Session) {
	st.mutex.Lock()
	defer st.mutex.Unlock()
	if st.publisher != nil && st.publisher.id == s.id {
		st.publisher = nil
		return
	}
	delete(st.subs, s.id)
}

// isCodecHeader reports whether payload looks like a sequence header
// (AAC/AVC config packet) rather than a media frame: byte[1] == 0 by
// convention for both audio and video codec-header packets.
func isCodecHeader(payload []byte) bool {
	return len(payload) >= 2 && payload[1] == 0
}

// isKeyFrame reports whether a video payload's frame-type nibble marks it
// as a key frame (1).
func isKeyFrame(payload []byte) bool {
	return len(payload) >= 1 && (payload[0]>>4) == 1
}

// OnAudio latches an audio codec header and fans the payload out to every
// subscriber.
func (st *Stream) OnAudio(payload []byte, clock uint32) {
	if isCodecHeader(payload) {
		st.mutex.Lock()
		cp := make([]byte, len(payload))
		copy(cp, payload)
		st.audioHeader = cp
		subs := st.subsSnapshot()
		st.mutex.Unlock()
		for _, s := range subs {
			s.sendAudio(payload, clock)
		}
		return
	}
	st.mutex.Lock()
	subs := st.subsSnapshot()
	st.mutex.Unlock()
	for _, s := range subs {
		s.sendAudio(payload, clock)
	}
}

// OnVideo latches a video codec header (on a key frame carrying one) and
// fans the payload out to every subscriber.
func (st *Stream) OnVideo(payload []byte, clock uint32) {
	if isCodecHeader(payload) && isKeyFrame(payload) {
		st.mutex.Lock()
		cp := make([]byte, len(payload))
		copy(cp, payload)
		st.videoHeader = cp
		subs := st.subsSnapshot()
		st.mutex.Unlock()
		for _, s := range subs {
			s.sendVideo(payload, clock)
		}
		return
	}
	st.mutex.Lock()
	subs := st.subsSnapshot()
	st.mutex.Unlock()
	for _, s := range subs {
		s.sendVideo(payload, clock)
	}
}

// OnMeta latches the raw metadata-value bytes (already stripped of the
// @setDataFrame/onMetaData command tags by the caller) and fans a freshly
// wrapped copy out to every subscriber.
func (st *Stream) OnMeta(raw []byte) {
	st.mutex.Lock()
	cp := make([]byte, len(raw))
	copy(cp, raw)
	st.metaData = cp
	subs := st.subsSnapshot()
	st.mutex.Unlock()
	for _, s := range subs {
		s.sendMeta(raw)
	}
}

func (st *Stream) subsSnapshot() []*Session {
	out := make([]*Session, 0, len(st.subs))
	for _, s := range st.subs {
		out = append(out, s)
	}
	return out
}

// HasPublisher reports whether a publisher is currently attached.
func (st *Stream) HasPublisher() bool {
	st.mutex.Lock()
	defer st.mutex.Unlock()
	return st.publisher != nil
}

// SubscriberCount returns the number of attached subscribers.
func (st *Stream) SubscriberCount() int {
	st.mutex.Lock()
	defer st.mutex.Unlock()
	return len(st.subs)
}
