// Admin/control introspection endpoint: a read-only websocket surface
// reporting the live stream registry. Repurposed from the distributed
// publish-coordinator connection the teacher's go-simple-rpc-message and
// gorilla/websocket dependencies originally served — here it answers
// requests from a local operator tool rather than gating any session.

package main

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	messages "github.com/AgustinSRG/go-simple-rpc-message"
	"github.com/gorilla/websocket"
)

// AdminServer exposes a websocket listener that answers LIST-STREAMS
// requests with a snapshot of the stream registry: key, whether a
// publisher is attached, and subscriber count. It only reads Server
// state; it never creates, closes, or otherwise mutates a session or
// stream, preserving the no-access-control Non-goal.
type AdminServer struct {
	rtmp     *Server
	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

func newAdminServer(rtmp *Server) *AdminServer {
	return &AdminServer{
		rtmp: rtmp,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Start opens the listener and blocks until Stop closes it. Call it from
// its own goroutine.
func (a *AdminServer) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/admin/rtmp", a.handleWS)
	a.httpSrv = &http.Server{Addr: addr, Handler: mux}

	LogInfo("admin introspection endpoint listening on " + addr)
	err := a.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop closes the listener. Connections in flight are abandoned.
func (a *AdminServer) Stop() {
	if a.httpSrv != nil {
		a.httpSrv.Close()
	}
}

func (a *AdminServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		LogError(err)
		return
	}
	defer conn.Close()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
			return
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		msg := messages.ParseRPCMessage(string(raw))

		if LogDebugEnabled() {
			LogDebug("admin: <<< " + msg.Method)
		}

		resp := a.handleRequest(msg)
		if err := conn.WriteMessage(websocket.TextMessage, []byte(resp.Serialize())); err != nil {
			return
		}
	}
}

func (a *AdminServer) handleRequest(msg messages.RPCMessage) messages.RPCMessage {
	switch msg.Method {
	case "LIST-STREAMS":
		return a.listStreams()
	default:
		return messages.RPCMessage{Method: "ERROR", Params: map[string]string{
			"Error-Code":    "UNKNOWN-METHOD",
			"Error-Message": "unsupported method: " + msg.Method,
		}}
	}
}

// listStreams builds a STREAMS response enumerating every key currently in
// the registry (created lazily on first publish/subscribe, never removed
// for the life of the process per §4.7).
func (a *AdminServer) listStreams() messages.RPCMessage {
	streams := a.rtmp.snapshotStreams()

	keys := make([]string, 0, len(streams))
	for k := range streams {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	params := make(map[string]string, len(keys)*3+1)
	params["Count"] = strconv.Itoa(len(keys))
	for i, k := range keys {
		st := streams[k]
		prefix := "Stream-" + strconv.Itoa(i) + "-"
		params[prefix+"Key"] = k
		params[prefix+"Published"] = strconv.FormatBool(st.HasPublisher())
		params[prefix+"Subscribers"] = strconv.Itoa(st.SubscriberCount())
	}

	return messages.RPCMessage{Method: "STREAMS", Params: params}
}
