package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vbonduro/chartgen/internal/chart"
	"github.com/vbonduro/chartgen/internal/detect"
	"github.com/vbonduro/chartgen/internal/normalize"
)

const (
	editorWriteWait  = 10 * time.Second
	editorPongWait   = 60 * time.Second
	editorPingPeriod = editorPongWait * 9 / 10
	maxEditorMessage = maxDetectBody
)

type editorMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// editorReply is either {"type":"config",...} or {"type":"error","message":...}.
type editorReply struct {
	Type    string        `json:"type"`
	Config  *chart.Config `json:"config,omitempty"`
	Source  string        `json:"source,omitempty"`
	Message string        `json:"message,omitempty"`
}

// handleEditor streams hand edits. Each edit restarts the debounce window;
// only the text present when the window closes is classified.
func (s *Server) handleEditor(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		s.logger.Warn("editor upgrade failed", "error", err)
		return
	}
	defer closeWithLog(conn, "editor connection", s.logger)

	out := make(chan editorReply, 1)
	done := make(chan struct{})
	writerDone := make(chan struct{})
	send := func(reply editorReply) {
		select {
		case out <- reply:
		case <-writerDone:
		}
	}

	debouncer := detect.NewDebouncer(s.debounce, func(text string) {
		send(s.classifyEdit(text))
	})
	defer debouncer.Stop()

	go s.writeEditorReplies(conn, out, done, writerDone)
	defer close(done)

	conn.SetReadLimit(maxEditorMessage)
	_ = conn.SetReadDeadline(time.Now().Add(editorPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(editorPongWait))
	})

	for {
		var msg editorMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("editor connection closed", "error", err)
			}
			return
		}
		switch msg.Type {
		case "edit":
			debouncer.Trigger(msg.Text)
		default:
			send(editorReply{Type: "error", Message: "unknown message type " + msg.Type})
		}
	}
}

func (s *Server) classifyEdit(text string) editorReply {
	cfg, err := s.service.Detect(text)
	if err != nil {
		return editorReply{Type: "error", Message: err.Error()}
	}
	source, err := normalize.Encode(cfg)
	if err != nil {
		s.logger.Error("encode config failed", "error", err)
		return editorReply{Type: "error", Message: "internal error"}
	}
	return editorReply{Type: "config", Config: cfg, Source: source}
}

// writeEditorReplies is the connection's only writer. It also keeps the
// connection alive with pings.
func (s *Server) writeEditorReplies(conn *websocket.Conn, out <-chan editorReply, done <-chan struct{}, writerDone chan<- struct{}) {
	defer close(writerDone)
	ticker := time.NewTicker(editorPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case reply := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(editorWriteWait))
			if err := conn.WriteJSON(reply); err != nil {
				s.logger.Warn("editor write failed", "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(editorWriteWait)); err != nil {
				s.logger.Warn("editor ping failed", "error", err)
				return
			}
		case <-done:
			return
		}
	}
}
