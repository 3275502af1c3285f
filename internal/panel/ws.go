package panel

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Same-origin only: the page and the socket are served together.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// GET /ws streams a view snapshot on connect and after every change.
func (s *Server) handleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warnf("websocket upgrade: %v", err)
		return
	}
	msgs, done, remove := s.view.Hub().Subscribe()
	first, err := json.Marshal(s.view.Snapshot())
	if err != nil {
		remove()
		_ = conn.Close()
		s.log.Errorf("encode snapshot: %v", err)
		return
	}
	s.log.Debugf("websocket %s connected", conn.RemoteAddr())

	go s.writePump(conn, first, msgs, done, remove)
	go s.readPump(conn, remove)
}

// readPump only services control frames; the page sends commands over the
// JSON API.
func (s *Server) readPump(conn *websocket.Conn, remove func()) {
	defer remove()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Debugf("websocket %s: %v", conn.RemoteAddr(), err)
			}
			return
		}
	}
}

func (s *Server) writePump(conn *websocket.Conn, first []byte, msgs <-chan []byte, done <-chan struct{}, remove func()) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		remove()
		_ = conn.Close()
		s.log.Debugf("websocket %s disconnected", conn.RemoteAddr())
	}()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, first); err != nil {
		return
	}
	for {
		select {
		case msg := <-msgs:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-done:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
