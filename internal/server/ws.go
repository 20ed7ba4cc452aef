package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"trading-buddy/internal/hub"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
	wsPongWait   = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// serveWS upgrades the connection, binds it to one hub channel, and runs the
// read and write pumps. A severed connection deregisters the subscriber
// without touching anyone else.
func (s *Server) serveWS(ch hub.Channel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}

		sub := s.hub.Subscribe(ch)
		s.logger.Info().Str("channel", string(ch)).Msg("subscriber connected")

		go s.readPump(conn, sub)
		go s.writePump(conn, sub, ch)
	}
}

// readPump discards client frames and detects disconnects.
func (s *Server) readPump(conn *websocket.Conn, sub *hub.Subscriber) {
	defer func() {
		s.hub.Unsubscribe(sub)
		conn.Close()
	}()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump drains the subscriber queue onto the wire with heartbeats.
func (s *Server) writePump(conn *websocket.Conn, sub *hub.Subscriber, ch hub.Channel) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		s.hub.Unsubscribe(sub)
		conn.Close()
		s.logger.Info().Str("channel", string(ch)).Msg("subscriber disconnected")
	}()

	for {
		select {
		case payload := <-sub.Out():
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-sub.Done():
			_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
