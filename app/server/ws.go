package server

import (
	"log/slog"
	"time"

	"cuecard/app/service/surface"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

type snapshotEvent struct {
	Type     string           `json:"type"`
	Snapshot surface.Snapshot `json:"snapshot"`
}

// serveWS streams surface events to a single listener. A newer connection
// replaces the older one.
func (s *Server) serveWS(conn *websocket.Conn) {
	events, cancel := s.Surface.Subscribe()
	defer cancel()

	slog.Info("Websocket listener connected", "remote", conn.RemoteAddr().String())
	defer slog.Info("Websocket listener disconnected", "remote", conn.RemoteAddr().String())

	closed := make(chan struct{})
	go func() {
		defer close(closed)

		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	if err := s.write(conn, snapshotEvent{Type: "snapshot", Snapshot: s.Surface.Snapshot()}); err != nil {
		return
	}

	for {
		select {
		case <-closed:
			return
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "replaced"),
					time.Now().Add(writeWait),
				)
				return
			}

			if err := s.write(conn, ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) write(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := conn.WriteJSON(v); err != nil {
		slog.Debug("Websocket write failed", "error", err)
		return err
	}

	return nil
}
