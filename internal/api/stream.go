package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kjannette/trahn-swapgrid/internal/grid"
	"github.com/kjannette/trahn-swapgrid/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	streamBuffer   = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type streamMessage struct {
	Type  string               `json:"type"`
	Trade *models.TradeRecord  `json:"trade,omitempty"`
	State *models.GridBotState `json:"state,omitempty"`
}

// handleStream pushes grid events to a WebSocket client. The first message
// is the current state snapshot.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	events, cancel := s.grid.Subscribe(streamBuffer)
	defer cancel()

	// reader: only control frames matter, a read error means the client left
	gone := make(chan struct{})
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(msg streamMessage) error {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(msg)
	}

	if snap := s.grid.Snapshot(); snap != nil {
		if err := send(streamMessage{Type: grid.EventStateChange.String(), State: snap}); err != nil {
			return
		}
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-gone:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := send(streamMessage{Type: ev.Kind.String(), Trade: ev.Trade, State: ev.State}); err != nil {
				s.log.WithError(err).Debug("stream client write failed")
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
