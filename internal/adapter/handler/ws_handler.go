package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/hlog"

	"github.com/chopnow/storefront/internal/adapter/auth"
	"github.com/chopnow/storefront/internal/core/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

type streamMessage struct {
	Type      string         `json:"type"` // dashboard | error
	Dashboard *dashboardView `json:"dashboard,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// DashboardStream upgrades to a websocket and pushes a fresh dashboard
// every time the caller's identity changes. The stream ends on sign out,
// on client close, or when the server shuts down.
func (h *HTTPHandler) DashboardStream(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if identity == nil {
		h.writeError(w, r, domain.ErrUnauthenticated)
		return
	}
	logger := hlog.FromRequest(r).With().Str("user_id", identity.UserID).Logger()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	changes, err := h.notifier.SubscribeIdentityChanges(ctx, identity.UserID)
	if err != nil {
		h.writeError(w, r, domain.Collaborator("subscribe identity changes", err))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	logger.Debug().Msg("dashboard stream opened")

	go readPump(conn, cancel)

	updates := h.svc.Dashboards.Watch(ctx, identity, changes)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(newStreamMessage(update.Dashboard, update.Err)); err != nil {
				logger.Debug().Err(err).Msg("dashboard stream write failed")
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

func newStreamMessage(dash domain.Dashboard, err error) streamMessage {
	if err != nil {
		_, _, message := classify(err)
		return streamMessage{Type: "error", Error: message}
	}
	view := newDashboardView(dash)
	return streamMessage{Type: "dashboard", Dashboard: &view}
}

// readPump discards client frames and cancels the stream once the peer goes
// away.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
