package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = 30 * time.Second
)

// StreamEvent is one frame sent over the progress stream
type StreamEvent struct {
	Event   string `json:"event"`
	Channel string `json:"channel"`
	Data    any    `json:"data"`
}

func (s *Server) upgrader() *websocket.Upgrader {
	cors := NewCORSMiddleware(s.cfg.AllowedOrigins)
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || cors.allowed(origin)
		},
	}
}

// handleSyncStream godoc
// @Summary      Stream sync progress
// @Description  WebSocket stream of progress-update events for one sync. The first frame is the current snapshot.
// @Tags         Syncs
// @Security     BearerAuth
// @Param        id   path  string  true  "Sync ID"
// @Success      101
// @Failure      404  {object}  domain.Result
// @Failure      503  {object}  domain.Result  "Streaming not configured"
// @Router       /syncs/{id}/stream [get]
func (s *Server) handleSyncStream(w http.ResponseWriter, r *http.Request) {
	if s.svc.Broadcasts == nil {
		writeError(w, http.StatusServiceUnavailable, "progress streaming not configured")
		return
	}

	syncID := r.PathValue("id")
	snapshot, err := s.svc.Progress.GetProgress(r.Context(), syncID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	channel := domain.SyncChannel(syncID)
	msgs, err := s.svc.Broadcasts.Subscribe(ctx, channel)
	if err != nil {
		s.logger.Error("subscribe progress stream", "sync_id", syncID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "progress stream unavailable")
		return
	}

	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied
		s.logger.Debug("websocket upgrade failed", "sync_id", syncID, "error", err)
		return
	}
	defer conn.Close()

	// reader detects client close and keeps pong deadlines fresh
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Debug("progress stream read error", "sync_id", syncID, "error", err)
				}
				return
			}
		}
	}()

	send := func(v any) error {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		return conn.WriteJSON(v)
	}

	if err := send(StreamEvent{Event: domain.ProgressEvent, Channel: channel, Data: snapshot}); err != nil {
		return
	}

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(streamWriteWait))
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			if err := send(StreamEvent{Event: msg.Event, Channel: msg.Channel, Data: msg.Payload}); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
