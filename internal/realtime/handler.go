package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"assembliestore-be/internal/logger"
	"assembliestore-be/internal/metrics"
	"assembliestore-be/internal/middleware"
	"assembliestore-be/internal/transport"
	"assembliestore-be/internal/utils"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client control message types.
const (
	msgPing        = "PING"
	msgSubscribe   = "SUBSCRIBE"
	msgUnsubscribe = "UNSUBSCRIBE"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin filtering happens at the reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades websocket endpoints and runs the per-session read loop.
type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/stock", h.serve(ConnTypeStock))
	mux.HandleFunc("GET /ws/notifications", h.serve(ConnTypeNotifications))
	mux.HandleFunc("GET /ws/general", h.serve(ConnTypeGeneral))
	mux.HandleFunc("GET /realtime/stats", middleware.RequireRoles(h.HandleStats, utils.RoleAdmin, utils.RoleManagement))
}

func (h *Handler) serve(connType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromCtx(r.Context())

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		s := h.hub.register(conn, connType)
		h.sendWelcome(s)
		go h.readLoop(s, log)
	}
}

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	transport.JSON(w, http.StatusOK, "Connection stats", map[string]any{
		"connections": h.hub.Stats(),
		"counters":    metrics.Snapshot(),
	})
}

type clientMessage struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
}

func (h *Handler) readLoop(s *session, log *zap.Logger) {
	defer func() {
		h.hub.unregister(s)
		s.conn.Close()
	}()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("websocket read error",
					zap.String("session_id", s.id), zap.Error(err))
			}
			return
		}
		h.handleMessage(s, payload, log)
	}
}

func (h *Handler) handleMessage(s *session, payload []byte, log *zap.Logger) {
	var msg clientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		h.sendError(s, "message must be JSON")
		return
	}

	switch msg.Type {
	case msgPing:
		h.sendJSON(s, map[string]any{
			"type":      "PONG",
			"timestamp": time.Now().UnixMilli(),
		})
	case msgSubscribe:
		if msg.Channel == "" {
			h.sendError(s, "channel is required")
			return
		}
		h.hub.subscribe(s, msg.Channel)
		h.sendJSON(s, map[string]any{
			"type":    "SUBSCRIPTION_CONFIRMED",
			"channel": msg.Channel,
			"message": "Subscribed to channel: " + msg.Channel,
		})
	case msgUnsubscribe:
		if msg.Channel == "" {
			h.sendError(s, "channel is required")
			return
		}
		h.hub.unsubscribe(s, msg.Channel)
		h.sendJSON(s, map[string]any{
			"type":    "UNSUBSCRIPTION_CONFIRMED",
			"channel": msg.Channel,
			"message": "Unsubscribed from channel: " + msg.Channel,
		})
	default:
		log.Warn("unknown websocket message type",
			zap.String("session_id", s.id), zap.String("type", msg.Type))
		h.sendError(s, "Unknown message type: "+msg.Type)
	}
}

func (h *Handler) sendWelcome(s *session) {
	h.sendJSON(s, map[string]any{
		"type":           "WELCOME",
		"connectionType": s.connType,
		"message":        "Connected successfully to " + s.connType + " channel",
		"timestamp":      time.Now().UnixMilli(),
	})
}

func (h *Handler) sendError(s *session, message string) {
	h.sendJSON(s, map[string]any{
		"type":      "ERROR",
		"message":   message,
		"timestamp": time.Now().UnixMilli(),
	})
}

func (h *Handler) sendJSON(s *session, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.send(payload); err != nil {
		h.hub.unregister(s)
	}
}
