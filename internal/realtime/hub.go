package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Connection types correspond to the websocket endpoints clients attach to.
const (
	ConnTypeStock         = "STOCK"
	ConnTypeNotifications = "NOTIFICATIONS"
	ConnTypeGeneral       = "GENERAL"
)

// session wraps a websocket connection. Writes on a gorilla conn are not
// safe for concurrent use, so every send goes through the session mutex.
type session struct {
	id          string
	connType    string
	conn        *websocket.Conn
	connectedAt time.Time

	mu sync.Mutex
}

func (s *session) send(message []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, message)
}

// Hub tracks active websocket sessions grouped by connection type and by
// named channel subscription. Sessions that fail a write are pruned.
type Hub struct {
	log *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*session            // session id -> session
	byType   map[string]map[string]*session // connection type -> session id -> session
	channels map[string]map[string]*session // channel -> session id -> session
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		log:      log,
		sessions: make(map[string]*session),
		byType:   make(map[string]map[string]*session),
		channels: make(map[string]map[string]*session),
	}
}

func (h *Hub) register(conn *websocket.Conn, connType string) *session {
	s := &session{
		id:          uuid.New().String(),
		connType:    connType,
		conn:        conn,
		connectedAt: time.Now(),
	}

	h.mu.Lock()
	h.sessions[s.id] = s
	if h.byType[connType] == nil {
		h.byType[connType] = make(map[string]*session)
	}
	h.byType[connType][s.id] = s
	total := len(h.sessions)
	h.mu.Unlock()

	h.log.Info("websocket session registered",
		zap.String("session_id", s.id),
		zap.String("connection_type", connType),
		zap.Int("total_sessions", total))
	return s
}

func (h *Hub) unregister(s *session) {
	h.mu.Lock()
	if _, ok := h.sessions[s.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, s.id)
	if peers := h.byType[s.connType]; peers != nil {
		delete(peers, s.id)
		if len(peers) == 0 {
			delete(h.byType, s.connType)
		}
	}
	for channel, subs := range h.channels {
		delete(subs, s.id)
		if len(subs) == 0 {
			delete(h.channels, channel)
		}
	}
	total := len(h.sessions)
	h.mu.Unlock()

	h.log.Info("websocket session removed",
		zap.String("session_id", s.id),
		zap.String("connection_type", s.connType),
		zap.Duration("duration", time.Since(s.connectedAt)),
		zap.Int("total_sessions", total))
}

func (h *Hub) subscribe(s *session, channel string) {
	h.mu.Lock()
	if h.channels[channel] == nil {
		h.channels[channel] = make(map[string]*session)
	}
	h.channels[channel][s.id] = s
	h.mu.Unlock()

	h.log.Info("session subscribed to channel",
		zap.String("session_id", s.id), zap.String("channel", channel))
}

func (h *Hub) unsubscribe(s *session, channel string) {
	h.mu.Lock()
	if subs := h.channels[channel]; subs != nil {
		delete(subs, s.id)
		if len(subs) == 0 {
			delete(h.channels, channel)
		}
	}
	h.mu.Unlock()

	h.log.Info("session unsubscribed from channel",
		zap.String("session_id", s.id), zap.String("channel", channel))
}

// BroadcastToType delivers a message to every session of the given
// connection type. Sessions whose write fails are dropped from the hub.
func (h *Hub) BroadcastToType(connType string, message []byte) {
	h.mu.RLock()
	targets := make([]*session, 0, len(h.byType[connType]))
	for _, s := range h.byType[connType] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}
	h.deliver(targets, message)
	h.log.Debug("message broadcast",
		zap.String("connection_type", connType), zap.Int("sessions", len(targets)))
}

// BroadcastToChannel delivers a message to every subscriber of a channel.
func (h *Hub) BroadcastToChannel(channel string, message []byte) {
	h.mu.RLock()
	targets := make([]*session, 0, len(h.channels[channel]))
	for _, s := range h.channels[channel] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}
	h.deliver(targets, message)
	h.log.Debug("message broadcast",
		zap.String("channel", channel), zap.Int("subscribers", len(targets)))
}

// SendToSession delivers a message to one session. Returns false when the
// session is unknown or the write failed.
func (h *Hub) SendToSession(sessionID string, message []byte) bool {
	h.mu.RLock()
	s, ok := h.sessions[sessionID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	if err := s.send(message); err != nil {
		h.log.Warn("failed to send to session",
			zap.String("session_id", sessionID), zap.Error(err))
		h.unregister(s)
		return false
	}
	return true
}

func (h *Hub) deliver(targets []*session, message []byte) {
	for _, s := range targets {
		if err := s.send(message); err != nil {
			h.log.Warn("dropping session after failed write",
				zap.String("session_id", s.id), zap.Error(err))
			h.unregister(s)
		}
	}
}

// Stats reports active session and subscription counts.
func (h *Hub) Stats() map[string]any {
	h.mu.RLock()
	defer h.mu.RUnlock()

	byType := make(map[string]int, len(h.byType))
	for connType, peers := range h.byType {
		byType[connType] = len(peers)
	}
	channels := make([]string, 0, len(h.channels))
	subscribers := make(map[string]int, len(h.channels))
	for channel, subs := range h.channels {
		channels = append(channels, channel)
		subscribers[channel] = len(subs)
	}

	return map[string]any{
		"totalSessions":      len(h.sessions),
		"sessionsByType":     byType,
		"activeChannels":     channels,
		"channelSubscribers": subscribers,
	}
}
