package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/neboman11/any-player-sync-server/internal/notify"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. The channel is one-directional
	// from server to client; inbound frames beyond control traffic are noise.
	maxMessageSize = 4 * 1024
)

// gapMessage tells the client events were evicted from its backlog and it
// should re-synchronize with a full snapshot read. Best-effort.
type gapMessage struct {
	EventType string `json:"event_type"`
	Dropped   uint64 `json:"dropped"`
}

// Handler upgrades /v1/ws requests and runs one delivery session per
// connection.
type Handler struct {
	broadcaster *notify.Broadcaster
	logger      *zap.Logger
	upgrader    websocket.Upgrader
}

func NewHandler(broadcaster *notify.Broadcaster, checkOrigin func(*http.Request) bool, logger *zap.Logger) *Handler {
	return &Handler{
		broadcaster: broadcaster,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	session := &session{
		conn:        conn,
		sub:         h.broadcaster.Subscribe(),
		broadcaster: h.broadcaster,
		connID:      uuid.New().String(),
		logger:      h.logger,
	}

	h.logger.Debug("update subscriber connected",
		zap.String("connID", session.connID),
		zap.String("remoteAddr", r.RemoteAddr),
	)

	go session.run()
}

// session is one live subscriber: it drains its subscription backlog and
// forwards events to the websocket, independently of other sessions. Its only
// states are active and closed; close is one-way and idempotent.
type session struct {
	conn        *websocket.Conn
	sub         *notify.Subscription
	broadcaster *notify.Broadcaster
	connID      string
	logger      *zap.Logger
	closeOnce   sync.Once
}

func (s *session) run() {
	defer s.close()

	readerDone := make(chan struct{})
	go s.readPump(readerDone)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-readerDone:
			// Remote closed or the transport errored.
			return

		case <-s.sub.Done():
			// Publisher side shut down; tell the peer before leaving.
			deadline := time.Now().Add(writeWait)
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), deadline)
			return

		case ev := <-s.sub.Events():
			if dropped := s.sub.TakeDropped(); dropped > 0 {
				if err := s.writeJSON(gapMessage{EventType: "sync_gap", Dropped: dropped}); err != nil {
					s.logger.Debug("websocket write error",
						zap.String("connID", s.connID),
						zap.Error(err),
					)
					return
				}
			}
			if err := s.writeJSON(ev); err != nil {
				s.logger.Debug("websocket write error",
					zap.String("connID", s.connID),
					zap.Error(err),
				)
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *session) writeJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// readPump consumes the inbound side of the connection so control frames are
// processed. Data frames are ignored; any read error or close ends the
// session.
func (s *session) readPump(done chan<- struct{}) {
	defer close(done)

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Debug("websocket read error",
					zap.String("connID", s.connID),
					zap.Error(err),
				)
			}
			return
		}
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		s.broadcaster.Unsubscribe(s.sub)
		s.conn.Close()
		s.logger.Debug("update subscriber disconnected", zap.String("connID", s.connID))
	})
}
