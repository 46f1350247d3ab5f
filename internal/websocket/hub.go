package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"procurement/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrHubBusy is returned by Publish when the broadcast queue is full.
var ErrHubBusy = errors.New("websocket hub broadcast queue is full")

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// origins are enforced by the CORS layer in front of the API
	CheckOrigin: func(r *http.Request) bool { return true },
}

var knownRoles = []string{
	model.RoleAdmin, model.RoleStaff, model.RolePurchasing, model.RoleAccounting,
	model.RolePropertyCustodian, model.RoleExecutiveDirector, model.RoleBursar,
}

// subscriber is one authenticated browser tab
type subscriber struct {
	hub    *Hub
	conn   *websocket.Conn
	out    chan []byte
	userID string
	role   string
}

// Hub fans workflow events out to every subscriber
type Hub struct {
	mu    sync.Mutex
	subs  map[*subscriber]struct{}
	queue chan []byte
	join  chan *subscriber
	leave chan *subscriber
	// done is closed when Run returns, releasing senders on join and leave
	done  chan struct{}
	log   *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		subs:  make(map[*subscriber]struct{}),
		queue: make(chan []byte, 256),
		join:  make(chan *subscriber),
		leave: make(chan *subscriber),
		done:  make(chan struct{}),
		log:   log.Named("ws"),
	}
}

// Run owns subscriber membership until ctx is cancelled, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for s := range h.subs {
				h.drop(s)
			}
			h.mu.Unlock()
			return
		case s := <-h.join:
			h.mu.Lock()
			h.subs[s] = struct{}{}
			h.mu.Unlock()
			h.log.Debug("subscriber joined", zap.String("user_id", s.userID), zap.String("role", s.role))
		case s := <-h.leave:
			h.mu.Lock()
			if _, ok := h.subs[s]; ok {
				h.drop(s)
				h.log.Debug("subscriber left", zap.String("user_id", s.userID))
			}
			h.mu.Unlock()
		case payload := <-h.queue:
			h.mu.Lock()
			for s := range h.subs {
				select {
				case s.out <- payload:
				default:
					// too slow to keep up
					h.drop(s)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop must be called with h.mu held
func (h *Hub) drop(s *subscriber) {
	delete(h.subs, s)
	close(s.out)
}

// Publish encodes v as JSON and queues it without blocking.
func (h *Hub) Publish(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case h.queue <- payload:
		return nil
	default:
		return ErrHubBusy
	}
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// writeLoop sends queued events as separate frames and pings the peer on an interval.
func (s *subscriber) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop discards inbound frames; it only exists to notice pongs and closes.
func (s *subscriber) readLoop() {
	defer func() {
		select {
		case s.hub.leave <- s:
		case <-s.hub.done:
		}
		_ = s.conn.Close()
	}()
	s.conn.SetReadLimit(512)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.hub.log.Warn("unexpected close", zap.String("user_id", s.userID), zap.Error(err))
			}
			return
		}
	}
}

// ServeWs checks the token query parameter and upgrades the connection. Browsers cannot
// set headers on a websocket handshake, so the bearer header is not consulted.
func ServeWs(hub *Hub, c *gin.Context, secret []byte) {
	raw := c.Query("token")
	if raw == "" {
		hub.log.Info("connection rejected: missing token")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil {
		hub.log.Info("connection rejected: invalid token", zap.Error(err))
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	role, _ := claims["role"].(string)
	if !slices.Contains(knownRoles, role) {
		hub.log.Info("connection rejected: unknown role", zap.String("role", role))
		c.AbortWithStatus(http.StatusForbidden)
		return
	}
	userID, _ := claims.GetSubject()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.log.Warn("upgrade failed", zap.Error(err))
		return
	}
	s := &subscriber{hub: hub, conn: conn, out: make(chan []byte, sendBuffer), userID: userID, role: role}
	select {
	case hub.join <- s:
	case <-hub.done:
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		_ = conn.Close()
		return
	}

	go s.writeLoop()
	go s.readLoop()
}
