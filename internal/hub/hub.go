package hub

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prudhvinik1/webradegast/internal/metrics"
	"github.com/prudhvinik1/webradegast/internal/models"
	"github.com/prudhvinik1/webradegast/internal/services"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBuffer     = 64
)

var ErrUnauthorized = errors.New("unauthorized")

// Authenticator resolves the bearer token passed on the socket URL.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*services.TokenClaims, error)
}

// AccountLookup checks that an account belongs to the operator.
type AccountLookup interface {
	Get(ctx context.Context, operatorID, accountID uuid.UUID) (*models.Account, error)
}

// Hub is the real-time transport between browser tabs and the presence
// model. Each socket is one connection in the tracker.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client

	tracker  *services.ConnectionTracker
	presence *services.PresenceService
	accounts AccountLookup
	auth     Authenticator
	limit    rate.Limit
	burst    int
	upgrader websocket.Upgrader
	metrics  *metrics.PresenceMetrics
	logger   *zap.Logger
}

func New(
	tracker *services.ConnectionTracker,
	presence *services.PresenceService,
	accounts AccountLookup,
	auth Authenticator,
	messageRate float64,
	m *metrics.PresenceMetrics,
	logger *zap.Logger,
) *Hub {
	burst := int(messageRate * 2)
	if burst < 1 {
		burst = 1
	}
	return &Hub{
		clients:  make(map[string]*Client),
		tracker:  tracker,
		presence: presence,
		accounts: accounts,
		auth:     auth,
		limit:    rate.Limit(messageRate),
		burst:    burst,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		metrics: m,
		logger:  logger,
	}
}

// ServeHTTP authenticates the token query parameter and upgrades the request.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, ErrUnauthorized.Error(), http.StatusUnauthorized)
		return
	}
	claims, err := h.auth.Authenticate(r.Context(), token)
	if err != nil {
		http.Error(w, ErrUnauthorized.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		id:         uuid.New().String(),
		operatorID: claims.OperatorID,
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
		limiter:    rate.NewLimiter(h.limit, h.burst),
		hub:        h,
	}
	h.register(client)

	go client.writePump()
	go client.readPump()
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.logger.Info("client connected",
		zap.String("connection_id", c.id),
		zap.String("operator_id", c.operatorID.String()))
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.id)
	close(c.send)
	h.mu.Unlock()

	detached := h.tracker.RemoveAllForConnection(c.id)
	h.logger.Info("client disconnected",
		zap.String("connection_id", c.id),
		zap.Int("detached_accounts", len(detached)))
}

// ClientCount returns the number of open sockets.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleStatusChange pushes a presence change to every connection watching
// the account.
func (h *Hub) HandleStatusChange(ctx context.Context, change models.StatusChange) error {
	frame, err := encode(TypePresenceStatus, StatusPayload{
		AccountID:  change.AccountID,
		Status:     change.Status,
		StatusText: change.StatusText,
	})
	if err != nil {
		return err
	}

	connections := h.tracker.GetConnectionsForAccount(change.AccountID)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range connections {
		if c, ok := h.clients[id]; ok {
			c.enqueue(frame)
		}
	}
	return nil
}

func (h *Hub) handleMessage(ctx context.Context, c *Client, msg InboundMessage) {
	h.metrics.HubMessages.WithLabelValues(msg.Type).Inc()

	switch msg.Type {
	case TypeWatch:
		if _, err := h.accounts.Get(ctx, c.operatorID, msg.AccountID); err != nil {
			c.reply(TypeError, ErrorPayload{Message: "unknown account"})
			return
		}
		h.tracker.AddConnection(c.id, msg.AccountID)
		status, _ := h.presence.GetStatus(msg.AccountID)
		c.reply(TypePresenceStatus, StatusPayload{
			AccountID:  msg.AccountID,
			Status:     status,
			StatusText: status.Text(),
		})
	case TypeUnwatch:
		h.tracker.RemoveConnection(c.id, msg.AccountID)
	case TypeBrowserClose:
		h.presence.HandleBrowserClose(ctx, c.operatorID)
	case TypeBrowserReturn:
		h.presence.HandleBrowserReturn(ctx, c.operatorID)
	case TypePing:
		c.reply(TypePong, nil)
	default:
		c.reply(TypeError, ErrorPayload{Message: "unknown message type"})
	}
}
