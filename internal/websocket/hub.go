package websocket

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"blocklab-backend/internal/middleware"
	"blocklab-backend/internal/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans accepted telemetry out to researchers watching an experiment live.
// Connections are grouped per experiment; the first watcher of an experiment
// opens the redis pubsub subscription and the last one closes it.
type Hub struct {
	mu          sync.RWMutex
	connections map[int64][]*websocket.Conn
	redisClient *redis.Client
	jwtAuth     *middleware.JWTAuth
	cancelFuncs map[int64]context.CancelFunc
}

func NewHub(redisClient *redis.Client, jwtAuth *middleware.JWTAuth) *Hub {
	return &Hub{
		connections: make(map[int64][]*websocket.Conn),
		redisClient: redisClient,
		jwtAuth:     jwtAuth,
		cancelFuncs: make(map[int64]context.CancelFunc),
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Researchers authenticate via token query param; browsers cannot set
	// headers on websocket dials.
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if _, err := h.jwtAuth.Verify(tokenStr); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	experimentID, err := strconv.ParseInt(r.URL.Query().Get("experiment"), 10, 64)
	if err != nil || experimentID <= 0 {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	h.registerConnection(experimentID, conn)

	// Keep connection alive and handle disconnect
	go func() {
		defer h.unregisterConnection(experimentID, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (h *Hub) registerConnection(experimentID int64, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[experimentID] = append(h.connections[experimentID], conn)

	if len(h.connections[experimentID]) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[experimentID] = cancel
		go h.subscribeToPubSub(ctx, experimentID)
	}

	log.Printf("Monitor connected: experiment %d (total: %d)", experimentID, len(h.connections[experimentID]))
}

func (h *Hub) unregisterConnection(experimentID int64, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn.Close()

	conns := h.connections[experimentID]
	for i, c := range conns {
		if c == conn {
			h.connections[experimentID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	if len(h.connections[experimentID]) == 0 {
		delete(h.connections, experimentID)
		if cancel, ok := h.cancelFuncs[experimentID]; ok {
			cancel()
			delete(h.cancelFuncs, experimentID)
		}
	}

	log.Printf("Monitor disconnected: experiment %d", experimentID)
}

func (h *Hub) subscribeToPubSub(ctx context.Context, experimentID int64) {
	pubsub := h.redisClient.Subscribe(ctx, services.MonitorChannel(experimentID))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(experimentID, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(experimentID int64, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conn := range h.connections[experimentID] {
		conn.WriteMessage(websocket.TextMessage, data)
	}
}
