package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans generation progress out to clients. Connections are keyed by
// project name; each open project gets one Redis pub/sub subscription that
// lives as long as at least one client is connected.
type Hub struct {
	mu          sync.RWMutex
	connections map[string][]*websocket.Conn
	redisClient *redis.Client
	cancelFuncs map[string]context.CancelFunc
}

func NewHub(redisClient *redis.Client) *Hub {
	return &Hub{
		connections: make(map[string][]*websocket.Conn),
		redisClient: redisClient,
		cancelFuncs: make(map[string]context.CancelFunc),
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	project := r.URL.Query().Get("project")
	if project == "" {
		http.Error(w, "Missing project parameter", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	h.registerConnection(project, conn)

	// Keep connection alive and handle disconnect
	go func() {
		defer h.unregisterConnection(project, conn)
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				break
			}
		}
	}()
}

func (h *Hub) registerConnection(project string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[project] = append(h.connections[project], conn)

	// Start pub/sub subscription if this is the first connection for this project
	if len(h.connections[project]) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[project] = cancel
		go h.subscribeToPubSub(ctx, project)
	}

	log.Printf("WebSocket connected: project %s (total: %d)", project, len(h.connections[project]))
}

func (h *Hub) unregisterConnection(project string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn.Close()

	conns := h.connections[project]
	for i, c := range conns {
		if c == conn {
			h.connections[project] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	// If no more connections, cancel pub/sub
	if len(h.connections[project]) == 0 {
		delete(h.connections, project)
		if cancel, ok := h.cancelFuncs[project]; ok {
			cancel()
			delete(h.cancelFuncs, project)
		}
	}

	log.Printf("WebSocket disconnected: project %s", project)
}

func (h *Hub) subscribeToPubSub(ctx context.Context, project string) {
	channel := "project_updates:" + project
	pubsub := h.redisClient.Subscribe(ctx, channel)
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
			h.broadcast(project, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(project string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conn := range h.connections[project] {
		conn.WriteMessage(websocket.TextMessage, data)
	}
}

// SendToProject sends a message directly to a project's clients (for use
// outside pub/sub)
func (h *Hub) SendToProject(project string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.broadcast(project, data)
}
