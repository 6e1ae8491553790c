// Package websocket relays events to connected users. It keeps at most one
// joined connection per user and never persists anything.
package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type Manager struct {
	mu      sync.RWMutex
	joined  map[primitive.ObjectID]*Client
	conns   map[*Client]struct{}
	stopped bool

	upgrader websocket.Upgrader
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// NewManager accepts upgrades from allowedOrigins. An empty list or "*"
// accepts any origin.
func NewManager(logger *zap.Logger, allowedOrigins []string) *Manager {
	m := &Manager{
		joined: make(map[primitive.ObjectID]*Client),
		conns:  make(map[*Client]struct{}),
		logger: logger,
	}
	m.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return m
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || len(set) == 0 || set[origin]
	}
}

// ServeWS upgrades an already authenticated request and starts the client's
// read and write loops.
func (m *Manager) ServeWS(w http.ResponseWriter, r *http.Request, userID primitive.ObjectID) {
	m.mu.RLock()
	stopped := m.stopped
	m.mu.RUnlock()
	if stopped {
		http.Error(w, "Server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		id:      uuid.NewString(),
		userID:  userID,
		conn:    conn,
		manager: m,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		conn.Close()
		return
	}
	m.conns[client] = struct{}{}
	m.wg.Add(2)
	m.mu.Unlock()

	m.logger.Debug("WebSocket client connected",
		zap.String("clientId", client.id), zap.String("userId", userID.Hex()))

	client.enqueue(Event{Type: EventConnected, Payload: map[string]interface{}{
		"userId":  userID.Hex(),
		"message": "WebSocket connected successfully",
		"time":    time.Now().Unix(),
	}})

	go client.writePump()
	go client.readPump()
}

// Register associates userID with client. A previous association is
// replaced silently; the old connection stays open but stops receiving.
func (m *Manager) Register(userID primitive.ObjectID, client *Client) {
	m.mu.Lock()
	prev := m.joined[userID]
	m.joined[userID] = client
	m.mu.Unlock()

	if prev != nil && prev != client {
		m.logger.Debug("WebSocket join replaced previous connection",
			zap.String("userId", userID.Hex()), zap.String("previous", prev.id), zap.String("current", client.id))
	}
}

// Unregister forgets client. A user's mapping is removed only if it still
// points at this client.
func (m *Manager) Unregister(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.conns, client)
	if m.joined[client.userID] == client {
		delete(m.joined, client.userID)
	}
}

// Relay hands event to the receiver's connection without blocking. It
// reports false when the receiver is offline or its buffer is full.
func (m *Manager) Relay(receiverID primitive.ObjectID, event Event) bool {
	m.mu.RLock()
	client, ok := m.joined[receiverID]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	return client.enqueue(event)
}

func (m *Manager) IsOnline(userID primitive.ObjectID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.joined[userID]
	return ok
}

// Online is the number of joined users.
func (m *Manager) Online() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.joined)
}

// Stop closes every connection and waits for the client loops to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.stopped = true
	clients := make([]*Client, 0, len(m.conns))
	for c := range m.conns {
		clients = append(clients, c)
	}
	m.conns = make(map[*Client]struct{})
	m.joined = make(map[primitive.ObjectID]*Client)
	m.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	m.wg.Wait()
	m.logger.Info("WebSocket manager stopped", zap.Int("closed", len(clients)))
}

func (m *Manager) marshal(event Event) ([]byte, bool) {
	data, err := json.Marshal(event)
	if err != nil {
		m.logger.Error("Error marshaling WebSocket event", zap.String("type", event.Type), zap.Error(err))
		return nil, false
	}
	return data, true
}
