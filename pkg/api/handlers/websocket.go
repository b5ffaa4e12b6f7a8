package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/goclaw/hyperagent/pkg/logger"
)

const (
	defaultWSMaxConnections = 100
	defaultPingInterval     = 30 * time.Second
	defaultPongTimeout      = 10 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	defaultSendBuffer       = 64
)

// ErrConnectionLimit is returned when the stream is at capacity.
var ErrConnectionLimit = errors.New("websocket connection limit reached")

// WebSocketConfig configures the event stream.
type WebSocketConfig struct {
	AllowedOrigins []string
	MaxConnections int
	SendBuffer     int
	PingInterval   time.Duration
	PongTimeout    time.Duration

	// ResolveGoal maps a client-supplied goal reference (numeric id or
	// label) to the key events carry. Nil keeps references as given.
	ResolveGoal func(ref string) string
}

// EventMessage is one event frame sent to clients.
type EventMessage struct {
	Type      string    `json:"type"`
	GoalID    string    `json:"goal_id,omitempty"`
	Cycle     uint64    `json:"cycle,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// controlMessage is what clients send to change their subscriptions.
type controlMessage struct {
	Type   string `json:"type"`
	GoalID string `json:"goal_id,omitempty"`
}

type streamClient struct {
	conn      *websocket.Conn
	send      chan []byte
	goals     map[string]struct{}
	mu        sync.RWMutex
	closeOnce sync.Once
}

func newStreamClient(conn *websocket.Conn, buffer int) *streamClient {
	return &streamClient{
		conn:  conn,
		send:  make(chan []byte, buffer),
		goals: make(map[string]struct{}),
	}
}

func (c *streamClient) close() {
	c.closeOnce.Do(func() {
		close(c.send)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

func (c *streamClient) follow(goalKey string) {
	if goalKey == "" {
		return
	}
	c.mu.Lock()
	c.goals[goalKey] = struct{}{}
	c.mu.Unlock()
}

func (c *streamClient) unfollow(goalKey string) {
	if goalKey == "" {
		return
	}
	c.mu.Lock()
	delete(c.goals, goalKey)
	c.mu.Unlock()
}

// wants reports whether an event for goalKey goes to this client. A client
// with no subscriptions receives everything; events without a goal only go
// to such clients.
func (c *streamClient) wants(goalKey string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.goals) == 0 {
		return true
	}
	_, ok := c.goals[goalKey]
	return ok
}

// ConnectionManager tracks connected stream clients.
type ConnectionManager struct {
	mu             sync.RWMutex
	clients        map[*streamClient]struct{}
	maxConnections int
}

// NewConnectionManager creates a manager accepting up to maxConnections.
func NewConnectionManager(maxConnections int) *ConnectionManager {
	if maxConnections <= 0 {
		maxConnections = defaultWSMaxConnections
	}
	return &ConnectionManager{
		clients:        make(map[*streamClient]struct{}),
		maxConnections: maxConnections,
	}
}

func (m *ConnectionManager) register(client *streamClient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.clients) >= m.maxConnections {
		return ErrConnectionLimit
	}
	m.clients[client] = struct{}{}
	return nil
}

func (m *ConnectionManager) unregister(client *streamClient) {
	m.mu.Lock()
	_, ok := m.clients[client]
	delete(m.clients, client)
	m.mu.Unlock()
	if ok {
		client.close()
	}
}

// Count returns the number of connected clients.
func (m *ConnectionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// CanAccept reports whether one more client fits.
func (m *ConnectionManager) CanAccept() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients) < m.maxConnections
}

// Broadcast fans event out to subscribed clients. Clients whose send
// buffer is full are dropped.
func (m *ConnectionManager) Broadcast(event EventMessage) error {
	frame, err := json.Marshal(event)
	if err != nil {
		return err
	}

	m.mu.RLock()
	targets := make([]*streamClient, 0, len(m.clients))
	for client := range m.clients {
		if client.wants(event.GoalID) {
			targets = append(targets, client)
		}
	}
	m.mu.RUnlock()

	for _, client := range targets {
		select {
		case client.send <- frame:
		default:
			m.unregister(client)
		}
	}
	return nil
}

// Close disconnects every client.
func (m *ConnectionManager) Close() {
	m.mu.Lock()
	clients := m.clients
	m.clients = make(map[*streamClient]struct{})
	m.mu.Unlock()
	for client := range clients {
		client.close()
	}
}

// WebSocketHandler serves the live event stream at /ws/events.
//
// Clients may pass ?goal_id= on connect and later send
// {"type":"subscribe","goal_id":"..."} or "unsubscribe" frames.
type WebSocketHandler struct {
	log          logger.Logger
	manager      *ConnectionManager
	upgrader     websocket.Upgrader
	resolve      func(string) string
	sendBuffer   int
	pingInterval time.Duration
	pongTimeout  time.Duration
	writeTimeout time.Duration
}

// NewWebSocketHandler creates the event stream handler.
func NewWebSocketHandler(log logger.Logger, cfg WebSocketConfig) *WebSocketHandler {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = defaultPongTimeout
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	if cfg.ResolveGoal == nil {
		cfg.ResolveGoal = func(ref string) string { return ref }
	}

	h := &WebSocketHandler{
		log:          log,
		manager:      NewConnectionManager(cfg.MaxConnections),
		resolve:      cfg.ResolveGoal,
		sendBuffer:   cfg.SendBuffer,
		pingInterval: cfg.PingInterval,
		pongTimeout:  cfg.PongTimeout,
		writeTimeout: defaultWriteTimeout,
	}

	origins := append([]string(nil), cfg.AllowedOrigins...)
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r, origins)
		},
	}
	return h
}

// ServeHTTP upgrades the connection and runs the client pumps.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "websocket upgrade required", http.StatusBadRequest)
		return
	}
	if !h.manager.CanAccept() {
		http.Error(w, ErrConnectionLimit.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := newStreamClient(conn, h.sendBuffer)
	if ref := strings.TrimSpace(r.URL.Query().Get("goal_id")); ref != "" {
		client.follow(h.resolve(ref))
	}
	if err := h.manager.register(client); err != nil {
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()),
			time.Now().Add(h.writeTimeout),
		)
		_ = conn.Close()
		return
	}

	go h.writePump(client)
	h.readPump(client)
}

func (h *WebSocketHandler) readPump(client *streamClient) {
	defer h.manager.unregister(client)

	deadline := h.pingInterval + h.pongTimeout
	client.conn.SetReadLimit(64 << 10)
	_ = client.conn.SetReadDeadline(time.Now().Add(deadline))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn("websocket read error", "error", err)
			}
			return
		}
		h.handleControl(client, data)
	}
}

func (h *WebSocketHandler) writePump(client *streamClient) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		h.manager.unregister(client)
	}()

	for {
		select {
		case frame, ok := <-client.send:
			if !ok {
				_ = client.conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(h.writeTimeout),
				)
				return
			}
			_ = client.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := client.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := client.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeTimeout)); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHandler) handleControl(client *streamClient, raw []byte) {
	var msg controlMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	ref := strings.TrimSpace(msg.GoalID)
	if ref == "" {
		return
	}

	switch strings.ToLower(strings.TrimSpace(msg.Type)) {
	case "subscribe":
		client.follow(h.resolve(ref))
	case "unsubscribe":
		client.unfollow(h.resolve(ref))
	}
}

// Broadcast sends event to every client subscribed to its goal.
func (h *WebSocketHandler) Broadcast(event EventMessage) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	return h.manager.Broadcast(event)
}

// Connections returns the number of connected clients.
func (h *WebSocketHandler) Connections() int {
	return h.manager.Count()
}

// Close disconnects every client.
func (h *WebSocketHandler) Close() {
	h.manager.Close()
}

func originAllowed(r *http.Request, allowed []string) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		a = strings.TrimSpace(a)
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}
