package notifier

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"trustlabel/internal/api"
	"trustlabel/internal/events"
	"trustlabel/internal/logging"
	"trustlabel/internal/queue"
)

// Envelope wraps every websocket message sent to clients.
type Envelope struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
}

// ConnectionStats counts hub activity since start.
type ConnectionStats struct {
	TotalConnections  int64 `json:"totalConnections"`
	ActiveConnections int   `json:"activeConnections"`
	MessagesSent      int64 `json:"messagesSent"`
}

// RoomQueue is the queue-wide broadcast room, restricted to administrators.
const RoomQueue = "validation-queue"

var (
	publicRooms = map[string]struct{}{"general": {}, "announcements": {}}
	adminRooms  = map[string]struct{}{RoomQueue: {}, "admin-notifications": {}}
	brandRooms  = map[string]struct{}{"brand-updates": {}}
)

// CanJoin reports whether a role may join a named room.
func CanJoin(room string, role queue.Role) bool {
	if _, ok := publicRooms[room]; ok {
		return true
	}
	if _, ok := adminRooms[room]; ok {
		return role == queue.RoleAdmin
	}
	if _, ok := brandRooms[room]; ok {
		return role == queue.RoleBrand
	}
	return false
}

// Hub owns the connection registry and fans queue events out to clients over
// per-user, per-role, and named-room channels. It is created on server start
// and torn down with Close on shutdown; its state lives and dies with the
// process.
type Hub struct {
	logger       *slog.Logger
	sendBuffer   int
	pingInterval time.Duration

	mu      sync.RWMutex
	clients map[*Client]struct{}
	byUser  map[string]map[*Client]struct{}
	byRole  map[queue.Role]map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
	closed  bool

	totalConnections int64
	messagesSent     int64

	wg sync.WaitGroup
}

// NewHub constructs a hub ready to accept connections.
func NewHub(sendBuffer int, pingInterval time.Duration, logger *slog.Logger) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Hub{
		logger:       logging.NewComponentLogger(logger, "notifier"),
		sendBuffer:   sendBuffer,
		pingInterval: pingInterval,
		clients:      make(map[*Client]struct{}),
		byUser:       make(map[string]map[*Client]struct{}),
		byRole:       make(map[queue.Role]map[*Client]struct{}),
		rooms:        make(map[string]map[*Client]struct{}),
	}
}

// Consume drains the event subscription until the channel closes. Run it in
// its own goroutine; queue mutations must never wait on fan-out.
func (h *Hub) Consume(ch <-chan events.Event) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for ev := range ch {
			h.handleEvent(ev)
		}
	}()
}

func (h *Hub) handleEvent(ev events.Event) {
	if ev.Entry == nil {
		return
	}

	var eventType string
	switch ev.Type {
	case events.EntryCreated:
		eventType = "queue-entry-created"
	case events.EntryAssigned:
		eventType = "queue-entry-assigned"
	case events.EntryUpdated:
		eventType = "queue-entry-updated"
	default:
		return
	}

	payload := Envelope{
		Type:      eventType,
		Data:      api.FromEntry(ev.Entry),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	h.BroadcastToRoom(RoomQueue, payload)
	if ev.Entry.RequestedByID != "" {
		h.NotifyUser(ev.Entry.RequestedByID, payload)
	}
	if ev.Entry.AssignedToID != "" {
		h.NotifyUser(ev.Entry.AssignedToID, payload)
	}

	if ev.Type == events.EntryUpdated && ev.Entry.Status == queue.StatusCompleted && ev.Entry.RequestedByID != "" {
		h.NotifyUser(ev.Entry.RequestedByID, Envelope{
			Type:      "validation-completed",
			Data:      api.FromEntry(ev.Entry),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func (h *Hub) registerClient(c *Client) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		c.closeSend()
		return
	}
	h.clients[c] = struct{}{}
	addMember(h.byUser, c.userID, c)
	addMember(h.byRole, c.role, c)
	h.totalConnections++
	active := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("client connected",
		logging.String("user_id", c.userID),
		logging.String("role", string(c.role)),
		logging.Int("active", active))

	c.enqueue(h.marshal(Envelope{
		Type:      "connected",
		Data:      map[string]any{"userId": c.userID, "role": c.role},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}))
	h.broadcastStats()
}

func (h *Hub) unregisterClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	removeMember(h.byUser, c.userID, c)
	removeMember(h.byRole, c.role, c)
	for room := range c.rooms {
		removeMember(h.rooms, room, c)
	}
	active := len(h.clients)
	h.mu.Unlock()

	c.closeSend()

	h.logger.Info("client disconnected",
		logging.String("user_id", c.userID),
		logging.Int("active", active))
	h.broadcastStats()
}

// JoinRoom adds a client to a named room after the role allow-list check.
func (h *Hub) JoinRoom(c *Client, room string) bool {
	if !CanJoin(room, c.role) {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return false
	}
	addMember(h.rooms, room, c)
	c.rooms[room] = struct{}{}
	return true
}

// LeaveRoom removes a client from a named room.
func (h *Hub) LeaveRoom(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	removeMember(h.rooms, room, c)
	delete(c.rooms, room)
}

// NotifyUser sends a message to every connection belonging to one user.
func (h *Hub) NotifyUser(userID string, payload Envelope) {
	h.deliver(h.membersOf(h.byUser, userID), payload)
}

// BroadcastToRole sends a message to every connection with the given role.
func (h *Hub) BroadcastToRole(role queue.Role, payload Envelope) {
	h.deliver(h.membersOfRole(role), payload)
}

// BroadcastToRoom sends a message to every member of a named room.
func (h *Hub) BroadcastToRoom(room string, payload Envelope) {
	h.deliver(h.membersOf(h.rooms, room), payload)
}

// Announce sends a system announcement to one role, or to everyone when the
// role is empty.
func (h *Hub) Announce(message string, role queue.Role) {
	payload := Envelope{
		Type:      "system-announcement",
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if role != "" {
		h.BroadcastToRole(role, payload)
		return
	}
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	h.deliver(targets, payload)
}

// Stats returns a snapshot of connection counters.
func (h *Hub) Stats() ConnectionStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return ConnectionStats{
		TotalConnections:  h.totalConnections,
		ActiveConnections: len(h.clients),
		MessagesSent:      h.messagesSent,
	}
}

// Close disconnects every client and stops fan-out goroutines.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.unregisterClient(c)
		_ = c.conn.Close()
	}
	h.wg.Wait()
}

func (h *Hub) broadcastStats() {
	stats := h.Stats()
	h.BroadcastToRole(queue.RoleAdmin, Envelope{
		Type:      "connection-stats",
		Data:      stats,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Hub) deliver(targets []*Client, payload Envelope) {
	if len(targets) == 0 {
		return
	}
	raw := h.marshal(payload)
	if raw == nil {
		return
	}
	sent := 0
	for _, c := range targets {
		if c.enqueue(raw) {
			sent++
		}
	}
	if sent > 0 {
		h.mu.Lock()
		h.messagesSent += int64(sent)
		h.mu.Unlock()
	}
}

func (h *Hub) marshal(payload Envelope) []byte {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("marshal websocket payload", logging.Error(err))
		return nil
	}
	return raw
}

func (h *Hub) membersOf(index map[string]map[*Client]struct{}, key string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := index[key]
	out := make([]*Client, 0, len(members))
	for c := range members {
		out = append(out, c)
	}
	return out
}

func (h *Hub) membersOfRole(role queue.Role) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := h.byRole[role]
	out := make([]*Client, 0, len(members))
	for c := range members {
		out = append(out, c)
	}
	return out
}

func addMember[K comparable](index map[K]map[*Client]struct{}, key K, c *Client) {
	members, ok := index[key]
	if !ok {
		members = make(map[*Client]struct{})
		index[key] = members
	}
	members[c] = struct{}{}
}

func removeMember[K comparable](index map[K]map[*Client]struct{}, key K, c *Client) {
	members, ok := index[key]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(index, key)
	}
}
