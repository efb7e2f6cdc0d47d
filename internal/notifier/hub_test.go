package notifier_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"trustlabel/internal/auth"
	"trustlabel/internal/events"
	"trustlabel/internal/logging"
	"trustlabel/internal/notifier"
	"trustlabel/internal/queue"
)

const secret = "test-secret"

func TestCanJoin(t *testing.T) {
	cases := []struct {
		room    string
		role    queue.Role
		allowed bool
	}{
		{"general", queue.RoleConsumer, true},
		{"announcements", queue.RoleBrand, true},
		{notifier.RoomQueue, queue.RoleAdmin, true},
		{notifier.RoomQueue, queue.RoleBrand, false},
		{notifier.RoomQueue, queue.RoleConsumer, false},
		{"admin-notifications", queue.RoleAdmin, true},
		{"admin-notifications", queue.RoleBrand, false},
		{"brand-updates", queue.RoleBrand, true},
		{"brand-updates", queue.RoleConsumer, false},
		{"made-up-room", queue.RoleAdmin, false},
	}
	for _, tc := range cases {
		if got := notifier.CanJoin(tc.room, tc.role); got != tc.allowed {
			t.Errorf("CanJoin(%q, %s) = %v, want %v", tc.room, tc.role, got, tc.allowed)
		}
	}
}

func newTestHub(t *testing.T) (*notifier.Hub, *httptest.Server) {
	t.Helper()
	hub := notifier.NewHub(16, time.Second, logging.NewNop())
	t.Cleanup(hub.Close)
	server := httptest.NewServer(notifier.ServeWS(hub, secret, logging.NewNop()))
	t.Cleanup(server.Close)
	return hub, server
}

func dial(t *testing.T, server *httptest.Server, userID string, role queue.Role) *websocket.Conn {
	t.Helper()
	token, err := auth.Sign(secret, auth.Identity{UserID: userID, Role: role}, 0)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil skips unrelated messages (connection stats, pings) until the
// wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, wantType string) notifier.Envelope {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read waiting for %q: %v", wantType, err)
		}
		var envelope notifier.Envelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			t.Fatalf("unmarshal message: %v", err)
		}
		if envelope.Type == wantType {
			return envelope
		}
	}
	t.Fatalf("never received %q", wantType)
	return notifier.Envelope{}
}

func send(t *testing.T, conn *websocket.Conn, payload map[string]string) {
	t.Helper()
	if err := conn.WriteJSON(payload); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestConnectHandshake(t *testing.T) {
	hub, server := newTestHub(t)
	conn := dial(t, server, "user-1", queue.RoleConsumer)

	envelope := readUntil(t, conn, "connected")
	data, _ := envelope.Data.(map[string]any)
	if data["userId"] != "user-1" {
		t.Fatalf("unexpected handshake payload %+v", envelope.Data)
	}

	stats := hub.Stats()
	if stats.ActiveConnections != 1 || stats.TotalConnections != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestRejectsBadToken(t *testing.T) {
	_, server := newTestHub(t)
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "?token=garbage"
	if _, _, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
		t.Fatal("expected dial with bad token to fail")
	}
}

func TestRoomAllowList(t *testing.T) {
	_, server := newTestHub(t)

	brand := dial(t, server, "brand-1", queue.RoleBrand)
	readUntil(t, brand, "connected")

	send(t, brand, map[string]string{"action": "subscribe-queue"})
	if envelope := readUntil(t, brand, "error"); envelope.Message != "room not allowed" {
		t.Fatalf("unexpected error message %q", envelope.Message)
	}

	send(t, brand, map[string]string{"action": "join-room", "room": "brand-updates"})
	readUntil(t, brand, "room-joined")
}

func TestQueueEventFanOut(t *testing.T) {
	hub, server := newTestHub(t)

	bus := events.NewBus()
	defer bus.Close()
	ch, cancel := bus.Subscribe(16)
	defer cancel()
	hub.Consume(ch)

	admin := dial(t, server, "admin-1", queue.RoleAdmin)
	readUntil(t, admin, "connected")
	send(t, admin, map[string]string{"action": "subscribe-queue"})
	readUntil(t, admin, "queue-subscribed")

	brand := dial(t, server, "brand-1", queue.RoleBrand)
	readUntil(t, brand, "connected")

	entry := &queue.Entry{
		ID:            "entry-1",
		ProductID:     "product-1",
		RequestedByID: "brand-1",
		Status:        queue.StatusPending,
		Priority:      queue.PriorityUrgent,
	}
	bus.Publish(events.Event{Type: events.EntryCreated, Entry: entry})

	// The admin sees it through the queue room, the brand through the
	// per-user channel.
	readUntil(t, admin, "queue-entry-created")
	readUntil(t, brand, "queue-entry-created")
}

func TestCompletionNotifiesRequester(t *testing.T) {
	hub, server := newTestHub(t)

	bus := events.NewBus()
	defer bus.Close()
	ch, cancel := bus.Subscribe(16)
	defer cancel()
	hub.Consume(ch)

	brand := dial(t, server, "brand-1", queue.RoleBrand)
	readUntil(t, brand, "connected")

	entry := &queue.Entry{
		ID:            "entry-1",
		RequestedByID: "brand-1",
		AssignedToID:  "validator-1",
		Status:        queue.StatusCompleted,
	}
	bus.Publish(events.Event{Type: events.EntryUpdated, Entry: entry, PreviousStatus: queue.StatusInProgress})

	readUntil(t, brand, "queue-entry-updated")
	readUntil(t, brand, "validation-completed")
}

// A fan-out snapshot can still hold a client whose connection is being torn
// down. Late deliveries must be dropped rather than panic on the closed send
// channel.
func TestNotifyDuringDisconnect(t *testing.T) {
	hub, server := newTestHub(t)

	for round := 0; round < 5; round++ {
		conn := dial(t, server, "user-1", queue.RoleConsumer)
		readUntil(t, conn, "connected")

		done := make(chan struct{})
		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-done:
						return
					default:
						hub.NotifyUser("user-1", notifier.Envelope{Type: "noise"})
					}
				}
			}()
		}

		conn.Close()
		time.Sleep(20 * time.Millisecond)
		close(done)
		wg.Wait()
	}
}

func TestAnnounceToRole(t *testing.T) {
	hub, server := newTestHub(t)

	admin := dial(t, server, "admin-1", queue.RoleAdmin)
	readUntil(t, admin, "connected")
	consumer := dial(t, server, "consumer-1", queue.RoleConsumer)
	readUntil(t, consumer, "connected")

	hub.Announce("maintenance window at midnight", queue.RoleAdmin)
	if envelope := readUntil(t, admin, "system-announcement"); envelope.Message != "maintenance window at midnight" {
		t.Fatalf("unexpected announcement %q", envelope.Message)
	}

	// Consumers still answer pings, proving they did not get the admin-only
	// announcement queued ahead of the pong.
	send(t, consumer, map[string]string{"action": "ping"})
	readUntil(t, consumer, "pong")
}
