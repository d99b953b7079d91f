package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/courseflow/courseflow/internal/models"
)

// captureNotifier collects transient notices for assertions.
type captureNotifier struct {
	mu    sync.Mutex
	items []models.Notification
}

func (c *captureNotifier) Notify(n models.Notification) {
	c.mu.Lock()
	c.items = append(c.items, n)
	c.mu.Unlock()
}

func (c *captureNotifier) list() []models.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Notification, len(c.items))
	copy(out, c.items)
	return out
}

// fakePush is a scripted push server: it records client frames and lets the
// test inject server frames.
type fakePush struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu      sync.Mutex
	conns   []*websocket.Conn
	writeMu sync.Mutex

	frames chan frame
	// script runs per connection after the upgrade; nil means the default
	// authenticate/authenticated exchange.
	script func(conn *websocket.Conn, frames chan frame)
}

func newFakePush(t *testing.T) *fakePush {
	t.Helper()
	p := &fakePush{frames: make(chan frame, 64)}
	p.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := p.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		p.mu.Lock()
		p.conns = append(p.conns, conn)
		p.mu.Unlock()

		script := p.script
		if script == nil {
			script = func(conn *websocket.Conn, frames chan frame) {
				for {
					var f frame
					if err := conn.ReadJSON(&f); err != nil {
						return
					}
					frames <- f
					if f.Event == EventAuthenticate {
						_ = p.write(conn, frame{Event: EventAuthenticated})
					}
				}
			}
		}
		script(conn, p.frames)
	}))
	t.Cleanup(p.srv.Close)
	return p
}

// write serializes server-side frames; the per-connection script and the
// test goroutine share connections.
func (p *fakePush) write(conn *websocket.Conn, f frame) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return conn.WriteJSON(f)
}

// connCount reports how many upgrades the server has accepted.
func (p *fakePush) connCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

func (p *fakePush) url() string {
	return "ws" + strings.TrimPrefix(p.srv.URL, "http")
}

// send pushes a frame to the most recent connection.
func (p *fakePush) send(t *testing.T, f frame) {
	t.Helper()
	p.mu.Lock()
	require.NotEmpty(t, p.conns, "no client connected")
	conn := p.conns[len(p.conns)-1]
	p.mu.Unlock()
	require.NoError(t, p.write(conn, f))
}

// expect waits for the next client frame with the given event name.
func (p *fakePush) expect(t *testing.T, event string) frame {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case f := <-p.frames:
			if f.Event == event {
				return f
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q frame", event)
		}
	}
}

func newTestService(t *testing.T, url string, n *captureNotifier) *Service {
	t.Helper()
	svc := NewService(Options{
		URL:               url,
		Token:             func() string { return "tok-1" },
		Notifier:          n,
		Logger:            zap.NewNop(),
		ReconnectAttempts: 5,
		ReconnectDelay:    10 * time.Millisecond,
	})
	t.Cleanup(svc.Disconnect)
	return svc
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestConnect_HandshakeAndRooms(t *testing.T) {
	push := newFakePush(t)
	svc := newTestService(t, push.url(), &captureNotifier{})

	svc.Connect(context.Background(), "u1", "student")

	auth := push.expect(t, EventAuthenticate)
	var creds map[string]string
	require.NoError(t, json.Unmarshal(auth.Data, &creds))
	assert.Equal(t, "tok-1", creds["token"])

	rooms := map[string]bool{}
	for i := 0; i < 2; i++ {
		join := push.expect(t, EventJoinRoom)
		var body map[string]string
		require.NoError(t, json.Unmarshal(join.Data, &body))
		rooms[body["room"]] = true
	}
	assert.True(t, rooms["user:u1"])
	assert.True(t, rooms["role:student"])
}

func TestConnect_Idempotent(t *testing.T) {
	push := newFakePush(t)
	svc := newTestService(t, push.url(), &captureNotifier{})

	svc.Connect(context.Background(), "u1", "student")
	push.expect(t, EventAuthenticate)
	svc.Connect(context.Background(), "u1", "student")
	svc.Connect(context.Background(), "u1", "student")

	// no second handshake may arrive
	select {
	case f := <-push.frames:
		if f.Event == EventAuthenticate {
			t.Fatalf("unexpected second authenticate frame")
		}
	case <-time.After(200 * time.Millisecond):
	}
}

func TestDisconnectReconnect_ReauthenticatesOnce(t *testing.T) {
	push := newFakePush(t)
	svc := newTestService(t, push.url(), &captureNotifier{})

	svc.Connect(context.Background(), "u1", "student")
	push.expect(t, EventAuthenticate)
	waitFor(t, svc.Connected, "first connection never established")

	svc.Disconnect()
	waitFor(t, func() bool { return !svc.Connected() }, "disconnect did not drop the connection")

	svc.Connect(context.Background(), "u1", "student")
	push.expect(t, EventAuthenticate)

	// exactly one handshake for the reconnect
	select {
	case f := <-push.frames:
		if f.Event == EventAuthenticate {
			t.Fatalf("unexpected extra authenticate frame")
		}
	case <-time.After(200 * time.Millisecond):
	}
}

func TestAuthError_NotifiesAndStops(t *testing.T) {
	push := newFakePush(t)
	push.script = func(conn *websocket.Conn, frames chan frame) {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		frames <- f
		_ = push.write(conn, frame{Event: EventAuthError})
		// keep reading until the client hangs up
		for {
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
		}
	}
	notifier := &captureNotifier{}
	svc := newTestService(t, push.url(), notifier)

	svc.Connect(context.Background(), "u1", "student")
	push.expect(t, EventAuthenticate)

	waitFor(t, func() bool {
		for _, n := range notifier.list() {
			if n.Severity == models.SeverityWarning && strings.Contains(n.Message, "rejected") {
				return true
			}
		}
		return false
	}, "auth-error never surfaced to the user")
	waitFor(t, func() bool { return !svc.Connected() }, "connection not torn down after auth-error")
}

func TestDispatch_NotifiesAndReemits(t *testing.T) {
	push := newFakePush(t)
	notifier := &captureNotifier{}
	svc := newTestService(t, push.url(), notifier)

	payloadCh := make(chan json.RawMessage, 1)
	svc.On(EventNewNotification, func(data json.RawMessage) {
		payloadCh <- data
	})

	svc.Connect(context.Background(), "u1", "student")
	push.expect(t, EventAuthenticate)
	waitFor(t, svc.Connected, "connection never established")

	push.send(t, frame{
		Event: EventNewNotification,
		Data:  json.RawMessage(`{"title":"Grade posted","message":"c1 graded","severity":"critical"}`),
	})

	select {
	case data := <-payloadCh:
		assert.Contains(t, string(data), "Grade posted")
	case <-time.After(2 * time.Second):
		t.Fatal("event never re-emitted on the registry")
	}

	waitFor(t, func() bool {
		for _, n := range notifier.list() {
			if n.Title == "Grade posted" && n.Severity == models.SeverityCritical {
				return true
			}
		}
		return false
	}, "push never surfaced as a transient notice")
}

func TestDispatch_UnknownEventSkipsNotice(t *testing.T) {
	push := newFakePush(t)
	notifier := &captureNotifier{}
	svc := newTestService(t, push.url(), notifier)

	got := make(chan struct{}, 1)
	svc.On("totally-custom", func(json.RawMessage) { got <- struct{}{} })

	svc.Connect(context.Background(), "u1", "student")
	push.expect(t, EventAuthenticate)
	waitFor(t, svc.Connected, "connection never established")

	push.send(t, frame{Event: "totally-custom"})
	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("custom event never re-emitted")
	}
	assert.Empty(t, notifier.list(), "unknown events carry no transient notice")
}

func TestEmit_NotConnected(t *testing.T) {
	svc := newTestService(t, "ws://127.0.0.1:0", &captureNotifier{})
	err := svc.UpdateProgress("c1", "l1")
	require.Error(t, err)
}

func TestGiveUp_AfterRetryCeiling(t *testing.T) {
	// a server that is not there
	notifier := &captureNotifier{}
	svc := NewService(Options{
		URL:               "ws://127.0.0.1:1",
		Token:             func() string { return "tok" },
		Notifier:          notifier,
		Logger:            zap.NewNop(),
		ReconnectAttempts: 2,
		ReconnectDelay:    5 * time.Millisecond,
	})
	t.Cleanup(svc.Disconnect)

	svc.Connect(context.Background(), "u1", "student")

	waitFor(t, func() bool {
		for _, n := range notifier.list() {
			if strings.Contains(n.Message, "connection lost") {
				return true
			}
		}
		return false
	}, "retry ceiling never surfaced a connection-lost notice")
	assert.False(t, svc.Connected())
}

func TestServerClose_ReconnectsImmediately(t *testing.T) {
	push := newFakePush(t)
	var once sync.Once
	push.script = func(conn *websocket.Conn, frames chan frame) {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		frames <- f
		_ = push.write(conn, frame{Event: EventAuthenticated})

		closed := false
		once.Do(func() {
			// first connection: polite server-side close
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "rebalancing"),
				time.Now().Add(time.Second))
			closed = true
		})
		if closed {
			return
		}
		for {
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			frames <- f
		}
	}
	svc := newTestService(t, push.url(), &captureNotifier{})
	svc.Connect(context.Background(), "u1", "student")

	// the client authenticates, is closed by the server, and comes back
	push.expect(t, EventAuthenticate)
	push.expect(t, EventAuthenticate)
	waitFor(t, svc.Connected, "client never reconnected after server close")
}

func TestAbnormalDrop_ConsumesRetryBudget(t *testing.T) {
	push := newFakePush(t)
	push.script = func(conn *websocket.Conn, frames chan frame) {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		frames <- f
		// drop the raw TCP connection without a close frame
		_ = conn.UnderlyingConn().Close()
	}
	notifier := &captureNotifier{}
	svc := NewService(Options{
		URL:               push.url(),
		Token:             func() string { return "tok" },
		Notifier:          notifier,
		Logger:            zap.NewNop(),
		ReconnectAttempts: 2,
		ReconnectDelay:    10 * time.Millisecond,
	})
	t.Cleanup(svc.Disconnect)

	svc.Connect(context.Background(), "u1", "student")

	waitFor(t, func() bool {
		for _, n := range notifier.list() {
			if strings.Contains(n.Message, "connection lost") {
				return true
			}
		}
		return false
	}, "abrupt server drops never exhausted the retry budget")
	assert.False(t, svc.Connected())
	assert.Equal(t, 3, push.connCount(), "initial dial plus two retries")
}

func TestDuplicateAuthenticated_SingleHeartbeat(t *testing.T) {
	push := newFakePush(t)
	svc := NewService(Options{
		URL:               push.url(),
		Token:             func() string { return "tok" },
		Notifier:          &captureNotifier{},
		Logger:            zap.NewNop(),
		ReconnectAttempts: 5,
		ReconnectDelay:    10 * time.Millisecond,
		HeartbeatInterval: 30 * time.Millisecond,
	})
	t.Cleanup(svc.Disconnect)

	svc.Connect(context.Background(), "u1", "student")
	push.expect(t, EventAuthenticate)
	waitFor(t, svc.Connected, "connection never established")

	push.send(t, frame{Event: EventAuthenticated})
	time.Sleep(50 * time.Millisecond)

	// drain whatever arrived before the counting window opens
	for {
		select {
		case <-push.frames:
			continue
		default:
		}
		break
	}

	// a single heartbeat goroutine cannot beat faster than its interval
	beats := 0
	deadline := time.After(300 * time.Millisecond)
loop:
	for {
		select {
		case f := <-push.frames:
			if f.Event == EventHeartbeat {
				beats++
			}
		case <-deadline:
			break loop
		}
	}
	assert.Greater(t, beats, 0, "heartbeat never started")
	assert.LessOrEqual(t, beats, 13, "duplicate authenticated started a second heartbeat")
}

func TestMarkNotificationRead_SendsAck(t *testing.T) {
	push := newFakePush(t)
	svc := newTestService(t, push.url(), &captureNotifier{})

	svc.Connect(context.Background(), "u1", "student")
	push.expect(t, EventAuthenticate)
	waitFor(t, svc.Connected, "connection never established")

	require.NoError(t, svc.MarkNotificationRead("n1"))

	ack := push.expect(t, EventMarkNotificationRead)
	var body map[string]string
	require.NoError(t, json.Unmarshal(ack.Data, &body))
	assert.Equal(t, "n1", body["id"])
}
