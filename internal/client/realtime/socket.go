// Package realtime maintains at most one live websocket connection per app
// instance to the push server and fans named server events out to local
// listeners. The channel is a best-effort enhancement: transport failures
// are logged and surfaced as transient notices, never escalated to a hard
// failure of the hosting app.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/courseflow/courseflow/internal/client/notify"
	"github.com/courseflow/courseflow/internal/models"
)

// TokenSource supplies the current bearer token for the authenticate
// handshake.
type TokenSource func() string

// Options configures a Service.
type Options struct {
	URL      string
	Token    TokenSource
	Notifier notify.Notifier
	Logger   *zap.Logger
	// ReconnectAttempts is the retry ceiling; past it the channel gives up.
	ReconnectAttempts int
	// ReconnectDelay is the base delay; attempt n waits n times this.
	ReconnectDelay time.Duration
	// HeartbeatInterval spaces the fire-and-forget pings; zero disables
	// the heartbeat.
	HeartbeatInterval time.Duration
}

// Service owns the app's single push connection.
type Service struct {
	url               string
	token             TokenSource
	notifier          notify.Notifier
	log               *zap.Logger
	reconnectAttempts int
	reconnectDelay    time.Duration
	heartbeatInterval time.Duration

	registry *Registry

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// NewService constructs a Service. It does not connect; call Connect.
func NewService(opts Options) *Service {
	attempts := opts.ReconnectAttempts
	if attempts <= 0 {
		attempts = 5
	}
	delay := opts.ReconnectDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}
	return &Service{
		url:               opts.URL,
		token:             opts.Token,
		notifier:          opts.Notifier,
		log:               opts.Logger,
		reconnectAttempts: attempts,
		reconnectDelay:    delay,
		heartbeatInterval: opts.HeartbeatInterval,
		registry:          NewRegistry(),
	}
}

// On registers a listener on the internal registry.
func (s *Service) On(event string, fn Handler) func() {
	return s.registry.On(event, fn)
}

// Connected reports whether a transport connection is live.
func (s *Service) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Connect starts the connection loop for the given user and role rooms. A
// call while already running is a no-op; there is never more than one
// connection per Service.
func (s *Service) Connect(ctx context.Context, userID, role string) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	go s.run(runCtx, userID, role)
}

// Disconnect tears the connection down and stops reconnecting.
func (s *Service) Disconnect() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

// run dials, authenticates, and reads until the context ends, applying the
// linear-backoff reconnect policy in between.
func (s *Service) run(ctx context.Context, userID, role string) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
		if err != nil {
			attempt++
			if attempt > s.reconnectAttempts {
				s.giveUp()
				return
			}
			s.log.Warn("push server unreachable, retrying",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(attempt) * s.reconnectDelay):
			}
			continue
		}

		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()

		serverClosed := s.serve(ctx, conn, userID, role)

		s.mu.Lock()
		s.conn = nil
		stillRunning := s.running
		s.mu.Unlock()
		if !stillRunning || ctx.Err() != nil {
			return
		}

		if serverClosed {
			// the server asked us to go away and come back
			attempt = 0
			continue
		}
		attempt++
		if attempt > s.reconnectAttempts {
			s.giveUp()
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * s.reconnectDelay):
		}
	}
}

// serve authenticates and pumps messages on one connection. It returns true
// when the connection ended with a server-initiated close.
func (s *Service) serve(ctx context.Context, conn *websocket.Conn, userID, role string) bool {
	if err := s.writeFrame(conn, EventAuthenticate, map[string]string{"token": s.token()}); err != nil {
		s.log.Warn("failed to send authenticate", zap.Error(err))
		_ = conn.Close()
		return false
	}

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	heartbeatStarted := false

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			_ = conn.Close()
			// Only a deliberate close frame counts as the server asking us
			// to come back. An abrupt drop arrives as CloseAbnormalClosure
			// (or CloseNoStatusReceived) and goes through the normal
			// backoff path like any other read failure.
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseServiceRestart,
			) {
				return true
			}
			if ctx.Err() == nil {
				s.log.Warn("push connection dropped", zap.Error(err))
			}
			return false
		}

		switch f.Event {
		case EventAuthenticated:
			s.joinRooms(conn, userID, role)
			if s.heartbeatInterval > 0 && !heartbeatStarted {
				heartbeatStarted = true
				s.startHeartbeat(hbCtx, conn)
			}
		case EventAuthError:
			s.notifier.Notify(models.Notification{
				ID:        uuid.NewString(),
				Title:     "Realtime channel",
				Message:   "authentication rejected by push server",
				Severity:  models.SeverityWarning,
				CreatedAt: time.Now(),
			})
			_ = conn.Close()
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			return false
		default:
			s.dispatch(f)
		}
	}
}

// joinRooms requests the user-specific and role-specific channels.
func (s *Service) joinRooms(conn *websocket.Conn, userID, role string) {
	for _, room := range []string{"user:" + userID, "role:" + role} {
		if err := s.writeFrame(conn, EventJoinRoom, map[string]string{"room": room}); err != nil {
			s.log.Warn("failed to join room", zap.String("room", room), zap.Error(err))
		}
	}
}

// startHeartbeat sends fire-and-forget pings at the configured interval.
// There is no acknowledgement handling; a dead connection is discovered by
// the read loop.
func (s *Service) startHeartbeat(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(s.heartbeatInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.writeFrame(conn, EventHeartbeat, nil); err != nil {
					return
				}
			}
		}
	}()
}

// dispatch converts a server push into a transient notice and re-emits it on
// the registry.
func (s *Service) dispatch(f frame) {
	title, known := pushTitles[f.Event]
	if known {
		var payload struct {
			Title    string          `json:"title"`
			Message  string          `json:"message"`
			Severity models.Severity `json:"severity"`
		}
		_ = json.Unmarshal(f.Data, &payload)
		if payload.Title == "" {
			payload.Title = title
		}
		if payload.Severity == "" {
			payload.Severity = models.SeverityInfo
		}
		s.notifier.Notify(models.Notification{
			ID:        uuid.NewString(),
			Title:     payload.Title,
			Message:   payload.Message,
			Severity:  payload.Severity,
			CreatedAt: time.Now(),
		})
	}
	s.registry.Emit(f.Event, f.Data)
}

// giveUp surfaces the terminal connection-lost notice. No further automatic
// retries happen until the next Connect call.
func (s *Service) giveUp() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.log.Error("push connection lost, retry ceiling reached")
	s.notifier.Notify(models.Notification{
		ID:        uuid.NewString(),
		Title:     "Realtime channel",
		Message:   "connection lost, live updates disabled",
		Severity:  models.SeverityWarning,
		CreatedAt: time.Now(),
	})
}

// Emit sends a client event on the live connection. It fails softly when the
// channel is down; callers treat the push channel as optional.
func (s *Service) Emit(event string, data any) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("push channel not connected")
	}
	return s.writeFrame(conn, event, data)
}

func (s *Service) writeFrame(conn *websocket.Conn, event string, data any) error {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return err
		}
		raw = b
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteJSON(frame{Event: event, Data: raw})
}

// UpdateProgress reports a completed lesson over the socket.
func (s *Service) UpdateProgress(courseID, lessonID string) error {
	return s.Emit(EventUpdateProgress, map[string]string{"courseId": courseID, "lessonId": lessonID})
}

// MarkNotificationRead acknowledges a server-side notification.
func (s *Service) MarkNotificationRead(id string) error {
	return s.Emit(EventMarkNotificationRead, map[string]string{"id": id})
}

// SendAdminAction performs a typed management operation over the socket
// (admin variant).
func (s *Service) SendAdminAction(action AdminAction) error {
	return s.Emit(EventAdminAction, action)
}

// SendUserNotification pushes a notification to one user (admin variant).
func (s *Service) SendUserNotification(userID string, n models.Notification) error {
	return s.Emit(EventSendUserNotification, map[string]any{"userId": userID, "notification": n})
}

// SendRoleNotification pushes a notification to every user in a role
// (admin variant).
func (s *Service) SendRoleNotification(role string, n models.Notification) error {
	return s.Emit(EventSendRoleNotification, map[string]any{"role": role, "notification": n})
}

// BroadcastAnnouncement pushes a system-wide announcement (admin variant).
func (s *Service) BroadcastAnnouncement(message string, sev models.Severity) error {
	return s.Emit(EventBroadcastAnnounce, map[string]any{"message": message, "severity": sev})
}
