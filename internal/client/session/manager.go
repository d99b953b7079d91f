// Package session coordinates login, periodic session-validity polling, and
// expiry handling for one client app. A Manager holds a best-effort belief
// about whether the session is still valid; only the server's explicit word
// (a 401) or a missing token changes that belief to expired.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/courseflow/courseflow/internal/client/api"
	"github.com/courseflow/courseflow/internal/models"
)

// State is the session lifecycle state.
type State string

const (
	// StateLoggedOut is the initial state, also reached by explicit logout.
	StateLoggedOut State = "logged_out"
	// StateMonitoring is the logged-in state with the validation loop
	// running.
	StateMonitoring State = "monitoring"
	// StateExpired is reached when the server rejects the session or the
	// token disappears.
	StateExpired State = "expired"
)

// AuthAPI is the slice of the REST client the manager needs.
type AuthAPI interface {
	// Login authenticates; ErrActiveSession signals a retry with force.
	Login(ctx context.Context, req api.LoginRequest) (*api.LoginResult, error)
	// Logout notifies the server; failures are tolerated.
	Logout(ctx context.Context) error
	// ValidateSession confirms the session; ErrUnauthorized means gone.
	ValidateSession(ctx context.Context, device models.DeviceInfo) error
}

// Storage is the session-storage interface shared by both apps.
type Storage interface {
	Token() string
	Session() (models.SessionInfo, bool)
	SaveSession(info models.SessionInfo) error
	ClearSession() error
	// WatchRemoval registers fn for external removal of the session key.
	WatchRemoval(fn func()) func()
}

// Fingerprinter produces the device snapshot attached to auth calls.
type Fingerprinter interface {
	Generate() models.DeviceInfo
}

// Options configures a Manager.
type Options struct {
	API     AuthAPI
	Storage Storage
	Device  Fingerprinter
	Logger  *zap.Logger
	// Interval between validation calls. Defaults to five minutes.
	Interval time.Duration
	// MaxNetworkFailures bounds the fail-open window: after this many
	// consecutive transport failures the session is forced expired.
	// Zero keeps the window unbounded.
	MaxNetworkFailures int
}

// Manager owns the session lifecycle for one app instance.
type Manager struct {
	apiC           AuthAPI
	storage        Storage
	device         Fingerprinter
	log            *zap.Logger
	interval       time.Duration
	maxNetFailures int

	mu          sync.Mutex
	state       State
	netFailures int
	onExpired   func()
	stopMonitor context.CancelFunc
	unwatch     func()
}

// NewManager constructs a Manager in the logged-out state. It is not a
// package singleton; the caller wires exactly one per app and injects it.
func NewManager(opts Options) *Manager {
	interval := opts.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	m := &Manager{
		apiC:           opts.API,
		storage:        opts.Storage,
		device:         opts.Device,
		log:            opts.Logger,
		interval:       interval,
		maxNetFailures: opts.MaxNetworkFailures,
		state:          StateLoggedOut,
	}
	m.unwatch = opts.Storage.WatchRemoval(func() {
		// logout in another instance is equivalent to local expiry
		m.expire("session removed externally")
	})
	return m
}

// OnExpired registers the expiry callback, invoked at most once per login.
// Without a callback the expiry is only logged.
func (m *Manager) OnExpired(fn func()) {
	m.mu.Lock()
	m.onExpired = fn
	m.mu.Unlock()
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LoggedIn reports whether a token is stored and the session has not
// expired.
func (m *Manager) LoggedIn() bool {
	return m.State() == StateMonitoring && m.storage.Token() != ""
}

// Token returns the stored bearer token, or "" when logged out.
func (m *Manager) Token() string {
	return m.storage.Token()
}

// Login authenticates with a fresh device fingerprint and starts the
// validation loop. api.ErrActiveSession is passed through as a
// distinguished result: the caller should ask the user and retry with
// force set.
func (m *Manager) Login(ctx context.Context, email, password string, force bool) error {
	dev := m.device.Generate()
	res, err := m.apiC.Login(ctx, api.LoginRequest{
		Email:    email,
		Password: password,
		Device:   dev,
		Force:    force,
	})
	if err != nil {
		return err
	}

	info := models.SessionInfo{
		Token:   res.Token,
		UserID:  res.UserID,
		Role:    res.Role,
		Device:  dev,
		LoginAt: time.Now(),
	}
	if err := m.storage.SaveSession(info); err != nil {
		return err
	}

	m.mu.Lock()
	m.state = StateMonitoring
	m.netFailures = 0
	m.startMonitorLocked()
	m.mu.Unlock()

	m.log.Info("logged in",
		zap.String("userId", res.UserID),
		zap.String("role", res.Role),
	)
	return nil
}

// Resume restores monitoring for a session found in storage, typically on
// process start. It returns false when no session is stored.
func (m *Manager) Resume() bool {
	if m.storage.Token() == "" {
		return false
	}
	m.mu.Lock()
	if m.state != StateMonitoring {
		m.state = StateMonitoring
		m.netFailures = 0
		m.startMonitorLocked()
	}
	m.mu.Unlock()
	return true
}

// Logout best-effort notifies the server, clears local state, and stops the
// validation loop. Network failure never blocks logout, and the expiry
// callback is not invoked.
func (m *Manager) Logout(ctx context.Context) {
	notifyCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := m.apiC.Logout(notifyCtx); err != nil {
		m.log.Warn("server logout failed, clearing local state anyway", zap.Error(err))
	}

	m.mu.Lock()
	m.stopMonitorLocked()
	m.state = StateLoggedOut
	m.netFailures = 0
	m.mu.Unlock()

	if err := m.storage.ClearSession(); err != nil {
		m.log.Error("failed to clear session storage", zap.Error(err))
	}
	m.log.Info("logged out")
}

// Close releases the storage watcher and stops monitoring without touching
// stored state.
func (m *Manager) Close() {
	m.mu.Lock()
	m.stopMonitorLocked()
	m.mu.Unlock()
	if m.unwatch != nil {
		m.unwatch()
	}
}

// Revalidate runs one validation immediately, the refocus analog. Callers
// invoke it when the app regains the user's attention.
func (m *Manager) Revalidate(ctx context.Context) {
	if m.State() != StateMonitoring {
		return
	}
	m.validate(ctx)
}

// startMonitorLocked launches the validation loop. Callers hold m.mu.
func (m *Manager) startMonitorLocked() {
	m.stopMonitorLocked()
	ctx, cancel := context.WithCancel(context.Background())
	m.stopMonitor = cancel

	ticker := time.NewTicker(m.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.validate(ctx)
			}
		}
	}()
}

// stopMonitorLocked cancels the validation loop. Callers hold m.mu.
func (m *Manager) stopMonitorLocked() {
	if m.stopMonitor != nil {
		m.stopMonitor()
		m.stopMonitor = nil
	}
}

// validate performs one session check. An explicit 401 or a missing token
// expires the session; a transport error keeps the current belief
// (fail-open) unless the bounded failure window is exceeded.
func (m *Manager) validate(ctx context.Context) {
	if m.storage.Token() == "" {
		m.expire("token missing from storage")
		return
	}

	err := m.apiC.ValidateSession(ctx, m.device.Generate())
	switch {
	case err == nil:
		m.mu.Lock()
		m.netFailures = 0
		m.mu.Unlock()
	case errors.Is(err, api.ErrUnauthorized):
		m.expire("server rejected session")
	case errors.Is(err, context.Canceled):
		// loop shutting down
	default:
		m.mu.Lock()
		m.netFailures++
		failures := m.netFailures
		limit := m.maxNetFailures
		m.mu.Unlock()

		m.log.Warn("session validation unreachable, keeping current state",
			zap.Int("consecutiveFailures", failures),
			zap.Error(err),
		)
		if limit > 0 && failures >= limit {
			m.expire("validation endpoint unreachable beyond fail-open window")
		}
	}
}

// expire transitions to StateExpired exactly once per login: the monitor is
// stopped, stored session state is cleared, and the expiry callback runs at
// most once even under concurrent validations.
func (m *Manager) expire(reason string) {
	m.mu.Lock()
	if m.state != StateMonitoring {
		m.mu.Unlock()
		return
	}
	m.state = StateExpired
	m.stopMonitorLocked()
	fn := m.onExpired
	m.mu.Unlock()

	if err := m.storage.ClearSession(); err != nil {
		m.log.Error("failed to clear session storage", zap.Error(err))
	}
	m.log.Info("session expired", zap.String("reason", reason))

	if fn != nil {
		fn()
	} else {
		m.log.Warn("no expiry handler registered, user must log in again")
	}
}
