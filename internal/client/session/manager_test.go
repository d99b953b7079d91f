package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/courseflow/courseflow/internal/client/api"
	"github.com/courseflow/courseflow/internal/models"
)

type fakeAPI struct {
	LoginFunc    func(ctx context.Context, req api.LoginRequest) (*api.LoginResult, error)
	LogoutFunc   func(ctx context.Context) error
	ValidateFunc func(ctx context.Context, device models.DeviceInfo) error
}

func (f *fakeAPI) Login(ctx context.Context, req api.LoginRequest) (*api.LoginResult, error) {
	return f.LoginFunc(ctx, req)
}
func (f *fakeAPI) Logout(ctx context.Context) error {
	if f.LogoutFunc == nil {
		return nil
	}
	return f.LogoutFunc(ctx)
}
func (f *fakeAPI) ValidateSession(ctx context.Context, device models.DeviceInfo) error {
	return f.ValidateFunc(ctx, device)
}

type fakeStorage struct {
	mu      sync.Mutex
	session *models.SessionInfo
	watch   func()
}

func (s *fakeStorage) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return ""
	}
	return s.session.Token
}

func (s *fakeStorage) Session() (models.SessionInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return models.SessionInfo{}, false
	}
	return *s.session, true
}

func (s *fakeStorage) SaveSession(info models.SessionInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = &info
	return nil
}

func (s *fakeStorage) ClearSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	return nil
}

func (s *fakeStorage) WatchRemoval(fn func()) func() {
	s.watch = fn
	return func() {}
}

type fakeDevice struct{}

func (fakeDevice) Generate() models.DeviceInfo {
	return models.DeviceInfo{Platform: "test", Hash: "h"}
}

func okLogin(ctx context.Context, req api.LoginRequest) (*api.LoginResult, error) {
	return &api.LoginResult{Token: "tok-1", UserID: "u1", Role: "student"}, nil
}

func newTestManager(t *testing.T, apiC *fakeAPI, opts Options) (*Manager, *fakeStorage) {
	t.Helper()
	st := &fakeStorage{}
	opts.API = apiC
	opts.Storage = st
	opts.Device = fakeDevice{}
	opts.Logger = zap.NewNop()
	if opts.Interval == 0 {
		opts.Interval = time.Hour // keep the background loop quiet in tests
	}
	m := NewManager(opts)
	t.Cleanup(m.Close)
	return m, st
}

func TestLoginLogout_TokenRoundTrip(t *testing.T) {
	m, st := newTestManager(t, &fakeAPI{LoginFunc: okLogin}, Options{})

	require.NoError(t, m.Login(context.Background(), "a@b.c", "pw", false))
	assert.Equal(t, "tok-1", st.Token())
	assert.True(t, m.LoggedIn())
	assert.Equal(t, StateMonitoring, m.State())

	m.Logout(context.Background())
	assert.False(t, m.LoggedIn())
	assert.Equal(t, "", st.Token())
	assert.Equal(t, StateLoggedOut, m.State())
}

func TestLogin_ActiveSessionNeedsForce(t *testing.T) {
	var sawForce bool
	apiC := &fakeAPI{
		LoginFunc: func(ctx context.Context, req api.LoginRequest) (*api.LoginResult, error) {
			if !req.Force {
				return nil, api.ErrActiveSession
			}
			sawForce = true
			return okLogin(ctx, req)
		},
	}
	m, _ := newTestManager(t, apiC, Options{})

	err := m.Login(context.Background(), "a@b.c", "pw", false)
	require.ErrorIs(t, err, api.ErrActiveSession)
	assert.False(t, m.LoggedIn(), "a needs-force result must not log in")

	require.NoError(t, m.Login(context.Background(), "a@b.c", "pw", true))
	assert.True(t, sawForce)
	assert.True(t, m.LoggedIn())
}

func TestLogin_AttachesFreshFingerprint(t *testing.T) {
	var gotDevice models.DeviceInfo
	apiC := &fakeAPI{
		LoginFunc: func(ctx context.Context, req api.LoginRequest) (*api.LoginResult, error) {
			gotDevice = req.Device
			return okLogin(ctx, req)
		},
	}
	m, st := newTestManager(t, apiC, Options{})
	require.NoError(t, m.Login(context.Background(), "a@b.c", "pw", false))

	assert.Equal(t, "test", gotDevice.Platform)
	info, ok := st.Session()
	require.True(t, ok)
	assert.Equal(t, gotDevice, info.Device)
}

func TestValidate_UnauthorizedExpiresExactlyOnce(t *testing.T) {
	apiC := &fakeAPI{
		LoginFunc: okLogin,
		ValidateFunc: func(context.Context, models.DeviceInfo) error {
			return api.ErrUnauthorized
		},
	}
	m, st := newTestManager(t, apiC, Options{})

	var expirations int32
	m.OnExpired(func() { atomic.AddInt32(&expirations, 1) })
	require.NoError(t, m.Login(context.Background(), "a@b.c", "pw", false))

	// several validations racing each other must expire only once
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.validate(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&expirations))
	assert.Equal(t, StateExpired, m.State())
	assert.Equal(t, "", st.Token())
}

func TestValidate_NetworkErrorFailOpen(t *testing.T) {
	netErr := errors.New("connection refused")
	fail := true
	apiC := &fakeAPI{
		LoginFunc: okLogin,
		ValidateFunc: func(context.Context, models.DeviceInfo) error {
			if fail {
				return netErr
			}
			return nil
		},
	}
	m, st := newTestManager(t, apiC, Options{})
	require.NoError(t, m.Login(context.Background(), "a@b.c", "pw", false))

	for i := 0; i < 4; i++ {
		m.validate(context.Background())
		assert.Equal(t, StateMonitoring, m.State())
		assert.Equal(t, "tok-1", st.Token(), "a transport failure must never clear the token")
	}

	fail = false
	m.validate(context.Background())
	assert.Equal(t, StateMonitoring, m.State())
	assert.True(t, m.LoggedIn())
}

func TestValidate_BoundedFailOpenWindow(t *testing.T) {
	netErr := errors.New("connection refused")
	apiC := &fakeAPI{
		LoginFunc:    okLogin,
		ValidateFunc: func(context.Context, models.DeviceInfo) error { return netErr },
	}
	m, _ := newTestManager(t, apiC, Options{MaxNetworkFailures: 3})
	require.NoError(t, m.Login(context.Background(), "a@b.c", "pw", false))

	m.validate(context.Background())
	m.validate(context.Background())
	assert.Equal(t, StateMonitoring, m.State())

	m.validate(context.Background())
	assert.Equal(t, StateExpired, m.State())
}

func TestValidate_SuccessResetsFailureWindow(t *testing.T) {
	netErr := errors.New("connection refused")
	calls := 0
	apiC := &fakeAPI{
		LoginFunc: okLogin,
		ValidateFunc: func(context.Context, models.DeviceInfo) error {
			calls++
			if calls == 3 {
				return nil
			}
			return netErr
		},
	}
	m, _ := newTestManager(t, apiC, Options{MaxNetworkFailures: 3})
	require.NoError(t, m.Login(context.Background(), "a@b.c", "pw", false))

	for i := 0; i < 5; i++ {
		m.validate(context.Background())
	}
	// failures went 1, 2, reset, 1, 2 and never reached the window
	assert.Equal(t, StateMonitoring, m.State())
}

func TestValidate_MissingTokenExpires(t *testing.T) {
	apiC := &fakeAPI{
		LoginFunc:    okLogin,
		ValidateFunc: func(context.Context, models.DeviceInfo) error { return nil },
	}
	m, st := newTestManager(t, apiC, Options{})
	require.NoError(t, m.Login(context.Background(), "a@b.c", "pw", false))

	require.NoError(t, st.ClearSession())
	m.validate(context.Background())
	assert.Equal(t, StateExpired, m.State())
}

func TestExternalRemovalExpires(t *testing.T) {
	apiC := &fakeAPI{LoginFunc: okLogin}
	m, st := newTestManager(t, apiC, Options{})

	expired := 0
	m.OnExpired(func() { expired++ })
	require.NoError(t, m.Login(context.Background(), "a@b.c", "pw", false))

	// logout observed from another app instance
	require.NoError(t, st.ClearSession())
	st.watch()

	assert.Equal(t, 1, expired)
	assert.Equal(t, StateExpired, m.State())
}

func TestLogout_NetworkFailureStillClears(t *testing.T) {
	apiC := &fakeAPI{
		LoginFunc:  okLogin,
		LogoutFunc: func(context.Context) error { return errors.New("server down") },
	}
	m, st := newTestManager(t, apiC, Options{})
	require.NoError(t, m.Login(context.Background(), "a@b.c", "pw", false))

	m.Logout(context.Background())
	assert.Equal(t, "", st.Token())
	assert.Equal(t, StateLoggedOut, m.State())
}

func TestResume(t *testing.T) {
	apiC := &fakeAPI{LoginFunc: okLogin}
	m, st := newTestManager(t, apiC, Options{})

	assert.False(t, m.Resume(), "nothing stored, nothing to resume")

	require.NoError(t, st.SaveSession(models.SessionInfo{Token: "tok-9", UserID: "u9"}))
	assert.True(t, m.Resume())
	assert.Equal(t, StateMonitoring, m.State())
}

func TestMonitorLoop_CallsValidate(t *testing.T) {
	validated := make(chan struct{}, 8)
	apiC := &fakeAPI{
		LoginFunc: okLogin,
		ValidateFunc: func(context.Context, models.DeviceInfo) error {
			select {
			case validated <- struct{}{}:
			default:
			}
			return nil
		},
	}
	m, _ := newTestManager(t, apiC, Options{Interval: 10 * time.Millisecond})
	require.NoError(t, m.Login(context.Background(), "a@b.c", "pw", false))

	select {
	case <-validated:
	case <-time.After(2 * time.Second):
		t.Fatal("validation loop never ticked")
	}
	m.Logout(context.Background())
}

func TestRevalidate_NoOpWhenLoggedOut(t *testing.T) {
	called := false
	apiC := &fakeAPI{
		LoginFunc: okLogin,
		ValidateFunc: func(context.Context, models.DeviceInfo) error {
			called = true
			return nil
		},
	}
	m, _ := newTestManager(t, apiC, Options{})

	m.Revalidate(context.Background())
	assert.False(t, called)
}
