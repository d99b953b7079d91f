package store

import (
	"github.com/courseflow/courseflow/internal/models"
)

// sessionKey is the single session slot. Both apps use the same key schema;
// app identity is carried by the store file itself, so there is no token-key
// drift between the learner and admin clients.
const sessionKey = "session"

// Sessions exposes the session slot of a store.
type Sessions struct {
	store *Store
}

// NewSessions wraps the store with session accessors.
func NewSessions(s *Store) *Sessions {
	return &Sessions{store: s}
}

// Token returns the stored bearer token, or "" when logged out.
func (s *Sessions) Token() string {
	info, ok := s.Session()
	if !ok {
		return ""
	}
	return info.Token
}

// Session returns the stored session record.
func (s *Sessions) Session() (models.SessionInfo, bool) {
	var info models.SessionInfo
	ok, err := s.store.Get(sessionKey, &info)
	if !ok || err != nil {
		return models.SessionInfo{}, false
	}
	return info, true
}

// SaveSession persists the session record.
func (s *Sessions) SaveSession(info models.SessionInfo) error {
	return s.store.Set(sessionKey, info)
}

// ClearSession removes the session record entirely.
func (s *Sessions) ClearSession() error {
	return s.store.Delete(sessionKey)
}

// WatchRemoval registers fn to run when the session key is removed by
// another process, the equivalent of a logout observed from another tab.
// The returned function removes the subscription.
func (s *Sessions) WatchRemoval(fn func()) func() {
	return s.store.Subscribe(func(ev Event) {
		if ev.Key == sessionKey && ev.Op == OpDelete && ev.External {
			fn()
		}
	})
}
