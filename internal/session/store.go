package session

import (
	"net/http"
	"sync"
	"time"
)

// Cookie names of the session credential pair
const (
	AccessTokenCookie = "access_token"
	LoginIDCookie     = "login_id"
)

// DefaultTTL is the fixed lifetime of the credential pair at issuance
const DefaultTTL = time.Hour

// Session is the credential pair issued at login. LoginID is opaque and
// carries no validation of its own.
type Session struct {
	Token   string
	LoginID string
}

// Store persists named session values. Implementations must honor the
// expiry passed to Set and report expired values as absent.
type Store interface {
	Get(name string) (string, bool)
	Set(name, value string, expires time.Time)
	Delete(name string)
}

// Manager reads and writes the session credential pair through a Store
type Manager struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// NewManager creates a session manager over the given store
func NewManager(store Store, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		store: store,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Save persists the credential pair with the fixed expiry window
func (m *Manager) Save(s Session) {
	expires := m.now().Add(m.ttl)
	m.store.Set(AccessTokenCookie, s.Token, expires)
	m.store.Set(LoginIDCookie, s.LoginID, expires)
}

// Current returns the stored credential pair. Absent values come back empty.
func (m *Manager) Current() Session {
	token, _ := m.store.Get(AccessTokenCookie)
	loginID, _ := m.store.Get(LoginIDCookie)
	return Session{Token: token, LoginID: loginID}
}

// Clear destroys the credential pair
func (m *Manager) Clear() {
	m.store.Delete(AccessTokenCookie)
	m.store.Delete(LoginIDCookie)
}

// MemoryStore is an in-memory Store with read-time expiry. There is no
// background sweeper; expiry is checked when a value is read, matching the
// cookie model it substitutes for in tests.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]memoryValue
	now    func() time.Time
}

type memoryValue struct {
	value   string
	expires time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]memoryValue),
		now:    time.Now,
	}
}

// Get returns a stored value if present and not expired
func (s *MemoryStore) Get(name string) (string, bool) {
	s.mu.RLock()
	v, ok := s.values[name]
	s.mu.RUnlock()

	if !ok || !v.expires.After(s.now()) {
		return "", false
	}
	return v.value, true
}

// Set stores a value with an expiry time
func (s *MemoryStore) Set(name, value string, expires time.Time) {
	s.mu.Lock()
	s.values[name] = memoryValue{value: value, expires: expires}
	s.mu.Unlock()
}

// Delete removes a stored value
func (s *MemoryStore) Delete(name string) {
	s.mu.Lock()
	delete(s.values, name)
	s.mu.Unlock()
}

// ReadSession extracts the credential pair from request cookies
func ReadSession(r *http.Request) Session {
	var s Session
	if c, err := r.Cookie(AccessTokenCookie); err == nil {
		s.Token = c.Value
	}
	if c, err := r.Cookie(LoginIDCookie); err == nil {
		s.LoginID = c.Value
	}
	return s
}

// WriteSession sets the credential pair as cookies with the given lifetime
func WriteSession(w http.ResponseWriter, s Session, ttl time.Duration, secure bool) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	expires := time.Now().Add(ttl)

	http.SetCookie(w, &http.Cookie{
		Name:     AccessTokenCookie,
		Value:    s.Token,
		Path:     "/",
		Expires:  expires,
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     LoginIDCookie,
		Value:    s.LoginID,
		Path:     "/",
		Expires:  expires,
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSession deletes the credential pair by setting already-expired cookies
func ClearSession(w http.ResponseWriter, secure bool) {
	for _, name := range []string{AccessTokenCookie, LoginIDCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			Secure:   secure,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
