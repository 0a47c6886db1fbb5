// Package session owns the authenticated identity of the client. The
// Manager is the only writer of the process-wide Session; every other
// component reads immutable snapshots of it.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/nhle/facility-maintenance/internal/api"
	"github.com/nhle/facility-maintenance/internal/credential"
	"github.com/nhle/facility-maintenance/internal/model"
)

// Store is the durable key/value store the session is persisted in.
type Store interface {
	Get(key string) (string, error)
	Set(key string, value string) error
	Delete(key string) error
}

// Authenticator performs the server side of login and logout.
type Authenticator interface {
	Login(ctx context.Context, email, password string, pushToken *string) (*api.LoginResponse, error)
	Logout(ctx context.Context) error
}

// Outcome discriminates a completed login call.
type Outcome int

const (
	// LoginOK means the session was established and persisted.
	LoginOK Outcome = iota
	// LoginRoleNotAllowed means the server accepted the credentials but
	// the account's role cannot use this client. Nothing was persisted.
	LoginRoleNotAllowed
)

func (o Outcome) String() string {
	switch o {
	case LoginOK:
		return "ok"
	case LoginRoleNotAllowed:
		return "role_not_allowed"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// LoginResult is the non-error result of Login. Transport failures are
// returned as errors wrapping *transport.Error instead.
type LoginResult struct {
	Outcome Outcome
	Session model.Session
}

// Manager loads, persists and clears the session.
type Manager struct {
	store Store
	auth  Authenticator
	log   logrus.FieldLogger
	now   func() time.Time

	mu        sync.RWMutex
	current   model.Session
	listeners []func(model.Session)
}

// NewManager creates a Manager with an empty session.
func NewManager(store Store, auth Authenticator, log logrus.FieldLogger) *Manager {
	return &Manager{
		store: store,
		auth:  auth,
		log:   log.WithField("component", "session"),
		now:   time.Now,
	}
}

// Current returns a snapshot of the session. The snapshot does not share
// memory with the manager.
func (m *Manager) Current() model.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return snapshot(m.current)
}

// Credential returns the bearer credential, or "" when logged out.
func (m *Manager) Credential() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Credential
}

// OnChange registers fn to be called with each new session after it
// replaces the previous one.
func (m *Manager) OnChange(fn func(model.Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Hydrate loads the persisted session. Any missing, unreadable or
// inconsistent state yields the empty session without an error.
func (m *Manager) Hydrate(_ context.Context) model.Session {
	s := m.load()
	m.set(s)
	return snapshot(s)
}

func (m *Manager) load() model.Session {
	token, tokenErr := m.store.Get(credential.KeyAccessToken)
	rawUser, userErr := m.store.Get(credential.KeyUser)
	m.logReadError(credential.KeyAccessToken, tokenErr)
	m.logReadError(credential.KeyUser, userErr)

	if tokenErr != nil || userErr != nil || token == "" || rawUser == "" {
		if (tokenErr == nil && token != "") != (userErr == nil && rawUser != "") {
			m.log.Info("discarding partially persisted session")
		}
		return model.Session{}
	}

	var user model.User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		m.log.WithError(err).Warn("persisted user profile is unreadable")
		return model.Session{}
	}
	if !user.Role.Valid() {
		m.log.WithField("role", user.Role).Warn("persisted user has unknown role")
		return model.Session{}
	}
	if m.expired(token) {
		m.log.Info("persisted access token has expired")
		return model.Session{}
	}

	return model.Session{Credential: token, Profile: &user}
}

func (m *Manager) logReadError(key string, err error) {
	if err != nil && !errors.Is(err, credential.ErrNotFound) {
		m.log.WithError(err).WithField("key", key).Warn("reading persisted session failed")
	}
}

// expired reports whether token is a JWT whose exp claim has passed.
// Opaque tokens never expire client side.
func (m *Manager) expired(token string) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && !claims.ExpiresAt.After(m.now())
}

// Login authenticates and, on success, persists and installs the new
// session. pushToken may be nil.
func (m *Manager) Login(
	ctx context.Context,
	email string,
	password string,
	pushToken *string,
) (LoginResult, error) {
	resp, err := m.auth.Login(ctx, email, password, pushToken)
	if err != nil {
		return LoginResult{}, err
	}

	if resp.User.Role == model.RoleGeneralService {
		m.log.WithField("user_id", resp.User.ID).Info("rejected web-only account")
		return LoginResult{Outcome: LoginRoleNotAllowed, Session: m.Current()}, nil
	}
	if !resp.User.Role.Valid() {
		return LoginResult{}, fmt.Errorf("login returned unknown role %q", resp.User.Role)
	}
	if resp.Token == "" {
		return LoginResult{}, errors.New("login response carried no token")
	}

	user := resp.User
	s := model.Session{Credential: resp.Token, Profile: &user}
	m.persist(s)
	m.set(s)

	m.log.WithFields(logrus.Fields{
		"user_id": user.ID,
		"role":    user.Role,
	}).Info("logged in")

	return LoginResult{Outcome: LoginOK, Session: snapshot(s)}, nil
}

// persist writes both keys. If the second write fails the first is
// rolled back so the store never holds half a session. Failures are
// logged; the in-memory session still applies to this process.
func (m *Manager) persist(s model.Session) {
	data, err := json.Marshal(s.Profile)
	if err != nil {
		m.log.WithError(err).Warn("encoding user profile failed")
		return
	}
	if err := m.store.Set(credential.KeyUser, string(data)); err != nil {
		m.log.WithError(err).Warn("persisting user profile failed")
		return
	}
	if err := m.store.Set(credential.KeyAccessToken, s.Credential); err != nil {
		m.log.WithError(err).Warn("persisting access token failed")
		if err := m.store.Delete(credential.KeyUser); err != nil {
			m.log.WithError(err).Warn("rolling back user profile failed")
		}
	}
}

// Logout revokes the credential on the server when possible, then clears
// the session in memory and in the store. It never fails.
func (m *Manager) Logout(ctx context.Context) {
	if m.Credential() != "" && m.auth != nil {
		if err := m.auth.Logout(ctx); err != nil {
			m.log.WithError(err).Warn("server logout failed")
		}
	}

	m.set(model.Session{})

	for _, key := range []string{credential.KeyAccessToken, credential.KeyUser} {
		if err := m.store.Delete(key); err != nil {
			m.log.WithError(err).WithField("key", key).Warn("clearing persisted session failed")
		}
	}
	m.log.Info("logged out")
}

func (m *Manager) set(s model.Session) {
	m.mu.Lock()
	m.current = s
	listeners := append([]func(model.Session){}, m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot(s))
	}
}

func snapshot(s model.Session) model.Session {
	if s.Profile == nil {
		return model.Session{}
	}
	p := *s.Profile
	return model.Session{Credential: s.Credential, Profile: &p}
}
