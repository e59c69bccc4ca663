package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/rs/zerolog"
)

const (
	// SessionName is the name of the session cookie.
	SessionName = "aurospan_session"
	// AccessTokenKey is the session key for the provider access token.
	AccessTokenKey = "access_token"
	// UserKey is the session key for the JSON-encoded user snapshot.
	UserKey = "user"
)

// SessionConfig holds session store configuration.
type SessionConfig struct {
	Secret     []byte
	MaxAge     int  // seconds
	Secure     bool // require HTTPS
	HTTPOnly   bool // prevent JavaScript access
	SameSite   http.SameSite
	CookiePath string
}

// DefaultSessionConfig returns a SessionConfig with secure defaults.
func DefaultSessionConfig(secret []byte, secure bool) SessionConfig {
	return SessionConfig{
		Secret:     secret,
		MaxAge:     86400, // 24 hours
		Secure:     secure,
		HTTPOnly:   true,
		SameSite:   http.SameSiteLaxMode,
		CookiePath: "/",
	}
}

// SessionUser is the identity snapshot taken at login. It is not refreshed
// until the next login.
type SessionUser struct {
	ID              string    `json:"id"`
	Username        string    `json:"username"`
	Discriminator   string    `json:"discriminator"`
	Avatar          string    `json:"avatar,omitempty"`
	Roles           []string  `json:"roles"`
	AuthenticatedAt time.Time `json:"authenticated_at"`
}

// DisplayName returns the username with the legacy discriminator when present.
func (u *SessionUser) DisplayName() string {
	if u.Discriminator == "" || u.Discriminator == "0" {
		return u.Username
	}
	return u.Username + "#" + u.Discriminator
}

// Session is either Anonymous or Authenticated.
type Session interface {
	isSession()
}

// Anonymous is a session with no established identity.
type Anonymous struct{}

// Authenticated is a session established by a successful login.
type Authenticated struct {
	User        SessionUser
	AccessToken string
}

func (Anonymous) isSession()      {}
func (*Authenticated) isSession() {}

// SessionStore wraps a gorilla/sessions store with helper methods.
type SessionStore struct {
	store  *sessions.CookieStore
	logger zerolog.Logger
}

// NewSessionStore creates a new session store.
func NewSessionStore(cfg SessionConfig, logger zerolog.Logger) (*SessionStore, error) {
	if len(cfg.Secret) < 32 {
		return nil, fmt.Errorf("session secret must be at least 32 bytes")
	}

	store := sessions.NewCookieStore(cfg.Secret)
	store.Options = &sessions.Options{
		Path:     cfg.CookiePath,
		MaxAge:   cfg.MaxAge,
		HttpOnly: cfg.HTTPOnly,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	}
	store.MaxAge(cfg.MaxAge)

	s := &SessionStore{
		store:  store,
		logger: logger.With().Str("component", "session").Logger(),
	}

	s.logger.Info().
		Bool("secure", cfg.Secure).
		Int("max_age", cfg.MaxAge).
		Msg("session store initialized")

	return s, nil
}

// get retrieves the raw session. A cookie that fails verification yields a
// fresh session along with the decode error.
func (s *SessionStore) get(r *http.Request) (*sessions.Session, error) {
	session, err := s.store.Get(r, SessionName)
	if err != nil {
		return session, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// Load returns the session attached to the request. Missing, tampered, or
// undecodable cookies all load as Anonymous.
func (s *SessionStore) Load(r *http.Request) Session {
	session, err := s.get(r)
	if err != nil {
		s.logger.Debug().Err(err).Msg("discarding invalid session cookie")
		return Anonymous{}
	}

	raw, ok := session.Values[UserKey].(string)
	if !ok || raw == "" {
		return Anonymous{}
	}
	var user SessionUser
	if err := json.Unmarshal([]byte(raw), &user); err != nil || user.ID == "" {
		s.logger.Warn().Err(err).Msg("session holds malformed user data")
		return Anonymous{}
	}
	if user.Roles == nil {
		user.Roles = []string{}
	}

	token, _ := session.Values[AccessTokenKey].(string)
	return &Authenticated{User: user, AccessToken: token}
}

// Establish stores the authenticated identity in the session cookie.
func (s *SessionStore) Establish(r *http.Request, w http.ResponseWriter, auth *Authenticated) error {
	data, err := json.Marshal(auth.User)
	if err != nil {
		return fmt.Errorf("encode session user: %w", err)
	}

	// A stale or forged cookie must not block a fresh login.
	session, err := s.get(r)
	if err != nil && session == nil {
		return err
	}

	session.Values = map[any]any{
		AccessTokenKey: auth.AccessToken,
		UserKey:        string(data),
	}
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Clear removes every value from the session and expires the cookie.
func (s *SessionStore) Clear(r *http.Request, w http.ResponseWriter) error {
	session, err := s.get(r)
	if err != nil && session == nil {
		return err
	}
	session.Values = map[any]any{}
	// Set MaxAge to -1 to delete the cookie
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
